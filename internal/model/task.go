package model

import (
	"time"

	sw "github.com/filanov/stateswitch"
	"github.com/google/uuid"
)

// Task statuses.
//
// A task starts out pending, is moved to running before any network I/O and
// from there to exactly one terminal status. A crash mid-run leaves the task
// observably running until an external reaper reconciles it.
const (
	StatusPending   sw.State = "pending"
	StatusRunning   sw.State = "running"
	StatusSucceeded sw.State = "succeeded"
	StatusFailed    sw.State = "failed"
	StatusSkipped   sw.State = "skipped"
)

const (
	DefaultSSHPort        = 22
	DefaultTimeoutSeconds = 30
)

// Task is the unit of onboarding work.
//
// It is created by an external caller in status pending and exclusively
// mutated by the worker from there on. Credentials are never part of the
// task record - they travel out-of-band on the queue message.
//
// nolint:govet // fieldalignment - struct is better readable in its current form.
type Task struct {
	// Task unique identifier.
	ID uuid.UUID `gorm:"primaryKey;type:text" json:"id"`

	// Address is the management IP or FQDN to onboard. When an FQDN is
	// submitted the worker rewrites this field to the resolved IP before
	// connecting.
	Address string `gorm:"index" json:"address"`

	// SiteSlug is the inventory site the device belongs to. Required.
	SiteSlug string `json:"site"`

	// Caller-supplied overrides; empty means derive from collected facts
	// or settings defaults.
	RoleSlug       string `json:"role,omitempty"`
	PlatformSlug   string `json:"platform,omitempty"`
	DeviceTypeSlug string `json:"device_type,omitempty"`

	Port           int `json:"port"`
	TimeoutSeconds int `json:"timeout"`

	Status       sw.State   `gorm:"index" json:"status"`
	FailedReason FailReason `json:"failed_reason,omitempty"`
	Message      string     `json:"message,omitempty"`

	// DeviceID references the inventory device created or matched by
	// reconciliation. Set on success, and on failure when a device had
	// already been matched by primary IP.
	DeviceID *int `json:"device_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTask returns a pending task for the given address and site.
func NewTask(address, siteSlug string) Task {
	return Task{
		ID:             uuid.New(),
		Address:        address,
		SiteSlug:       siteSlug,
		Port:           DefaultSSHPort,
		TimeoutSeconds: DefaultTimeoutSeconds,
		Status:         StatusPending,
	}
}

// State implements the stateswitch StateSwitch interface.
func (t *Task) State() sw.State {
	return t.Status
}

// SetState implements the stateswitch StateSwitch interface.
func (t *Task) SetState(state sw.State) error {
	t.Status = state
	return nil
}

// Timeout returns the task connection timeout as a duration.
func (t *Task) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// Terminal indicates the task reached a final status.
func (t *Task) Terminal() bool {
	switch t.Status {
	case StatusSucceeded, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// Credentials are device login secrets received at task-submission time.
//
// They are handed to the worker for the duration of one run and must never
// be persisted with the task.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Secret   string `json:"secret,omitempty"`
}

// TaskMessage is the queue payload dispatching a task to a worker.
type TaskMessage struct {
	TaskID      uuid.UUID   `json:"task_id"`
	Credentials Credentials `json:"credentials"`
}
