package device

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/net-toolbox/onboarder/internal/model"
)

var (
	// ErrConnection indicates the driver could not establish or keep its
	// session (wrong credentials, dropped transport).
	ErrConnection = errors.New("driver connection error")

	// ErrCommand indicates a device command could not be executed.
	ErrCommand = errors.New("driver command error")

	// ErrUnknownDriver indicates no driver is registered for the name.
	ErrUnknownDriver = errors.New("unknown vendor driver")
)

// RawFacts is the vendor-neutral fact structure a driver retrieves.
// Normalization (casing, slug rewrites) is the collector's job.
type RawFacts struct {
	Hostname     string
	Vendor       string
	Model        string
	SerialNumber string
}

// Driver is the vendor driver session contract.
//
// Implementations wrap their failures in ErrConnection or ErrCommand so the
// caller can classify them; anything else is treated as a general failure.
type Driver interface {
	// Open establishes the device session.
	Open(ctx context.Context) error

	// Close tears down the session.
	Close() error

	// Facts retrieves the device identity facts.
	Facts(ctx context.Context) (*RawFacts, error)

	// InterfaceIPs retrieves the per-interface IPv4 address map.
	InterfaceIPs(ctx context.Context) (model.InterfaceIPs, error)

	// CLI executes raw commands, returning output keyed by command.
	CLI(ctx context.Context, commands []string) (map[string]string, error)
}

// Params are the connection parameters handed to a driver factory.
type Params struct {
	Address     string
	Port        int
	Timeout     time.Duration
	Credentials model.Credentials

	// Telnet requests the telnet transport, selected when the task port
	// is 23. Drivers without telnet support reject it on Open.
	Telnet bool
}

// Factory constructs a driver for the given connection parameters.
type Factory func(params Params) Driver

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register adds a driver factory under the given name. Platform-to-driver
// resolution happens through a static table merged with inventory platform
// associations; this registry only maps the resolved name to code.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[name] = factory
}

// New constructs the named driver.
func New(name string, params Params) (Driver, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, ok := registry[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownDriver, name)
	}

	return factory(params), nil
}

// Registered reports whether a driver is registered under the given name.
func Registered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()

	_, ok := registry[name]

	return ok
}

// ClassifyErr translates a driver error into the onboarding error type:
// connection failures are login failures from the caller's point of view
// (the TCP probe already passed), command failures are execute failures and
// the rest is general.
func ClassifyErr(err error) *model.OnboardError {
	switch {
	case errors.Is(err, ErrConnection):
		return model.NewOnboardError(model.FailLogin, err.Error())
	case errors.Is(err, ErrCommand):
		return model.NewOnboardError(model.FailExecute, err.Error())
	default:
		return model.ClassifyError(err)
	}
}
