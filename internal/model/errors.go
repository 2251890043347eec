package model

import "errors"

// FailReason is the closed set of onboarding failure classifications.
//
// Every error surfaced to the task record carries exactly one of these.
type FailReason string

const (
	// FailConfig - provided or stored configuration is not valid.
	FailConfig FailReason = "fail-config"
	// FailConnect - device is unreachable at IP:PORT.
	FailConnect FailReason = "fail-connect"
	// FailExecute - unable to execute a device command.
	FailExecute FailReason = "fail-execute"
	// FailLogin - bad username/password.
	FailLogin FailReason = "fail-login"
	// FailDNS - failed to resolve an IP address from a name.
	FailDNS FailReason = "fail-dns"
	// FailGeneral - any other error.
	FailGeneral FailReason = "fail-general"
)

// OnboardError is the single error type raised across onboarding components.
//
// Components translate underlying driver/store errors into an OnboardError at
// their boundary and never recover from one locally; the worker is the sole
// recovery point.
type OnboardError struct {
	Reason  FailReason
	Message string
}

func (e *OnboardError) Error() string {
	return string(e.Reason) + ": " + e.Message
}

// NewOnboardError returns an OnboardError with the given reason and message.
func NewOnboardError(reason FailReason, message string) *OnboardError {
	return &OnboardError{Reason: reason, Message: message}
}

// AsOnboardError unwraps err into an OnboardError if it carries one.
func AsOnboardError(err error) (*OnboardError, bool) {
	oe := &OnboardError{}
	if errors.As(err, &oe) {
		return oe, true
	}

	return nil, false
}

// ClassifyError returns err as-is when it is already an OnboardError and
// otherwise forces it into fail-general, preserving its string form.
func ClassifyError(err error) *OnboardError {
	if oe, ok := AsOnboardError(err); ok {
		return oe
	}

	return &OnboardError{Reason: FailGeneral, Message: err.Error()}
}
