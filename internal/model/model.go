package model

type AppKind string

const (
	AppName = "onboarder"

	// AppKindWorker runs the queue-driven onboarding worker.
	AppKindWorker AppKind = "worker"
	// AppKindClient runs one-shot onboarding from the CLI.
	AppKindClient AppKind = "client"

	LogLevelInfo  = 0
	LogLevelDebug = 1
	LogLevelTrace = 2
)

// AppKinds returns the supported onboarder app kinds
func AppKinds() []AppKind { return []AppKind{AppKindWorker, AppKindClient} }
