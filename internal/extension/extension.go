package extension

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/net-toolbox/onboarder/internal/device"
	"github.com/net-toolbox/onboarder/internal/model"
)

// Hook refines collected facts using vendor-specific probing over the still
// open driver session, typically to detect stacked chassis members.
type Hook func(ctx context.Context, facts *model.DeviceFacts, drv device.Driver, logger *logrus.Logger) error

var (
	registryMu sync.Mutex
	registry   = map[string]Hook{}
)

// Register makes a hook available under the given key. Keys are referenced
// from the extension_map setting.
func Register(key string, hook Hook) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[key] = hook
}

func lookup(key string) (Hook, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()

	hook, found := registry[key]

	return hook, found
}

// Apply runs the extension hook mapped to the session's driver, if any.
//
// A driver without a mapped hook keeps the collector's standalone facts. A
// mapped but unregistered hook is a configuration defect and fails the task.
func Apply(ctx context.Context, session *device.Session, facts *model.DeviceFacts, settings model.Settings, logger *logrus.Logger) error {
	key, mapped := settings.ExtensionMap[session.DriverName]
	if !mapped {
		return nil
	}

	hook, found := lookup(key)
	if !found {
		return model.NewOnboardError(model.FailGeneral, "extension hook not registered: "+key)
	}

	logger.WithFields(logrus.Fields{"driver": session.DriverName, "hook": key}).Info("applying vendor extension")

	return hook(ctx, facts, session.Driver, logger)
}
