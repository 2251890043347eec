package worker

import (
	"context"
	"net"
	"net/netip"
	"time"

	sw "github.com/filanov/stateswitch"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/net-toolbox/onboarder/internal/collect"
	"github.com/net-toolbox/onboarder/internal/device"
	"github.com/net-toolbox/onboarder/internal/extension"
	"github.com/net-toolbox/onboarder/internal/inventory"
	"github.com/net-toolbox/onboarder/internal/metrics"
	"github.com/net-toolbox/onboarder/internal/model"
	"github.com/net-toolbox/onboarder/internal/reconcile"
	"github.com/net-toolbox/onboarder/internal/store"
)

// Resolver is the hostname lookup used for FQDN task addresses.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Connector opens device sessions. Satisfied by device.Connector.
type Connector interface {
	Connect(ctx context.Context, task *model.Task, creds model.Credentials, driverHint string, platformDrivers map[string]string) (*device.Session, error)
}

// Orchestrator runs onboarding tasks end to end: address resolution,
// device session, fact collection, vendor extension and inventory
// reconciliation, mapping every failure onto the task fail reason.
type Orchestrator struct {
	storage    store.Storage
	inv        inventory.Inventory
	settings   model.Settings
	connector  Connector
	collector  *collect.Collector
	reconciler *reconcile.Reconciler
	resolver   Resolver
	sm         sw.StateMachine
	logger     *logrus.Logger
}

func NewOrchestrator(storage store.Storage, inv inventory.Inventory, settings model.Settings, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		storage:    storage,
		inv:        inv,
		settings:   settings,
		connector:  device.NewConnector(settings, logger),
		collector:  collect.NewCollector(settings, logger),
		reconciler: reconcile.New(inv, logger),
		resolver:   net.DefaultResolver,
		sm:         newTaskStateMachine(),
		logger:     logger,
	}
}

// WithConnector overrides the device connector, for tests.
func (o *Orchestrator) WithConnector(connector Connector) *Orchestrator {
	o.connector = connector
	return o
}

// WithResolver overrides the DNS resolver, for tests.
func (o *Orchestrator) WithResolver(resolver Resolver) *Orchestrator {
	o.resolver = resolver
	return o
}

// Process runs the task with the given id to a terminal status. The returned
// error reports infrastructure defects (storage unavailable, illegal
// transition); onboarding failures terminate the task and return nil.
func (o *Orchestrator) Process(ctx context.Context, taskID uuid.UUID, creds model.Credentials) error {
	task, err := o.storage.ByID(ctx, taskID)
	if err != nil {
		metrics.StoreQueryErrorCount.WithLabelValues("task").Inc()
		return err
	}

	if task.Terminal() {
		o.logger.WithFields(logrus.Fields{"task": task.ID, "status": task.Status}).Warn("task already terminal, ignoring")
		return nil
	}

	logger := o.logger.WithFields(logrus.Fields{"task": task.ID, "address": task.Address})
	logger.Info("processing onboarding task")

	started := time.Now()
	defer func() {
		metrics.ProcessingSeconds.Observe(time.Since(started).Seconds())
		metrics.TasksProcessed.WithLabelValues(string(task.Status)).Inc()
	}()

	defer o.finalize(ctx, task)

	if err := o.resolveAddress(ctx, task); err != nil {
		return o.fail(ctx, task, err)
	}

	skip, err := o.skipCheck(ctx, task)
	if err != nil {
		return err
	}

	if skip {
		task.Message = "onboarding disabled for device"
		return o.transition(ctx, task, TransitionSkip)
	}

	// Running is persisted before any device I/O, which also makes a
	// resolved address rewrite durable.
	if err := o.transition(ctx, task, TransitionRun); err != nil {
		return err
	}

	creds = o.settings.MergeCredentials(creds)
	if creds.Username == "" || creds.Password == "" {
		return o.fail(ctx, task, model.NewOnboardError(model.FailConfig, "no device credentials supplied"))
	}

	platformDrivers, err := o.inv.PlatformDrivers(ctx)
	if err != nil {
		metrics.StoreQueryErrorCount.WithLabelValues("inventory").Inc()
		logger.WithError(err).Warn("could not load platform driver associations")
	}

	session, err := o.connector.Connect(ctx, task, creds, o.driverHint(ctx, task), platformDrivers)
	if err != nil {
		return o.fail(ctx, task, err)
	}

	defer func() {
		if err := session.Close(); err != nil {
			logger.WithError(err).Debug("closing device session")
		}
	}()

	facts, err := o.collector.Collect(ctx, session, task.Address)
	if err != nil {
		return o.fail(ctx, task, err)
	}

	if err := extension.Apply(ctx, session, facts, o.settings, o.logger); err != nil {
		return o.fail(ctx, task, err)
	}

	dev, err := o.reconciler.EnsureDevice(ctx, facts, task, o.settings)
	if err != nil {
		return o.fail(ctx, task, err)
	}

	logger.WithFields(logrus.Fields{"device": dev.Name, "device_id": dev.ID}).Info("device onboarded")

	task.Message = "device onboarded: " + dev.Name

	return o.transition(ctx, task, TransitionSucceed)
}

// resolveAddress validates the task address. IP literals pass untouched, a
// CIDR value is rejected outright and anything else is treated as an FQDN
// and rewritten to its resolved IP. A failed resolution leaves the submitted
// address on the task for the operator to inspect.
func (o *Orchestrator) resolveAddress(ctx context.Context, task *model.Task) error {
	if _, err := netip.ParseAddr(task.Address); err == nil {
		return nil
	}

	if _, err := netip.ParsePrefix(task.Address); err == nil {
		return model.NewOnboardError(model.FailGeneral,
			"address must be a host IP or FQDN, not a prefix: "+task.Address)
	}

	addrs, err := o.resolver.LookupHost(ctx, task.Address)
	if err != nil {
		return model.NewOnboardError(model.FailDNS, "resolving "+task.Address+": "+err.Error())
	}

	for _, addr := range addrs {
		parsed, err := netip.ParseAddr(addr)
		if err != nil || !parsed.Is4() {
			continue
		}

		o.logger.WithFields(logrus.Fields{"fqdn": task.Address, "ip": addr}).Info("resolved task address")
		task.Address = addr

		return nil
	}

	return model.NewOnboardError(model.FailDNS, "no IPv4 address for "+task.Address)
}

// skipCheck reports whether a device already matched by primary IP has
// onboarding disabled. The device reference sticks to the task either way.
func (o *Orchestrator) skipCheck(ctx context.Context, task *model.Task) (bool, error) {
	matched, err := o.inv.DeviceByPrimaryIP(ctx, task.Address)
	if err != nil {
		// Not found and duplicate claims are both reconciler territory.
		return false, nil //nolint:nilerr // lookup errors surface later
	}

	id := matched.ID
	task.DeviceID = &id

	record, err := o.inv.OnboardingRecordForDevice(ctx, matched.ID)
	if err != nil {
		return false, nil //nolint:nilerr // a missing record permits onboarding
	}

	return !record.Enabled, nil
}

// driverHint maps an explicit task platform to its stored driver, bypassing
// fingerprinting. An unusable platform is left for the reconciler to report.
func (o *Orchestrator) driverHint(ctx context.Context, task *model.Task) string {
	if task.PlatformSlug == "" {
		return ""
	}

	platform, err := o.inv.PlatformBySlug(ctx, task.PlatformSlug)
	if err != nil {
		return ""
	}

	return platform.Driver
}

func (o *Orchestrator) fail(ctx context.Context, task *model.Task, err error) error {
	oe := model.ClassifyError(err)

	task.FailedReason = oe.Reason
	task.Message = oe.Message

	o.logger.WithFields(logrus.Fields{
		"task":   task.ID,
		"reason": oe.Reason,
	}).WithError(err).Warn("onboarding task failed")

	return o.transition(ctx, task, TransitionFail)
}

func (o *Orchestrator) transition(ctx context.Context, task *model.Task, transition sw.TransitionType) error {
	err := o.sm.Run(transition, task, transitionArgs{ctx: ctx, storage: o.storage})

	return errors.Wrapf(err, "task %s transition %s", task.ID, transition)
}

// finalize makes sure every device the run touched carries an onboarding
// record, success or not. Runs in a defer so partial failures are covered.
func (o *Orchestrator) finalize(ctx context.Context, task *model.Task) {
	if task.DeviceID == nil {
		return
	}

	_, err := o.inv.OnboardingRecordForDevice(ctx, *task.DeviceID)
	if err == nil {
		return
	}

	if !errors.Is(err, inventory.ErrNotFound) {
		metrics.StoreQueryErrorCount.WithLabelValues("inventory").Inc()
		return
	}

	_, err = o.inv.CreateOnboardingRecord(ctx, model.OnboardingRecord{
		DeviceID:   *task.DeviceID,
		Enabled:    true,
		LastStatus: string(task.Status),
	})
	if err != nil {
		o.logger.WithError(err).Warn("could not create onboarding record")
	}
}
