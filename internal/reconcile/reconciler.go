package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/net-toolbox/onboarder/internal/inventory"
	"github.com/net-toolbox/onboarder/internal/model"
)

// Reconciler ensures collected device facts into the inventory store. Every
// step is idempotent: re-running a task against unchanged facts performs no
// additional writes.
type Reconciler struct {
	inv    inventory.Inventory
	logger *logrus.Logger
}

func New(inv inventory.Inventory, logger *logrus.Logger) *Reconciler {
	return &Reconciler{inv: inv, logger: logger}
}

// EnsureDevice runs the ordered reconcile steps and returns the resulting
// primary device. task.DeviceID is set as soon as a device is matched or
// written, so a later step failing still leaves the reference behind.
func (r *Reconciler) EnsureDevice(ctx context.Context, facts *model.DeviceFacts, task *model.Task, settings model.Settings) (*model.Device, error) {
	existing, err := r.matchByPrimaryIP(ctx, task.Address)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		id := existing.ID
		task.DeviceID = &id

		r.logger.WithFields(logrus.Fields{"device": existing.Name, "id": existing.ID}).Info("device already known by primary ip")
	}

	site, err := r.ensureSite(ctx, task.SiteSlug)
	if err != nil {
		return nil, err
	}

	mfr, err := r.ensureManufacturer(ctx, existing, facts.Vendor, settings)
	if err != nil {
		return nil, err
	}

	modelName := facts.Model
	serial := facts.SerialNumber

	if facts.Strategy == model.StrategyStacked {
		if primary := facts.PrimaryUnit(); primary != nil {
			modelName = primary.Model
			serial = primary.SerialNumber
		}
	}

	deviceType, err := r.ensureDeviceType(ctx, existing, mfr, modelName, task.DeviceTypeSlug, settings)
	if err != nil {
		return nil, err
	}

	role, err := r.ensureDeviceRole(ctx, task.RoleSlug, settings)
	if err != nil {
		return nil, err
	}

	platform, err := r.ensurePlatform(ctx, facts, task.PlatformSlug, settings)
	if err != nil {
		return nil, err
	}

	device, err := r.ensureDeviceInstance(ctx, existing, model.Device{
		Name:         facts.Hostname,
		SiteID:       site.ID,
		DeviceTypeID: deviceType.ID,
		RoleID:       role.ID,
		PlatformID:   platform.ID,
		Serial:       serial,
	}, settings)
	if err != nil {
		return nil, err
	}

	id := device.ID
	task.DeviceID = &id

	if settings.CreateManagementInterface && facts.MgmtIfName != "" {
		if err := r.ensureManagementIP(ctx, device, facts, task.Address); err != nil {
			return nil, err
		}
	}

	if facts.Strategy == model.StrategyStacked {
		if err := r.ensureStackMembers(ctx, facts, site, mfr, role, platform, settings); err != nil {
			return nil, err
		}
	}

	return device, nil
}

// matchByPrimaryIP looks up a device already claiming the task address as
// its primary IP. Duplicate claims violate the inventory invariant the whole
// pipeline rests on and abort the run.
func (r *Reconciler) matchByPrimaryIP(ctx context.Context, address string) (*model.Device, error) {
	device, err := r.inv.DeviceByPrimaryIP(ctx, address)

	switch {
	case err == nil:
		return device, nil
	case errors.Is(err, inventory.ErrNotFound):
		return nil, nil
	case errors.Is(err, inventory.ErrMultipleFound):
		return nil, model.NewOnboardError(model.FailGeneral, "multiple devices claim primary ip "+address)
	default:
		return nil, model.ClassifyError(err)
	}
}

// ensureSite never creates: sites carry physical meaning the worker cannot
// invent.
func (r *Reconciler) ensureSite(ctx context.Context, siteSlug string) (*model.Site, error) {
	if siteSlug == "" {
		return nil, model.NewOnboardError(model.FailConfig, "task has no site")
	}

	site, err := r.inv.SiteBySlug(ctx, siteSlug)

	switch {
	case err == nil:
		return site, nil
	case errors.Is(err, inventory.ErrNotFound):
		return nil, model.NewOnboardError(model.FailConfig, "site not found: "+siteSlug)
	default:
		return nil, model.ClassifyError(err)
	}
}

func (r *Reconciler) ensureManufacturer(ctx context.Context, existing *model.Device, vendor string, settings model.Settings) (*model.Manufacturer, error) {
	// A device matched in inventory already settled its identity; the
	// skip flag trusts the recorded device type over the wire facts.
	if existing != nil && settings.SkipManufacturerOnUpdate {
		deviceType, err := r.inv.DeviceTypeByID(ctx, existing.DeviceTypeID)
		if err != nil {
			return nil, model.ClassifyError(err)
		}

		return &model.Manufacturer{ID: deviceType.ManufacturerID}, nil
	}

	if vendor == "" {
		return nil, model.NewOnboardError(model.FailConfig, "device reported no vendor")
	}

	vendorSlug := slug.Make(vendor)

	candidates := []inventory.Lookup{{Field: "slug", Value: vendorSlug}}
	if settings.MatchStrategy == model.MatchLoose {
		candidates = append(candidates,
			inventory.Lookup{Field: "slug", Value: vendorSlug, Fold: true},
			inventory.Lookup{Field: "name", Value: vendor, Fold: true},
		)
	}

	mfr, err := r.inv.FindManufacturer(ctx, candidates)

	switch {
	case err == nil:
		return mfr, nil
	case errors.Is(err, inventory.ErrMultipleFound):
		return nil, model.NewOnboardError(model.FailGeneral, "multiple manufacturers match "+vendor)
	case !errors.Is(err, inventory.ErrNotFound):
		return nil, model.ClassifyError(err)
	}

	if !settings.CreateManufacturer {
		return nil, model.NewOnboardError(model.FailConfig, "manufacturer not found: "+vendor)
	}

	created, err := r.inv.CreateManufacturer(ctx, model.Manufacturer{Name: vendor, Slug: vendorSlug})
	if err != nil {
		return nil, model.ClassifyError(err)
	}

	r.logger.WithFields(logrus.Fields{"manufacturer": vendor}).Info("created manufacturer")

	return created, nil
}

func (r *Reconciler) ensureDeviceType(ctx context.Context, existing *model.Device, mfr *model.Manufacturer, modelName, override string, settings model.Settings) (*model.DeviceType, error) {
	if existing != nil && settings.SkipDeviceTypeOnUpdate {
		deviceType, err := r.inv.DeviceTypeByID(ctx, existing.DeviceTypeID)
		if err != nil {
			return nil, model.ClassifyError(err)
		}

		return deviceType, nil
	}

	value := modelName
	if override != "" {
		value = override
	}

	if value == "" {
		return nil, model.NewOnboardError(model.FailConfig, "device reported no model and no device type override set")
	}

	typeSlug := slug.Make(value)

	candidates := []inventory.Lookup{{Field: "slug", Value: typeSlug}}
	if settings.MatchStrategy == model.MatchLoose {
		candidates = append(candidates,
			inventory.Lookup{Field: "slug", Value: typeSlug, Fold: true},
			inventory.Lookup{Field: "model", Value: value, Fold: true},
			inventory.Lookup{Field: "part_number", Value: value, Fold: true},
		)
	}

	deviceType, err := r.inv.FindDeviceType(ctx, candidates)

	switch {
	case err == nil:
		// A matching type filed under another manufacturer means the
		// inventory and the wire disagree about what this hardware is.
		// Refuse to guess.
		if deviceType.ManufacturerID != mfr.ID {
			return nil, model.NewOnboardError(model.FailConfig,
				"device type "+value+" exists under a different manufacturer")
		}

		return deviceType, nil
	case errors.Is(err, inventory.ErrMultipleFound):
		return nil, model.NewOnboardError(model.FailGeneral, "multiple device types match "+value)
	case !errors.Is(err, inventory.ErrNotFound):
		return nil, model.ClassifyError(err)
	}

	if !settings.CreateDeviceType {
		return nil, model.NewOnboardError(model.FailConfig, "device type not found: "+value)
	}

	created, err := r.inv.CreateDeviceType(ctx, model.DeviceType{
		Slug:           typeSlug,
		Model:          strings.ToUpper(typeSlug),
		ManufacturerID: mfr.ID,
	})
	if err != nil {
		return nil, model.ClassifyError(err)
	}

	r.logger.WithFields(logrus.Fields{"device_type": typeSlug}).Info("created device type")

	return created, nil
}

// ensureDeviceRole matches by exact slug only, loose strategy or not: role
// slugs are operator vocabulary, not device-reported data.
func (r *Reconciler) ensureDeviceRole(ctx context.Context, override string, settings model.Settings) (*model.DeviceRole, error) {
	roleSlug := settings.DefaultRole
	if override != "" {
		roleSlug = override
	}

	if roleSlug == "" {
		return nil, model.NewOnboardError(model.FailConfig, "no device role configured")
	}

	role, err := r.inv.DeviceRoleBySlug(ctx, roleSlug)

	switch {
	case err == nil:
		return role, nil
	case !errors.Is(err, inventory.ErrNotFound):
		return nil, model.ClassifyError(err)
	}

	if !settings.CreateDeviceRole {
		return nil, model.NewOnboardError(model.FailConfig, "device role not found: "+roleSlug)
	}

	created, err := r.inv.CreateDeviceRole(ctx, model.DeviceRole{
		Name:  roleSlug,
		Slug:  roleSlug,
		Color: settings.DefaultRoleColor,
	})
	if err != nil {
		return nil, model.ClassifyError(err)
	}

	r.logger.WithFields(logrus.Fields{"role": roleSlug}).Info("created device role")

	return created, nil
}

func (r *Reconciler) ensurePlatform(ctx context.Context, facts *model.DeviceFacts, override string, settings model.Settings) (*model.Platform, error) {
	platformSlug := override
	if platformSlug == "" {
		platformSlug = settings.PlatformMap[facts.FingerprintID]
	}

	if platformSlug == "" {
		platformSlug = facts.FingerprintID
	}

	if platformSlug == "" {
		return nil, model.NewOnboardError(model.FailConfig, "unable to determine platform for device")
	}

	platform, err := r.inv.PlatformBySlug(ctx, platformSlug)

	switch {
	case err == nil:
		if platform.Driver == "" {
			return nil, model.NewOnboardError(model.FailGeneral,
				"platform "+platformSlug+" has no driver associated")
		}

		return platform, nil
	case !errors.Is(err, inventory.ErrNotFound):
		return nil, model.ClassifyError(err)
	}

	if !settings.CreatePlatform {
		return nil, model.NewOnboardError(model.FailGeneral, "platform not found: "+platformSlug)
	}

	if facts.DriverName == "" {
		return nil, model.NewOnboardError(model.FailGeneral,
			"cannot create platform "+platformSlug+" without a driver")
	}

	created, err := r.inv.CreatePlatform(ctx, model.Platform{
		Name:   platformSlug,
		Slug:   platformSlug,
		Driver: facts.DriverName,
	})
	if err != nil {
		return nil, model.ClassifyError(err)
	}

	r.logger.WithFields(logrus.Fields{"platform": platformSlug}).Info("created platform")

	return created, nil
}

// ensureDeviceInstance writes the device itself. An update never touches
// Status: operational state belongs to the operator, onboarding only
// refreshes identity fields.
func (r *Reconciler) ensureDeviceInstance(ctx context.Context, existing *model.Device, desired model.Device, settings model.Settings) (*model.Device, error) {
	if existing != nil {
		desired.ID = existing.ID
		desired.Status = existing.Status
		desired.PrimaryIP4 = existing.PrimaryIP4
		desired.PrimaryIP4ID = existing.PrimaryIP4ID
	} else {
		desired.Status = settings.DefaultStatus
	}

	device, err := r.inv.UpsertDevice(ctx, desired)

	switch {
	case err == nil:
		return device, nil
	case errors.Is(err, inventory.ErrConflict):
		return nil, model.NewOnboardError(model.FailGeneral,
			"device name "+desired.Name+" already taken by another device")
	case errors.Is(err, inventory.ErrMultipleFound):
		return nil, model.NewOnboardError(model.FailGeneral,
			"multiple devices named "+desired.Name)
	default:
		return nil, model.ClassifyError(err)
	}
}

// ensureManagementIP creates the management interface, files the reached
// address under it and promotes it to the device primary IP.
func (r *Reconciler) ensureManagementIP(ctx context.Context, device *model.Device, facts *model.DeviceFacts, address string) error {
	iface, err := r.inv.InterfaceGetOrCreate(ctx, device.ID, facts.MgmtIfName)
	if err != nil {
		return model.ClassifyError(err)
	}

	cidr := fmt.Sprintf("%s/%d", address, facts.MgmtPrefixLen)

	ip, created, err := r.inv.IPAddressGetOrCreate(ctx, cidr)
	if err != nil {
		return model.ClassifyError(err)
	}

	if created || ip.InterfaceID != iface.ID {
		if err := r.inv.AssignIPToInterface(ctx, ip.ID, iface.ID); err != nil {
			return model.ClassifyError(err)
		}
	}

	if device.PrimaryIP4ID != ip.ID {
		if err := r.inv.SetPrimaryIP(ctx, device.ID, ip.ID); err != nil {
			return model.ClassifyError(err)
		}
	}

	device.PrimaryIP4 = cidr
	device.PrimaryIP4ID = ip.ID

	return nil
}

// ensureStackMembers files every unit beyond position 1 as its own device
// named hostname:<position>. Members share site, role and platform with the
// primary; their type is resolved per unit model. They carry no management
// interface or IP.
func (r *Reconciler) ensureStackMembers(ctx context.Context, facts *model.DeviceFacts, site *model.Site, mfr *model.Manufacturer, role *model.DeviceRole, platform *model.Platform, settings model.Settings) error {
	for _, unit := range facts.StackUnits {
		if unit.Position <= 1 {
			continue
		}

		deviceType, err := r.ensureDeviceType(ctx, nil, mfr, unit.Model, "", settings)
		if err != nil {
			return err
		}

		name := fmt.Sprintf("%s:%d", facts.Hostname, unit.Position)

		member, err := r.memberByName(ctx, name)
		if err != nil {
			return err
		}

		_, err = r.ensureDeviceInstance(ctx, member, model.Device{
			Name:         name,
			SiteID:       site.ID,
			DeviceTypeID: deviceType.ID,
			RoleID:       role.ID,
			PlatformID:   platform.ID,
			Serial:       unit.SerialNumber,
		}, settings)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *Reconciler) memberByName(ctx context.Context, name string) (*model.Device, error) {
	member, err := r.inv.DeviceByName(ctx, name)

	switch {
	case err == nil:
		return member, nil
	case errors.Is(err, inventory.ErrNotFound):
		return nil, nil
	default:
		return nil, model.ClassifyError(err)
	}
}
