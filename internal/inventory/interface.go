package inventory

import (
	"context"

	"github.com/net-toolbox/onboarder/internal/model"
)

// Lookup is one candidate query against an inventory entity.
type Lookup struct {
	// Field is the entity attribute to match: slug, name, model or
	// part_number.
	Field string

	Value string

	// Fold requests case-insensitive matching.
	Fold bool
}

// Inventory is the store the reconciler ensures objects into.
//
// Find* methods try each lookup candidate in order and return the first
// match; a candidate matching multiple objects fails the whole find with
// ErrMultipleFound, and exhausting all candidates returns ErrNotFound.
// Both sentinels are distinguishable with errors.Is.
type Inventory interface {
	SiteBySlug(ctx context.Context, slug string) (*model.Site, error)

	FindManufacturer(ctx context.Context, candidates []Lookup) (*model.Manufacturer, error)
	CreateManufacturer(ctx context.Context, m model.Manufacturer) (*model.Manufacturer, error)

	FindDeviceType(ctx context.Context, candidates []Lookup) (*model.DeviceType, error)
	DeviceTypeByID(ctx context.Context, id int) (*model.DeviceType, error)
	CreateDeviceType(ctx context.Context, dt model.DeviceType) (*model.DeviceType, error)

	DeviceRoleBySlug(ctx context.Context, slug string) (*model.DeviceRole, error)
	CreateDeviceRole(ctx context.Context, role model.DeviceRole) (*model.DeviceRole, error)

	PlatformBySlug(ctx context.Context, slug string) (*model.Platform, error)
	CreatePlatform(ctx context.Context, p model.Platform) (*model.Platform, error)

	// PlatformDrivers returns the slug-to-driver-name map of all
	// platforms that carry a driver association.
	PlatformDrivers(ctx context.Context) (map[string]string, error)

	// DeviceByPrimaryIP matches a device whose primary IPv4 host part
	// equals ip. Several devices claiming the same primary IP is an
	// invariant violation reported as ErrMultipleFound.
	DeviceByPrimaryIP(ctx context.Context, ip string) (*model.Device, error)
	DeviceByName(ctx context.Context, name string) (*model.Device, error)

	// UpsertDevice creates the device when its ID is zero and updates it
	// otherwise. Implementations execute the write as a single atomic
	// operation so concurrent tasks serialize on the store's unique
	// constraints; a name collision with a different device returns
	// ErrConflict.
	UpsertDevice(ctx context.Context, device model.Device) (*model.Device, error)

	InterfaceGetOrCreate(ctx context.Context, deviceID int, name string) (*model.Interface, error)

	// IPAddressGetOrCreate returns the IP address for the given CIDR,
	// creating it when absent. The second return reports creation.
	IPAddressGetOrCreate(ctx context.Context, cidr string) (*model.IPAddress, bool, error)
	AssignIPToInterface(ctx context.Context, ipID, interfaceID int) error
	SetPrimaryIP(ctx context.Context, deviceID, ipID int) error

	OnboardingRecordForDevice(ctx context.Context, deviceID int) (*model.OnboardingRecord, error)
	CreateOnboardingRecord(ctx context.Context, rec model.OnboardingRecord) (*model.OnboardingRecord, error)
}
