package inventory

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/net-toolbox/onboarder/internal/model"
)

// MemInventory is an in-memory Inventory used by tests and dry runs.
//
// Writes take the store mutex for their whole duration, so UpsertDevice
// serializes the same way the NetBox store's transaction boundary does.
type MemInventory struct {
	mu sync.RWMutex

	nextID int

	sites         map[string]*model.Site
	manufacturers map[int]*model.Manufacturer
	deviceTypes   map[int]*model.DeviceType
	roles         map[int]*model.DeviceRole
	platforms     map[int]*model.Platform
	devices       map[int]*model.Device
	interfaces    map[int]*model.Interface
	ipAddresses   map[int]*model.IPAddress
	records       map[int]*model.OnboardingRecord
}

// NewMemInventory returns an empty in-memory inventory.
func NewMemInventory() *MemInventory {
	return &MemInventory{
		sites:         map[string]*model.Site{},
		manufacturers: map[int]*model.Manufacturer{},
		deviceTypes:   map[int]*model.DeviceType{},
		roles:         map[int]*model.DeviceRole{},
		platforms:     map[int]*model.Platform{},
		devices:       map[int]*model.Device{},
		interfaces:    map[int]*model.Interface{},
		ipAddresses:   map[int]*model.IPAddress{},
		records:       map[int]*model.OnboardingRecord{},
	}
}

func (m *MemInventory) allocID() int {
	m.nextID++
	return m.nextID
}

// AddSite seeds a site. Sites are never auto-created by onboarding.
func (m *MemInventory) AddSite(site model.Site) *model.Site {
	m.mu.Lock()
	defer m.mu.Unlock()

	site.ID = m.allocID()
	m.sites[site.Slug] = &site

	return &site
}

// Counts reports per-entity row counts, used by idempotence tests.
type Counts struct {
	Manufacturers int
	DeviceTypes   int
	DeviceRoles   int
	Platforms     int
	Devices       int
	Interfaces    int
	IPAddresses   int
}

func (m *MemInventory) Counts() Counts {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Counts{
		Manufacturers: len(m.manufacturers),
		DeviceTypes:   len(m.deviceTypes),
		DeviceRoles:   len(m.roles),
		Platforms:     len(m.platforms),
		Devices:       len(m.devices),
		Interfaces:    len(m.interfaces),
		IPAddresses:   len(m.ipAddresses),
	}
}

func (m *MemInventory) SiteBySlug(_ context.Context, slug string) (*model.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	site, exists := m.sites[slug]
	if !exists {
		return nil, errors.Wrap(ErrNotFound, "site: "+slug)
	}

	s := *site

	return &s, nil
}

func match(lookup Lookup, value string) bool {
	if lookup.Fold {
		return strings.EqualFold(lookup.Value, value)
	}

	return lookup.Value == value
}

func (m *MemInventory) FindManufacturer(_ context.Context, candidates []Lookup) (*model.Manufacturer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, candidate := range candidates {
		var found []*model.Manufacturer

		for _, manufacturer := range m.manufacturers {
			var value string

			switch candidate.Field {
			case "slug":
				value = manufacturer.Slug
			case "name":
				value = manufacturer.Name
			default:
				continue
			}

			if match(candidate, value) {
				found = append(found, manufacturer)
			}
		}

		switch len(found) {
		case 0:
			continue
		case 1:
			manufacturer := *found[0]
			return &manufacturer, nil
		default:
			return nil, errors.Wrap(ErrMultipleFound, "manufacturer "+candidate.Field+"="+candidate.Value)
		}
	}

	return nil, ErrNotFound
}

func (m *MemInventory) CreateManufacturer(_ context.Context, manufacturer model.Manufacturer) (*model.Manufacturer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	manufacturer.ID = m.allocID()
	m.manufacturers[manufacturer.ID] = &manufacturer

	return &manufacturer, nil
}

func (m *MemInventory) FindDeviceType(_ context.Context, candidates []Lookup) (*model.DeviceType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, candidate := range candidates {
		var found []*model.DeviceType

		for _, deviceType := range m.deviceTypes {
			var value string

			switch candidate.Field {
			case "slug":
				value = deviceType.Slug
			case "model":
				value = deviceType.Model
			case "part_number":
				value = deviceType.PartNumber
			default:
				continue
			}

			if match(candidate, value) {
				found = append(found, deviceType)
			}
		}

		switch len(found) {
		case 0:
			continue
		case 1:
			deviceType := *found[0]
			return &deviceType, nil
		default:
			return nil, errors.Wrap(ErrMultipleFound, "device type "+candidate.Field+"="+candidate.Value)
		}
	}

	return nil, ErrNotFound
}

func (m *MemInventory) DeviceTypeByID(_ context.Context, id int) (*model.DeviceType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	deviceType, exists := m.deviceTypes[id]
	if !exists {
		return nil, ErrNotFound
	}

	dt := *deviceType

	return &dt, nil
}

func (m *MemInventory) CreateDeviceType(_ context.Context, deviceType model.DeviceType) (*model.DeviceType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deviceType.ID = m.allocID()
	m.deviceTypes[deviceType.ID] = &deviceType

	return &deviceType, nil
}

func (m *MemInventory) DeviceRoleBySlug(_ context.Context, slug string) (*model.DeviceRole, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, role := range m.roles {
		if role.Slug == slug {
			r := *role
			return &r, nil
		}
	}

	return nil, errors.Wrap(ErrNotFound, "device role: "+slug)
}

func (m *MemInventory) CreateDeviceRole(_ context.Context, role model.DeviceRole) (*model.DeviceRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	role.ID = m.allocID()
	m.roles[role.ID] = &role

	return &role, nil
}

func (m *MemInventory) PlatformBySlug(_ context.Context, slug string) (*model.Platform, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, platform := range m.platforms {
		if platform.Slug == slug {
			p := *platform
			return &p, nil
		}
	}

	return nil, errors.Wrap(ErrNotFound, "platform: "+slug)
}

func (m *MemInventory) CreatePlatform(_ context.Context, platform model.Platform) (*model.Platform, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	platform.ID = m.allocID()
	m.platforms[platform.ID] = &platform

	return &platform, nil
}

func (m *MemInventory) PlatformDrivers(_ context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	drivers := map[string]string{}

	for _, platform := range m.platforms {
		if platform.Driver != "" {
			drivers[platform.Slug] = platform.Driver
		}
	}

	return drivers, nil
}

// ipHost strips the prefix length off a CIDR value.
func ipHost(cidr string) string {
	if idx := strings.IndexByte(cidr, '/'); idx >= 0 {
		return cidr[:idx]
	}

	return cidr
}

func (m *MemInventory) DeviceByPrimaryIP(_ context.Context, ip string) (*model.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found []*model.Device

	for _, device := range m.devices {
		if device.PrimaryIP4 != "" && ipHost(device.PrimaryIP4) == ip {
			found = append(found, device)
		}
	}

	switch len(found) {
	case 0:
		return nil, errors.Wrap(ErrNotFound, "device with primary IP: "+ip)
	case 1:
		device := *found[0]
		return &device, nil
	default:
		return nil, errors.Wrap(ErrMultipleFound, "devices using same IP: "+ip)
	}
}

func (m *MemInventory) DeviceByName(_ context.Context, name string) (*model.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found []*model.Device

	for _, device := range m.devices {
		if device.Name == name {
			found = append(found, device)
		}
	}

	switch len(found) {
	case 0:
		return nil, errors.Wrap(ErrNotFound, "device: "+name)
	case 1:
		device := *found[0]
		return &device, nil
	default:
		return nil, errors.Wrap(ErrMultipleFound, "devices using same name: "+name)
	}
}

func (m *MemInventory) UpsertDevice(_ context.Context, device model.Device) (*model.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.devices {
		if existing.Name == device.Name && existing.ID != device.ID {
			return nil, errors.Wrap(ErrConflict, "device name taken: "+device.Name)
		}
	}

	if device.ID == 0 {
		device.ID = m.allocID()
	} else if _, exists := m.devices[device.ID]; !exists {
		return nil, errors.Wrapf(ErrNotFound, "device id %d", device.ID)
	}

	m.devices[device.ID] = &device
	d := device

	return &d, nil
}

func (m *MemInventory) InterfaceGetOrCreate(_ context.Context, deviceID int, name string) (*model.Interface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, iface := range m.interfaces {
		if iface.DeviceID == deviceID && iface.Name == name {
			i := *iface
			return &i, nil
		}
	}

	iface := &model.Interface{ID: m.allocID(), DeviceID: deviceID, Name: name}
	m.interfaces[iface.ID] = iface
	i := *iface

	return &i, nil
}

func (m *MemInventory) IPAddressGetOrCreate(_ context.Context, cidr string) (*model.IPAddress, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ip := range m.ipAddresses {
		if ip.Address == cidr {
			existing := *ip
			return &existing, false, nil
		}
	}

	ip := &model.IPAddress{ID: m.allocID(), Address: cidr}
	m.ipAddresses[ip.ID] = ip
	created := *ip

	return &created, true, nil
}

func (m *MemInventory) AssignIPToInterface(_ context.Context, ipID, interfaceID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ip, exists := m.ipAddresses[ipID]
	if !exists {
		return errors.Wrapf(ErrNotFound, "ip address id %d", ipID)
	}

	if _, exists := m.interfaces[interfaceID]; !exists {
		return errors.Wrapf(ErrNotFound, "interface id %d", interfaceID)
	}

	ip.InterfaceID = interfaceID

	return nil
}

func (m *MemInventory) SetPrimaryIP(_ context.Context, deviceID, ipID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	device, exists := m.devices[deviceID]
	if !exists {
		return errors.Wrapf(ErrNotFound, "device id %d", deviceID)
	}

	ip, exists := m.ipAddresses[ipID]
	if !exists {
		return errors.Wrapf(ErrNotFound, "ip address id %d", ipID)
	}

	device.PrimaryIP4 = ip.Address
	device.PrimaryIP4ID = ip.ID

	return nil
}

func (m *MemInventory) OnboardingRecordForDevice(_ context.Context, deviceID int) (*model.OnboardingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, record := range m.records {
		if record.DeviceID == deviceID {
			r := *record
			return &r, nil
		}
	}

	return nil, errors.Wrapf(ErrNotFound, "onboarding record for device %d", deviceID)
}

func (m *MemInventory) CreateOnboardingRecord(_ context.Context, record model.OnboardingRecord) (*model.OnboardingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record.ID = m.allocID()
	m.records[record.ID] = &record

	return &record, nil
}
