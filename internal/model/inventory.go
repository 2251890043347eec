package model

// Inventory entity value types.
//
// These mirror the subset of the inventory store's (NetBox) entity shapes the
// reconciler reads and writes. IDs are the store's numeric primary keys; a
// zero ID means the entity has not been persisted yet.

type Site struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Manufacturer struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type DeviceType struct {
	ID             int    `json:"id"`
	Slug           string `json:"slug"`
	Model          string `json:"model"`
	PartNumber     string `json:"part_number,omitempty"`
	ManufacturerID int    `json:"manufacturer_id"`
}

type DeviceRole struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Color string `json:"color,omitempty"`
}

// Platform carries the vendor driver association. A platform without a
// driver cannot be onboarded.
type Platform struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Driver string `json:"driver,omitempty"`
}

type Device struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	SiteID       int    `json:"site_id"`
	DeviceTypeID int    `json:"device_type_id"`
	RoleID       int    `json:"role_id"`
	PlatformID   int    `json:"platform_id"`
	Serial       string `json:"serial,omitempty"`
	Status       string `json:"status"`

	// PrimaryIP4 is the canonical management address in CIDR notation,
	// empty when unset. The referenced IPAddress must belong to an
	// interface of this same device.
	PrimaryIP4   string `json:"primary_ip4,omitempty"`
	PrimaryIP4ID int    `json:"primary_ip4_id,omitempty"`
}

type Interface struct {
	ID       int    `json:"id"`
	DeviceID int    `json:"device_id"`
	Name     string `json:"name"`
}

type IPAddress struct {
	ID int `json:"id"`

	// Address in CIDR notation, e.g. 192.0.2.10/24.
	Address     string `json:"address"`
	InterfaceID int    `json:"interface_id,omitempty"`
}

// OnboardingRecord is the per-device onboarding history projection. It marks
// whether re-onboarding is permitted and mirrors the most recent task outcome
// for display. It is created for every device that was ever matched by an
// onboarding IP lookup, independent of task success.
type OnboardingRecord struct {
	ID       int    `json:"id"`
	DeviceID int    `json:"device_id"`
	Enabled  bool   `json:"enabled"`
	LastStatus string `json:"last_status,omitempty"`
}
