package model

// MatchStrategy selects how the reconciler looks up inventory objects.
type MatchStrategy string

const (
	// MatchStrict requires the single exact lookup to succeed.
	MatchStrict MatchStrategy = "strict"
	// MatchLoose tries an ordered list of fallback lookups, stopping at
	// the first match.
	MatchLoose MatchStrategy = "loose"
)

// Settings is the onboarding policy configuration, read once at run start and
// passed by value into the worker so tests can vary policy per run.
//
// nolint:govet // fieldalignment - struct is better readable in its current form.
type Settings struct {
	// MatchStrategy applies to manufacturer and device-type lookups.
	// Role lookups are always exact-slug.
	MatchStrategy MatchStrategy `mapstructure:"object_match_strategy"`

	// Auto-creation policy per entity type.
	CreateManufacturer bool `mapstructure:"create_manufacturer_if_missing"`
	CreateDeviceType   bool `mapstructure:"create_device_type_if_missing"`
	CreateDeviceRole   bool `mapstructure:"create_device_role_if_missing"`
	CreatePlatform     bool `mapstructure:"create_platform_if_missing"`

	// CreateManagementInterface enables the interface and primary IP
	// reconcile steps.
	CreateManagementInterface bool `mapstructure:"create_management_interface_if_missing"`

	// Skip resurveying identity entities when the device was already
	// matched in inventory by primary IP.
	SkipDeviceTypeOnUpdate   bool `mapstructure:"skip_device_type_on_update"`
	SkipManufacturerOnUpdate bool `mapstructure:"skip_manufacturer_on_update"`

	DefaultRole      string `mapstructure:"default_device_role"`
	DefaultRoleColor string `mapstructure:"default_device_role_color"`
	DefaultStatus    string `mapstructure:"default_device_status"`

	// Fallback management interface used when no device interface
	// carries the address the device was reached at (e.g. NAT).
	DefaultMgmtIfName    string `mapstructure:"default_management_interface"`
	DefaultMgmtPrefixLen int    `mapstructure:"default_management_prefix_length"`

	// PlatformMap maps a fingerprint identifier to an inventory platform
	// slug when the two differ.
	PlatformMap map[string]string `mapstructure:"platform_map"`

	// DriverMap maps a fingerprint identifier to a vendor driver name.
	// Seeded with the static defaults and extended at run time by
	// driver names stored on inventory platforms.
	DriverMap map[string]string `mapstructure:"driver_map"`

	// ExtensionMap maps a driver name to a registered extension hook.
	ExtensionMap map[string]string `mapstructure:"extension_map"`

	// Default device credentials applied when the submitted credentials
	// leave a field empty.
	DefaultCredentials Credentials `mapstructure:"default_credentials"`
}

// StaticDriverMap is the built-in fingerprint-to-driver table.
func StaticDriverMap() map[string]string {
	return map[string]string{
		"cisco_ios":     "ios",
		"cisco_nxos":    "nxos_ssh",
		"arista_eos":    "eos",
		"juniper_junos": "junos",
		"cisco_xr":      "iosxr",
	}
}

// DefaultSettings returns the default onboarding policy.
func DefaultSettings() Settings {
	return Settings{
		MatchStrategy:             MatchLoose,
		CreateManufacturer:        true,
		CreateDeviceType:          true,
		CreateDeviceRole:          true,
		CreatePlatform:            true,
		CreateManagementInterface: true,
		DefaultRole:               "network",
		DefaultRoleColor:          "FF0000",
		DefaultStatus:             "active",
		DefaultMgmtIfName:         "PLACEHOLDER",
		DefaultMgmtPrefixLen:      0,
		PlatformMap:               map[string]string{},
		DriverMap:                 StaticDriverMap(),
		ExtensionMap:              map[string]string{"ios": "ios"},
	}
}

// ResolveDriver returns the driver name for a fingerprint identifier,
// preferring run-time platform associations over the static table.
func (s *Settings) ResolveDriver(fingerprintID string, platformDrivers map[string]string) string {
	if driver, ok := platformDrivers[fingerprintID]; ok && driver != "" {
		return driver
	}

	return s.DriverMap[fingerprintID]
}

// MergeCredentials fills empty credential fields from the settings defaults.
func (s *Settings) MergeCredentials(creds Credentials) Credentials {
	if creds.Username == "" {
		creds.Username = s.DefaultCredentials.Username
	}

	if creds.Password == "" {
		creds.Password = s.DefaultCredentials.Password
	}

	if creds.Secret == "" {
		creds.Secret = s.DefaultCredentials.Secret
	}

	return creds
}
