package model

// OnboardStrategy selects how collected facts are reconciled into devices.
type OnboardStrategy string

const (
	// StrategyStandalone reconciles the facts into a single device.
	StrategyStandalone OnboardStrategy = "standalone"
	// StrategyStacked reconciles each discovered hardware unit into its
	// own device, position 1 being the primary.
	StrategyStacked OnboardStrategy = "stacked"
)

// StackUnit describes one hardware unit of a multi-unit (stacked) device,
// as discovered by a driver extension hook.
type StackUnit struct {
	Position     int    `json:"position"`
	SerialNumber string `json:"serial_number"`
	Model        string `json:"model"`
	MACAddress   string `json:"mac_address"`
}

// DeviceFacts is the canonical fact set collected from a device.
//
// It exists in memory for the duration of one onboarding run and is never
// persisted. Vendor is title-cased and Model lowercased by the collector
// before the facts leave it.
//
// nolint:govet // fieldalignment - struct is better readable in its current form.
type DeviceFacts struct {
	Hostname     string
	Vendor       string
	Model        string
	SerialNumber string

	// Management interface resolved against the address used to reach
	// the device, or the configured fallback.
	MgmtIfName    string
	MgmtPrefixLen int

	// FingerprintID is the protocol fingerprint identifier guessed for
	// the device (netmiko-style device type), when fingerprinting ran.
	FingerprintID string

	// DriverName is the vendor driver the facts were collected through.
	DriverName string

	Strategy   OnboardStrategy
	StackUnits []StackUnit
}

// PrimaryUnit returns the stack unit at position 1, or nil.
func (f *DeviceFacts) PrimaryUnit() *StackUnit {
	for i := range f.StackUnits {
		if f.StackUnits[i].Position == 1 {
			return &f.StackUnits[i]
		}
	}

	return nil
}

// InterfaceIP is one IPv4 address present on a device interface.
type InterfaceIP struct {
	Address   string
	PrefixLen int
}

// InterfaceIPs maps interface names to their IPv4 addresses as reported by
// the device.
type InterfaceIPs map[string][]InterfaceIP
