// Package fixtures holds canned device data shared by tests.
package fixtures

import (
	"github.com/net-toolbox/onboarder/internal/device"
	"github.com/net-toolbox/onboarder/internal/inventory"
	"github.com/net-toolbox/onboarder/internal/model"
)

// CSR1000vFacts is the raw fact set of a virtual IOS XE router.
var CSR1000vFacts = device.RawFacts{
	Hostname:     "r1",
	Vendor:       "cisco",
	Model:        "CSR 1000v",
	SerialNumber: "9KXQPPPXXXX",
}

// CSR1000vInterfaceIPs matches CSR1000vFacts, management on Gi1.
var CSR1000vInterfaceIPs = model.InterfaceIPs{
	"GigabitEthernet1": {{Address: "192.0.2.10", PrefixLen: 24}},
	"Loopback0":        {{Address: "10.255.0.1", PrefixLen: 32}},
}

// Catalyst2960ShowVersion is a trimmed standalone switch show version.
const Catalyst2960ShowVersion = `Cisco IOS Software, C2960 Software (C2960-LANBASEK9-M), Version 15.0(2)SE11
sw01 uptime is 26 weeks, 2 days, 14 hours, 2 minutes
System returned to ROM by power-on

Base Ethernet MAC Address          : 00:1B:54:CC:DD:01
Motherboard assembly number        : 73-10390-03
Model revision number              : B0
Model Number                       : WS-C2960-24TT-L
System Serial Number               : FOC1234X56Y
`

// NewSession returns an open mock session carrying the CSR1000v facts.
func NewSession() *device.Session {
	return &device.Session{
		Driver: &device.MockDriver{
			FactsVal: &CSR1000vFacts,
			IPs:      CSR1000vInterfaceIPs,
		},
		DriverName:    "ios",
		FingerprintID: "cisco_ios",
	}
}

// NewInventory returns an in-memory inventory seeded with the lab site.
func NewInventory() *inventory.MemInventory {
	inv := inventory.NewMemInventory()
	inv.AddSite(model.Site{Name: "Lab", Slug: "lab"})

	return inv
}
