package reconcile

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/net-toolbox/onboarder/internal/inventory"
	"github.com/net-toolbox/onboarder/internal/model"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = io.Discard

	return logger
}

func csrFacts() *model.DeviceFacts {
	return &model.DeviceFacts{
		Hostname:      "r1",
		Vendor:        "Cisco",
		Model:         "csr-1000v",
		SerialNumber:  "9KXQPPPXXXX",
		MgmtIfName:    "GigabitEthernet1",
		MgmtPrefixLen: 24,
		FingerprintID: "cisco_ios",
		DriverName:    "ios",
		Strategy:      model.StrategyStandalone,
	}
}

func seededInventory() *inventory.MemInventory {
	inv := inventory.NewMemInventory()
	inv.AddSite(model.Site{Name: "Lab", Slug: "lab"})

	return inv
}

func failReason(t *testing.T, err error) model.FailReason {
	t.Helper()

	oe, ok := model.AsOnboardError(err)
	require.True(t, ok, "expected an onboarding error, got %v", err)

	return oe.Reason
}

func TestEnsureDeviceCreatesEverything(t *testing.T) {
	t.Parallel()

	inv := seededInventory()
	task := model.NewTask("192.0.2.10", "lab")
	settings := model.DefaultSettings()

	device, err := New(inv, testLogger()).EnsureDevice(context.Background(), csrFacts(), &task, settings)
	require.NoError(t, err)

	assert.Equal(t, "r1", device.Name)
	assert.Equal(t, "9KXQPPPXXXX", device.Serial)
	assert.Equal(t, "active", device.Status)
	assert.Equal(t, "192.0.2.10/24", device.PrimaryIP4)
	require.NotNil(t, task.DeviceID)
	assert.Equal(t, device.ID, *task.DeviceID)

	counts := inv.Counts()
	assert.Equal(t, 1, counts.Manufacturers)
	assert.Equal(t, 1, counts.DeviceTypes)
	assert.Equal(t, 1, counts.DeviceRoles)
	assert.Equal(t, 1, counts.Platforms)
	assert.Equal(t, 1, counts.Devices)
	assert.Equal(t, 1, counts.Interfaces)
	assert.Equal(t, 1, counts.IPAddresses)

	deviceType, err := inv.FindDeviceType(context.Background(), []inventory.Lookup{{Field: "slug", Value: "csr-1000v"}})
	require.NoError(t, err)
	assert.Equal(t, "CSR-1000V", deviceType.Model)

	platform, err := inv.PlatformBySlug(context.Background(), "cisco_ios")
	require.NoError(t, err)
	assert.Equal(t, "ios", platform.Driver)
}

func TestEnsureDeviceIdempotent(t *testing.T) {
	t.Parallel()

	inv := seededInventory()
	task := model.NewTask("192.0.2.10", "lab")
	settings := model.DefaultSettings()
	reconciler := New(inv, testLogger())

	first, err := reconciler.EnsureDevice(context.Background(), csrFacts(), &task, settings)
	require.NoError(t, err)

	countsAfterFirst := inv.Counts()

	second, err := reconciler.EnsureDevice(context.Background(), csrFacts(), &task, settings)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, countsAfterFirst, inv.Counts())
}

func TestEnsureDevicePreservesStatus(t *testing.T) {
	t.Parallel()

	inv := seededInventory()
	settings := model.DefaultSettings()
	reconciler := New(inv, testLogger())

	task := model.NewTask("192.0.2.10", "lab")

	device, err := reconciler.EnsureDevice(context.Background(), csrFacts(), &task, settings)
	require.NoError(t, err)

	// Operator demotes the device; re-onboarding must not flip it back.
	device.Status = "planned"
	_, err = inv.UpsertDevice(context.Background(), *device)
	require.NoError(t, err)

	again, err := reconciler.EnsureDevice(context.Background(), csrFacts(), &task, settings)
	require.NoError(t, err)
	assert.Equal(t, "planned", again.Status)
}

func TestEnsureDeviceSiteMissing(t *testing.T) {
	t.Parallel()

	inv := inventory.NewMemInventory()
	task := model.NewTask("192.0.2.10", "nowhere")

	_, err := New(inv, testLogger()).EnsureDevice(context.Background(), csrFacts(), &task, model.DefaultSettings())
	require.Error(t, err)
	assert.Equal(t, model.FailConfig, failReason(t, err))
}

func TestEnsureDeviceAutoCreateDisabled(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		name   string
		mutate func(*model.Settings)
		reason model.FailReason
	}{
		{"manufacturer", func(s *model.Settings) { s.CreateManufacturer = false }, model.FailConfig},
		{"device type", func(s *model.Settings) { s.CreateDeviceType = false }, model.FailConfig},
		{"device role", func(s *model.Settings) { s.CreateDeviceRole = false }, model.FailConfig},
		{"platform", func(s *model.Settings) { s.CreatePlatform = false }, model.FailGeneral},
	}

	for _, tc := range testcases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			inv := seededInventory()
			task := model.NewTask("192.0.2.10", "lab")
			settings := model.DefaultSettings()
			tc.mutate(&settings)

			// Pre-create everything the disabled step depends on, so
			// only the step under test can fail.
			switch tc.name {
			case "device type", "device role", "platform":
				_, err := inv.CreateManufacturer(context.Background(), model.Manufacturer{Name: "Cisco", Slug: "cisco"})
				require.NoError(t, err)
			}

			_, err := New(inv, testLogger()).EnsureDevice(context.Background(), csrFacts(), &task, settings)
			require.Error(t, err)
			assert.Equal(t, tc.reason, failReason(t, err))
		})
	}
}

func TestEnsureDeviceManufacturerGuardRail(t *testing.T) {
	t.Parallel()

	inv := seededInventory()

	other, err := inv.CreateManufacturer(context.Background(), model.Manufacturer{Name: "Juniper", Slug: "juniper"})
	require.NoError(t, err)

	// srx3600 exists, but under Juniper; the scanned Cisco must not adopt it.
	_, err = inv.CreateDeviceType(context.Background(), model.DeviceType{
		Slug: "srx3600", Model: "SRX3600", ManufacturerID: other.ID,
	})
	require.NoError(t, err)

	facts := csrFacts()
	facts.Model = "srx3600"

	task := model.NewTask("192.0.2.10", "lab")

	_, err = New(inv, testLogger()).EnsureDevice(context.Background(), facts, &task, model.DefaultSettings())
	require.Error(t, err)
	assert.Equal(t, model.FailConfig, failReason(t, err))
}

func TestEnsureDeviceLooseMatch(t *testing.T) {
	t.Parallel()

	inv := seededInventory()

	mfr, err := inv.CreateManufacturer(context.Background(), model.Manufacturer{Name: "Cisco Systems", Slug: "CISCO"})
	require.NoError(t, err)

	_, err = inv.CreateDeviceType(context.Background(), model.DeviceType{
		Slug: "c1kv", Model: "CSR-1000V", ManufacturerID: mfr.ID,
	})
	require.NoError(t, err)

	task := model.NewTask("192.0.2.10", "lab")

	_, err = New(inv, testLogger()).EnsureDevice(context.Background(), csrFacts(), &task, model.DefaultSettings())
	require.NoError(t, err)

	// Case-folded slug and model lookups matched; nothing new created.
	counts := inv.Counts()
	assert.Equal(t, 1, counts.Manufacturers)
	assert.Equal(t, 1, counts.DeviceTypes)
}

func TestEnsureDeviceStrictMatchMisses(t *testing.T) {
	t.Parallel()

	inv := seededInventory()

	_, err := inv.CreateManufacturer(context.Background(), model.Manufacturer{Name: "Cisco Systems", Slug: "CISCO"})
	require.NoError(t, err)

	settings := model.DefaultSettings()
	settings.MatchStrategy = model.MatchStrict
	settings.CreateManufacturer = false

	task := model.NewTask("192.0.2.10", "lab")

	// Strict matching refuses the case-folded slug the loose test accepted.
	_, err = New(inv, testLogger()).EnsureDevice(context.Background(), csrFacts(), &task, settings)
	require.Error(t, err)
	assert.Equal(t, model.FailConfig, failReason(t, err))
}

func TestEnsureDeviceDuplicatePrimaryIP(t *testing.T) {
	t.Parallel()

	inv := seededInventory()

	for _, name := range []string{"dup1", "dup2"} {
		_, err := inv.UpsertDevice(context.Background(), model.Device{
			Name: name, Status: "active", PrimaryIP4: "192.0.2.10/24",
		})
		require.NoError(t, err)
	}

	task := model.NewTask("192.0.2.10", "lab")

	_, err := New(inv, testLogger()).EnsureDevice(context.Background(), csrFacts(), &task, model.DefaultSettings())
	require.Error(t, err)
	assert.Equal(t, model.FailGeneral, failReason(t, err))
}

func TestEnsureDeviceNameCollision(t *testing.T) {
	t.Parallel()

	inv := seededInventory()

	_, err := inv.UpsertDevice(context.Background(), model.Device{Name: "r1", Status: "active"})
	require.NoError(t, err)

	task := model.NewTask("192.0.2.10", "lab")

	_, err = New(inv, testLogger()).EnsureDevice(context.Background(), csrFacts(), &task, model.DefaultSettings())
	require.Error(t, err)
	assert.Equal(t, model.FailGeneral, failReason(t, err))
}

func TestEnsureDevicePlatformWithoutDriver(t *testing.T) {
	t.Parallel()

	inv := seededInventory()

	_, err := inv.CreatePlatform(context.Background(), model.Platform{Name: "cisco_ios", Slug: "cisco_ios"})
	require.NoError(t, err)

	task := model.NewTask("192.0.2.10", "lab")

	_, err = New(inv, testLogger()).EnsureDevice(context.Background(), csrFacts(), &task, model.DefaultSettings())
	require.Error(t, err)
	assert.Equal(t, model.FailGeneral, failReason(t, err))
}

func TestEnsureDeviceNoMgmtInterfaceWhenDisabled(t *testing.T) {
	t.Parallel()

	inv := seededInventory()
	settings := model.DefaultSettings()
	settings.CreateManagementInterface = false

	task := model.NewTask("192.0.2.10", "lab")

	device, err := New(inv, testLogger()).EnsureDevice(context.Background(), csrFacts(), &task, settings)
	require.NoError(t, err)
	assert.Empty(t, device.PrimaryIP4)

	counts := inv.Counts()
	assert.Zero(t, counts.Interfaces)
	assert.Zero(t, counts.IPAddresses)
}

func TestEnsureDeviceTaskOverrides(t *testing.T) {
	t.Parallel()

	inv := seededInventory()
	settings := model.DefaultSettings()

	task := model.NewTask("192.0.2.10", "lab")
	task.RoleSlug = "core-switch"
	task.DeviceTypeSlug = "custom-type"

	_, err := New(inv, testLogger()).EnsureDevice(context.Background(), csrFacts(), &task, settings)
	require.NoError(t, err)

	role, err := inv.DeviceRoleBySlug(context.Background(), "core-switch")
	require.NoError(t, err)
	assert.Equal(t, settings.DefaultRoleColor, role.Color)

	deviceType, err := inv.FindDeviceType(context.Background(), []inventory.Lookup{{Field: "slug", Value: "custom-type"}})
	require.NoError(t, err)
	assert.Equal(t, "CUSTOM-TYPE", deviceType.Model)
}

func TestEnsureDeviceStacked(t *testing.T) {
	t.Parallel()

	inv := seededInventory()
	settings := model.DefaultSettings()

	facts := csrFacts()
	facts.Hostname = "sw01"
	facts.Model = "ws-c3750x-48p-s"
	facts.MgmtIfName = "Vlan1"
	facts.Strategy = model.StrategyStacked
	facts.StackUnits = []model.StackUnit{
		{Position: 1, SerialNumber: "FDO1111A1AA", Model: "ws-c3750x-48p-s"},
		{Position: 2, SerialNumber: "FDO2222B2BB", Model: "ws-c3750x-24p-s"},
		{Position: 3, SerialNumber: "FDO3333C3CC", Model: "ws-c3750x-48p-s"},
	}

	task := model.NewTask("192.0.2.20", "lab")
	reconciler := New(inv, testLogger())

	primary, err := reconciler.EnsureDevice(context.Background(), facts, &task, settings)
	require.NoError(t, err)

	assert.Equal(t, "sw01", primary.Name)
	assert.Equal(t, "FDO1111A1AA", primary.Serial)
	assert.Equal(t, "192.0.2.20/24", primary.PrimaryIP4)

	counts := inv.Counts()
	assert.Equal(t, 3, counts.Devices)
	assert.Equal(t, 2, counts.DeviceTypes)

	// Members carry serial and type but no management addressing.
	for _, expect := range []struct {
		name   string
		serial string
	}{
		{"sw01:2", "FDO2222B2BB"},
		{"sw01:3", "FDO3333C3CC"},
	} {
		member, err := inv.DeviceByName(context.Background(), expect.name)
		require.NoError(t, err)
		assert.Equal(t, expect.serial, member.Serial)
		assert.Empty(t, member.PrimaryIP4)
	}

	assert.Equal(t, 1, counts.Interfaces)
	assert.Equal(t, 1, counts.IPAddresses)

	// Re-running an unchanged stack writes nothing new.
	_, err = reconciler.EnsureDevice(context.Background(), facts, &task, settings)
	require.NoError(t, err)
	assert.Equal(t, counts, inv.Counts())
}

func TestEnsureDeviceSkipFlagsOnUpdate(t *testing.T) {
	t.Parallel()

	inv := seededInventory()
	settings := model.DefaultSettings()
	reconciler := New(inv, testLogger())

	task := model.NewTask("192.0.2.10", "lab")

	_, err := reconciler.EnsureDevice(context.Background(), csrFacts(), &task, settings)
	require.NoError(t, err)

	countsAfterFirst := inv.Counts()

	// Device reports a different model on re-onboard; skip flags pin the
	// recorded identity instead of filing a new type.
	facts := csrFacts()
	facts.Vendor = "Cisco Renamed"
	facts.Model = "csr-2000v"

	settings.SkipDeviceTypeOnUpdate = true
	settings.SkipManufacturerOnUpdate = true

	device, err := reconciler.EnsureDevice(context.Background(), facts, &task, settings)
	require.NoError(t, err)

	assert.Equal(t, countsAfterFirst, inv.Counts())

	deviceType, err := inv.DeviceTypeByID(context.Background(), device.DeviceTypeID)
	require.NoError(t, err)
	assert.Equal(t, "csr-1000v", deviceType.Slug)
}
