package extension

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/net-toolbox/onboarder/internal/device"
	"github.com/net-toolbox/onboarder/internal/fixtures"
	"github.com/net-toolbox/onboarder/internal/model"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = io.Discard

	return logger
}

const twoUnitShowVersion = `Cisco IOS Software, C3750E Software
sw01 uptime is 4 weeks, 2 days

Base Ethernet MAC Address          : 00:1b:54:aa:bb:01
Model Number                       : WS-C3750X-48P-S
System Serial Number               : FDO1111A1AA

Switch 02
---------
Base Ethernet MAC Address          : 00:1b:54:aa:bb:02
Model Number                       : WS-C3750X-48P-S
System Serial Number               : FDO2222B2BB
`

const routerShowVersion = `Cisco IOS XE Software, Version 16.09.03
r1 uptime is 2 days
Processor board ID 9KXQPPPXXXX
`

func standaloneFacts() *model.DeviceFacts {
	return &model.DeviceFacts{
		Hostname:   "sw01",
		DriverName: "ios",
		Strategy:   model.StrategyStandalone,
	}
}

func TestApply(t *testing.T) {
	t.Parallel()

	t.Run("driver without mapped hook keeps facts", func(t *testing.T) {
		t.Parallel()

		settings := model.DefaultSettings()
		session := &device.Session{Driver: &device.MockDriver{}, DriverName: "junos"}
		facts := standaloneFacts()

		err := Apply(context.Background(), session, facts, settings, testLogger())
		require.NoError(t, err)
		assert.Equal(t, model.StrategyStandalone, facts.Strategy)
		assert.Empty(t, facts.StackUnits)
	})

	t.Run("mapped but unregistered hook fails", func(t *testing.T) {
		t.Parallel()

		settings := model.DefaultSettings()
		settings.ExtensionMap = map[string]string{"ios": "nonesuch"}
		session := &device.Session{Driver: &device.MockDriver{}, DriverName: "ios"}

		err := Apply(context.Background(), session, standaloneFacts(), settings, testLogger())
		require.Error(t, err)

		oe, ok := model.AsOnboardError(err)
		require.True(t, ok)
		assert.Equal(t, model.FailGeneral, oe.Reason)
	})

	t.Run("two unit stack detected", func(t *testing.T) {
		t.Parallel()

		settings := model.DefaultSettings()
		drv := &device.MockDriver{CLIOut: map[string]string{showVersion: twoUnitShowVersion}}
		session := &device.Session{Driver: drv, DriverName: "ios"}
		facts := standaloneFacts()

		err := Apply(context.Background(), session, facts, settings, testLogger())
		require.NoError(t, err)
		assert.Equal(t, model.StrategyStacked, facts.Strategy)
		require.Len(t, facts.StackUnits, 2)

		assert.Equal(t, model.StackUnit{
			Position:     1,
			SerialNumber: "FDO1111A1AA",
			Model:        "ws-c3750x-48p-s",
			MACAddress:   "00:1b:54:aa:bb:01",
		}, facts.StackUnits[0])
		assert.Equal(t, 2, facts.StackUnits[1].Position)
		assert.Equal(t, "FDO2222B2BB", facts.StackUnits[1].SerialNumber)
	})

	t.Run("single unit stays standalone", func(t *testing.T) {
		t.Parallel()

		settings := model.DefaultSettings()
		drv := &device.MockDriver{CLIOut: map[string]string{showVersion: fixtures.Catalyst2960ShowVersion}}
		session := &device.Session{Driver: drv, DriverName: "ios"}
		facts := standaloneFacts()

		err := Apply(context.Background(), session, facts, settings, testLogger())
		require.NoError(t, err)
		assert.Equal(t, model.StrategyStandalone, facts.Strategy)
		assert.Empty(t, facts.StackUnits)
	})

	t.Run("router without unit inventory stays standalone", func(t *testing.T) {
		t.Parallel()

		settings := model.DefaultSettings()
		drv := &device.MockDriver{CLIOut: map[string]string{showVersion: routerShowVersion}}
		session := &device.Session{Driver: drv, DriverName: "ios"}
		facts := standaloneFacts()

		err := Apply(context.Background(), session, facts, settings, testLogger())
		require.NoError(t, err)
		assert.Equal(t, model.StrategyStandalone, facts.Strategy)
	})

	t.Run("virtual platform skipped", func(t *testing.T) {
		t.Parallel()

		settings := model.DefaultSettings()
		drv := &device.MockDriver{CLIOut: map[string]string{
			showVersion: "Cisco IOS Software, IOSv Software (VIOS-ADVENTERPRISEK9-M)",
		}}
		session := &device.Session{Driver: drv, DriverName: "ios"}
		facts := standaloneFacts()

		err := Apply(context.Background(), session, facts, settings, testLogger())
		require.NoError(t, err)
		assert.Equal(t, model.StrategyStandalone, facts.Strategy)
	})

	t.Run("command failure classified as execute", func(t *testing.T) {
		t.Parallel()

		settings := model.DefaultSettings()
		drv := &device.MockDriver{CLIErr: device.ErrCommand}
		session := &device.Session{Driver: drv, DriverName: "ios"}

		err := Apply(context.Background(), session, standaloneFacts(), settings, testLogger())
		require.Error(t, err)

		oe, ok := model.AsOnboardError(err)
		require.True(t, ok)
		assert.Equal(t, model.FailExecute, oe.Reason)
	})
}

func TestParseIOSStackUnitsMissingSerial(t *testing.T) {
	t.Parallel()

	version := `sw01 uptime is 1 day

Model Number                       : WS-C3750X-48P-S
Base Ethernet MAC Address          : 00:1b:54:aa:bb:01

Switch 02
---------
Model Number                       : WS-C3750X-48P-S
`

	_, err := parseIOSStackUnits(version)
	require.Error(t, err)

	oe, ok := model.AsOnboardError(err)
	require.True(t, ok)
	assert.Equal(t, model.FailGeneral, oe.Reason)
}
