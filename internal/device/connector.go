package device

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/net-toolbox/onboarder/internal/model"
)

// Session is an open vendor driver session plus the identifiers resolved
// while opening it.
type Session struct {
	Driver Driver

	// DriverName is the resolved vendor driver.
	DriverName string

	// FingerprintID is the protocol fingerprint result, empty when an
	// explicit driver hint skipped fingerprinting.
	FingerprintID string
}

// Close tears the session down.
func (s *Session) Close() error {
	return s.Driver.Close()
}

// FingerprintFunc guesses a device-type identifier over the wire.
type FingerprintFunc func(ctx context.Context, address string, port int, timeout time.Duration, creds model.Credentials) (string, error)

// Connector opens connections to network devices: TCP reachability probe,
// optional protocol fingerprinting and vendor driver session setup.
type Connector struct {
	settings    model.Settings
	fingerprint FingerprintFunc
	logger      *logrus.Logger
}

// NewConnector returns a Connector using SSH fingerprinting.
func NewConnector(settings model.Settings, logger *logrus.Logger) *Connector {
	return &Connector{settings: settings, fingerprint: sshFingerprint, logger: logger}
}

// WithFingerprint overrides the fingerprint implementation, for tests.
func (c *Connector) WithFingerprint(fn FingerprintFunc) *Connector {
	c.fingerprint = fn
	return c
}

// Probe checks TCP reachability of address:port within the timeout.
func (c *Connector) Probe(address string, port int, timeout time.Duration) error {
	c.logger.WithFields(logrus.Fields{"address": address, "port": port}).Info("probing device reachability")

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(address, fmt.Sprintf("%d", port)), timeout)
	if err != nil {
		return model.NewOnboardError(model.FailConnect,
			fmt.Sprintf("device unreachable: %s:%d: %s", address, port, err))
	}

	_ = conn.Close()

	return nil
}

// Connect probes the device, resolves a vendor driver (fingerprinting when
// no hint is given) and opens the driver session.
//
// platformDrivers extends the static fingerprint-to-driver table with
// inventory-stored platform associations.
func (c *Connector) Connect(ctx context.Context, task *model.Task, creds model.Credentials, driverHint string, platformDrivers map[string]string) (*Session, error) {
	if err := c.Probe(task.Address, task.Port, task.Timeout()); err != nil {
		return nil, err
	}

	session := &Session{DriverName: driverHint}

	if session.DriverName == "" {
		fingerprintID, err := c.fingerprint(ctx, task.Address, task.Port, task.Timeout(), creds)
		if err != nil {
			return nil, classifyFingerprintErr(err)
		}

		if fingerprintID == "" {
			return nil, model.NewOnboardError(model.FailGeneral,
				"could not fingerprint device type: "+task.Address)
		}

		c.logger.WithFields(logrus.Fields{
			"address":     task.Address,
			"fingerprint": fingerprintID,
		}).Info("guessed device type")

		session.FingerprintID = fingerprintID
		session.DriverName = c.settings.ResolveDriver(fingerprintID, platformDrivers)

		if session.DriverName == "" {
			return nil, model.NewOnboardError(model.FailGeneral,
				fmt.Sprintf("onboarding for platform %s not supported, no driver associated", fingerprintID))
		}
	}

	driver, err := New(session.DriverName, Params{
		Address:     task.Address,
		Port:        task.Port,
		Timeout:     task.Timeout(),
		Credentials: creds,
		Telnet:      task.Port == 23,
	})
	if err != nil {
		return nil, model.NewOnboardError(model.FailGeneral, err.Error())
	}

	if err := driver.Open(ctx); err != nil {
		return nil, ClassifyErr(err)
	}

	session.Driver = driver

	return session, nil
}

// classifyFingerprintErr maps fingerprinting failures: authentication is a
// login failure, timeout and transport errors mean the device went away and
// everything else is general.
func classifyFingerprintErr(err error) *model.OnboardError {
	if oe, ok := model.AsOnboardError(err); ok {
		return oe
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.NewOnboardError(model.FailConnect, err.Error())
	}

	msg := err.Error()

	switch {
	case strings.Contains(msg, "unable to authenticate"),
		strings.Contains(msg, "no supported methods remain"):
		return model.NewOnboardError(model.FailLogin, msg)
	case strings.Contains(msg, "handshake failed"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "connection refused"),
		errors.Is(err, context.DeadlineExceeded):
		return model.NewOnboardError(model.FailConnect, msg)
	default:
		return model.NewOnboardError(model.FailGeneral, msg)
	}
}

// versionFingerprints orders banner substrings to device-type identifiers.
// More specific identifiers come first: IOS XR and NX-OS banners also
// contain the plain "Cisco IOS" marker.
var versionFingerprints = []struct {
	marker string
	id     string
}{
	{"IOS XR", "cisco_xr"},
	{"NX-OS", "cisco_nxos"},
	{"Cisco Nexus", "cisco_nxos"},
	{"Cisco IOS", "cisco_ios"},
	{"Arista", "arista_eos"},
	{"JUNOS", "juniper_junos"},
	{"Junos", "juniper_junos"},
}

// sshFingerprint connects over SSH and guesses the device type from the
// version command output.
func sshFingerprint(ctx context.Context, address string, port int, timeout time.Duration, creds model.Credentials) (string, error) {
	client, err := dialSSH(ctx, address, port, sshClientConfig(creds, timeout))
	if err != nil {
		return "", err
	}
	defer client.Close()

	for _, command := range []string{"show version", "show version | no-more"} {
		output, err := runCommand(client, command)
		if err != nil {
			continue
		}

		for _, fp := range versionFingerprints {
			if strings.Contains(output, fp.marker) {
				return fp.id, nil
			}
		}
	}

	return "", nil
}
