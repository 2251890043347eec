package device

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/net-toolbox/onboarder/internal/model"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = io.Discard

	return logger
}

// acceptOnce returns the address of a listener accepting one connection, so
// the TCP probe has something real to hit.
func acceptOnce(t *testing.T) (string, int) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	t.Cleanup(func() { listener.Close() }) //nolint:errcheck // test cleanup

	go func() {
		conn, err := listener.Accept()
		if err == nil {
			conn.Close() //nolint:errcheck // probe connection
		}
	}()

	addr := listener.Addr().(*net.TCPAddr)

	return addr.IP.String(), addr.Port
}

func probeTask(address string, port int) *model.Task {
	task := model.NewTask(address, "lab")
	task.Port = port
	task.TimeoutSeconds = 2

	return &task
}

func TestProbeUnreachable(t *testing.T) {
	t.Parallel()

	connector := NewConnector(model.DefaultSettings(), testLogger())

	// Reserved TEST-NET address, nothing listens there.
	err := connector.Probe("192.0.2.1", 22, 100*time.Millisecond)
	require.Error(t, err)

	oe, ok := model.AsOnboardError(err)
	require.True(t, ok)
	assert.Equal(t, model.FailConnect, oe.Reason)
}

func TestConnectWithFingerprint(t *testing.T) {
	t.Parallel()

	address, port := acceptOnce(t)

	Register("fp-test", func(_ Params) Driver {
		return &MockDriver{}
	})

	settings := model.DefaultSettings()
	settings.DriverMap["fp_test_type"] = "fp-test"

	connector := NewConnector(settings, testLogger()).
		WithFingerprint(func(_ context.Context, _ string, _ int, _ time.Duration, _ model.Credentials) (string, error) {
			return "fp_test_type", nil
		})

	session, err := connector.Connect(context.Background(), probeTask(address, port), model.Credentials{}, "", nil)
	require.NoError(t, err)

	assert.Equal(t, "fp-test", session.DriverName)
	assert.Equal(t, "fp_test_type", session.FingerprintID)
	assert.True(t, session.Driver.(*MockDriver).Opened)
	require.NoError(t, session.Close())
}

func TestConnectHintSkipsFingerprint(t *testing.T) {
	t.Parallel()

	address, port := acceptOnce(t)

	Register("hint-test", func(_ Params) Driver {
		return &MockDriver{}
	})

	connector := NewConnector(model.DefaultSettings(), testLogger()).
		WithFingerprint(func(_ context.Context, _ string, _ int, _ time.Duration, _ model.Credentials) (string, error) {
			t.Fatal("fingerprint must not run with a driver hint")
			return "", nil
		})

	session, err := connector.Connect(context.Background(), probeTask(address, port), model.Credentials{}, "hint-test", nil)
	require.NoError(t, err)

	assert.Equal(t, "hint-test", session.DriverName)
	assert.Empty(t, session.FingerprintID)
}

func TestConnectFingerprintFailures(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		name   string
		id     string
		err    error
		reason model.FailReason
	}{
		{"empty fingerprint", "", nil, model.FailGeneral},
		{"unresolvable driver", "unknown_os", nil, model.FailGeneral},
		{"auth failure", "", errors.New("ssh: unable to authenticate, no supported methods remain"), model.FailLogin},
		{"handshake failure", "", errors.New("ssh: handshake failed: connection reset by peer"), model.FailConnect},
	}

	for _, tc := range testcases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			address, port := acceptOnce(t)

			connector := NewConnector(model.DefaultSettings(), testLogger()).
				WithFingerprint(func(_ context.Context, _ string, _ int, _ time.Duration, _ model.Credentials) (string, error) {
					return tc.id, tc.err
				})

			_, err := connector.Connect(context.Background(), probeTask(address, port), model.Credentials{}, "", nil)
			require.Error(t, err)

			oe, ok := model.AsOnboardError(err)
			require.True(t, ok)
			assert.Equal(t, tc.reason, oe.Reason)
		})
	}
}

func TestConnectPlatformDriversOverrideStatic(t *testing.T) {
	t.Parallel()

	address, port := acceptOnce(t)

	Register("assoc-test", func(_ Params) Driver {
		return &MockDriver{}
	})

	connector := NewConnector(model.DefaultSettings(), testLogger()).
		WithFingerprint(func(_ context.Context, _ string, _ int, _ time.Duration, _ model.Credentials) (string, error) {
			return "cisco_ios", nil
		})

	// Inventory associates cisco_ios with its own driver name.
	session, err := connector.Connect(context.Background(), probeTask(address, port), model.Credentials{}, "",
		map[string]string{"cisco_ios": "assoc-test"})
	require.NoError(t, err)

	assert.Equal(t, "assoc-test", session.DriverName)
}
