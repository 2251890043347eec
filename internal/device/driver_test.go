package device

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/net-toolbox/onboarder/internal/model"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	Register("registry-test", func(_ Params) Driver {
		return &MockDriver{}
	})

	assert.True(t, Registered("registry-test"))
	assert.True(t, Registered("ios"))
	assert.False(t, Registered("nonesuch"))

	drv, err := New("registry-test", Params{})
	require.NoError(t, err)
	assert.IsType(t, &MockDriver{}, drv)

	_, err = New("nonesuch", Params{})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestClassifyErr(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		name   string
		err    error
		reason model.FailReason
	}{
		{"connection is login", errors.Wrap(ErrConnection, "auth failed"), model.FailLogin},
		{"command is execute", errors.Wrap(ErrCommand, "invalid input"), model.FailExecute},
		{"classified error passes through", model.NewOnboardError(model.FailDNS, "nope"), model.FailDNS},
		{"unknown is general", errors.New("boom"), model.FailGeneral},
	}

	for _, tc := range testcases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.reason, ClassifyErr(tc.err).Reason)
		})
	}
}
