package device

import (
	"context"

	"github.com/net-toolbox/onboarder/internal/model"
)

// MockDriver implements Driver with canned responses, for tests.
type MockDriver struct {
	OpenErr  error
	FactsVal *RawFacts
	FactsErr error
	IPs      model.InterfaceIPs
	IPsErr   error
	CLIOut   map[string]string
	CLIErr   error

	Opened bool
	Closed bool
}

func (m *MockDriver) Open(_ context.Context) error {
	if m.OpenErr != nil {
		return m.OpenErr
	}

	m.Opened = true

	return nil
}

func (m *MockDriver) Close() error {
	m.Closed = true
	return nil
}

func (m *MockDriver) Facts(_ context.Context) (*RawFacts, error) {
	if m.FactsErr != nil {
		return nil, m.FactsErr
	}

	facts := *m.FactsVal

	return &facts, nil
}

func (m *MockDriver) InterfaceIPs(_ context.Context) (model.InterfaceIPs, error) {
	if m.IPsErr != nil {
		return nil, m.IPsErr
	}

	return m.IPs, nil
}

func (m *MockDriver) CLI(_ context.Context, commands []string) (map[string]string, error) {
	if m.CLIErr != nil {
		return nil, m.CLIErr
	}

	output := map[string]string{}

	for _, command := range commands {
		output[command] = m.CLIOut[command]
	}

	return output, nil
}
