package search

import (
	"context"

	"github.com/arthur-debert/erprecord/erprecord"
)

// MockRecordSource wraps a manager, recording domains and injecting errors
type MockRecordSource struct {
	*erprecord.Manager
	domains []erprecord.Domain
	err     error
}

// NewMockRecordSource creates a new mock over m
func NewMockRecordSource(m *erprecord.Manager) *MockRecordSource {
	return &MockRecordSource{Manager: m}
}

// SetError configures the mock to return an error
func (m *MockRecordSource) SetError(err error) {
	m.err = err
}

// Search records d and returns the error or the manager's result
func (m *MockRecordSource) Search(ctx context.Context, d erprecord.Domain, opts ...erprecord.Option) (erprecord.Records, error) {
	m.domains = append(m.domains, d)
	if m.err != nil {
		return nil, m.err
	}
	return m.Manager.Search(ctx, d, opts...)
}
