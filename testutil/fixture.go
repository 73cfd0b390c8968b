// Package testutil provides a populated in-memory remote database and
// the matching record registry for package tests.
package testutil

import (
	"bytes"
	_ "embed"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/arthur-debert/erprecord/erprecord"
	"github.com/arthur-debert/erprecord/erprecord/rpc/memrpc"
)

//go:embed testdata/universe.yaml
var universeYAML []byte

// Well-known ids in the universe
const (
	AdminID    int64 = 1
	DemoUserID int64 = 2
	ClerkID    int64 = 3 // archived

	BelgiumID int64 = 1
	FranceID  int64 = 2
	USID      int64 = 3

	AzureID    int64 = 10 // company, children Brandon and Colleen
	BrandonID  int64 = 11
	ColleenID  int64 = 12 // no ref, no email, no country
	DecoID     int64 = 13
	DouglasID  int64 = 14
	JordanOne  int64 = 15 // shares its name with JordanTwo
	JordanTwo  int64 = 16
	GeminiID   int64 = 17 // archived
	PartnerMax int64 = 17

	EcoTagID     int64 = 1
	BulkTagID    int64 = 2
	FragileTagID int64 = 3

	ChairID      int64 = 1
	LampID       int64 = 2
	ConsultingID int64 = 3
)

// Universe is a loaded fixture: the fake server, the registry that
// describes it and a client bound to both.
type Universe struct {
	Server   *memrpc.Server
	Registry *erprecord.Registry
	Client   *erprecord.Client
}

// NewServer returns a memrpc server holding the universe rows
func NewServer(t testing.TB, opts ...memrpc.Option) *memrpc.Server {
	t.Helper()

	srv, err := memrpc.Load(bytes.NewReader(universeYAML), opts...)
	if err != nil {
		t.Fatalf("failed to load universe: %v", err)
	}
	return srv
}

// LoadUniverse builds the fixture server, links the universe registry
// and returns a client logging to the test.
func LoadUniverse(t testing.TB, opts ...memrpc.Option) *Universe {
	t.Helper()

	srv := NewServer(t, opts...)
	reg := Registry()
	client, err := erprecord.NewClient(srv, reg, erprecord.WithLogger(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return &Universe{Server: srv, Registry: reg, Client: client}
}

// Model returns the manager for model or fails the test
func (u *Universe) Model(t testing.TB, model string) *erprecord.Manager {
	t.Helper()
	m, err := u.Client.Model(model)
	if err != nil {
		t.Fatalf("unknown model %s: %v", model, err)
	}
	return m
}
