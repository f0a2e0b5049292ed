// Package testutil provides shared test helpers: an in-memory record store,
// a scripted wallet session, and temporary ledgers.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/ledger"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/recordstore"
)

// Addr is the record address used across tests.
var Addr = models.RecordAddress{ProgramID: "test-program", Key: "words"}

// Logger returns a logger that drops everything below error level.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestLedger creates a temporary SQLite ledger that is automatically cleaned up.
func TestLedger(t *testing.T) *ledger.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ansuz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := ledger.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// MemoryStore is an in-memory recordstore.Store with failure injection.
type MemoryStore struct {
	mu      sync.Mutex
	records map[models.RecordAddress]*models.Record
	calls   []string
	fetches int

	// FetchErr, when set, makes every fetch fail with it.
	FetchErr error
	// AppendErr, when set, makes every append fail with it.
	AppendErr error
	// BeforeFetch, when set, is called with the 1-based fetch number before
	// the record is read. It runs without the store lock held.
	BeforeFetch func(n int)
}

var _ recordstore.Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[models.RecordAddress]*models.Record)}
}

// Seed creates the record at addr with the given (author, text) pairs.
func (m *MemoryStore) Seed(addr models.RecordAddress, owner models.Identity, pairs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := &models.Record{Address: addr, Owner: owner, Contributions: []models.Contribution{}}
	for i := 0; i+1 < len(pairs); i += 2 {
		rec.Contributions = append(rec.Contributions, models.Contribution{
			Author: models.Identity(pairs[i]),
			Text:   pairs[i+1],
		})
	}
	m.records[addr] = rec
}

// Calls returns the operations invoked so far ("fetch", "init", "append:<text>").
func (m *MemoryStore) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// FetchRecord implements recordstore.Store.
func (m *MemoryStore) FetchRecord(_ context.Context, addr models.RecordAddress) recordstore.FetchResult {
	m.mu.Lock()
	m.fetches++
	n := m.fetches
	m.calls = append(m.calls, "fetch")
	hook := m.BeforeFetch
	m.mu.Unlock()

	if hook != nil {
		hook(n)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return recordstore.Failed(fmt.Errorf("%w: %v", apperr.ErrRemote, m.FetchErr))
	}
	rec, ok := m.records[addr]
	if !ok {
		return recordstore.Absent()
	}
	cp := *rec
	cp.Contributions = append([]models.Contribution{}, rec.Contributions...)
	return recordstore.Found(cp, checksum.Record(cp))
}

// InitializeRecord implements recordstore.Store.
func (m *MemoryStore) InitializeRecord(_ context.Context, addr models.RecordAddress, owner models.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "init")
	if _, ok := m.records[addr]; ok {
		return apperr.ErrAlreadyExists
	}
	m.records[addr] = &models.Record{Address: addr, Owner: owner, Contributions: []models.Contribution{}}
	return nil
}

// AppendContribution implements recordstore.Store.
func (m *MemoryStore) AppendContribution(_ context.Context, addr models.RecordAddress, text string, author models.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "append:"+text)
	if text == "" {
		return apperr.ErrEmptyInput
	}
	if m.AppendErr != nil {
		return fmt.Errorf("%w: %v", apperr.ErrRemote, m.AppendErr)
	}
	rec, ok := m.records[addr]
	if !ok {
		return apperr.ErrNotInitialized
	}
	rec.Contributions = append(rec.Contributions, models.Contribution{
		Author:    author,
		Text:      text,
		CreatedAt: time.Now(),
	})
	return nil
}

// Session is a scripted wallet session.
type Session struct {
	mu          sync.Mutex
	Silent      models.Identity // returned by silent connect; empty fails
	Interactive models.Identity // returned by Connect; empty rejects
}

// TrySilentConnect implements viewstate.Session.
func (s *Session) TrySilentConnect(context.Context) (models.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Silent, s.Silent != ""
}

// Connect implements viewstate.Session.
func (s *Session) Connect(context.Context) (models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Interactive == "" {
		return "", apperr.ErrConnectRejected
	}
	return s.Interactive, nil
}

// Eventually polls fn every tick until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}
