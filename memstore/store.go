// Package memstore keeps every collection in process memory. It backs the
// memory store mode and the service tests. It has no transactions: its
// Transactor reports db.ErrTxUnsupported and callers fall back to
// non-transactional writes.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Raguls333/noolix-sub001/audit"
	"github.com/Raguls333/noolix-sub001/auth"
	"github.com/Raguls333/noolix-sub001/client"
	"github.com/Raguls333/noolix-sub001/commitment"
	"github.com/Raguls333/noolix-sub001/db"
	"github.com/Raguls333/noolix-sub001/plan"
	"github.com/Raguls333/noolix-sub001/securelink"
)

// Store holds all records behind one mutex.
type Store struct {
	mu sync.Mutex

	plans          map[string]plan.Plan
	users          map[string]auth.User
	clients        map[string]client.Client
	commitments    map[string]commitment.Commitment
	changeRequests map[string]commitment.ChangeRequest
	links          map[string]securelink.Link
	events         []audit.Event

	now func() time.Time
}

func New() *Store {
	return &Store{
		plans:          make(map[string]plan.Plan),
		users:          make(map[string]auth.User),
		clients:        make(map[string]client.Client),
		commitments:    make(map[string]commitment.Commitment),
		changeRequests: make(map[string]commitment.ChangeRequest),
		links:          make(map[string]securelink.Link),
		now:            time.Now,
	}
}

func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Commitments() *Commitments       { return &Commitments{s: s} }
func (s *Store) ChangeRequests() *ChangeRequests { return &ChangeRequests{s: s} }
func (s *Store) Links() *Links                   { return &Links{s: s} }
func (s *Store) Events() *Events                 { return &Events{s: s} }
func (s *Store) Users() *Users                   { return &Users{s: s} }
func (s *Store) Clients() *Clients               { return &Clients{s: s} }
func (s *Store) Plans() *Plans                   { return &Plans{s: s} }
func (s *Store) Transactor() Transactor          { return Transactor{} }

// Transactor never opens a transaction.
type Transactor struct{}

func (Transactor) InTx(context.Context, func(ctx context.Context) error) error {
	return db.ErrTxUnsupported
}

func newID() string { return uuid.NewString() }
