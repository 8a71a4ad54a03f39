// Package memstore is an in-process backend with the same method sets as the
// Postgres stores. Transactions run one at a time against a private copy of the
// data that replaces the committed copy only when the work function succeeds.
package memstore

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"plaxrec/internal/models"
	"plaxrec/internal/store"
)

var errNotTx = errors.New("memstore: write outside a memstore transaction")

type state struct {
	seq          int64
	profiles     map[string]models.Profile
	profileOrder []string
	emails       map[string]string
	batches      map[string]models.Batch
	batchOrder   []string
	transactions []models.Transaction
	requestIDs   map[string]struct{}
	movements    []models.BalanceMovement
	audit        []models.AuditLog
}

func newState() *state {
	return &state{
		profiles:   make(map[string]models.Profile),
		emails:     make(map[string]string),
		batches:    make(map[string]models.Batch),
		requestIDs: make(map[string]struct{}),
	}
}

func (s *state) clone() *state {
	c := &state{
		seq:          s.seq,
		profiles:     make(map[string]models.Profile, len(s.profiles)),
		profileOrder: append([]string(nil), s.profileOrder...),
		emails:       make(map[string]string, len(s.emails)),
		batches:      make(map[string]models.Batch, len(s.batches)),
		batchOrder:   append([]string(nil), s.batchOrder...),
		transactions: append([]models.Transaction(nil), s.transactions...),
		requestIDs:   make(map[string]struct{}, len(s.requestIDs)),
		movements:    append([]models.BalanceMovement(nil), s.movements...),
		audit:        append([]models.AuditLog(nil), s.audit...),
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	for k, v := range s.emails {
		c.emails[k] = v
	}
	for k, v := range s.batches {
		c.batches[k] = v
	}
	for k := range s.requestIDs {
		c.requestIDs[k] = struct{}{}
	}
	return c
}

func (s *state) nextSeq() int64 {
	s.seq++
	return s.seq
}

type Store struct {
	writer sync.Mutex
	mu     sync.RWMutex
	data   *state
	now    func() time.Time
}

func New() *Store {
	return &Store{data: newState(), now: func() time.Time { return time.Now().UTC() }}
}

// Tx is the handle memstore hands to transactional work. Raw SQL is not
// supported; the memstore stores recognise the handle and write to its copy.
type Tx struct {
	data *state
}

func (t *Tx) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errors.New("memstore: raw SQL is not supported")
}

func (t *Tx) GetContext(context.Context, any, string, ...any) error {
	return errors.New("memstore: raw SQL is not supported")
}

func (t *Tx) SelectContext(context.Context, any, string, ...any) error {
	return errors.New("memstore: raw SQL is not supported")
}

// WithTx serializes writers. The committed data is swapped for the working
// copy only when fn returns nil, so a failed operation leaves no trace.
func (s *Store) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writer.Lock()
	defer s.writer.Unlock()

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	if err := fn(&Tx{data: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}

// read runs fn against the working copy when q is a memstore Tx and against
// the committed data otherwise.
func (s *Store) read(q any, fn func(*state)) {
	if tx, ok := q.(*Tx); ok && tx != nil {
		fn(tx.data)
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

func writable(q any) (*state, error) {
	tx, ok := q.(*Tx)
	if !ok || tx == nil {
		return nil, errNotTx
	}
	return tx.data, nil
}

func (s *Store) Profiles() *Profiles {
	return &Profiles{store: s}
}

func (s *Store) Batches() *Batches {
	return &Batches{store: s}
}

func (s *Store) Transactions() *Transactions {
	return &Transactions{store: s}
}

func (s *Store) Movements() *Movements {
	return &Movements{store: s}
}

func (s *Store) Audit() *Audit {
	return &Audit{store: s}
}
