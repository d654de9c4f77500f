// Package memory is an in-process repository backend. Write transactions are
// serialized and work on a private copy that is published on commit, so
// readers always see a consistent snapshot.
package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"alcyxob/trainer-schedule/internal/domain"
	"alcyxob/trainer-schedule/internal/repository"
)

type dataset struct {
	series       map[string]domain.Series
	commitments  map[string]domain.Commitment
	instances    map[string]domain.Instance
	participants map[string]domain.ParticipantRecord
	people       map[string]domain.Person
	exercises    map[string]domain.Exercise
}

func newDataset() *dataset {
	return &dataset{
		series:       map[string]domain.Series{},
		commitments:  map[string]domain.Commitment{},
		instances:    map[string]domain.Instance{},
		participants: map[string]domain.ParticipantRecord{},
		people:       map[string]domain.Person{},
		exercises:    map[string]domain.Exercise{},
	}
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *dataset) clone() *dataset {
	return &dataset{
		series:       cloneMap(d.series),
		commitments:  cloneMap(d.commitments),
		instances:    cloneMap(d.instances),
		participants: cloneMap(d.participants),
		people:       cloneMap(d.people),
		exercises:    cloneMap(d.exercises),
	}
}

type txKey struct{}

type tx struct {
	store    *Store
	data     *dataset
	readOnly bool
}

var errReadOnly = errors.New("memory: write inside a read-only snapshot")

// Store is the memory backend.
type Store struct {
	mu    sync.Mutex
	snap  atomic.Pointer[dataset]
	now   func() time.Time
	newID func() string
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snap.Store(newDataset())
	return s
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() repository.Store {
	return repository.Store{
		Tx:           s,
		Series:       &seriesRepo{s},
		Commitments:  &commitmentRepo{s},
		Instances:    &instanceRepo{s},
		Participants: &participantRepo{s},
		People:       &personRepo{s},
		Exercises:    &exerciseRepo{s},
		Close:        func(context.Context) error { return nil },
	}
}

// WithTx runs fn against a private copy of the data and publishes it if fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if t, ok := ctx.Value(txKey{}).(*tx); ok && t.store == s {
		if t.readOnly {
			return errReadOnly
		}
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.snap.Load().clone()
	if err := fn(context.WithValue(ctx, txKey{}, &tx{store: s, data: work})); err != nil {
		return err
	}
	s.snap.Store(work)
	return nil
}

// ReadSnapshot pins the currently published data for the duration of fn.
func (s *Store) ReadSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	if t, ok := ctx.Value(txKey{}).(*tx); ok && t.store == s {
		return fn(ctx)
	}
	return fn(context.WithValue(ctx, txKey{}, &tx{store: s, data: s.snap.Load(), readOnly: true}))
}

// Lock is a no-op: write transactions are already serialized.
func (s *Store) Lock(context.Context, ...string) error { return nil }

func (s *Store) read(ctx context.Context) *dataset {
	if t, ok := ctx.Value(txKey{}).(*tx); ok && t.store == s {
		return t.data
	}
	return s.snap.Load()
}

func (s *Store) write(ctx context.Context, fn func(d *dataset) error) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		return fn(s.read(ctx))
	})
}

// AddPerson seeds the people directory.
func (s *Store) AddPerson(p domain.Person) {
	_ = s.write(context.Background(), func(d *dataset) error {
		d.people[p.ID] = p
		return nil
	})
}

// AddExercise seeds the exercise catalog.
func (s *Store) AddExercise(e domain.Exercise) {
	_ = s.write(context.Background(), func(d *dataset) error {
		d.exercises[e.ID] = e
		return nil
	})
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
