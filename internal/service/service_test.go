package service

import (
	"alcyxob/trainer-schedule/internal/cache"
	"alcyxob/trainer-schedule/internal/domain"
	"alcyxob/trainer-schedule/internal/occurrence"
	"alcyxob/trainer-schedule/internal/repository"
	"alcyxob/trainer-schedule/internal/repository/memory"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func at(y int, m time.Month, d, hour, minute int) time.Time {
	return time.Date(y, m, d, hour, minute, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

// testClock is a settable clock shared by the services under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// ticking returns strictly increasing timestamps so creation order is observable.
func ticking(start time.Time) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

type fixture struct {
	mem         *memory.Store
	store       repository.Store
	mat         *occurrence.Materializer
	clock       *testClock
	schedule    ScheduleService
	commitments CommitmentService
	sessions    SessionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := memory.NewStore(memory.WithClock(ticking(date(2024, time.December, 1))))
	store := mem.Repositories()
	mat := occurrence.NewMaterializer(time.UTC)
	views := cache.NewMemoryViewCache()
	clock := &testClock{now: date(2025, time.January, 1)}

	mem.AddPerson(domain.Person{ID: "trainer-1", Name: "Ana", Role: domain.RoleTrainer})
	mem.AddPerson(domain.Person{ID: "s1", Name: "Bruno", Role: domain.RoleStudent})
	mem.AddPerson(domain.Person{ID: "s2", Name: "Carla", Role: domain.RoleStudent})
	mem.AddPerson(domain.Person{ID: "s3", Name: "Diogo", Role: domain.RoleStudent})
	mem.AddExercise(domain.Exercise{ID: "squat", Name: "Back squat", MuscleGroup: "legs"})

	return &fixture{
		mem:         mem,
		store:       store,
		mat:         mat,
		clock:       clock,
		schedule:    NewScheduleService(store, views, logger),
		commitments: NewCommitmentService(store, views, logger),
		sessions:    NewSessionService(store, mat, views, logger, clock.Now),
	}
}

// mondayClass defines the Monday 09:00 class used throughout the tests.
func (f *fixture) mondayClass(t *testing.T, from time.Time) *domain.Series {
	t.Helper()
	s, err := f.schedule.DefineSeries(context.Background(), DefineSeriesInput{
		TrainerID:       "trainer-1",
		Weekday:         time.Monday,
		StartTime:       domain.Clock(9 * 60),
		DurationMinutes: 60,
		Name:            "Strength",
		Room:            ptr("Hall A"),
		MaxParticipants: ptr(10),
		EffectiveFrom:   from,
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) commit(t *testing.T, studentID, seriesID string, status domain.CommitmentStatus, from time.Time) {
	t.Helper()
	_, err := f.commitments.SetCommitment(context.Background(), SetCommitmentInput{
		StudentID:     studentID,
		SeriesID:      seriesID,
		Status:        status,
		EffectiveFrom: from,
	})
	require.NoError(t, err)
}

// interleavingTx runs during once inside the next read snapshot, before the
// snapshot's reads start, so commits made there must stay invisible to them.
type interleavingTx struct {
	repository.TxManager
	during    func()
	snapshots int
}

func (tx *interleavingTx) ReadSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.TxManager.ReadSnapshot(ctx, func(ctx context.Context) error {
		tx.snapshots++
		if during := tx.during; during != nil {
			tx.during = nil
			during()
		}
		return fn(ctx)
	})
}

// interleaved returns a copy of the fixture's store whose snapshots run during.
func (f *fixture) interleaved(during func()) (repository.Store, *interleavingTx) {
	tx := &interleavingTx{TxManager: f.store.Tx, during: during}
	store := f.store
	store.Tx = tx
	return store, tx
}
