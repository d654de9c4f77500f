package mongo

import (
	"alcyxob/trainer-schedule/internal/config"
	"alcyxob/trainer-schedule/internal/domain"
	"alcyxob/trainer-schedule/internal/repository"
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to TEST_MONGO_URI (a replica set) and uses a throwaway database.
func newTestStore(t *testing.T) repository.Store {
	t.Helper()
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	client, err := ConnectDB(context.Background(), config.DatabaseConfig{URI: uri})
	require.NoError(t, err)

	dbName := "trainer_schedule_test_" + uuid.NewString()[:8]
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := NewStore(context.Background(), client, dbName, logger)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Database(dbName).Drop(context.Background())
		_ = store.Close(context.Background())
	})
	return store
}

func TestSeriesCloseWindowCompareAndSwap(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	from := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	s := &domain.Series{
		TrainerID:       "trainer-1",
		Weekday:         time.Monday,
		StartTime:       domain.Clock(9 * 60),
		DurationMinutes: 60,
		Name:            "Strength",
		EffectiveFrom:   from,
		Active:          true,
	}
	require.NoError(t, store.Series.Create(ctx, s))
	assert.Equal(t, s.ID, s.SeriesID)

	to := from.AddDate(0, 0, 14)
	require.NoError(t, store.Series.CloseWindow(ctx, s.ID, nil, to))

	err := store.Series.CloseWindow(ctx, s.ID, nil, to.AddDate(0, 0, 7))
	assert.ErrorIs(t, err, repository.ErrConcurrentModification)

	got, err := store.Series.GetByID(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EffectiveTo)
	assert.True(t, got.EffectiveTo.Equal(to))
}

func TestSeriesRejectsOverlappingActiveVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	from := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	base := domain.Series{
		TrainerID:       "trainer-1",
		Weekday:         time.Monday,
		StartTime:       domain.Clock(9 * 60),
		DurationMinutes: 60,
		Name:            "Strength",
		EffectiveFrom:   from,
		Active:          true,
	}
	first := base
	require.NoError(t, store.Series.Create(ctx, &first))

	second := base
	second.EffectiveFrom = from.AddDate(0, 0, 7)
	assert.ErrorIs(t, store.Series.Create(ctx, &second), repository.ErrConcurrentModification)
}

func TestInstanceDiffRoundTripAndRevision(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 1, 13, 9, 0, 0, 0, time.UTC)

	inst := &domain.Instance{
		SeriesID:       "series-1",
		TrainerID:      "trainer-1",
		ScheduledAt:    at,
		OccurrenceDate: "2025-01-13",
		Diff: domain.InstanceDiff{
			Room:            domain.Set("Hall B"),
			Notes:           domain.Null[string](),
			MaxParticipants: domain.Set(4),
		},
	}
	require.NoError(t, store.Instances.Create(ctx, inst))

	got, err := store.Instances.GetByOccurrence(ctx, "series-1", "2025-01-13")
	require.NoError(t, err)
	assert.Equal(t, []string{domain.FieldMaxParticipants, domain.FieldNotes, domain.FieldRoom}, got.Diff.Fields())
	assert.True(t, got.Diff.Notes.IsNull())
	room, _ := got.Diff.Room.Value()
	assert.Equal(t, "Hall B", room)

	stale := *got
	got.Cancelled = true
	require.NoError(t, store.Instances.Update(ctx, got))
	assert.Equal(t, int64(2), got.Revision)

	stale.Cancelled = false
	assert.ErrorIs(t, store.Instances.Update(ctx, &stale), repository.ErrConcurrentModification)

	// A later start on the same day is still the same occurrence.
	dup := &domain.Instance{SeriesID: "series-1", TrainerID: "trainer-1", ScheduledAt: at.Add(time.Hour), OccurrenceDate: "2025-01-13"}
	assert.ErrorIs(t, store.Instances.Create(ctx, dup), repository.ErrConcurrentModification)
}

func TestTransactionRollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Tx.WithTx(ctx, func(ctx context.Context) error {
		require.NoError(t, store.Tx.Lock(ctx, "commitment:s1:series-1"))
		c := &domain.Commitment{
			StudentID:     "s1",
			SeriesID:      "series-1",
			Status:        domain.StatusAttending,
			EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		require.NoError(t, store.Commitments.Create(ctx, c))
		return domain.NewError("test", domain.ErrValidation, "abort")
	})
	require.Error(t, err)

	timeline, err := store.Commitments.ListByKey(ctx, "s1", "series-1")
	require.NoError(t, err)
	assert.Empty(t, timeline)
}

func TestReadSnapshotPinsFirstRead(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	c := &domain.Commitment{
		StudentID:     "s1",
		SeriesID:      "series-1",
		Status:        domain.StatusAttending,
		EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Commitments.Create(ctx, c))

	err := store.Tx.ReadSnapshot(ctx, func(ctx context.Context) error {
		before, err := store.Commitments.ListByKey(ctx, "s1", "series-1")
		require.NoError(t, err)
		require.Len(t, before, 1)

		require.NoError(t, store.Commitments.CloseWindow(context.Background(), c.ID, nil, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)))

		after, err := store.Commitments.ListByKey(ctx, "s1", "series-1")
		require.NoError(t, err)
		require.Len(t, after, 1)
		assert.Nil(t, after[0].EffectiveTo, "the snapshot predates the close")
		return nil
	})
	require.NoError(t, err)
}

func TestDirectoryLookups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	people := store.People.(*mongoPersonRepository)
	require.NoError(t, people.Save(ctx, domain.Person{ID: "trainer-1", Name: "Ana", Role: domain.RoleTrainer}))
	p, err := store.People.GetByID(ctx, "trainer-1")
	require.NoError(t, err)
	assert.True(t, p.IsTrainer())

	exercises := store.Exercises.(*mongoExerciseRepository)
	require.NoError(t, exercises.Save(ctx, domain.Exercise{ID: "squat", Name: "Back squat"}))
	e, err := store.Exercises.GetByID(ctx, "squat")
	require.NoError(t, err)
	assert.Equal(t, "Back squat", e.Name)

	_, err = store.Exercises.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
