package service

import (
	"alcyxob/trainer-schedule/internal/domain"
	"alcyxob/trainer-schedule/internal/repository"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefineSeries_NewVersionClosesPrevious(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.mondayClass(t, date(2025, time.January, 1))
	assert.Equal(t, first.ID, first.SeriesID)

	second, err := f.schedule.DefineSeries(ctx, DefineSeriesInput{
		TrainerID:       "trainer-1",
		Weekday:         time.Monday,
		StartTime:       domain.Clock(10 * 60),
		DurationMinutes: 45,
		Name:            "Strength",
		EffectiveFrom:   date(2025, time.February, 3),
	})
	require.NoError(t, err)
	assert.Equal(t, first.SeriesID, second.SeriesID, "a superseding version keeps the lineage")
	assert.Nil(t, second.EffectiveTo)

	history, err := f.schedule.History(ctx, "trainer-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotNil(t, history[0].EffectiveTo)
	assert.True(t, history[0].EffectiveTo.Equal(date(2025, time.February, 3)))

	monday := time.Monday
	got, err := f.schedule.ScheduleAsOf(ctx, "trainer-1", &monday, date(2025, time.January, 20))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, first.ID, got[0].ID)

	got, err = f.schedule.ScheduleAsOf(ctx, "trainer-1", nil, date(2025, time.February, 10))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, second.ID, got[0].ID)
}

func TestDefineSeries_BackdatedWithoutRetroactiveIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mondayClass(t, date(2025, time.February, 3))

	_, err := f.schedule.DefineSeries(ctx, DefineSeriesInput{
		TrainerID:       "trainer-1",
		Weekday:         time.Monday,
		StartTime:       domain.Clock(8 * 60),
		DurationMinutes: 60,
		Name:            "Early",
		EffectiveFrom:   date(2025, time.January, 15),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidEffectiveDate)
}

func TestDefineSeries_RetroactiveSplice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.mondayClass(t, date(2025, time.January, 1))
	f.mondayClass(t, date(2025, time.February, 3))

	spliced, err := f.schedule.DefineSeries(ctx, DefineSeriesInput{
		TrainerID:       "trainer-1",
		Weekday:         time.Monday,
		StartTime:       domain.Clock(7 * 60),
		DurationMinutes: 60,
		Name:            "Early strength",
		EffectiveFrom:   date(2025, time.January, 15),
		Retroactive:     true,
	})
	require.NoError(t, err)
	require.NotNil(t, spliced.EffectiveTo)
	assert.True(t, spliced.EffectiveTo.Equal(date(2025, time.February, 3)))
	assert.Equal(t, first.SeriesID, spliced.SeriesID)

	got, err := f.schedule.ScheduleAsOf(ctx, "trainer-1", nil, date(2025, time.January, 20))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, spliced.ID, got[0].ID)

	got, err = f.schedule.ScheduleAsOf(ctx, "trainer-1", nil, date(2025, time.January, 10))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, first.ID, got[0].ID)
}

func TestDefineSeries_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.schedule.DefineSeries(context.Background(), DefineSeriesInput{
		TrainerID:       "trainer-1",
		Weekday:         time.Monday,
		StartTime:       domain.Clock(23 * 60),
		DurationMinutes: 120,
		Name:            "Late",
		EffectiveFrom:   date(2025, time.January, 1),
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSplitWeek_ClosesEveryWeekdayAndKeepsLineage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	monday := f.mondayClass(t, date(2025, time.January, 1))
	_, err := f.schedule.DefineSeries(ctx, DefineSeriesInput{
		TrainerID: "trainer-1", Weekday: time.Tuesday, StartTime: domain.Clock(18 * 60),
		DurationMinutes: 60, Name: "Mobility", EffectiveFrom: date(2025, time.January, 1),
	})
	require.NoError(t, err)

	opened, err := f.schedule.SplitWeek(ctx, "trainer-1", date(2025, time.March, 3), []domain.WeekdayConfig{
		{Weekday: time.Monday, Active: true, StartTime: domain.Clock(10 * 60), EndTime: domain.Clock(11 * 60)},
		{Weekday: time.Tuesday, Active: false},
		{Weekday: time.Wednesday, Active: true, StartTime: domain.Clock(12 * 60), EndTime: domain.Clock(13 * 60), Name: ptr("Conditioning")},
	})
	require.NoError(t, err)
	require.Len(t, opened, 2)

	assert.Equal(t, time.Monday, opened[0].Weekday)
	assert.Equal(t, monday.SeriesID, opened[0].SeriesID)
	assert.Equal(t, "Strength", opened[0].Name, "unset fields carry over from the closed version")
	assert.Equal(t, 60, opened[0].DurationMinutes)
	assert.Equal(t, "Conditioning", opened[1].Name)
	assert.Equal(t, opened[1].ID, opened[1].SeriesID)

	got, err := f.schedule.ScheduleAsOf(ctx, "trainer-1", nil, date(2025, time.March, 10))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, time.Monday, got[0].Weekday)
	assert.Equal(t, time.Wednesday, got[1].Weekday)
}

func TestSplitWeek_RejectsDuplicateWeekday(t *testing.T) {
	f := newFixture(t)
	_, err := f.schedule.SplitWeek(context.Background(), "trainer-1", date(2025, time.March, 3), []domain.WeekdayConfig{
		{Weekday: time.Monday, Active: true, StartTime: domain.Clock(600), EndTime: domain.Clock(660), Name: ptr("A")},
		{Weekday: time.Monday, Active: true, StartTime: domain.Clock(700), EndTime: domain.Clock(760), Name: ptr("B")},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

// failingSeries fails every Create for one weekday.
type failingSeries struct {
	repository.SeriesRepository
	weekday time.Weekday
}

func (r failingSeries) Create(ctx context.Context, s *domain.Series) error {
	if s.Weekday == r.weekday {
		return errors.New("disk full")
	}
	return r.SeriesRepository.Create(ctx, s)
}

func TestSplitWeek_IsAtomic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mondayClass(t, date(2025, time.January, 1))
	_, err := f.schedule.DefineSeries(ctx, DefineSeriesInput{
		TrainerID: "trainer-1", Weekday: time.Tuesday, StartTime: domain.Clock(18 * 60),
		DurationMinutes: 60, Name: "Mobility", EffectiveFrom: date(2025, time.January, 1),
	})
	require.NoError(t, err)
	before, err := f.schedule.History(ctx, "trainer-1")
	require.NoError(t, err)

	broken := f.store
	broken.Series = failingSeries{SeriesRepository: f.store.Series, weekday: time.Tuesday}
	svc := NewScheduleService(broken, nil, nil)

	_, err = svc.SplitWeek(ctx, "trainer-1", date(2025, time.March, 3), []domain.WeekdayConfig{
		{Weekday: time.Monday, Active: true, StartTime: domain.Clock(600), EndTime: domain.Clock(660)},
		{Weekday: time.Tuesday, Active: true, StartTime: domain.Clock(600), EndTime: domain.Clock(660)},
	})
	require.Error(t, err)

	after, err := f.schedule.History(ctx, "trainer-1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSetSeriesActive_ReactivationMustNotOverlap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	original := f.mondayClass(t, date(2025, time.January, 1))

	deactivated, err := f.schedule.SetSeriesActive(ctx, original.ID, false)
	require.NoError(t, err)
	assert.False(t, deactivated.Active)

	got, err := f.schedule.ScheduleAsOf(ctx, "trainer-1", nil, date(2025, time.January, 6))
	require.NoError(t, err)
	assert.Empty(t, got)

	replacement := f.mondayClass(t, date(2025, time.January, 1))
	assert.NotEqual(t, original.SeriesID, replacement.SeriesID)

	_, err = f.schedule.SetSeriesActive(ctx, original.ID, true)
	assert.ErrorIs(t, err, domain.ErrOverlappingVersions)

	_, err = f.schedule.SetSeriesActive(ctx, "missing", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
