package service

import (
	"alcyxob/trainer-schedule/internal/domain"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSessionView_UntouchedOccurrence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	series := f.mondayClass(t, date(2025, time.January, 1))
	f.commit(t, "s1", series.SeriesID, domain.StatusAttending, date(2025, time.January, 6))
	f.commit(t, "s2", series.SeriesID, domain.StatusNotAttending, date(2025, time.January, 6))

	view, err := f.sessions.BuildSessionView(ctx, f.mat.Ref(series.SeriesID, date(2025, time.January, 13)))
	require.NoError(t, err)

	assert.Empty(t, view.InstanceID)
	assert.Equal(t, series.SeriesID+"@2025-01-13", view.Ref)
	assert.True(t, view.StartsAt.Equal(at(2025, time.January, 13, 9, 0)))
	assert.True(t, view.EndsAt.Equal(at(2025, time.January, 13, 10, 0)))
	assert.Equal(t, "Ana", view.TrainerName)
	require.Len(t, view.Participants, 1)
	assert.Equal(t, "Bruno", view.Participants[0].StudentName)
	assert.Equal(t, 1, view.AttendingCount)
	require.NotNil(t, view.CapacityRemaining)
	assert.Equal(t, 9, *view.CapacityRemaining)

	view, err = f.sessions.BuildSessionView(ctx, f.mat.Ref(series.SeriesID, date(2025, time.January, 6)))
	require.NoError(t, err)
	assert.Len(t, view.Participants, 1, "a commitment from midnight covers that day's class")

	_, err = f.sessions.BuildSessionView(ctx, f.mat.Ref(series.SeriesID, date(2025, time.January, 14)))
	assert.ErrorIs(t, err, domain.ErrNotFound, "no Monday class on a Tuesday")
}

func TestPatchInstance_ThreeStateDiff(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	series := f.mondayClass(t, date(2025, time.January, 1))
	ref := f.mat.Ref(series.SeriesID, date(2025, time.January, 13))

	var diff domain.InstanceDiff
	require.NoError(t, json.Unmarshal([]byte(`{"room": null, "maxParticipants": 12}`), &diff))

	view, err := f.sessions.PatchInstance(ctx, ref, diff, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, view.InstanceID)
	assert.True(t, view.Override)
	assert.Equal(t, []string{domain.FieldMaxParticipants, domain.FieldRoom}, view.OverriddenFields)
	assert.Nil(t, view.Room, "explicit null clears the inherited room")
	require.NotNil(t, view.MaxParticipants)
	assert.Equal(t, 12, *view.MaxParticipants)
	require.NotNil(t, view.Label)
	assert.Equal(t, "Strength", *view.Label, "absent fields inherit")

	// The reference now resolves to the persisted instance.
	byRef, err := f.sessions.BuildSessionView(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, view.InstanceID, byRef.InstanceID)

	view, err = f.sessions.PatchInstance(ctx, view.InstanceID, domain.InstanceDiff{}, []string{domain.FieldMaxParticipants})
	require.NoError(t, err)
	require.NotNil(t, view.MaxParticipants)
	assert.Equal(t, 10, *view.MaxParticipants)
	assert.Nil(t, view.Room)
	assert.Equal(t, []string{domain.FieldRoom}, view.OverriddenFields)
}

func TestPatchInstance_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	series := f.mondayClass(t, date(2025, time.January, 1))
	ref := f.mat.Ref(series.SeriesID, date(2025, time.January, 13))

	_, err := f.sessions.PatchInstance(ctx, ref, domain.InstanceDiff{StartsAt: domain.Null[time.Time]()}, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.sessions.PatchInstance(ctx, ref, domain.InstanceDiff{EndsAt: domain.Set(at(2025, time.January, 13, 8, 0))}, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.sessions.PatchInstance(ctx, ref, domain.InstanceDiff{}, []string{"colour"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCancelRestore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	series := f.mondayClass(t, date(2025, time.January, 1))
	f.commit(t, "s1", series.SeriesID, domain.StatusAttending, date(2025, time.January, 6))
	f.clock.Set(at(2025, time.January, 13, 9, 30))

	touched, err := f.sessions.SetPresence(ctx, f.mat.Ref(series.SeriesID, date(2025, time.January, 13)), "s1", PresenceInput{Present: true})
	require.NoError(t, err)
	id := touched.InstanceID

	before, err := f.sessions.BuildSessionView(ctx, id)
	require.NoError(t, err)

	cancelled, err := f.sessions.CancelInstance(ctx, id)
	require.NoError(t, err)
	assert.True(t, cancelled.Cancelled)
	require.Len(t, cancelled.Participants, 1)
	assert.True(t, cancelled.Participants[0].Present, "records survive cancellation")

	restored, err := f.sessions.RestoreInstance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, restored)
}

func TestSetPresence_Rules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	series := f.mondayClass(t, date(2025, time.January, 1))
	ref := f.mat.Ref(series.SeriesID, date(2025, time.January, 13))

	f.clock.Set(at(2025, time.January, 13, 8, 0))
	_, err := f.sessions.SetPresence(ctx, ref, "s1", PresenceInput{Present: true})
	assert.ErrorIs(t, err, domain.ErrValidation)

	view, err := f.sessions.SetPresence(ctx, ref, "s1", PresenceInput{Present: false, Notes: ptr("called in sick")})
	require.NoError(t, err)
	require.Len(t, view.Participants, 1)
	assert.Equal(t, domain.StatusNotAttending, view.Participants[0].Status)
	assert.Equal(t, "called in sick", view.Participants[0].Notes)

	_, err = f.sessions.CancelInstance(ctx, view.InstanceID)
	require.NoError(t, err)
	f.clock.Set(at(2025, time.January, 13, 9, 30))
	_, err = f.sessions.SetPresence(ctx, view.InstanceID, "s1", PresenceInput{Present: true})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBuildSessionView_CapacityIsClamped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	series, err := f.schedule.DefineSeries(ctx, DefineSeriesInput{
		TrainerID: "trainer-1", Weekday: time.Monday, StartTime: domain.Clock(9 * 60),
		DurationMinutes: 60, Name: "Small group", MaxParticipants: ptr(2), EffectiveFrom: date(2025, time.January, 1),
	})
	require.NoError(t, err)
	f.commit(t, "s1", series.SeriesID, domain.StatusAttending, date(2025, time.January, 6))
	f.commit(t, "s2", series.SeriesID, domain.StatusAttending, date(2025, time.January, 6))
	f.clock.Set(at(2025, time.January, 13, 9, 5))

	view, err := f.sessions.SetPresence(ctx, f.mat.Ref(series.SeriesID, date(2025, time.January, 13)), "s3", PresenceInput{Present: true})
	require.NoError(t, err)

	assert.Equal(t, 2, view.AttendingCount)
	assert.Equal(t, 1, view.PresentCount)
	require.NotNil(t, view.CapacityRemaining)
	assert.Equal(t, 0, *view.CapacityRemaining)
	require.Len(t, view.Participants, 3)
	assert.Equal(t, domain.StatusNotAttending, view.Participants[2].Status)
}

func TestRecordExercises(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	series := f.mondayClass(t, date(2025, time.January, 1))
	f.commit(t, "s1", series.SeriesID, domain.StatusAttending, date(2025, time.January, 6))
	ref := f.mat.Ref(series.SeriesID, date(2025, time.January, 13))

	view, err := f.sessions.RecordExercises(ctx, ref, "s1", []domain.ExerciseEntry{
		{ExerciseID: "squat", Sets: ptr(5), Reps: ptr("5"), Weight: ptr(80.0), Done: true},
	})
	require.NoError(t, err)
	require.Len(t, view.Participants, 1)
	require.Len(t, view.Participants[0].Exercises, 1)
	assert.Equal(t, "Back squat", view.Participants[0].Exercises[0].Name)

	_, err = f.sessions.RecordExercises(ctx, ref, "s1", []domain.ExerciseEntry{{ExerciseID: "deadlift"}})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBuildSessionView_SeriesNoLongerResolves(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	series := f.mondayClass(t, date(2025, time.January, 1))

	view, err := f.sessions.CancelInstance(ctx, f.mat.Ref(series.SeriesID, date(2025, time.January, 13)))
	require.NoError(t, err)

	_, err = f.schedule.SetSeriesActive(ctx, series.ID, false)
	require.NoError(t, err)

	_, err = f.sessions.BuildSessionView(ctx, view.InstanceID)
	assert.ErrorIs(t, err, domain.ErrSeriesNotFound)
}

func TestListSessions_MergesInstancesAndOneOffs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	series := f.mondayClass(t, date(2025, time.January, 1))

	_, err := f.sessions.CancelInstance(ctx, f.mat.Ref(series.SeriesID, date(2025, time.January, 20)))
	require.NoError(t, err)
	oneOff, err := f.sessions.CreateOneOff(ctx, OneOffInput{
		TrainerID: "trainer-1",
		StartsAt:  at(2025, time.January, 15, 17, 0),
		EndsAt:    at(2025, time.January, 15, 18, 0),
		Label:     ptr("Open gym"),
	})
	require.NoError(t, err)
	assert.Equal(t, oneOff.InstanceID, oneOff.Ref)

	list, err := f.sessions.ListSessions(ctx, "trainer-1", date(2025, time.January, 1), date(2025, time.February, 1))
	require.NoError(t, err)
	require.Len(t, list, 5)

	assert.Equal(t, series.SeriesID+"@2025-01-06", list[0].Ref)
	assert.Equal(t, oneOff.InstanceID, list[2].InstanceID)
	assert.True(t, list[3].Cancelled)
	assert.NotEmpty(t, list[3].InstanceID)
	assert.True(t, list[4].StartsAt.Equal(at(2025, time.January, 27, 9, 0)))

	_, err = f.sessions.ListSessions(ctx, "trainer-1", date(2025, time.January, 1), date(2025, time.June, 1))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCancelledOccurrenceSurvivesStartTimeChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	series := f.mondayClass(t, date(2025, time.January, 1))
	ref := f.mat.Ref(series.SeriesID, date(2025, time.January, 13))

	cancelled, err := f.sessions.CancelInstance(ctx, ref)
	require.NoError(t, err)

	moved, err := f.schedule.DefineSeries(ctx, DefineSeriesInput{
		TrainerID:       "trainer-1",
		Weekday:         time.Monday,
		StartTime:       domain.Clock(10 * 60),
		DurationMinutes: 60,
		Name:            "Strength",
		EffectiveFrom:   date(2025, time.January, 8),
	})
	require.NoError(t, err)
	require.Equal(t, series.SeriesID, moved.SeriesID)

	byRef, err := f.sessions.BuildSessionView(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, cancelled.InstanceID, byRef.InstanceID)
	assert.True(t, byRef.Cancelled)
	assert.True(t, byRef.StartsAt.Equal(at(2025, time.January, 13, 10, 0)))
	assert.Equal(t, moved.ID, byRef.SeriesVersionID)

	byID, err := f.sessions.BuildSessionView(ctx, cancelled.InstanceID)
	require.NoError(t, err)
	assert.Equal(t, byRef.Occurrence, byID.Occurrence)

	list, err := f.sessions.ListSessions(ctx, "trainer-1", date(2025, time.January, 13), date(2025, time.January, 14))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, cancelled.InstanceID, list[0].InstanceID)
	assert.True(t, list[0].Cancelled)

	// Touching the reference again reuses the instance and follows the new start.
	restored, err := f.sessions.RestoreInstance(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, cancelled.InstanceID, restored.InstanceID)
	assert.False(t, restored.Cancelled)

	inst, err := f.store.Instances.GetByID(ctx, cancelled.InstanceID)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-13", inst.OccurrenceDate)
	assert.True(t, inst.ScheduledAt.Equal(at(2025, time.January, 13, 10, 0)))
	assert.Equal(t, moved.ID, inst.SeriesVersionID)

	all, err := f.store.Instances.ListBySeries(ctx, series.SeriesID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestListSessions_InstanceAcrossRangeBoundary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	series := f.mondayClass(t, date(2025, time.January, 1))
	ref := f.mat.Ref(series.SeriesID, date(2025, time.January, 13))

	cancelled, err := f.sessions.CancelInstance(ctx, ref)
	require.NoError(t, err)

	_, err = f.schedule.DefineSeries(ctx, DefineSeriesInput{
		TrainerID:       "trainer-1",
		Weekday:         time.Monday,
		StartTime:       domain.Clock(18 * 60),
		DurationMinutes: 60,
		Name:            "Strength",
		EffectiveFrom:   date(2025, time.January, 8),
	})
	require.NoError(t, err)

	// The stored 09:00 start is outside the window, the current 18:00 one is not.
	list, err := f.sessions.ListSessions(ctx, "trainer-1", at(2025, time.January, 13, 12, 0), date(2025, time.January, 14))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, cancelled.InstanceID, list[0].InstanceID)
	assert.True(t, list[0].Cancelled)

	// And the reverse: the stored start is inside, the current one is not.
	list, err = f.sessions.ListSessions(ctx, "trainer-1", date(2025, time.January, 13), at(2025, time.January, 13, 12, 0))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBuildSessionView_ReadsOneSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	series := f.mondayClass(t, date(2025, time.January, 1))
	f.commit(t, "s1", series.SeriesID, domain.StatusAttending, date(2025, time.January, 6))
	ref := f.mat.Ref(series.SeriesID, date(2025, time.January, 13))

	store, tx := f.interleaved(func() {
		f.commit(t, "s2", series.SeriesID, domain.StatusAttending, date(2025, time.January, 6))
	})
	sessions := NewSessionService(store, f.mat, nil, nil, f.clock.Now)

	view, err := sessions.BuildSessionView(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, 1, tx.snapshots)
	require.Len(t, view.Participants, 1, "the commitment landed after the snapshot was taken")

	view, err = sessions.BuildSessionView(ctx, ref)
	require.NoError(t, err)
	assert.Len(t, view.Participants, 2)
}

func TestCreateOneOff_ParticipantsAreEnrolled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	view, err := f.sessions.CreateOneOff(ctx, OneOffInput{
		TrainerID:       "trainer-1",
		StartsAt:        at(2025, time.January, 15, 17, 0),
		EndsAt:          at(2025, time.January, 15, 18, 0),
		MaxParticipants: ptr(4),
	})
	require.NoError(t, err)

	view, err = f.sessions.RecordExercises(ctx, view.InstanceID, "s2", nil)
	require.NoError(t, err)
	require.Len(t, view.Participants, 1)
	assert.Equal(t, domain.StatusAttending, view.Participants[0].Status)
	require.NotNil(t, view.CapacityRemaining)
	assert.Equal(t, 3, *view.CapacityRemaining)

	_, err = f.sessions.CreateOneOff(ctx, OneOffInput{
		TrainerID: "trainer-1",
		StartsAt:  at(2025, time.January, 15, 18, 0),
		EndsAt:    at(2025, time.January, 15, 17, 0),
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
