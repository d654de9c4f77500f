package occurrence

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/trainer-schedule/internal/domain"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func mondaySeries() domain.Series {
	return domain.Series{
		ID:              "v1",
		SeriesID:        "SER1",
		TrainerID:       "T1",
		Weekday:         time.Monday,
		StartTime:       domain.Clock(9 * 60),
		DurationMinutes: 60,
		Name:            "Morning strength",
		Room:            strPtr("Studio A"),
		MaxParticipants: intPtr(10),
		EffectiveFrom:   time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		Active:          true,
	}
}

func TestMaterialize_Defaults(t *testing.T) {
	m := NewMaterializer(time.UTC)
	s := mondaySeries()
	scheduled := m.Project(s, time.Date(2025, time.January, 13, 0, 0, 0, 0, time.UTC))

	occ := m.Materialize(&s, nil, scheduled)
	assert.Equal(t, time.Date(2025, time.January, 13, 9, 0, 0, 0, time.UTC), occ.StartsAt)
	assert.Equal(t, time.Date(2025, time.January, 13, 10, 0, 0, 0, time.UTC), occ.EndsAt)
	assert.Equal(t, "SER1@2025-01-13", occ.Ref)
	assert.False(t, occ.Override)
	assert.Equal(t, "Studio A", *occ.Room)
	assert.Equal(t, 10, *occ.MaxParticipants)
}

func TestMaterialize_DiffRoundTrip(t *testing.T) {
	m := NewMaterializer(time.UTC)
	s := mondaySeries()
	scheduled := m.Project(s, time.Date(2025, time.January, 13, 0, 0, 0, 0, time.UTC))

	var diff domain.InstanceDiff
	require.NoError(t, json.Unmarshal([]byte(`{"room": null, "maxParticipants": 12}`), &diff))

	occ := m.Materialize(&s, &domain.Instance{ID: "i1", SeriesID: "SER1", Diff: diff}, scheduled)
	assert.Nil(t, occ.Room, "explicit null clears the inherited room")
	require.NotNil(t, occ.MaxParticipants)
	assert.Equal(t, 12, *occ.MaxParticipants)
	assert.True(t, occ.Override)
	assert.Equal(t, []string{domain.FieldMaxParticipants, domain.FieldRoom}, occ.OverriddenFields)

	encoded, err := json.Marshal(diff)
	require.NoError(t, err)
	assert.JSONEq(t, `{"room": null, "maxParticipants": 12}`, string(encoded))

	empty := m.Materialize(&s, &domain.Instance{ID: "i1", SeriesID: "SER1"}, scheduled)
	assert.Equal(t, m.Materialize(&s, nil, scheduled).SessionFields, empty.SessionFields)
	assert.False(t, empty.Override)
}

func TestMaterialize_OneOff(t *testing.T) {
	m := NewMaterializer(time.UTC)
	start := time.Date(2025, time.February, 2, 15, 0, 0, 0, time.UTC)
	inst := &domain.Instance{
		ID:          "one",
		TrainerID:   "T1",
		ScheduledAt: start,
		Base: &domain.SessionFields{
			TrainerID: "T1",
			StartsAt:  start,
			EndsAt:    start.Add(time.Hour),
			Label:     strPtr("Open gym"),
		},
		Diff: domain.InstanceDiff{Label: domain.Set("Open gym (extended)")},
	}
	occ := m.Materialize(nil, inst, start)
	assert.Equal(t, "one", occ.Ref)
	assert.Equal(t, "Open gym (extended)", *occ.Label)
	assert.Empty(t, occ.SeriesID)
}

func TestLocate_SplitDay(t *testing.T) {
	m := NewMaterializer(time.UTC)
	split := time.Date(2025, time.January, 13, 0, 0, 0, 0, time.UTC)
	old := mondaySeries()
	old.EffectiveTo = &split
	next := mondaySeries()
	next.ID = "v2"
	next.StartTime = domain.Clock(18 * 60)
	next.EffectiveFrom = split
	next.CreatedAt = split

	versions := []domain.Series{old, next}

	got, at, err := m.Locate(versions, time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "v1", got.ID)
	assert.Equal(t, 9, at.Hour())

	got, at, err = m.Locate(versions, split)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.ID)
	assert.Equal(t, 18, at.Hour())

	_, _, err = m.Locate(versions, time.Date(2025, time.January, 14, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEnumerate(t *testing.T) {
	m := NewMaterializer(time.UTC)
	s := mondaySeries()
	end := time.Date(2025, time.January, 20, 0, 0, 0, 0, time.UTC)
	s.EffectiveTo = &end

	slots := m.Enumerate([]domain.Series{s},
		time.Date(2024, time.December, 25, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC))

	require.Len(t, slots, 2)
	assert.Equal(t, time.Date(2025, time.January, 6, 9, 0, 0, 0, time.UTC), slots[0].ScheduledAt)
	assert.Equal(t, time.Date(2025, time.January, 13, 9, 0, 0, 0, time.UTC), slots[1].ScheduledAt)
}

func TestEnumerate_OneSlotPerLineageAndDate(t *testing.T) {
	m := NewMaterializer(time.UTC)
	split := time.Date(2025, time.January, 13, 12, 0, 0, 0, time.UTC)
	old := mondaySeries()
	old.EffectiveTo = &split
	next := mondaySeries()
	next.ID = "v2"
	next.StartTime = domain.Clock(18 * 60)
	next.EffectiveFrom = split
	next.CreatedAt = split

	// Both versions cover their own projection on the split day.
	versions := []domain.Series{old, next}
	slots := m.Enumerate(versions,
		time.Date(2025, time.January, 13, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.January, 14, 0, 0, 0, 0, time.UTC))

	require.Len(t, slots, 1)
	assert.Equal(t, "v2", slots[0].Series.ID)
	assert.Equal(t, time.Date(2025, time.January, 13, 18, 0, 0, 0, time.UTC), slots[0].ScheduledAt)

	located, at, err := m.Locate(versions, slots[0].ScheduledAt)
	require.NoError(t, err)
	assert.Equal(t, slots[0].Series.ID, located.ID)
	assert.True(t, at.Equal(slots[0].ScheduledAt))
}

func TestEnumerate_SkipsDateWhosePickFallsOutsideRange(t *testing.T) {
	m := NewMaterializer(time.UTC)
	split := time.Date(2025, time.January, 13, 12, 0, 0, 0, time.UTC)
	old := mondaySeries()
	old.EffectiveTo = &split
	next := mondaySeries()
	next.ID = "v2"
	next.StartTime = domain.Clock(18 * 60)
	next.EffectiveFrom = split

	// The window holds the old 09:00 projection but the date belongs to v2 at 18:00.
	slots := m.Enumerate([]domain.Series{old, next},
		time.Date(2025, time.January, 13, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.January, 13, 12, 0, 0, 0, time.UTC))
	assert.Empty(t, slots)
}

func TestDateKeyAndOccurrenceDate(t *testing.T) {
	loc := time.FixedZone("CET", 60*60)
	m := NewMaterializer(loc)

	lateUTC := time.Date(2025, time.January, 12, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "2025-01-13", m.DateKey(lateUTC))

	inst := &domain.Instance{SeriesID: "SER1", ScheduledAt: lateUTC.Add(10 * time.Hour), OccurrenceDate: "2025-01-13"}
	assert.Equal(t, time.Date(2025, time.January, 13, 0, 0, 0, 0, loc), m.OccurrenceDate(inst))

	inst.OccurrenceDate = ""
	assert.Equal(t, time.Date(2025, time.January, 13, 0, 0, 0, 0, loc), m.OccurrenceDate(inst))
}

func TestParseRef(t *testing.T) {
	m := NewMaterializer(time.UTC)
	ref, err := m.ParseRef("SER1@2025-01-13")
	require.NoError(t, err)
	assert.Equal(t, "SER1", ref.SeriesID)
	assert.Equal(t, time.Date(2025, time.January, 13, 0, 0, 0, 0, time.UTC), ref.Date)

	assert.True(t, IsRef("SER1@2025-01-13"))
	assert.False(t, IsRef("65f0c0ffee"))

	_, err = m.ParseRef("SER1@13/01/2025")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
