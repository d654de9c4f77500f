package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/trainer-schedule/internal/domain"
)

type window struct {
	name    string
	from    time.Time
	to      *time.Time
	created time.Time
}

func (w window) ValidFrom() time.Time { return w.from }
func (w window) ValidTo() *time.Time  { return w.to }
func (w window) Created() time.Time   { return w.created }

func day(d int) time.Time {
	return time.Date(2025, time.January, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestResolve(t *testing.T) {
	timeline := []window{
		{name: "a", from: day(1), to: ptr(day(6))},
		{name: "b", from: day(6)},
	}

	got, err := Resolve(timeline, day(5))
	require.NoError(t, err)
	assert.Equal(t, "a", got.name)

	got, err = Resolve(timeline, day(6))
	require.NoError(t, err)
	assert.Equal(t, "b", got.name, "effectiveTo is exclusive")

	_, err = Resolve(timeline, time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolve_Overlapping(t *testing.T) {
	timeline := []window{
		{name: "a", from: day(1)},
		{name: "b", from: day(3)},
	}
	_, err := Resolve(timeline, day(4))
	assert.ErrorIs(t, err, domain.ErrOverlappingVersions)
}

func TestResolve_ZeroLengthNeverMatches(t *testing.T) {
	timeline := []window{
		{name: "superseded", from: day(6), to: ptr(day(6))},
		{name: "current", from: day(6)},
	}
	got, err := Resolve(timeline, day(6))
	require.NoError(t, err)
	assert.Equal(t, "current", got.name)
}

func TestLatest(t *testing.T) {
	created := day(1)
	timeline := []window{
		{name: "old", from: day(1), created: created},
		{name: "tie-early", from: day(6), created: created},
		{name: "tie-late", from: day(6), created: created.Add(time.Minute)},
	}
	got, ok := Latest(timeline)
	require.True(t, ok)
	assert.Equal(t, "tie-late", got.name)

	_, ok = Latest([]window(nil))
	assert.False(t, ok)
}

func TestSort(t *testing.T) {
	timeline := []window{
		{name: "c", from: day(9)},
		{name: "a", from: day(1)},
		{name: "b", from: day(5)},
	}
	Sort(timeline)
	assert.Equal(t, "a", timeline[0].name)
	assert.Equal(t, "b", timeline[1].name)
	assert.Equal(t, "c", timeline[2].name)
}

func TestOverlaps(t *testing.T) {
	a := window{from: day(1), to: ptr(day(6))}
	assert.False(t, Overlaps(a, window{from: day(6)}), "adjacent windows do not overlap")
	assert.True(t, Overlaps(a, window{from: day(5)}))
	assert.False(t, Overlaps(a, window{from: day(3), to: ptr(day(3))}), "empty window")
	assert.True(t, Overlaps(window{from: day(1)}, window{from: day(20)}))
}
