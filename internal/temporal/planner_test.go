package temporal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/trainer-schedule/internal/domain"
)

func TestPlanInsert_Empty(t *testing.T) {
	plan, err := PlanInsert([]window(nil), day(6), false)
	require.NoError(t, err)
	assert.False(t, plan.Closes())
	assert.Nil(t, plan.To)
}

func TestPlanInsert_ClosesCurrent(t *testing.T) {
	timeline := []window{
		{from: day(1), to: ptr(day(3))},
		{from: day(3)},
	}
	plan, err := PlanInsert(timeline, day(10), false)
	require.NoError(t, err)
	assert.Equal(t, 1, plan.Close)
	assert.Equal(t, day(10), plan.From)
	assert.Nil(t, plan.To)
}

func TestPlanInsert_RejectsEarlierDate(t *testing.T) {
	timeline := []window{{from: day(6)}}
	_, err := PlanInsert(timeline, day(5), false)
	assert.ErrorIs(t, err, domain.ErrInvalidEffectiveDate)
}

func TestPlanInsert_SameInstantSupersedes(t *testing.T) {
	timeline := []window{{from: day(6)}}
	plan, err := PlanInsert(timeline, day(6), false)
	require.NoError(t, err)
	assert.Equal(t, 0, plan.Close, "record starting at the same instant is closed to zero length")
}

func TestPlanInsert_RetroactiveSplice(t *testing.T) {
	timeline := []window{
		{from: day(1), to: ptr(day(10))},
		{from: day(10)},
	}
	plan, err := PlanInsert(timeline, day(5), true)
	require.NoError(t, err)
	assert.Equal(t, 0, plan.Close)
	require.NotNil(t, plan.To)
	assert.Equal(t, day(10), *plan.To, "new record inherits the closed record's end")
}

func TestPlanInsert_RetroactiveIntoGap(t *testing.T) {
	timeline := []window{
		{from: day(1), to: ptr(day(3))},
		{from: day(10)},
	}
	plan, err := PlanInsert(timeline, day(5), true)
	require.NoError(t, err)
	assert.False(t, plan.Closes())
	require.NotNil(t, plan.To)
	assert.Equal(t, day(10), *plan.To)
}

func TestPlanInsert_RetroactiveBeforeEverything(t *testing.T) {
	timeline := []window{{from: day(10)}}
	plan, err := PlanInsert(timeline, day(2), true)
	require.NoError(t, err)
	assert.False(t, plan.Closes())
	require.NotNil(t, plan.To)
	assert.Equal(t, day(10), *plan.To)
}

func TestPlanInsert_OverlappingTimeline(t *testing.T) {
	timeline := []window{{from: day(1)}, {from: day(2)}}
	_, err := PlanInsert(timeline, day(5), false)
	assert.ErrorIs(t, err, domain.ErrOverlappingVersions)
}
