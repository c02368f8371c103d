package presence

import (
	"testing"
	"time"

	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

func at(h, m, s int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second)
}

func ev(queue string, kind types.EventKind, ts time.Time) types.PresenceEvent {
	return types.PresenceEvent{AgentID: "agent-1", QueueID: queue, Timestamp: ts, Kind: kind}
}

func TestReconstructNoLeaveEvents(t *testing.T) {
	r := NewReconstructor(DefaultMaxGap)
	events := []types.PresenceEvent{
		ev("5100", types.KindJoin, at(8, 0, 0)),
		ev("5200", types.KindJoin, at(8, 0, 5)),
		ev("5100", types.KindJoin, at(9, 0, 0)),
	}

	s := r.Reconstruct("agent-1", events, at(12, 0, 0))

	assert.Equal(t, int64(0), s.TotalOffQueueSeconds)
	for queue, secs := range s.PerQueueSeconds {
		assert.Equal(t, int64(0), secs, "queue %s", queue)
	}
	assert.Empty(t, s.Intervals)
}

func TestReconstructSingleLeaveJoin(t *testing.T) {
	r := NewReconstructor(4 * time.Hour)
	events := []types.PresenceEvent{
		ev("5100", types.KindLeave, at(10, 0, 0)),
		ev("5100", types.KindJoin, at(10, 0, 30)),
	}

	s := r.Reconstruct("agent-1", events, at(12, 0, 0))

	assert.Equal(t, int64(30), s.TotalOffQueueSeconds)
	require.Len(t, s.Intervals, 1)
	require.NotNil(t, s.Intervals[0].RejoinTime)
	assert.Equal(t, at(10, 0, 30), *s.Intervals[0].RejoinTime)
	assert.False(t, s.Intervals[0].Excluded)
}

func TestReconstructOpenIntervalClosedAtNow(t *testing.T) {
	r := NewReconstructor(4 * time.Hour)
	events := []types.PresenceEvent{ev("5100", types.KindLeave, at(10, 0, 0))}

	s := r.Reconstruct("agent-1", events, at(10, 20, 0))
	assert.Equal(t, int64(20*60), s.TotalOffQueueSeconds)
	require.Len(t, s.Intervals, 1)
	assert.Nil(t, s.Intervals[0].RejoinTime)

	// exactly max gap is excluded
	s = r.Reconstruct("agent-1", events, at(14, 0, 0))
	assert.Equal(t, int64(0), s.TotalOffQueueSeconds)
	assert.Equal(t, 1, s.ExcludedIntervals)
	assert.Equal(t, int64(4*3600), s.ExcludedSeconds)

	s = r.Reconstruct("agent-1", events, at(18, 0, 0))
	assert.Equal(t, int64(0), s.TotalOffQueueSeconds)
	assert.True(t, s.Intervals[0].Excluded)
}

func TestReconstructFractionalSecondsPerQueue(t *testing.T) {
	r := NewReconstructor(time.Second)
	half := 500 * time.Millisecond
	events := []types.PresenceEvent{
		ev("5100", types.KindLeave, at(10, 0, 0)),
		ev("5100", types.KindJoin, at(10, 0, 1).Add(half)),
		ev("5200", types.KindLeave, at(11, 0, 0)),
		ev("5200", types.KindJoin, at(11, 0, 0).Add(900*time.Millisecond)),
		ev("5200", types.KindLeave, at(11, 30, 0)),
		ev("5200", types.KindJoin, at(11, 30, 0).Add(900*time.Millisecond)),
	}

	s := NewReconstructor(4*time.Hour).Reconstruct("agent-1", events, at(12, 0, 0))
	assert.Equal(t, int64(1), s.PerQueueSeconds["5100"])
	assert.Equal(t, int64(1), s.PerQueueSeconds["5200"])
	assert.Equal(t, int64(2), s.TotalOffQueueSeconds)

	// two excluded 1.5s spans add up to 3s, not 1s + 1s
	events = []types.PresenceEvent{
		ev("5100", types.KindLeave, at(10, 0, 0)),
		ev("5100", types.KindJoin, at(10, 0, 1).Add(half)),
		ev("5200", types.KindLeave, at(11, 0, 0)),
		ev("5200", types.KindJoin, at(11, 0, 1).Add(half)),
	}
	s = r.Reconstruct("agent-1", events, at(12, 0, 0))
	assert.Equal(t, int64(0), s.TotalOffQueueSeconds)
	assert.Equal(t, 2, s.ExcludedIntervals)
	assert.Equal(t, int64(3), s.ExcludedSeconds)
}

func TestReconstructDuplicateLeaveKeepsEarliest(t *testing.T) {
	r := NewReconstructor(4 * time.Hour)
	events := []types.PresenceEvent{
		ev("5100", types.KindLeave, at(10, 0, 0)),
		ev("5100", types.KindLeave, at(10, 5, 0)),
		ev("5100", types.KindJoin, at(10, 10, 0)),
	}

	s := r.Reconstruct("agent-1", events, at(12, 0, 0))

	require.Len(t, s.Intervals, 1)
	assert.Equal(t, at(10, 0, 0), s.Intervals[0].LeaveTime)
	assert.Equal(t, int64(600), s.TotalOffQueueSeconds)
}

func TestReconstructSpuriousJoin(t *testing.T) {
	r := NewReconstructor(4 * time.Hour)
	events := []types.PresenceEvent{
		ev("5100", types.KindJoin, at(9, 0, 0)),
		ev("5100", types.KindJoin, at(9, 1, 0)),
		ev("5100", types.KindLeave, at(9, 2, 0)),
		ev("5100", types.KindJoin, at(9, 3, 0)),
		ev("5100", types.KindJoin, at(9, 4, 0)),
	}

	var s types.AgentPresenceSummary
	require.NotPanics(t, func() {
		s = r.Reconstruct("agent-1", events, at(12, 0, 0))
	})
	assert.Equal(t, int64(60), s.TotalOffQueueSeconds)
	assert.Len(t, s.Intervals, 1)
}

func TestReconstructQueuesAreAdditive(t *testing.T) {
	r := NewReconstructor(4 * time.Hour)
	events := []types.PresenceEvent{
		ev("A", types.KindLeave, at(9, 0, 0)),
		ev("B", types.KindLeave, at(9, 0, 0)),
		ev("A", types.KindJoin, at(9, 0, 10)),
		ev("B", types.KindJoin, at(9, 0, 20)),
	}

	s := r.Reconstruct("agent-1", events, at(12, 0, 0))

	assert.Equal(t, int64(10), s.PerQueueSeconds["A"])
	assert.Equal(t, int64(20), s.PerQueueSeconds["B"])
	assert.Equal(t, int64(30), s.TotalOffQueueSeconds)
}

func TestReconstructUnsortedInput(t *testing.T) {
	r := NewReconstructor(4 * time.Hour)
	events := []types.PresenceEvent{
		ev("5100", types.KindJoin, at(9, 5, 0)),
		ev("5100", types.KindLeave, at(9, 0, 0)),
	}

	s := r.Reconstruct("agent-1", events, at(12, 0, 0))
	assert.Equal(t, int64(300), s.TotalOffQueueSeconds)
}

func TestReconstructEmpty(t *testing.T) {
	r := NewReconstructor(4 * time.Hour)

	s := r.Reconstruct("agent-1", nil, at(12, 0, 0))

	assert.Equal(t, int64(0), s.TotalOffQueueSeconds)
	assert.True(t, s.IsCurrentlyOnQueue)
	assert.Equal(t, types.StatusUnknown, s.Status)
}

func TestReconstructDropsMalformed(t *testing.T) {
	r := NewReconstructor(4 * time.Hour)
	events := []types.PresenceEvent{
		ev("5100", types.KindLeave, at(9, 0, 0)),
		{AgentID: "agent-1", QueueID: "", Timestamp: at(9, 0, 30), Kind: types.KindJoin},
		{AgentID: "agent-1", QueueID: "5100", Kind: types.KindJoin},
		{AgentID: "agent-1", QueueID: "5100", Timestamp: at(9, 0, 40), Kind: "PAUSE"},
		{QueueID: "5100", Timestamp: at(9, 0, 45), Kind: types.KindJoin},
		ev("5100", types.KindJoin, at(9, 1, 0)),
	}

	s := r.Reconstruct("agent-1", events, at(12, 0, 0))

	assert.Equal(t, 4, s.MalformedDropped)
	assert.Equal(t, int64(60), s.TotalOffQueueSeconds)
}

func TestReconstructSkipsOtherAgents(t *testing.T) {
	r := NewReconstructor(4 * time.Hour)
	other := ev("5100", types.KindLeave, at(9, 0, 0))
	other.AgentID = "agent-2"

	s := r.Reconstruct("agent-1", []types.PresenceEvent{other}, at(12, 0, 0))

	assert.Equal(t, int64(0), s.TotalOffQueueSeconds)
	assert.Equal(t, 0, s.MalformedDropped)
}

func TestReconstructNoCap(t *testing.T) {
	r := NewReconstructor(0)
	events := []types.PresenceEvent{ev("5100", types.KindLeave, at(1, 0, 0))}

	s := r.Reconstruct("agent-1", events, at(11, 0, 0))
	assert.Equal(t, int64(10*3600), s.TotalOffQueueSeconds)
	assert.Equal(t, 0, s.ExcludedIntervals)
}

func TestReconstructIntervalsDisjointAndOrdered(t *testing.T) {
	r := NewReconstructor(4 * time.Hour)
	events := []types.PresenceEvent{
		ev("5100", types.KindLeave, at(9, 0, 0)),
		ev("5100", types.KindJoin, at(9, 10, 0)),
		ev("5100", types.KindLeave, at(9, 20, 0)),
		ev("5100", types.KindLeave, at(9, 25, 0)),
		ev("5100", types.KindJoin, at(9, 30, 0)),
		ev("5100", types.KindLeave, at(11, 0, 0)),
	}

	s := r.Reconstruct("agent-1", events, at(11, 30, 0))

	require.Len(t, s.Intervals, 3)
	for i := 1; i < len(s.Intervals); i++ {
		prev := s.Intervals[i-1]
		require.NotNil(t, prev.RejoinTime)
		assert.False(t, s.Intervals[i].LeaveTime.Before(*prev.RejoinTime))
	}
	assert.Equal(t, int64(600+600+1800), s.TotalOffQueueSeconds)
}
