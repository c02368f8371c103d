package presence

import (
	"testing"
	"time"

	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labelAll(agentID string) (string, string, bool) {
	return "name-" + agentID, agentID, true
}

func TestAnalyzeEndToEnd(t *testing.T) {
	r := NewReconstructor(4 * time.Hour)
	events := []types.PresenceEvent{
		ev("Q1", types.KindLeave, at(9, 0, 0)),
		ev("Q1", types.KindJoin, at(9, 5, 0)),
		ev("Q2", types.KindLeave, at(9, 2, 0)),
		ev("Q2", types.KindJoin, at(9, 3, 0)),
	}

	a := r.Analyze(events, at(12, 0, 0), nil)

	require.Contains(t, a.Summaries, "agent-1")
	s := a.Summaries["agent-1"]
	assert.Equal(t, int64(300), s.PerQueueSeconds["Q1"])
	assert.Equal(t, int64(60), s.PerQueueSeconds["Q2"])
	assert.Equal(t, int64(360), s.TotalOffQueueSeconds)
	assert.True(t, s.IsCurrentlyOnQueue)
	assert.Equal(t, types.StatusOnQueue, s.Status)
}

func TestAnalyzeCountsUnattributed(t *testing.T) {
	r := NewReconstructor(4 * time.Hour)
	events := []types.PresenceEvent{
		{QueueID: "5100", Timestamp: at(9, 0, 0), Kind: types.KindLeave},
		ev("5100", types.KindLeave, at(9, 0, 0)),
		{AgentID: "agent-1", QueueID: "5100", Kind: types.KindJoin},
	}

	a := r.Analyze(events, at(9, 1, 0), nil)

	assert.Equal(t, 1, a.Unattributed)
	assert.Equal(t, 2, a.MalformedDropped())
	assert.False(t, a.Summaries["agent-1"].IsCurrentlyOnQueue)
}

func TestRowsSortedWorstFirst(t *testing.T) {
	summaries := map[string]types.AgentPresenceSummary{
		"a": {AgentID: "a", TotalOffQueueSeconds: 10, IsCurrentlyOnQueue: true},
		"b": {AgentID: "b", TotalOffQueueSeconds: 3725},
		"c": {AgentID: "c", TotalOffQueueSeconds: 10},
		"d": {AgentID: "d", TotalOffQueueSeconds: 99},
	}

	rows := Rows(summaries, func(id string) (string, string, bool) {
		if id == "d" {
			return "", "", false
		}
		return labelAll(id)
	})

	require.Len(t, rows, 3)
	assert.Equal(t, "name-b", rows[0].AgentName)
	assert.Equal(t, "01:02:05", rows[0].OffQueueFormatted)
	assert.Equal(t, "name-a", rows[1].AgentName)
	assert.Equal(t, "name-c", rows[2].AgentName)
	assert.True(t, rows[1].CurrentlyOnQueue)
}

func TestInLine(t *testing.T) {
	summaries := map[string]types.AgentPresenceSummary{
		"b": {Status: types.StatusOnQueue},
		"a": {Status: types.StatusOnQueue},
		"c": {Status: types.StatusOffQueue},
		"d": {Status: types.StatusUnknown},
	}

	agents := InLine(summaries, labelAll)

	require.Len(t, agents, 2)
	assert.Equal(t, "name-a", agents[0].AgentName)
	assert.Equal(t, "name-b", agents[1].AgentName)
}

func TestFormatHMS(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "00:00:00"},
		{59, "00:00:59"},
		{360, "00:06:00"},
		{3600*27 + 61, "27:01:01"},
		{-5, "00:00:00"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatHMS(tt.seconds))
	}
}
