package report

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dennisdiepolder/qcdash/internal/eventsource"
	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticMembers []types.Member

func (s staticMembers) Members() ([]types.Member, error) { return s, nil }

func (s staticMembers) MemberByAgent(agentID string) (types.Member, bool) {
	voipID := eventsource.VoipIDFromChannel(agentID)
	for _, m := range s {
		for _, id := range m.VoipIDs {
			if id == voipID {
				return m, true
			}
		}
	}
	return types.Member{}, false
}

type fakeSource struct {
	events  []types.PresenceEvent
	err     error
	queries []eventsource.Query
}

func (f *fakeSource) Fetch(_ context.Context, q eventsource.Query) ([]types.PresenceEvent, error) {
	f.queries = append(f.queries, q.Normalized())
	if f.err != nil {
		return nil, &eventsource.FetchError{Start: q.Start, End: q.End, Err: f.err}
	}
	return f.events, nil
}

type recorded struct {
	user string
	kind types.ActivityType
}

type fakeActivity struct{ entries []recorded }

func (f *fakeActivity) Record(_ context.Context, user string, kind types.ActivityType, _ string) {
	f.entries = append(f.entries, recorded{user, kind})
}

var (
	testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	queues  = []string{"5100", "5200", "5300", "5600"}
	admin   = types.Viewer{Name: "Sara", Role: types.RoleAdmin}
)

func at(hour, minute, second int) time.Time {
	return time.Date(2026, 10, 15, hour, minute, second, 0, time.UTC)
}

func ev(voipID, queue string, ts time.Time, kind types.EventKind) types.PresenceEvent {
	return types.PresenceEvent{AgentID: eventsource.ChannelFor(voipID), QueueID: queue, Timestamp: ts, Kind: kind}
}

func newTestService(src eventsource.Source, activity ActivityRecorder) *Service {
	svc := NewService(staticMembers(members), src, Config{
		Queues:   queues,
		MaxGap:   4 * time.Hour,
		Location: time.UTC,
	}, activity, zerolog.New(&bytes.Buffer{}))
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestPresenceReport(t *testing.T) {
	src := &fakeSource{events: []types.PresenceEvent{
		ev("101", "5100", at(9, 0, 0), types.KindLeave),
		ev("101", "5100", at(9, 5, 0), types.KindJoin),
		ev("101", "5200", at(9, 2, 0), types.KindLeave),
		ev("101", "5200", at(9, 3, 0), types.KindJoin),
		ev("102", "5100", at(11, 0, 0), types.KindLeave),
		ev("999", "5100", at(10, 0, 0), types.KindLeave),
		{AgentID: eventsource.ChannelFor("202"), QueueID: "5100", Kind: types.KindLeave},
	}}
	svc := newTestService(src, nil)

	report, err := svc.Presence(context.Background(), Request{Viewer: admin})
	require.NoError(t, err)

	assert.Equal(t, "admin", report.View)
	assert.Equal(t, "2026-10-15", report.Start)
	assert.Equal(t, "2026-10-15", report.End)

	// Nima still off since 11:00, Ali 360s, Mina and Leila have no valid events
	require.Len(t, report.Rows, 3)
	assert.Equal(t, "Nima", report.Rows[0].AgentName)
	assert.Equal(t, int64(3600), report.Rows[0].OffQueueSeconds)
	assert.False(t, report.Rows[0].CurrentlyOnQueue)
	assert.Equal(t, "Ali", report.Rows[1].AgentName)
	assert.Equal(t, "101", report.Rows[1].VoipID)
	assert.Equal(t, int64(360), report.Rows[1].OffQueueSeconds)
	assert.Equal(t, "00:06:00", report.Rows[1].OffQueueFormatted)
	assert.True(t, report.Rows[1].CurrentlyOnQueue)
	assert.Equal(t, "Leila", report.Rows[2].AgentName)
	assert.Equal(t, int64(0), report.Rows[2].OffQueueSeconds)

	assert.Equal(t, []types.InLineAgent{{AgentName: "Ali", VoipID: "101"}}, report.InLine)
	assert.Equal(t, 1, report.MalformedDropped)

	require.Len(t, src.queries, 1)
	assert.Equal(t, []string{"Local/101@from-queue", "Local/102@from-queue", "Local/201@from-queue", "Local/202@from-queue"}, src.queries[0].Agents)
	assert.Equal(t, queues, src.queries[0].Queues)
}

func TestPresenceSharedExtensionBelongsToRosterOwner(t *testing.T) {
	shared := staticMembers{
		{Name: "Ali", RawRole: "Expert", Shifts: []string{"Morning"}, VoipIDs: []string{"101", "150"}},
		{Name: "Nima", RawRole: "Expert", Shifts: []string{"Evening"}, VoipIDs: []string{"102", "150"}},
	}
	src := &fakeSource{events: []types.PresenceEvent{
		ev("150", "5100", at(11, 0, 0), types.KindLeave),
	}}
	svc := NewService(shared, src, Config{Queues: queues, Location: time.UTC}, nil, zerolog.New(&bytes.Buffer{}))
	svc.now = func() time.Time { return testNow }

	report, err := svc.Presence(context.Background(), Request{Viewer: admin, Filter: Filter{Shift: "Evening"}})
	require.NoError(t, err)
	assert.Empty(t, report.Rows)
	require.Len(t, src.queries, 1)
	assert.Equal(t, []string{"Local/102@from-queue"}, src.queries[0].Agents)

	report, err = svc.Presence(context.Background(), Request{Viewer: admin})
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "Ali", report.Rows[0].AgentName)
	assert.Equal(t, "150", report.Rows[0].VoipID)
}

func TestPresenceNoMembersSkipsFetch(t *testing.T) {
	src := &fakeSource{}
	svc := newTestService(src, nil)

	report, err := svc.Presence(context.Background(), Request{Viewer: admin, Filter: Filter{Team: "Nobody"}})
	require.NoError(t, err)
	assert.Empty(t, report.Rows)
	assert.Empty(t, src.queries)
}

func TestPresenceFetchFailure(t *testing.T) {
	activity := &fakeActivity{}
	svc := newTestService(&fakeSource{err: errors.New("connection refused")}, activity)

	report, err := svc.Presence(context.Background(), Request{Viewer: admin})
	assert.Nil(t, report)
	assert.ErrorIs(t, err, eventsource.ErrUpstreamFetch)

	require.Len(t, activity.entries, 1)
	assert.Equal(t, types.ActivityError, activity.entries[0].kind)
}

func TestPresenceForbiddenFilter(t *testing.T) {
	src := &fakeSource{}
	svc := newTestService(src, nil)

	_, err := svc.Presence(context.Background(), Request{
		Viewer: types.Viewer{Name: "Ali", Role: types.RoleExpert},
		Filter: Filter{Team: "Sales"},
	})
	assert.ErrorIs(t, err, ErrForbiddenFilter)
	assert.Empty(t, src.queries)
}

func TestPresenceRecordsFilters(t *testing.T) {
	activity := &fakeActivity{}
	svc := newTestService(&fakeSource{}, activity)

	_, err := svc.Presence(context.Background(), Request{Viewer: admin, Filter: Filter{Team: "Sales"}})
	require.NoError(t, err)
	assert.Equal(t, []recorded{{"Sara", types.ActivityApplyFilters}}, activity.entries)

	activity.entries = nil
	_, err = svc.Presence(context.Background(), Request{Viewer: admin, Filter: Filter{Team: "All"}})
	require.NoError(t, err)
	assert.Empty(t, activity.entries)
}

func TestPresenceDateRange(t *testing.T) {
	src := &fakeSource{}
	svc := newTestService(src, nil)

	_, err := svc.Presence(context.Background(), Request{
		Viewer: admin,
		Start:  time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, src.queries, 1)
	assert.Equal(t, "2026-10-01", src.queries[0].Start.Format(eventsource.DateLayout))
	assert.Equal(t, "2026-10-14", src.queries[0].End.Format(eventsource.DateLayout))
}

func TestEventsNewestFirst(t *testing.T) {
	src := &fakeSource{events: []types.PresenceEvent{
		ev("101", "5100", at(9, 0, 0), types.KindLeave),
		ev("101", "5100", at(9, 5, 0), types.KindJoin),
		ev("102", "5100", at(11, 0, 0), types.KindLeave),
		ev("999", "5100", at(10, 0, 0), types.KindLeave),
		{AgentID: eventsource.ChannelFor("101"), QueueID: "5100"},
	}}
	svc := newTestService(src, nil)

	logs, err := svc.Events(context.Background(), Request{Viewer: admin})
	require.NoError(t, err)
	require.Len(t, logs, 2)

	assert.Equal(t, "Ali", logs[0].AgentName)
	require.Len(t, logs[0].Events, 2)
	assert.Equal(t, types.KindJoin, logs[0].Events[0].Kind)
	assert.Equal(t, at(9, 5, 0), logs[0].Events[0].Time)
	assert.Equal(t, "Nima", logs[1].AgentName)
}

func TestOptionsAndScope(t *testing.T) {
	svc := newTestService(&fakeSource{}, nil)

	opts, err := svc.Options(types.Viewer{Name: "Reza", Role: types.RoleTeamManager, Teams: []string{"Sales"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"All", "Sales"}, opts.Teams)

	scope, err := svc.Scope(types.Viewer{Name: "Ali", Role: types.RoleExpert})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ali"}, names(scope))
}
