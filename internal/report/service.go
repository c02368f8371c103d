package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dennisdiepolder/qcdash/internal/eventsource"
	"github.com/dennisdiepolder/qcdash/internal/metrics"
	"github.com/dennisdiepolder/qcdash/internal/presence"
	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/rs/zerolog"
)

// MemberSource supplies the roster and resolves agent channels to members
type MemberSource interface {
	Members() ([]types.Member, error)
	MemberByAgent(agentID string) (types.Member, bool)
}

// ActivityRecorder receives audit lines
type ActivityRecorder interface {
	Record(ctx context.Context, user string, kind types.ActivityType, message string)
}

// Request is a presence report query on behalf of a viewer
type Request struct {
	Viewer types.Viewer
	Filter Filter
	Start  time.Time
	End    time.Time
}

// Report is the rendered off-queue table
type Report struct {
	View             string              `json:"view"`
	Start            string              `json:"start"`
	End              string              `json:"end"`
	Rows             []types.ReportRow   `json:"rows"`
	InLine           []types.InLineAgent `json:"inLine"`
	MalformedDropped int                 `json:"malformedDropped"`
	GeneratedAt      time.Time           `json:"generatedAt"`
}

// EventLine is one join or leave in an agent's log
type EventLine struct {
	Time  time.Time       `json:"time"`
	Queue string          `json:"queue"`
	Kind  types.EventKind `json:"kind"`
}

// AgentEvents is the raw event log of one extension
type AgentEvents struct {
	AgentName string      `json:"agentName"`
	VoipID    string      `json:"voipId"`
	Events    []EventLine `json:"events"`
}

// Config holds the report settings
type Config struct {
	Queues   []string
	MaxGap   time.Duration
	Location *time.Location
}

// Service builds presence reports for authenticated viewers
type Service struct {
	members  MemberSource
	source   eventsource.Source
	recon    *presence.Reconstructor
	queues   []string
	location *time.Location
	activity ActivityRecorder
	now      func() time.Time
	logger   zerolog.Logger
}

// NewService creates a Service. activity may be nil.
func NewService(members MemberSource, source eventsource.Source, cfg Config, activity ActivityRecorder, logger zerolog.Logger) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		members:  members,
		source:   source,
		recon:    presence.NewReconstructor(cfg.MaxGap),
		queues:   cfg.Queues,
		location: loc,
		activity: activity,
		now:      time.Now,
		logger:   logger.With().Str("component", "report").Logger(),
	}
}

// Now is the service clock in the report location
func (s *Service) Now() time.Time {
	return s.now().In(s.location)
}

// Location is the zone naive timestamps and dates are read in
func (s *Service) Location() *time.Location {
	return s.location
}

// Options returns the filter values the viewer may use
func (s *Service) Options(viewer types.Viewer) (FilterOptions, error) {
	members, err := s.members.Members()
	if err != nil {
		return FilterOptions{}, err
	}
	view := ViewFor(viewer)
	return view.Options(Visible(view, members)), nil
}

// Scope returns the members the viewer may see, for live views
func (s *Service) Scope(viewer types.Viewer) ([]types.Member, error) {
	members, err := s.members.Members()
	if err != nil {
		return nil, err
	}
	return Visible(ViewFor(viewer), members), nil
}

// Presence computes the off-queue report for the request
func (s *Service) Presence(ctx context.Context, req Request) (*Report, error) {
	started := time.Now()
	view := ViewFor(req.Viewer)
	m := metrics.Get()

	report, err := s.presence(ctx, view, req)
	outcome := "ok"
	switch {
	case errors.Is(err, ErrForbiddenFilter):
		outcome = "forbidden"
	case err != nil:
		outcome = "error"
		s.record(ctx, req.Viewer.Name, types.ActivityError, fmt.Sprintf("presence report failed: %v", err))
	}
	m.RecordReport(view.Name(), outcome, time.Since(started))
	return report, err
}

func (s *Service) presence(ctx context.Context, view View, req Request) (*Report, error) {
	start, end := s.dateRange(req)
	now := s.Now()

	report := &Report{
		View:        view.Name(),
		Start:       start.Format(eventsource.DateLayout),
		End:         end.Format(eventsource.DateLayout),
		Rows:        []types.ReportRow{},
		InLine:      []types.InLineAgent{},
		GeneratedAt: now,
	}

	members, err := s.members.Members()
	if err != nil {
		return nil, err
	}
	selected, err := Select(view, members, req.Filter)
	if err != nil {
		return nil, err
	}
	if !req.Filter.IsZero() {
		f := req.Filter.Normalized()
		s.record(ctx, req.Viewer.Name, types.ActivityApplyFilters,
			fmt.Sprintf("team=%q shift=%q expert=%q range=%s..%s", f.Team, f.Shift, f.Expert, report.Start, report.End))
	}

	scope := s.extensions(selected)
	if len(scope) == 0 {
		return report, nil
	}

	events, err := s.source.Fetch(ctx, eventsource.Query{
		Agents: channels(scope),
		Queues: s.queues,
		Start:  start,
		End:    end,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("viewer", req.Viewer.Name).Msg("event fetch failed")
		return nil, err
	}

	analysis := s.recon.Analyze(events, now, s.queues)
	label := s.labeler(scope)

	excluded := 0
	for _, summary := range analysis.Summaries {
		excluded += summary.ExcludedIntervals
	}
	m := metrics.Get()
	m.RecordExcludedIntervals(excluded)
	m.RecordMalformedEvents(analysis.MalformedDropped())

	report.Rows = presence.Rows(analysis.Summaries, label)
	report.InLine = presence.InLine(analysis.Summaries, label)
	report.MalformedDropped = analysis.MalformedDropped()

	s.logger.Debug().
		Str("view", view.Name()).
		Int("members", len(selected)).
		Int("events", len(events)).
		Int("rows", len(report.Rows)).
		Msg("presence report built")
	return report, nil
}

// Events returns the raw join/leave log per extension, newest first
func (s *Service) Events(ctx context.Context, req Request) ([]AgentEvents, error) {
	members, err := s.members.Members()
	if err != nil {
		return nil, err
	}
	selected, err := Select(ViewFor(req.Viewer), members, req.Filter)
	if err != nil {
		return nil, err
	}

	scope := s.extensions(selected)
	if len(scope) == 0 {
		return []AgentEvents{}, nil
	}

	start, end := s.dateRange(req)
	events, err := s.source.Fetch(ctx, eventsource.Query{
		Agents: channels(scope),
		Queues: s.queues,
		Start:  start,
		End:    end,
	})
	if err != nil {
		s.record(ctx, req.Viewer.Name, types.ActivityError, fmt.Sprintf("event log failed: %v", err))
		return nil, err
	}

	label := s.labeler(scope)
	byVoip := make(map[string]*AgentEvents)
	for _, ev := range events {
		if !ev.Valid() {
			continue
		}
		name, voipID, ok := label(ev.AgentID)
		if !ok {
			continue
		}
		log, ok := byVoip[voipID]
		if !ok {
			log = &AgentEvents{AgentName: name, VoipID: voipID}
			byVoip[voipID] = log
		}
		log.Events = append(log.Events, EventLine{Time: ev.Timestamp, Queue: ev.QueueID, Kind: ev.Kind})
	}

	out := make([]AgentEvents, 0, len(byVoip))
	for _, log := range byVoip {
		sort.SliceStable(log.Events, func(i, j int) bool {
			return log.Events[i].Time.After(log.Events[j].Time)
		})
		out = append(out, *log)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AgentName != out[j].AgentName {
			return out[i].AgentName < out[j].AgentName
		}
		return out[i].VoipID < out[j].VoipID
	})
	return out, nil
}

// dateRange defaults missing dates to today and orders them
func (s *Service) dateRange(req Request) (time.Time, time.Time) {
	today := s.Now()
	start, end := req.Start, req.End
	if start.IsZero() {
		start = today
	}
	if end.IsZero() {
		end = today
	}
	start, end = start.In(s.location), end.In(s.location)
	if end.Before(start) {
		start, end = end, start
	}
	return start, end
}

func (s *Service) record(ctx context.Context, user string, kind types.ActivityType, message string) {
	if s.activity != nil {
		s.activity.Record(ctx, user, kind, message)
	}
}

// extensions collects the voip ids owned by the selected members. An
// extension listed by several members belongs to whichever one the roster
// resolves it to, so it is in scope only when that owner was selected.
func (s *Service) extensions(selected []types.Member) map[string]struct{} {
	scope := make(map[string]struct{})
	for _, m := range selected {
		for _, id := range m.VoipIDs {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			owner, ok := s.members.MemberByAgent(eventsource.ChannelFor(id))
			if !ok || owner.Name != m.Name {
				continue
			}
			scope[id] = struct{}{}
		}
	}
	return scope
}

func channels(scope map[string]struct{}) []string {
	ids := make([]string, 0, len(scope))
	for id := range scope {
		ids = append(ids, id)
	}
	return eventsource.ChannelsFor(ids)
}

// labeler names in-scope agents through the roster
func (s *Service) labeler(scope map[string]struct{}) presence.Label {
	return func(agentID string) (string, string, bool) {
		voipID := eventsource.VoipIDFromChannel(agentID)
		if _, ok := scope[voipID]; !ok {
			return "", voipID, false
		}
		member, ok := s.members.MemberByAgent(agentID)
		return member.Name, voipID, ok
	}
}
