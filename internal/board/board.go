package board

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/dennisdiepolder/qcdash/internal/eventsource"
	"github.com/dennisdiepolder/qcdash/internal/metrics"
	"github.com/dennisdiepolder/qcdash/internal/presence"
	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/rs/zerolog"
)

// Broadcaster delivers encoded messages to connected clients
type Broadcaster interface {
	Broadcast(message []byte)
}

// MemberSource supplies the roster and resolves agent channels to members
type MemberSource interface {
	Members() ([]types.Member, error)
	MemberByAgent(agentID string) (types.Member, bool)
}

// DefaultInterval is used when NewBoard is given a non-positive interval
const DefaultInterval = 30 * time.Second

// Board periodically rebuilds the in-line board for the whole roster and
// broadcasts it
type Board struct {
	hub      Broadcaster
	members  MemberSource
	source   eventsource.Source
	queues   []string
	location *time.Location
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger

	mu     sync.RWMutex
	latest *types.BoardSnapshot
}

// NewBoard creates a new Board
func NewBoard(hub Broadcaster, members MemberSource, source eventsource.Source, queues []string, loc *time.Location, interval time.Duration, logger zerolog.Logger) *Board {
	if loc == nil {
		loc = time.Local
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Board{
		hub:      hub,
		members:  members,
		source:   source,
		queues:   queues,
		location: loc,
		interval: interval,
		now:      time.Now,
		logger:   logger.With().Str("component", "board").Logger(),
	}
}

// Start refreshes the board until ctx is cancelled
func (b *Board) Start(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.logger.Info().Dur("interval", b.interval).Msg("board started")
	b.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("board stopped")
			return

		case <-ticker.C:
			b.refresh(ctx)
		}
	}
}

// Latest returns the last built snapshot, nil before the first success
func (b *Board) Latest() *types.BoardSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest
}

func (b *Board) refresh(ctx context.Context) {
	m := metrics.Get()

	snapshot, err := b.Snapshot(ctx)
	if err != nil {
		m.RecordBoardError()
		b.logger.Error().Err(err).Msg("failed to build board")
		return
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		m.RecordBoardError()
		b.logger.Error().Err(err).Msg("failed to marshal board")
		return
	}

	b.mu.Lock()
	b.latest = snapshot
	b.mu.Unlock()

	b.hub.Broadcast(data)
	m.RecordBoardCycle(len(snapshot.Agents), snapshot.InLine)
	b.logger.Debug().
		Int("agents", len(snapshot.Agents)).
		Int("in_line", snapshot.InLine).
		Msg("broadcasted board")
}

// Snapshot classifies every roster extension from today's events
func (b *Board) Snapshot(ctx context.Context) (*types.BoardSnapshot, error) {
	members, err := b.members.Members()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	ids := make([]string, 0, len(members))
	for _, member := range members {
		for _, id := range member.VoipIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	now := b.now().In(b.location)
	snapshot := &types.BoardSnapshot{
		Type:      types.BoardSnapshotType,
		Timestamp: now.Format(time.RFC3339),
		Agents:    []types.BoardAgent{},
	}
	if len(ids) == 0 {
		return snapshot, nil
	}

	events, err := b.source.Fetch(ctx, eventsource.Query{
		Agents: eventsource.ChannelsFor(ids),
		Queues: b.queues,
		Start:  now,
		End:    now,
	})
	if err != nil {
		return nil, err
	}

	byAgent := make(map[string][]types.PresenceEvent)
	for _, ev := range events {
		byAgent[ev.AgentID] = append(byAgent[ev.AgentID], ev)
	}

	for _, id := range ids {
		channel := eventsource.ChannelFor(id)
		member, ok := b.members.MemberByAgent(channel)
		if !ok {
			continue
		}
		status := presence.Classify(byAgent[channel], now, b.queues)
		if status == types.StatusOnQueue {
			snapshot.InLine++
		}
		snapshot.Agents = append(snapshot.Agents, types.BoardAgent{
			AgentName: member.Name,
			VoipID:    id,
			Teams:     member.Teams,
			Shifts:    member.Shifts,
			Status:    status,
		})
	}

	sort.SliceStable(snapshot.Agents, func(i, j int) bool {
		if snapshot.Agents[i].AgentName != snapshot.Agents[j].AgentName {
			return snapshot.Agents[i].AgentName < snapshot.Agents[j].AgentName
		}
		return snapshot.Agents[i].VoipID < snapshot.Agents[j].VoipID
	})
	return snapshot, nil
}
