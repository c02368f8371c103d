package simulate

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/dennisdiepolder/qcdash/internal/eventsource"
	"github.com/dennisdiepolder/qcdash/internal/types"
)

// Shift is a named working window
type Shift struct {
	Name  string
	Start time.Duration // offset from midnight
	Hours int
}

var (
	teams       = []string{"Sales", "Support", "Technical", "Retention"}
	teamWeights = []int{30, 35, 20, 15}

	shifts = []Shift{
		{Name: "Morning", Start: 8 * time.Hour, Hours: 8},
		{Name: "Evening", Start: 16 * time.Hour, Hours: 8},
		{Name: "Night", Start: 0, Hours: 8},
	}
	shiftWeights = []int{50, 35, 15}
)

// Generator creates a fake roster and a day of queue membership changes.
// The same seed always produces the same output.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a new Generator
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Members creates count experts spread over teams and shifts, one
// supervisor per team and a QC admin. Passwords are plain "pw-<voip id>"
// for experts and "pw-<name>" otherwise.
func (g *Generator) Members(count int) []types.Member {
	members := make([]types.Member, 0, count+len(teams)+1)

	for i := 0; i < count; i++ {
		voipID := fmt.Sprintf("%d", 101+i)
		members = append(members, types.Member{
			Name:         fmt.Sprintf("Agent %03d", i+1),
			PasswordHash: "pw-" + voipID,
			RawRole:      "Expert",
			Teams:        []string{weightedChoice(g.rng, teams, teamWeights)},
			Shifts:       []string{weightedChoice(g.rng, shifts, shiftWeights).Name},
			VoipIDs:      []string{voipID},
			VoipNames:    []string{fmt.Sprintf("agent%03d", i+1)},
		})
	}

	for _, team := range teams {
		name := team + " Supervisor"
		members = append(members, types.Member{
			Name:         name,
			PasswordHash: "pw-" + name,
			RawRole:      "Supervisor",
			Teams:        []string{team},
			Shifts:       shiftNames(),
		})
	}

	members = append(members, types.Member{
		Name:         "QC",
		PasswordHash: "pw-QC",
		RawRole:      "QC",
	})
	return members
}

// Day produces ADDMEMBER/REMOVEMEMBER events for every expert extension on
// the given day, ordered by time. Agents join all queues when their shift
// starts, take a few breaks off some queues, and leave at the end. Now and
// then a break is never closed.
func (g *Generator) Day(members []types.Member, day time.Time, queues []string) []types.PresenceEvent {
	y, m, d := day.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, day.Location())

	var events []types.PresenceEvent
	for _, member := range members {
		if len(member.VoipIDs) == 0 {
			continue
		}
		shift := shiftByName(member.Shifts)
		for _, voipID := range member.VoipIDs {
			events = append(events, g.agentDay(eventsource.ChannelFor(voipID), midnight.Add(shift.Start), shift.Hours, queues)...)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}

func (g *Generator) agentDay(agent string, start time.Time, hours int, queues []string) []types.PresenceEvent {
	end := start.Add(time.Duration(hours) * time.Hour)
	var events []types.PresenceEvent
	emit := func(at time.Time, queue string, kind types.EventKind) {
		events = append(events, types.PresenceEvent{AgentID: agent, QueueID: queue, Timestamp: at, Kind: kind})
	}

	// login jitter of up to ten minutes
	login := start.Add(time.Duration(g.rng.Intn(600)) * time.Second)
	for _, q := range queues {
		emit(login, q, types.KindJoin)
	}

	forgotten := false
	cursor := login
	for b := g.rng.Intn(5); b > 0; b-- {
		leave := cursor.Add(time.Duration(20+g.rng.Intn(100)) * time.Minute)
		// leaves room for the longest break before the shift ends
		if !leave.Before(end.Add(-time.Hour)) {
			break
		}
		breakQueues := g.subset(queues)
		for _, q := range breakQueues {
			emit(leave, q, types.KindLeave)
		}

		// one break in twenty is never closed
		if g.rng.Intn(20) == 0 {
			forgotten = true
			break
		}
		rejoin := leave.Add(time.Duration(2+g.rng.Intn(44)) * time.Minute)
		for _, q := range breakQueues {
			emit(rejoin, q, types.KindJoin)
		}
		cursor = rejoin
	}

	if !forgotten {
		for _, q := range queues {
			emit(end, q, types.KindLeave)
		}
	}
	return events
}

// subset picks all queues most of the time, otherwise a random non-empty part
func (g *Generator) subset(queues []string) []string {
	if len(queues) <= 1 || g.rng.Intn(3) > 0 {
		return queues
	}
	out := make([]string, 0, len(queues))
	for _, q := range queues {
		if g.rng.Intn(2) == 0 {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		out = append(out, queues[g.rng.Intn(len(queues))])
	}
	return out
}

func weightedChoice[T any](rng *rand.Rand, items []T, weights []int) T {
	total := 0
	for _, w := range weights {
		total += w
	}
	choice := rng.Intn(total)
	cumulative := 0
	for i, w := range weights {
		cumulative += w
		if choice < cumulative {
			return items[i]
		}
	}
	return items[0]
}

func shiftByName(names []string) Shift {
	for _, n := range names {
		for _, s := range shifts {
			if s.Name == n {
				return s
			}
		}
	}
	return shifts[0]
}

func shiftNames() []string {
	out := make([]string, len(shifts))
	for i, s := range shifts {
		out[i] = s.Name
	}
	return out
}
