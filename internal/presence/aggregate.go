package presence

import (
	"fmt"
	"sort"
	"time"

	"github.com/dennisdiepolder/qcdash/internal/types"
)

// Analysis is the result of replaying a mixed event list for many agents
type Analysis struct {
	Summaries map[string]types.AgentPresenceSummary
	// Unattributed counts events that had no agent id at all
	Unattributed int
}

// MalformedDropped is the total number of events dropped during the run
func (a Analysis) MalformedDropped() int {
	n := a.Unattributed
	for _, s := range a.Summaries {
		n += s.MalformedDropped
	}
	return n
}

// Analyze groups events by agent, reconstructs each agent and classifies its
// current status against the monitored queues.
func (r *Reconstructor) Analyze(events []types.PresenceEvent, now time.Time, monitored []string) Analysis {
	byAgent := make(map[string][]types.PresenceEvent)
	unattributed := 0
	for _, ev := range events {
		if ev.AgentID == "" {
			unattributed++
			continue
		}
		byAgent[ev.AgentID] = append(byAgent[ev.AgentID], ev)
	}

	summaries := make(map[string]types.AgentPresenceSummary, len(byAgent))
	for agentID, agentEvents := range byAgent {
		summary := r.Reconstruct(agentID, agentEvents, now)
		summary.Status = Classify(agentEvents, now, monitored)
		summary.IsCurrentlyOnQueue = OnQueue(summary.Status)
		summaries[agentID] = summary
	}

	return Analysis{Summaries: summaries, Unattributed: unattributed}
}

// Label resolves an agent id to the display name and extension shown in a
// report. ok=false leaves the agent out of the report.
type Label func(agentID string) (name, voipID string, ok bool)

// Rows turns summaries into report rows, worst compliance first. Equal
// totals are ordered by name so the table is stable between renders.
func Rows(summaries map[string]types.AgentPresenceSummary, label Label) []types.ReportRow {
	rows := make([]types.ReportRow, 0, len(summaries))
	for agentID, s := range summaries {
		name, voipID, ok := label(agentID)
		if !ok {
			continue
		}
		seconds := s.TotalOffQueueSeconds
		if seconds < 0 {
			seconds = 0
		}
		rows = append(rows, types.ReportRow{
			AgentName:         name,
			VoipID:            voipID,
			OffQueueSeconds:   seconds,
			OffQueueFormatted: FormatHMS(seconds),
			CurrentlyOnQueue:  s.IsCurrentlyOnQueue,
			Status:            s.Status,
			ExcludedIntervals: s.ExcludedIntervals,
			ExcludedSeconds:   s.ExcludedSeconds,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].OffQueueSeconds != rows[j].OffQueueSeconds {
			return rows[i].OffQueueSeconds > rows[j].OffQueueSeconds
		}
		if rows[i].AgentName != rows[j].AgentName {
			return rows[i].AgentName < rows[j].AgentName
		}
		return rows[i].VoipID < rows[j].VoipID
	})
	return rows
}

// InLine lists the agents whose status is on queue, ordered by name
func InLine(summaries map[string]types.AgentPresenceSummary, label Label) []types.InLineAgent {
	agents := make([]types.InLineAgent, 0)
	for agentID, s := range summaries {
		if s.Status != types.StatusOnQueue {
			continue
		}
		name, voipID, ok := label(agentID)
		if !ok {
			continue
		}
		agents = append(agents, types.InLineAgent{AgentName: name, VoipID: voipID})
	}
	sort.Slice(agents, func(i, j int) bool {
		if agents[i].AgentName != agents[j].AgentName {
			return agents[i].AgentName < agents[j].AgentName
		}
		return agents[i].VoipID < agents[j].VoipID
	})
	return agents
}

// FormatHMS renders seconds as HH:MM:SS. Hours are not wrapped at 24.
func FormatHMS(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
