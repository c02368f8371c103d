// Package presence rebuilds agent off-queue time from queue membership events.
//
// Queues are tracked independently: an agent removed from two queues at the
// same moment accrues off-queue time on both, and the agent total is the plain
// sum of the per-queue totals. Overlapping wall-clock spans are not merged.
package presence

import (
	"sort"
	"time"

	"github.com/dennisdiepolder/qcdash/internal/types"
)

// DefaultMaxGap is the off-queue span at or beyond which an interval is
// treated as a shift-end artifact and left out of the totals.
const DefaultMaxGap = 4 * time.Hour

// Reconstructor pairs leave/join events into off-queue intervals
type Reconstructor struct {
	maxGap time.Duration
}

// NewReconstructor creates a Reconstructor. A non-positive maxGap disables the cap.
func NewReconstructor(maxGap time.Duration) *Reconstructor {
	return &Reconstructor{maxGap: maxGap}
}

// Reconstruct replays the events of one agent and returns its off-queue
// totals. Events belonging to other agents are skipped; events missing a
// field are dropped and counted. An interval still open after the last event
// is closed at now.
func (r *Reconstructor) Reconstruct(agentID string, events []types.PresenceEvent, now time.Time) types.AgentPresenceSummary {
	summary := types.AgentPresenceSummary{
		AgentID:            agentID,
		PerQueueSeconds:    make(map[string]int64),
		Status:             types.StatusUnknown,
		IsCurrentlyOnQueue: true,
	}

	byQueue := make(map[string][]types.PresenceEvent)
	queues := make([]string, 0)
	for _, ev := range events {
		if ev.AgentID != "" && ev.AgentID != agentID {
			continue
		}
		if !ev.Valid() {
			summary.MalformedDropped++
			continue
		}
		if _, ok := byQueue[ev.QueueID]; !ok {
			queues = append(queues, ev.QueueID)
		}
		byQueue[ev.QueueID] = append(byQueue[ev.QueueID], ev)
	}
	sort.Strings(queues)

	// each queue is truncated to whole seconds before summing so the total
	// always equals the sum of the per-queue figures
	var excluded time.Duration
	for _, queueID := range queues {
		counted, dropped := r.replayQueue(agentID, queueID, byQueue[queueID], now, &summary)
		secs := int64(counted / time.Second)
		summary.PerQueueSeconds[queueID] = secs
		summary.TotalOffQueueSeconds += secs
		excluded += dropped
	}
	summary.ExcludedSeconds = int64(excluded / time.Second)

	return summary
}

// replayQueue scans a single queue's events in time order and returns the
// counted and the excluded off-queue duration, appending every interval to
// the summary.
func (r *Reconstructor) replayQueue(agentID, queueID string, events []types.PresenceEvent, now time.Time, summary *types.AgentPresenceSummary) (time.Duration, time.Duration) {
	sorted := make([]types.PresenceEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var (
		total     time.Duration
		excluded  time.Duration
		open      bool
		leaveTime time.Time
	)

	closeAt := func(end time.Time, rejoined bool) {
		interval := types.OffQueueInterval{
			AgentID:   agentID,
			QueueID:   queueID,
			LeaveTime: leaveTime,
		}
		if rejoined {
			rejoin := end
			interval.RejoinTime = &rejoin
		}

		d := end.Sub(leaveTime)
		if d < 0 {
			d = 0
		}
		interval.Duration = d.Seconds()

		if r.exceedsGap(d) {
			interval.Excluded = true
			summary.ExcludedIntervals++
			excluded += d
		} else {
			total += d
		}
		summary.Intervals = append(summary.Intervals, interval)
		open = false
	}

	for _, ev := range sorted {
		switch ev.Kind {
		case types.KindLeave:
			if !open {
				open = true
				leaveTime = ev.Timestamp
			}
		case types.KindJoin:
			if open {
				closeAt(ev.Timestamp, true)
			}
		}
	}

	if open {
		closeAt(now, false)
	}

	return total, excluded
}

func (r *Reconstructor) exceedsGap(d time.Duration) bool {
	return r.maxGap > 0 && d >= r.maxGap
}
