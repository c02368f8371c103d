package presence

import (
	"time"

	"github.com/dennisdiepolder/qcdash/internal/types"
)

// Classify decides whether an agent is on queue right now from the events
// dated on the same calendar day as now (in now's location). For every queue
// the latest event wins; one monitored queue ending in a join is enough. When
// monitored is empty every queue counts. No event today yields StatusUnknown.
func Classify(events []types.PresenceEvent, now time.Time, monitored []string) types.PresenceStatus {
	watch := make(map[string]struct{}, len(monitored))
	for _, q := range monitored {
		watch[q] = struct{}{}
	}

	y, m, d := now.Date()
	latest := make(map[string]types.PresenceEvent)
	for _, ev := range events {
		if !ev.Valid() {
			continue
		}
		if len(watch) > 0 {
			if _, ok := watch[ev.QueueID]; !ok {
				continue
			}
		}
		ey, em, ed := ev.Timestamp.In(now.Location()).Date()
		if ey != y || em != m || ed != d {
			continue
		}
		// ties keep the later element, matching a stable ascending sort
		if prev, ok := latest[ev.QueueID]; !ok || !ev.Timestamp.Before(prev.Timestamp) {
			latest[ev.QueueID] = ev
		}
	}

	if len(latest) == 0 {
		return types.StatusUnknown
	}
	for _, ev := range latest {
		if ev.Kind == types.KindJoin {
			return types.StatusOnQueue
		}
	}
	return types.StatusOffQueue
}

// OnQueue collapses a status into the report's boolean. Unknown counts as on
// queue: an agent without events is reported as never removed.
func OnQueue(status types.PresenceStatus) bool {
	return status != types.StatusOffQueue
}
