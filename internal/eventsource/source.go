package eventsource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dennisdiepolder/qcdash/internal/types"
)

// ErrUpstreamFetch marks a failure to read events from the telephony database
var ErrUpstreamFetch = errors.New("event source unavailable")

// DateLayout is the calendar date format used in queries and cache keys
const DateLayout = "2006-01-02"

// Query selects presence events for a set of agents and queues over an
// inclusive calendar date range.
type Query struct {
	Agents []string  // queue_log agent channels
	Queues []string  // queue names
	Start  time.Time // first day, time of day ignored
	End    time.Time // last day, time of day ignored
}

// Normalized returns a copy with sorted, de-duplicated agents and queues
func (q Query) Normalized() Query {
	return Query{
		Agents: uniqueSorted(q.Agents),
		Queues: uniqueSorted(q.Queues),
		Start:  q.Start,
		End:    q.End,
	}
}

// Key is a stable identifier of the query used for caching
func (q Query) Key() string {
	n := q.Normalized()
	return strings.Join([]string{
		n.Start.Format(DateLayout),
		n.End.Format(DateLayout),
		strings.Join(n.Queues, ","),
		strings.Join(n.Agents, ","),
	}, "|")
}

// Empty reports whether the query cannot match anything
func (q Query) Empty() bool {
	return len(q.Agents) == 0 || len(q.Queues) == 0 || q.End.Before(dayStart(q.Start))
}

// Source supplies presence events. Implementations return events ordered by
// timestamp and wrap failures in a *FetchError.
type Source interface {
	Fetch(ctx context.Context, q Query) ([]types.PresenceEvent, error)
}

// FetchError describes a failed event fetch
type FetchError struct {
	Start time.Time
	End   time.Time
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch events %s..%s: %v", e.Start.Format(DateLayout), e.End.Format(DateLayout), e.Err)
}

// Unwrap allows errors.Is(err, ErrUpstreamFetch) and access to the cause
func (e *FetchError) Unwrap() []error {
	return []error{ErrUpstreamFetch, e.Err}
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
