package types

import "time"

// EventKind is the kind of a queue membership change
type EventKind string

const (
	// KindJoin is an agent being added to a queue (ADDMEMBER)
	KindJoin EventKind = "join"
	// KindLeave is an agent being removed from a queue (REMOVEMEMBER)
	KindLeave EventKind = "leave"
)

// Valid reports whether k is one of the known kinds
func (k EventKind) Valid() bool {
	return k == KindJoin || k == KindLeave
}

// PresenceEvent is a single queue membership change pulled from the telephony database
type PresenceEvent struct {
	AgentID   string    `json:"agentId"`
	QueueID   string    `json:"queueId"`
	Timestamp time.Time `json:"timestamp"`
	Kind      EventKind `json:"kind"`
}

// Valid reports whether every field needed for reconstruction is present
func (e PresenceEvent) Valid() bool {
	return e.AgentID != "" && e.QueueID != "" && !e.Timestamp.IsZero() && e.Kind.Valid()
}

// OffQueueInterval is a span during which an agent was removed from a queue.
// RejoinTime is nil while the agent is still off queue.
type OffQueueInterval struct {
	AgentID    string     `json:"agentId"`
	QueueID    string     `json:"queueId"`
	LeaveTime  time.Time  `json:"leaveTime"`
	RejoinTime *time.Time `json:"rejoinTime,omitempty"`
	Duration   float64    `json:"duration"` // seconds, closed at "now" when still open
	Excluded   bool       `json:"excluded"` // dropped by the max gap rule
}

// PresenceStatus is the current queue status of an agent
type PresenceStatus string

const (
	StatusOnQueue  PresenceStatus = "on_queue"
	StatusOffQueue PresenceStatus = "off_queue"
	StatusUnknown  PresenceStatus = "unknown" // no event today
)

// AgentPresenceSummary is the outcome of one reconstruction run for an agent
type AgentPresenceSummary struct {
	AgentID              string             `json:"agentId"`
	TotalOffQueueSeconds int64              `json:"totalOffQueueSeconds"`
	PerQueueSeconds      map[string]int64   `json:"perQueueSeconds"`
	Intervals            []OffQueueInterval `json:"intervals,omitempty"`
	ExcludedIntervals    int                `json:"excludedIntervals"`
	ExcludedSeconds      int64              `json:"excludedSeconds"`
	MalformedDropped     int                `json:"malformedDropped"`
	Status               PresenceStatus     `json:"status"`
	IsCurrentlyOnQueue   bool               `json:"isCurrentlyOnQueue"`
}

// ReportRow is one line of the off-queue report
type ReportRow struct {
	AgentName         string         `json:"agentName"`
	VoipID            string         `json:"voipId"`
	OffQueueSeconds   int64          `json:"offQueueSeconds"`
	OffQueueFormatted string         `json:"offQueueFormatted"`
	CurrentlyOnQueue  bool           `json:"currentlyOnQueue"`
	Status            PresenceStatus `json:"status"`
	ExcludedIntervals int            `json:"excludedIntervals"`
	ExcludedSeconds   int64          `json:"excludedSeconds"`
}

// InLineAgent is an agent currently joined to at least one monitored queue
type InLineAgent struct {
	AgentName string `json:"agentName"`
	VoipID    string `json:"voipId"`
}
