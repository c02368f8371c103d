package types

// ActivityType classifies activity log entries
type ActivityType string

const (
	ActivityLogin        ActivityType = "login"
	ActivityFailedLogin  ActivityType = "failed_login"
	ActivityLogout       ActivityType = "logout"
	ActivityApplyFilters ActivityType = "apply_filters"
	ActivityError        ActivityType = "error"
	ActivityAdmin        ActivityType = "admin"
)

// ActivityEntry is a persisted audit line for DynamoDB
type ActivityEntry struct {
	DateKey   string       `json:"dateKey" dynamodbav:"DateKey"`     // YYYY-MM-DD (partition key)
	SortKey   string       `json:"-" dynamodbav:"SortKey"`           // fixed-width timestamp#id (sort key)
	ID        string       `json:"id" dynamodbav:"ID"`
	Timestamp string       `json:"timestamp" dynamodbav:"Timestamp"` // RFC3339
	User      string       `json:"user" dynamodbav:"User"`
	Type      ActivityType `json:"type" dynamodbav:"Type"`
	Message   string       `json:"message" dynamodbav:"Message"`
}

// BoardAgent is one agent on the live in-line board
type BoardAgent struct {
	AgentName string         `json:"agentName"`
	VoipID    string         `json:"voipId"`
	Teams     []string       `json:"teams"`
	Shifts    []string       `json:"shifts"`
	Status    PresenceStatus `json:"status"`
}

// BoardSnapshotType tags board messages on the websocket
const BoardSnapshotType = "board_snapshot"

// BoardSnapshot is the payload pushed to websocket clients every board tick
type BoardSnapshot struct {
	Type      string       `json:"type"` // always "board_snapshot"
	Timestamp string       `json:"timestamp"`
	InLine    int          `json:"inLine"`
	Agents    []BoardAgent `json:"agents"`
}
