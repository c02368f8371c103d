package eventsource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dennisdiepolder/qcdash/internal/metrics"
	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
)

// queue_log event names mapped onto presence kinds
const (
	eventAddMember    = "ADDMEMBER"
	eventRemoveMember = "REMOVEMEMBER"
)

const timestampLayout = "2006-01-02 15:04:05"

// DBConfig holds the telephony database connection settings
type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Timeout  time.Duration
	Location *time.Location
}

// DSN builds the go-sql-driver DSN. Timestamps are read as text and
// interpreted in Location by the source itself.
func (c DBConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = c.Host + ":" + c.Port
	cfg.DBName = c.Database
	cfg.Timeout = c.Timeout
	cfg.ReadTimeout = c.Timeout
	cfg.ParseTime = false
	return cfg.FormatDSN()
}

// OpenMySQL opens and pings the telephony database
func OpenMySQL(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open voip database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach voip database: %w", err)
	}
	return db, nil
}

// SQLSource reads presence events from the Asterisk queue_log table
type SQLSource struct {
	db       *sql.DB
	location *time.Location
	logger   zerolog.Logger
}

// NewSQLSource creates a new SQLSource. Naive timestamps in the table are
// interpreted in loc.
func NewSQLSource(db *sql.DB, loc *time.Location, logger zerolog.Logger) *SQLSource {
	if loc == nil {
		loc = time.Local
	}
	return &SQLSource{
		db:       db,
		location: loc,
		logger:   logger.With().Str("component", "event_source").Logger(),
	}
}

// buildQuery renders the parameterized statement and its arguments.
// Only placeholders are generated from the input, never values.
func buildQuery(q Query, loc *time.Location) (string, []any) {
	var sb strings.Builder
	args := make([]any, 0, len(q.Agents)+len(q.Queues)+4)

	sb.WriteString("SELECT time, agent, queuename, event FROM queue_log WHERE agent IN (")
	for i, agent := range q.Agents {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("?")
		args = append(args, agent)
	}
	sb.WriteString(") AND queuename IN (")
	for i, queue := range q.Queues {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("?")
		args = append(args, queue)
	}
	sb.WriteString(") AND time >= ? AND time < ? AND event IN (?, ?) ORDER BY time ASC")

	start := dayStart(q.Start.In(loc))
	end := dayStart(q.End.In(loc)).AddDate(0, 0, 1)
	args = append(args, start.Format(timestampLayout), end.Format(timestampLayout), eventAddMember, eventRemoveMember)

	return sb.String(), args
}

// Fetch runs the query. Rows with missing or unknown values are returned with
// the offending fields empty so reconstruction can count and drop them.
func (s *SQLSource) Fetch(ctx context.Context, q Query) ([]types.PresenceEvent, error) {
	q = q.Normalized()
	if q.Empty() {
		return []types.PresenceEvent{}, nil
	}

	m := metrics.Get()
	started := time.Now()

	stmt, args := buildQuery(q, s.location)
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		m.RecordFetch(0, time.Since(started), err)
		s.logger.Error().Err(err).Int("agents", len(q.Agents)).Msg("queue_log query failed")
		return nil, &FetchError{Start: q.Start, End: q.End, Err: err}
	}
	defer rows.Close()

	events := make([]types.PresenceEvent, 0, 64)
	for rows.Next() {
		var (
			rawTime any
			agent   sql.NullString
			queue   sql.NullString
			event   sql.NullString
		)
		if err := rows.Scan(&rawTime, &agent, &queue, &event); err != nil {
			m.RecordFetch(0, time.Since(started), err)
			return nil, &FetchError{Start: q.Start, End: q.End, Err: fmt.Errorf("scan queue_log row: %w", err)}
		}

		ts, _ := parseTimestamp(rawTime, s.location)
		events = append(events, types.PresenceEvent{
			AgentID:   agent.String,
			QueueID:   queue.String,
			Timestamp: ts,
			Kind:      kindOf(event.String),
		})
	}
	if err := rows.Err(); err != nil {
		m.RecordFetch(0, time.Since(started), err)
		return nil, &FetchError{Start: q.Start, End: q.End, Err: err}
	}

	m.RecordFetch(len(events), time.Since(started), nil)
	s.logger.Debug().
		Int("events", len(events)).
		Int("agents", len(q.Agents)).
		Dur("took", time.Since(started)).
		Msg("queue_log fetched")

	return events, nil
}

func kindOf(event string) types.EventKind {
	switch strings.ToUpper(strings.TrimSpace(event)) {
	case eventAddMember:
		return types.KindJoin
	case eventRemoveMember:
		return types.KindLeave
	}
	return ""
}

// parseTimestamp accepts the representations drivers return for a DATETIME
// column and pins the wall clock to loc.
func parseTimestamp(raw any, loc *time.Location) (time.Time, bool) {
	var text string
	switch v := raw.(type) {
	case time.Time:
		return time.Date(v.Year(), v.Month(), v.Day(), v.Hour(), v.Minute(), v.Second(), v.Nanosecond(), loc), true
	case []byte:
		text = string(v)
	case string:
		text = v
	default:
		return time.Time{}, false
	}

	text = strings.TrimSpace(text)
	for _, layout := range []string{"2006-01-02 15:04:05.999999", timestampLayout, time.RFC3339Nano} {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
