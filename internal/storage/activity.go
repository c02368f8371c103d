package storage

import (
	"context"
	"time"

	"github.com/dennisdiepolder/qcdash/internal/metrics"
	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// fixed width so sort keys order lexically
const sortKeyLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ActivityLog records user actions. Write failures are logged and counted
// but never fail the request that caused them.
type ActivityLog struct {
	store    Store
	location *time.Location
	now      func() time.Time
	logger   zerolog.Logger
}

// NewActivityLog creates an ActivityLog; day partitions follow loc
func NewActivityLog(store Store, loc *time.Location, logger zerolog.Logger) *ActivityLog {
	if loc == nil {
		loc = time.Local
	}
	return &ActivityLog{
		store:    store,
		location: loc,
		now:      time.Now,
		logger:   logger.With().Str("component", "activity").Logger(),
	}
}

// Record appends an entry for user
func (a *ActivityLog) Record(ctx context.Context, user string, kind types.ActivityType, message string) {
	now := a.now().In(a.location)
	id := uuid.NewString()
	ts := now.Format(sortKeyLayout)

	entry := types.ActivityEntry{
		DateKey:   now.Format("2006-01-02"),
		SortKey:   ts + "#" + id,
		ID:        id,
		Timestamp: now.Format(time.RFC3339),
		User:      user,
		Type:      kind,
		Message:   message,
	}

	a.logger.Info().Str("user", user).Str("type", string(kind)).Msg(message)
	if err := a.store.Append(ctx, entry); err != nil {
		metrics.Get().RecordActivityError()
		a.logger.Error().Err(err).Str("user", user).Msg("failed to persist activity")
	}
}

// List returns the entries for a YYYY-MM-DD day, newest first
func (a *ActivityLog) List(ctx context.Context, dateKey string) ([]types.ActivityEntry, error) {
	return a.store.ListByDate(ctx, dateKey)
}

// Today is the current date key in the log's location
func (a *ActivityLog) Today() string {
	return a.now().In(a.location).Format("2006-01-02")
}
