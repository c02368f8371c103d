// Command queuesim seeds a development telephony database and roster with a
// simulated day of queue membership changes.
package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dennisdiepolder/qcdash/internal/eventsource"
	"github.com/dennisdiepolder/qcdash/internal/simulate"
	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

func main() {
	var (
		agentCount = flag.Int("agents", 50, "Number of experts to generate")
		day        = flag.String("date", time.Now().Format(eventsource.DateLayout), "Day to simulate (YYYY-MM-DD)")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
		queues     = flag.String("queues", "5100,5200,5300,5600", "Comma separated queue names")
		rosterPath = flag.String("roster", "roster.xlsx", "Roster output (.xlsx or .csv, empty to skip)")
		sqlitePath = flag.String("sqlite", "", "Write queue_log to this SQLite file instead of MySQL")
		logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Str("service", "queuesim").
		Logger()

	_ = godotenv.Load()

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "Asia/Tehran"))
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid TIMEZONE")
	}
	date, err := time.ParseInLocation(eventsource.DateLayout, *day, loc)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid -date")
	}

	g := simulate.NewGenerator(*seed)
	members := g.Members(*agentCount)
	events := g.Day(members, date, strings.Split(*queues, ","))
	logger.Info().
		Int("members", len(members)).
		Int("events", len(events)).
		Int64("seed", *seed).
		Str("date", *day).
		Msg("simulated day generated")

	if *rosterPath != "" {
		if err := writeRoster(*rosterPath, members); err != nil {
			logger.Fatal().Err(err).Msg("failed to write roster")
		}
		logger.Info().Str("path", *rosterPath).Msg("roster written")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := openDB(ctx, *sqlitePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open queue_log database")
	}
	defer db.Close()

	if err := simulate.EnsureQueueLog(ctx, db); err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare queue_log")
	}
	if err := simulate.WriteQueueLog(ctx, db, events); err != nil {
		logger.Fatal().Err(err).Msg("failed to write queue_log")
	}
	logger.Info().Int("rows", len(events)).Msg("queue_log seeded")
}

func writeRoster(path string, members []types.Member) error {
	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return simulate.WriteRosterCSV(f, members)
	}
	return simulate.WriteRosterWorkbook(path, getEnv("ROSTER_SHEET", "Users"), members)
}

func openDB(ctx context.Context, sqlitePath string) (*sql.DB, error) {
	if sqlitePath != "" {
		return sql.Open("sqlite", sqlitePath)
	}
	return eventsource.OpenMySQL(ctx, eventsource.DBConfig{
		Host:     getEnv("VOIP_DB_HOST", "localhost"),
		Port:     getEnv("VOIP_DB_PORT", "3306"),
		User:     getEnv("VOIP_DB_USER", ""),
		Password: getEnv("VOIP_DB_PASSWORD", ""),
		Database: getEnv("VOIP_DB_NAME", "asteriskcdrdb"),
		Timeout:  10 * time.Second,
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
