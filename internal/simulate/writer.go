package simulate

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/xuri/excelize/v2"
)

var rosterHeader = []string{"Name", "Password", "Role", "Team", "Shift", "VoIP ID", "VoIP Name"}

// queueLogSchema is enough of Asterisk's queue_log for the dashboard
const queueLogSchema = `CREATE TABLE IF NOT EXISTS queue_log (
	time VARCHAR(32),
	callid VARCHAR(80),
	queuename VARCHAR(256),
	agent VARCHAR(80),
	event VARCHAR(32)
)`

// EnsureQueueLog creates the queue_log table when it is missing
func EnsureQueueLog(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, queueLogSchema); err != nil {
		return fmt.Errorf("create queue_log: %w", err)
	}
	return nil
}

// WriteQueueLog inserts events in a single transaction
func WriteQueueLog(ctx context.Context, db *sql.DB, events []types.PresenceEvent) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO queue_log (time, callid, queuename, agent, event) VALUES (?, 'NONE', ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, e.Timestamp.Format(time.DateTime), e.QueueID, e.AgentID, eventName(e.Kind)); err != nil {
			return fmt.Errorf("insert %s %s: %w", e.AgentID, e.Timestamp.Format(time.DateTime), err)
		}
	}
	return tx.Commit()
}

func eventName(k types.EventKind) string {
	if k == types.KindJoin {
		return "ADDMEMBER"
	}
	return "REMOVEMEMBER"
}

// RosterRows renders members in the roster sheet layout, header first
func RosterRows(members []types.Member) [][]string {
	rows := make([][]string, 0, len(members)+1)
	rows = append(rows, rosterHeader)
	for _, m := range members {
		rows = append(rows, []string{
			m.Name,
			m.PasswordHash,
			m.RawRole,
			joinCell(m.Teams),
			joinCell(m.Shifts),
			joinCell(m.VoipIDs),
			joinCell(m.VoipNames),
		})
	}
	return rows
}

// WriteRosterCSV writes members as CSV
func WriteRosterCSV(w io.Writer, members []types.Member) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(RosterRows(members)); err != nil {
		return fmt.Errorf("write roster csv: %w", err)
	}
	return nil
}

// WriteRosterWorkbook saves members to an .xlsx file with a single sheet
func WriteRosterWorkbook(path, sheet string, members []types.Member) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "" && sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return err
		}
	} else {
		sheet = "Sheet1"
	}

	for i, row := range RosterRows(members) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write roster row %d: %w", i+1, err)
		}
	}
	return f.SaveAs(path)
}

func joinCell(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, "|")
}
