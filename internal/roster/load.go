package roster

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrMemberNotFound is returned by Lookup for unknown names
	ErrMemberNotFound = errors.New("roster member not found")
	// ErrRosterUnavailable is returned when no roster has ever been loaded
	ErrRosterUnavailable = errors.New("roster unavailable")
)

const (
	multiValueSep = "|"
	emptyMarker   = "-"
)

var requiredColumns = []string{"name", "password", "role", "team", "shift", "voip_id", "voip_name"}

// Loader produces the raw roster rows, header first
type Loader interface {
	Load() ([][]string, error)
}

// FileLoader reads an .xlsx or .csv roster from disk
type FileLoader struct {
	Path  string
	Sheet string // xlsx only, first sheet when empty or missing
}

// Load reads the file at Path. A .csv extension is parsed as CSV and
// anything else as an xlsx workbook.
func (l FileLoader) Load() ([][]string, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", l.Path, err)
	}
	if strings.EqualFold(filepath.Ext(l.Path), ".csv") {
		return readCSV(data)
	}
	return readWorkbook(data, l.Sheet)
}

func readWorkbook(data []byte, sheet string) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open roster workbook: %w", err)
	}
	defer func() { _ = file.Close() }()

	if idx, _ := file.GetSheetIndex(sheet); sheet == "" || idx < 0 {
		sheet = file.GetSheetName(0)
	}
	if sheet == "" {
		return nil, fmt.Errorf("no worksheet found")
	}

	rows, err := file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

// readCSV is the fallback for rosters exported from other tools
func readCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse roster csv: %w", err)
	}
	return rows, nil
}

// Parse turns raw rows into members. Rows without a name are skipped.
func Parse(rows [][]string) ([]types.Member, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("roster is empty")
	}

	idx := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		idx[normalizeHeader(h)] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("roster missing column %q", col)
		}
	}

	members := make([]types.Member, 0, len(rows)-1)
	for _, row := range rows[1:] {
		name := cellValue(row, idx["name"])
		if name == "" {
			continue
		}
		members = append(members, types.Member{
			Name:         name,
			PasswordHash: cellValue(row, idx["password"]),
			RawRole:      cellValue(row, idx["role"]),
			Teams:        splitCell(cellValue(row, idx["team"])),
			Shifts:       splitCell(cellValue(row, idx["shift"])),
			VoipIDs:      splitCell(cellValue(row, idx["voip_id"])),
			VoipNames:    splitCell(cellValue(row, idx["voip_name"])),
		})
	}
	return members, nil
}

func normalizeHeader(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	return strings.ReplaceAll(h, " ", "_")
}

func cellValue(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func splitCell(v string) []string {
	if v == "" || v == emptyMarker {
		return []string{}
	}
	parts := strings.Split(v, multiValueSep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || p == emptyMarker {
			continue
		}
		out = append(out, p)
	}
	return out
}
