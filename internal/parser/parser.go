package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/invitapp/guestlist-server/internal/models"
	"github.com/xuri/excelize/v2"
)

// Kind identifies how an uploaded file is decoded
type Kind int

const (
	// KindDelimited is delimiter-separated text (.csv)
	KindDelimited Kind = iota
	// KindWorkbook is a binary spreadsheet (.xlsx, .xls)
	KindWorkbook
)

// Parse failure taxonomy. Callers match with errors.Is.
var (
	ErrEmptyWorkbook     = errors.New("workbook contains no sheets")
	ErrInsufficientRows  = errors.New("file needs a header row and at least one data row")
	ErrNoHeadersDetected = errors.New("no non-empty column headers detected")
	ErrNoValidDataRows   = errors.New("no rows with data after dropping blank rows")
	ErrParseFailure      = errors.New("file could not be parsed")
)

// delimiter candidates, in tie-break order
var delimiters = []rune{',', ';', '\t', '|'}

// KindForFilename maps a file name to its parse kind by extension,
// case-insensitively. ok is false for anything not accepted.
func KindForFilename(name string) (Kind, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return KindDelimited, true
	case ".xlsx", ".xls":
		return KindWorkbook, true
	}
	return 0, false
}

// Parse decodes raw file bytes into ordered headers and row records.
// It is a pure transform: size and extension gates are the caller's job.
func Parse(kind Kind, data []byte) ([]string, []models.GuestRow, error) {
	var grid [][]string
	var err error

	switch kind {
	case KindDelimited:
		grid, err = parseDelimited(data)
	case KindWorkbook:
		grid, err = parseWorkbook(data)
	default:
		return nil, nil, fmt.Errorf("%w: unknown file kind", ErrParseFailure)
	}
	if err != nil {
		return nil, nil, err
	}

	if len(grid) < 2 {
		return nil, nil, ErrInsufficientRows
	}

	headers, rows := zipGrid(grid)
	if len(headers) == 0 {
		return nil, nil, ErrNoHeadersDetected
	}
	if len(rows) == 0 {
		return nil, nil, ErrNoValidDataRows
	}

	return headers, rows, nil
}

// parseDelimited reads delimiter-separated text. The delimiter is detected
// from the header line; values are kept exactly as written.
func parseDelimited(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var grid [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
		}
		grid = append(grid, record)
	}
	return grid, nil
}

// detectDelimiter picks the candidate occurring most often in the first
// line. Ties resolve in candidate order, so a plain CSV wins by default.
func detectDelimiter(data []byte) rune {
	firstLine := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		firstLine = data[:idx]
	}

	best := delimiters[0]
	bestCount := 0
	for _, d := range delimiters {
		if count := bytes.Count(firstLine, []byte(string(d))); count > bestCount {
			best = d
			bestCount = count
		}
	}
	return best
}

// parseWorkbook reads the first sheet of a binary spreadsheet
func parseWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyWorkbook
	}

	grid, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	return grid, nil
}

// zipGrid turns a raw cell grid into (headers, rows): the first grid row
// becomes the headers after trimming and dropping blanks, each later row is
// zipped positionally against the surviving header columns (missing cells
// become empty strings), and rows blank in every column are dropped.
func zipGrid(grid [][]string) ([]string, []models.GuestRow) {
	type column struct {
		name string
		pos  int
	}

	var columns []column
	seen := make(map[string]bool, len(grid[0]))
	for pos, raw := range grid[0] {
		name := strings.TrimSpace(raw)
		// Duplicate trimmed names keep the first column only, so the
		// header list stays consistent with the row keys
		if name != "" && !seen[name] {
			seen[name] = true
			columns = append(columns, column{name: name, pos: pos})
		}
	}
	if len(columns) == 0 {
		return nil, nil
	}

	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = c.name
	}

	var rows []models.GuestRow
	for _, cells := range grid[1:] {
		row := make(models.GuestRow, len(columns))
		blank := true
		for _, c := range columns {
			value := ""
			if c.pos < len(cells) {
				value = cells[c.pos]
			}
			row[c.name] = value
			if strings.TrimSpace(value) != "" {
				blank = false
			}
		}
		if !blank {
			rows = append(rows, row)
		}
	}

	return headers, rows
}
