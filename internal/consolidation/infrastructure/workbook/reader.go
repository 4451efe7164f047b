// Package workbook reads supplementary per-group sheets from an xlsx upload.
package workbook

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	consolidation "loadprofile/internal/consolidation/domain"
)

// headerScanRows bounds how far down a sheet the header row may sit.
const headerScanRows = 10

var (
	dateTimeLayouts = []string{
		"02/01/2006 15:04:05",
		"02/01/2006 15:04",
		"2/1/2006 15:04:05",
		"2/1/2006 15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02T15:04:05",
	}
	dateLayouts = []string{"02/01/2006", "2/1/2006", "2006-01-02"}
	timeLayouts = []string{"15:04:05", "15:04"}
)

// Reader extracts supplementary sheets.
type Reader struct{}

// NewReader constructs a Reader.
func NewReader() *Reader { return &Reader{} }

type layout struct {
	row       int
	dateTime  int
	date      int
	clock     int
	fieldCols []int
	fields    []string
}

// ReadSupplementary implements application.SupplementaryReader. Sheets
// without a recognisable header row are skipped, as are rows whose
// timestamp cannot be read. A sheet that cannot be read is skipped and
// reported; only a workbook that cannot be opened is an error.
func (w *Reader) ReadSupplementary(ctx context.Context, r io.Reader) ([]consolidation.SupplementarySheet, []consolidation.Warning, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("workbook: open: %w", err)
	}
	defer f.Close()

	return readSheets(ctx, f.GetSheetList(), func(name string) ([][]string, error) {
		return f.GetRows(name, excelize.Options{RawCellValue: true})
	})
}

func readSheets(ctx context.Context, names []string, rowsOf func(string) ([][]string, error)) ([]consolidation.SupplementarySheet, []consolidation.Warning, error) {
	sheets := make([]consolidation.SupplementarySheet, 0, len(names))
	var warnings []consolidation.Warning
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		rows, err := rowsOf(name)
		if err != nil {
			warnings = append(warnings, consolidation.NewWarning(consolidation.WarningInvalidSupplementarySheet, name,
				"sheet could not be read: %v; sheet skipped", err))
			continue
		}
		head, ok := findHeader(rows)
		if !ok {
			continue
		}
		sheet := consolidation.SupplementarySheet{
			Sheet:  name,
			Group:  consolidation.NormalizeName(name),
			Fields: head.fields,
		}
		for _, row := range rows[head.row+1:] {
			at, ok := head.timestamp(row)
			if !ok {
				continue
			}
			values := make([]consolidation.Cell, len(head.fieldCols))
			for i, col := range head.fieldCols {
				values[i] = parseCell(cellAt(row, col))
			}
			sheet.Rows = append(sheet.Rows, consolidation.SupplementaryRow{At: at, Values: values})
		}
		sheets = append(sheets, sheet)
	}
	return sheets, warnings, nil
}

func findHeader(rows [][]string) (layout, bool) {
	for i, row := range rows {
		if i >= headerScanRows {
			break
		}
		head := layout{row: i, dateTime: -1, date: -1, clock: -1}
		for col, cell := range row {
			switch strings.ToLower(strings.TrimSpace(cell)) {
			case "fecha/hora", "fecha hora", "datetime":
				head.dateTime = col
			case "fecha", "date":
				head.date = col
			case "hora", "time":
				head.clock = col
			}
		}
		if head.dateTime < 0 && (head.date < 0 || head.clock < 0) {
			continue
		}
		for col, cell := range row {
			name := strings.TrimSpace(cell)
			if name == "" || col == head.dateTime || col == head.date || col == head.clock {
				continue
			}
			head.fieldCols = append(head.fieldCols, col)
			head.fields = append(head.fields, name)
		}
		return head, true
	}
	return layout{}, false
}

func (l layout) timestamp(row []string) (time.Time, bool) {
	if l.dateTime >= 0 {
		return parseDateTime(cellAt(row, l.dateTime))
	}
	day, ok := parseDate(cellAt(row, l.date))
	if !ok {
		return time.Time{}, false
	}
	clock, ok := parseClock(cellAt(row, l.clock))
	if !ok {
		return time.Time{}, false
	}
	return day.Add(clock), true
}

func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func parseDateTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		return fromSerial(serial)
	}
	for _, layout := range dateTimeLayouts {
		if at, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return at, true
		}
	}
	return time.Time{}, false
}

func parseDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		at, ok := fromSerial(math.Floor(serial))
		return at, ok
	}
	for _, layout := range dateLayouts {
		if at, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return at, true
		}
	}
	return time.Time{}, false
}

// parseClock returns the offset from midnight. Excel stores times as a
// fraction of a day; 1.0 (or "24:00") is the end of the day.
func parseClock(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if fraction, err := strconv.ParseFloat(value, 64); err == nil {
		if fraction < 0 || fraction > 1 {
			return 0, false
		}
		minutes := math.Round(fraction * 24 * 60)
		return time.Duration(minutes) * time.Minute, true
	}
	if value == "24:00" || value == "24:00:00" {
		return 24 * time.Hour, true
	}
	for _, layout := range timeLayouts {
		if at, err := time.Parse(layout, value); err == nil {
			return time.Duration(at.Hour())*time.Hour + time.Duration(at.Minute())*time.Minute, true
		}
	}
	return 0, false
}

func fromSerial(serial float64) (time.Time, bool) {
	if serial <= 0 {
		return time.Time{}, false
	}
	at, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return at.UTC().Round(time.Minute), true
}

func parseCell(value string) consolidation.Cell {
	if value == "" {
		return consolidation.BlankCell
	}
	parsed, err := strconv.ParseFloat(strings.Replace(value, ",", ".", 1), 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return consolidation.BlankCell
	}
	return consolidation.Cell{Value: parsed}
}
