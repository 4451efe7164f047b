package interfaces

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	consolidation "loadprofile/internal/consolidation/domain"
)

// Format is an export format of a consolidated table.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ErrUnknownFormat is returned for unsupported export formats.
var ErrUnknownFormat = errors.New("export: unknown format")

const (
	dateLayout = "02/01/2006"

	sheetConsolidated = "consolidated"
	sheetSummary      = "summary"
	sheetWarnings     = "warnings"
)

// ParseFormat resolves a format name; blank selects JSON.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV, FormatXLSX, FormatPDF:
		return Format(name), nil
	}
	return "", ErrUnknownFormat
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/json"
	}
}

// FileName returns the download name for a run.
func (f Format) FileName(table *consolidation.Table) string {
	return fmt.Sprintf("consolidated_%04d_%02d.%s", table.Year, int(table.Month), f)
}

// WriteCSV writes the full table, calendar columns first.
func WriteCSV(w io.Writer, table *consolidation.Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(table.Header()); err != nil {
		return err
	}
	record := make([]string, 0, 3+len(table.Columns))
	for i, interval := range table.Intervals {
		record = append(record[:0], calendarCells(interval)...)
		for _, column := range table.Columns {
			record = append(record, formatCell(column.Cells[i]))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// BuildXLSX renders the table, a per-group summary and the warnings.
func BuildXLSX(run *consolidation.Run, table *consolidation.Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), sheetConsolidated); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(sheetWarnings); err != nil {
		return nil, err
	}

	header := toRow(table.Header())
	if err := f.SetSheetRow(sheetConsolidated, "A1", &header); err != nil {
		return nil, err
	}
	row := make([]any, 0, 3+len(table.Columns))
	for i, interval := range table.Intervals {
		row = row[:0]
		for _, value := range calendarCells(interval) {
			row = append(row, value)
		}
		for _, column := range table.Columns {
			cell := column.Cells[i]
			if cell.Blank {
				row = append(row, nil)
				continue
			}
			row = append(row, cell.Value)
		}
		if err := f.SetSheetRow(sheetConsolidated, cellName(1, i+2), &row); err != nil {
			return nil, err
		}
	}
	if err := f.SetPanes(sheetConsolidated, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, err
	}

	summary := [][]any{
		{"Load profile consolidation"},
		{},
		{"Period", fmt.Sprintf("%04d-%02d", table.Year, int(table.Month))},
		{"Tariff rule", string(table.Rule)},
		{"Holidays", holidayList(table.Holidays)},
		{"Intervals", table.Rows()},
	}
	if run != nil {
		summary = append(summary,
			[]any{"Run", run.ID},
			[]any{"Generated", run.CreatedAt.Format(time.RFC3339)},
		)
	}
	summary = append(summary, []any{}, []any{"Group", "Members", "HP", "HFP", "Total", "Peak"})
	for _, group := range table.Groups {
		summary = append(summary, []any{group.Name, len(group.Members), group.HP, group.HFP, group.Sum(), group.Peak})
	}
	summary = append(summary, []any{}, []any{"Channel", "Group", "Factor", "Uploaded", "Readings", "Matched", "Discarded", "Duplicates"})
	for _, channel := range table.Channels {
		summary = append(summary, []any{
			channel.ChannelID, channel.Group, channel.Factor, channel.Present,
			channel.Stats.Readings, channel.Stats.Matched, channel.Stats.Discarded, channel.Stats.Duplicates,
		})
	}
	for i := range summary {
		if err := f.SetSheetRow(sheetSummary, cellName(1, i+1), &summary[i]); err != nil {
			return nil, err
		}
	}

	warnHeader := []any{"Kind", "Subject", "Message"}
	if err := f.SetSheetRow(sheetWarnings, "A1", &warnHeader); err != nil {
		return nil, err
	}
	for i, warning := range table.Warnings {
		values := []any{string(warning.Kind), warning.Subject, warning.Message}
		if err := f.SetSheetRow(sheetWarnings, cellName(1, i+2), &values); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildSummaryPDF renders the run summary: per-group HP/HFP totals and warnings.
func BuildSummaryPDF(run *consolidation.Run, table *consolidation.Table) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Load Profile Consolidation")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %04d-%02d", table.Year, int(table.Month)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Tariff rule: %s", table.Rule))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Holidays: %s", holidayList(table.Holidays)))
	pdf.Ln(5)
	if run != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Run: %s", run.ID))
		pdf.Ln(5)
		pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", run.CreatedAt.Format(time.RFC3339)))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	for _, head := range []string{"Group", "HP", "HFP", "Total", "Peak"} {
		pdf.CellFormat(36, 6, head, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, group := range table.Groups {
		pdf.CellFormat(36, 6, group.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(36, 6, fmt.Sprintf("%.3f", group.HP), "1", 0, "R", false, 0, "")
		pdf.CellFormat(36, 6, fmt.Sprintf("%.3f", group.HFP), "1", 0, "R", false, 0, "")
		pdf.CellFormat(36, 6, fmt.Sprintf("%.3f", group.Sum()), "1", 0, "R", false, 0, "")
		pdf.CellFormat(36, 6, fmt.Sprintf("%.3f", group.Peak), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	if len(table.Warnings) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(0, 6, fmt.Sprintf("Warnings (%d)", len(table.Warnings)))
		pdf.Ln(6)
		pdf.SetFont("Arial", "", 9)
		for _, warning := range table.Warnings {
			pdf.MultiCell(0, 5, warning.String(), "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func calendarCells(interval consolidation.Interval) []string {
	return []string{
		interval.Date.Time().Format(dateLayout),
		interval.Time.String(),
		string(interval.Period),
	}
}

func formatCell(cell consolidation.Cell) string {
	if cell.Blank {
		return ""
	}
	return strconv.FormatFloat(cell.Value, 'f', -1, 64)
}

func holidayList(days []int) string {
	if len(days) == 0 {
		return "-"
	}
	var buf bytes.Buffer
	for i, day := range days {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(strconv.Itoa(day))
	}
	return buf.String()
}

func toRow(values []string) []any {
	row := make([]any, len(values))
	for i, value := range values {
		row[i] = value
	}
	return row
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
