// Package lpfile reads meter load-profile exports (.LP files).
//
// A file starts with free-form meter metadata. The table begins at the line
// whose first field is "Fecha/Hora"; fields are ";" separated. The first
// column whose header contains "+P" holds the active power, reactive
// columns ("Q/kvar") are ignored.
package lpfile

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	consolidation "loadprofile/internal/consolidation/domain"
)

const (
	tableMarker   = "Fecha/Hora"
	powerMarker   = "+P"
	reactiveLabel = "Q/kvar"
)

var (
	// ErrMissingTableMarker is the domain sentinel, re-exported for callers
	// that only import this package.
	ErrMissingTableMarker = consolidation.ErrMissingTableMarker
	// ErrNoPowerColumn is returned when the header has no +P column.
	ErrNoPowerColumn = errors.New("lpfile: no +P column")
)

var timestampLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
}

// Reader parses .LP files.
type Reader struct {
	location *time.Location
}

// NewReader returns a reader that interprets timestamps as wall-clock UTC.
func NewReader() *Reader {
	return &Reader{location: time.UTC}
}

// ReadChannel implements application.ChannelReader. Rows whose timestamp or
// power value cannot be parsed are skipped and counted.
func (p *Reader) ReadChannel(ctx context.Context, channelID string, r io.Reader) (consolidation.ChannelSeries, int, error) {
	series := consolidation.ChannelSeries{ChannelID: channelID}
	table, err := seekTable(r)
	if err != nil {
		return series, 0, err
	}

	csvReader := csv.NewReader(table)
	csvReader.Comma = ';'
	csvReader.FieldsPerRecord = -1
	csvReader.LazyQuotes = true
	csvReader.TrimLeadingSpace = true

	header, err := csvReader.Read()
	if err != nil {
		return series, 0, fmt.Errorf("lpfile: read header: %w", err)
	}
	timeCol, powerCol := columns(header)
	if powerCol < 0 {
		return series, 0, ErrNoPowerColumn
	}

	skipped := 0
	for line := 0; ; line++ {
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return series, skipped, err
			}
		}
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped++
				continue
			}
			return series, skipped, err
		}
		if blank(record) {
			continue
		}
		if timeCol >= len(record) || powerCol >= len(record) {
			skipped++
			continue
		}
		at, ok := p.parseTime(record[timeCol])
		if !ok {
			skipped++
			continue
		}
		value, ok := parseValue(record[powerCol])
		if !ok {
			skipped++
			continue
		}
		series.Readings = append(series.Readings, consolidation.Reading{At: at, Value: value})
	}
	return series, skipped, nil
}

// seekTable returns a reader positioned at the table header line.
func seekTable(r io.Reader) (io.Reader, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimPrefix(scanner.Text(), "\ufeff")
		if !strings.HasPrefix(strings.TrimSpace(line), tableMarker) {
			continue
		}
		var rest strings.Builder
		rest.WriteString(strings.TrimSpace(line))
		rest.WriteByte('\n')
		for scanner.Scan() {
			rest.WriteString(scanner.Text())
			rest.WriteByte('\n')
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("lpfile: scan: %w", err)
		}
		return strings.NewReader(rest.String()), nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("lpfile: scan: %w", err)
	}
	return nil, ErrMissingTableMarker
}

func columns(header []string) (timeCol, powerCol int) {
	timeCol, powerCol = 0, -1
	for i, name := range header {
		name = strings.TrimSpace(name)
		switch {
		case name == tableMarker:
			timeCol = i
		case strings.Contains(name, reactiveLabel):
		case powerCol < 0 && strings.Contains(name, powerMarker):
			powerCol = i
		}
	}
	return timeCol, powerCol
}

func (p *Reader) parseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if at, err := time.ParseInLocation(layout, value, p.location); err == nil {
			return at, true
		}
	}
	return time.Time{}, false
}

// parseValue accepts a decimal point or a decimal comma.
func parseValue(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if parsed, err := strconv.ParseFloat(value, 64); err == nil {
		return parsed, !math.IsNaN(parsed) && !math.IsInf(parsed, 0)
	}
	if strings.Count(value, ",") == 1 {
		normalized := strings.ReplaceAll(value, ".", "")
		normalized = strings.Replace(normalized, ",", ".", 1)
		if parsed, err := strconv.ParseFloat(normalized, 64); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

func blank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
