package consolidation

import "time"

// ColumnKind tells consumers how a column was produced.
type ColumnKind string

const (
	ColumnChannel       ColumnKind = "channel"
	ColumnSupplementary ColumnKind = "supplementary"
	ColumnWeighted      ColumnKind = "weighted"
	ColumnGroupTotal    ColumnKind = "group_total"
	ColumnGroupHP       ColumnKind = "group_hp"
	ColumnGroupHFP      ColumnKind = "group_hfp"
)

// Calendar column headers, always first.
const (
	HeaderDate         = "Date"
	HeaderTime         = "Time"
	HeaderTariffPeriod = "TariffPeriod"
)

// Column is one data column of the consolidated table, aligned with Intervals.
type Column struct {
	Name    string
	Kind    ColumnKind
	Channel string
	Group   string
	Field   string
	Cells   []Cell
}

// Sum adds the non-blank cells.
func (c Column) Sum() float64 {
	var total float64
	for _, cell := range c.Cells {
		if !cell.Blank {
			total += cell.Value
		}
	}
	return total
}

// ChannelSummary describes one channel of a run.
type ChannelSummary struct {
	ChannelID string
	Group     string
	Factor    float64
	Present   bool
	Stats     AlignStats
}

// Table is the consolidated result handed to exporters.
type Table struct {
	Year     int
	Month    time.Month
	Rule     BoundaryRule
	Holidays []int

	Intervals []Interval
	Columns   []Column
	Channels  []ChannelSummary
	Groups    []GroupAggregate
	Warnings  []Warning
}

// Header returns the column names including the calendar columns.
func (t *Table) Header() []string {
	header := make([]string, 0, 3+len(t.Columns))
	header = append(header, HeaderDate, HeaderTime, HeaderTariffPeriod)
	for _, column := range t.Columns {
		header = append(header, column.Name)
	}
	return header
}

// Rows returns the number of rows.
func (t *Table) Rows() int { return len(t.Intervals) }

// Column finds a column by name.
func (t *Table) Column(name string) (Column, bool) {
	for _, column := range t.Columns {
		if column.Name == name {
			return column, true
		}
	}
	return Column{}, false
}

// Group finds a group aggregate by name.
func (t *Table) Group(name string) (GroupAggregate, bool) {
	for _, group := range t.Groups {
		if group.Name == name {
			return group, true
		}
	}
	return GroupAggregate{}, false
}

// MonthStart returns the first instant of the month.
func (t *Table) MonthStart() time.Time {
	return time.Date(t.Year, t.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Column names.
func channelColumnName(channelID string) string  { return channelID }
func weightedColumnName(channelID string) string { return channelID + " weighted" }
func supplementaryColumnName(group, field string) string {
	return group + " " + field
}

// GroupColumnName returns the name of a group column of the given kind.
func GroupColumnName(group string, kind ColumnKind) string {
	switch kind {
	case ColumnGroupHP:
		return group + " HP"
	case ColumnGroupHFP:
		return group + " HFP"
	default:
		return group + " TOTAL"
	}
}

func valueCells(values []float64) []Cell {
	cells := make([]Cell, len(values))
	for i, value := range values {
		cells[i] = Cell{Value: value}
	}
	return cells
}
