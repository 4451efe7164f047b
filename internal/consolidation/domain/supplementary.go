package consolidation

import (
	"strings"
	"time"
)

// Cell is one value of a supplementary column. Blank cells are distinct from zero.
type Cell struct {
	Value float64
	Blank bool
}

// BlankCell is an empty cell.
var BlankCell = Cell{Blank: true}

// FillPolicy decides what a grid interval without a supplementary row holds.
type FillPolicy string

const (
	// FillZero writes 0 for missing rows.
	FillZero FillPolicy = "zero"
	// FillBlank leaves missing rows empty.
	FillBlank FillPolicy = "blank"
)

// ParseFillPolicy resolves a policy name; blank selects zero fill.
func ParseFillPolicy(name string) (FillPolicy, error) {
	switch FillPolicy(strings.ToLower(strings.TrimSpace(name))) {
	case "", FillZero:
		return FillZero, nil
	case FillBlank:
		return FillBlank, nil
	default:
		return "", ErrUnknownPolicy
	}
}

// SupplementaryRow is one extracted sheet row; At follows the same
// end-of-interval stamping as channel readings.
type SupplementaryRow struct {
	At     time.Time
	Values []Cell
}

// SupplementarySheet holds the extra columns for one group.
type SupplementarySheet struct {
	Sheet  string
	Group  string
	Fields []string
	Rows   []SupplementaryRow
}

// alignSupplementary reindexes a sheet onto the grid, one column per field.
// Later rows win over earlier rows with the same key.
func alignSupplementary(sheet SupplementarySheet, grid *CalendarGrid, fill FillPolicy) ([][]Cell, int) {
	columns := make([][]Cell, len(sheet.Fields))
	for f := range columns {
		columns[f] = make([]Cell, grid.Len())
		if fill == FillBlank {
			for i := range columns[f] {
				columns[f][i] = BlankCell
			}
		}
	}
	discarded := 0
	for _, row := range sheet.Rows {
		i, ok := grid.IndexOf(KeyFor(row.At))
		if !ok {
			discarded++
			continue
		}
		for f := range columns {
			cell := BlankCell
			if f < len(row.Values) {
				cell = row.Values[f]
			}
			if cell.Blank && fill == FillZero {
				cell = Cell{}
			}
			columns[f][i] = cell
		}
	}
	return columns, discarded
}
