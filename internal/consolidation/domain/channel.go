package consolidation

import (
	"strings"
	"time"
)

// Reading is one raw (timestamp, value) pair from a channel file.
type Reading struct {
	At    time.Time
	Value float64
}

// ChannelSeries is the raw series of one uploaded channel. Readings may be
// unordered, duplicated, missing or outside the month.
type ChannelSeries struct {
	ChannelID string
	Readings  []Reading
}

// DuplicatePolicy resolves several readings landing on the same grid key.
type DuplicatePolicy string

const (
	// DuplicateLastWins keeps the last reading in file order.
	DuplicateLastWins DuplicatePolicy = "last"
	// DuplicateFirstWins keeps the first reading in file order.
	DuplicateFirstWins DuplicatePolicy = "first"
	// DuplicateSum adds the readings together.
	DuplicateSum DuplicatePolicy = "sum"
)

// ParseDuplicatePolicy resolves a policy name; blank selects last-wins.
func ParseDuplicatePolicy(name string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(strings.ToLower(strings.TrimSpace(name))) {
	case "", DuplicateLastWins:
		return DuplicateLastWins, nil
	case DuplicateFirstWins:
		return DuplicateFirstWins, nil
	case DuplicateSum:
		return DuplicateSum, nil
	default:
		return "", ErrUnknownPolicy
	}
}

// AlignStats describes what alignment did with the raw readings.
type AlignStats struct {
	Readings   int
	Matched    int
	Discarded  int
	Duplicates int
}

// AlignedChannel is a channel reindexed onto the grid, gaps filled with zero.
type AlignedChannel struct {
	ChannelID string
	Group     string
	Values    []float64
	// Present is false for channels known only from the factor table.
	Present bool
	Stats   AlignStats
}

// Align left-joins the grid keys against the channel readings. The result has
// exactly grid.Len() values in grid order; readings whose key is not in the
// grid are discarded.
func Align(series ChannelSeries, grid *CalendarGrid, policy DuplicatePolicy) AlignedChannel {
	aligned := AlignedChannel{
		ChannelID: series.ChannelID,
		Group:     NormalizeName(series.ChannelID),
		Values:    make([]float64, grid.Len()),
		Present:   true,
		Stats:     AlignStats{Readings: len(series.Readings)},
	}
	seen := make([]bool, grid.Len())
	for _, reading := range series.Readings {
		i, ok := grid.IndexOf(KeyFor(reading.At))
		if !ok {
			aligned.Stats.Discarded++
			continue
		}
		if !seen[i] {
			seen[i] = true
			aligned.Values[i] = reading.Value
			aligned.Stats.Matched++
			continue
		}
		aligned.Stats.Duplicates++
		switch policy {
		case DuplicateFirstWins:
		case DuplicateSum:
			aligned.Values[i] += reading.Value
		default:
			aligned.Values[i] = reading.Value
		}
	}
	return aligned
}

// AbsentChannel is the all-zero column of a channel that was not uploaded.
func AbsentChannel(channelID string, grid *CalendarGrid) AlignedChannel {
	return AlignedChannel{
		ChannelID: channelID,
		Group:     NormalizeName(channelID),
		Values:    make([]float64, grid.Len()),
	}
}

// Missing returns the number of grid intervals without a reading.
func (c AlignedChannel) Missing() int {
	if !c.Present {
		return len(c.Values)
	}
	return len(c.Values) - c.Stats.Matched
}
