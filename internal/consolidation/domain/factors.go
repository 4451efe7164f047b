package consolidation

import (
	"math"
	"sort"
)

// FactorTable maps channel ids to calibration multipliers. Channels absent
// from the table use a multiplier of 1. Immutable once built.
type FactorTable struct {
	factors map[string]float64
}

// NewFactorTable validates that every multiplier is positive and finite.
func NewFactorTable(factors map[string]float64) (FactorTable, error) {
	table := FactorTable{factors: make(map[string]float64, len(factors))}
	for channelID, factor := range factors {
		if channelID == "" {
			return FactorTable{}, ErrEmptyChannelID
		}
		if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
			return FactorTable{}, ErrInvalidFactor
		}
		table.factors[channelID] = factor
	}
	return table, nil
}

// Factor returns the multiplier of a channel.
func (t FactorTable) Factor(channelID string) float64 {
	if factor, ok := t.factors[channelID]; ok {
		return factor
	}
	return 1
}

// Has reports whether the channel is listed.
func (t FactorTable) Has(channelID string) bool {
	_, ok := t.factors[channelID]
	return ok
}

// ChannelIDs returns the listed channels in ascending order.
func (t FactorTable) ChannelIDs() []string {
	ids := make([]string, 0, len(t.factors))
	for id := range t.factors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of listed channels.
func (t FactorTable) Len() int { return len(t.factors) }
