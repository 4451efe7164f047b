package consolidation

import "sort"

// GroupAggregate is the weighted total of the channels sharing a group key.
type GroupAggregate struct {
	Name    string
	Members []string
	// Total holds the per-interval weighted sum, aligned with the grid.
	Total []float64
	HP    float64
	HFP   float64
	Peak  float64
}

// Sum returns HP + HFP.
func (g GroupAggregate) Sum() float64 { return g.HP + g.HFP }

// Weighted returns value x factor for every interval of the channel.
func Weighted(channel AlignedChannel, factors FactorTable) []float64 {
	factor := factors.Factor(channel.ChannelID)
	out := make([]float64, len(channel.Values))
	for i, value := range channel.Values {
		out[i] = value * factor
	}
	return out
}

// Aggregate groups channels by their normalized name and sums the weighted
// values per interval. Groups come out in order of first appearance; members
// are summed in ascending channel id order so the result does not depend on
// upload order.
func Aggregate(grid *CalendarGrid, channels []AlignedChannel, factors FactorTable) []GroupAggregate {
	var order []string
	members := make(map[string][]AlignedChannel)
	for _, channel := range channels {
		group := channel.Group
		if group == "" {
			group = NormalizeName(channel.ChannelID)
		}
		if _, ok := members[group]; !ok {
			order = append(order, group)
		}
		members[group] = append(members[group], channel)
	}

	out := make([]GroupAggregate, 0, len(order))
	for _, name := range order {
		group := members[name]
		sort.SliceStable(group, func(i, j int) bool { return group[i].ChannelID < group[j].ChannelID })

		agg := GroupAggregate{Name: name, Total: make([]float64, grid.Len())}
		for _, channel := range group {
			agg.Members = append(agg.Members, channel.ChannelID)
			for i, value := range Weighted(channel, factors) {
				agg.Total[i] += value
			}
		}
		for i, total := range agg.Total {
			if grid.At(i).Period == PeriodHP {
				agg.HP += total
			} else {
				agg.HFP += total
			}
			if i == 0 || total > agg.Peak {
				agg.Peak = total
			}
		}
		out = append(out, agg)
	}
	return out
}
