package consolidation

import "time"

// Options are the per-run policies of the engine.
type Options struct {
	Rule       BoundaryRule
	Duplicates DuplicatePolicy
	Fill       FillPolicy
}

// Request is the complete input of one consolidation run.
type Request struct {
	Year     int
	Month    time.Month
	Holidays HolidaySet
	Channels []ChannelSeries
	Factors  FactorTable
	// Supplementary is nil when no workbook was supplied. A non-nil slice
	// means a workbook was read, so groups without a sheet are reported.
	Supplementary []SupplementarySheet
	Options       Options
	// Warnings raised by collaborators before the run (file parsing, holiday input).
	Warnings []Warning
}

// Engine orchestrates grid, classification, alignment and aggregation.
// It keeps no state between runs.
type Engine struct{}

// NewEngine constructs an engine.
func NewEngine() *Engine { return &Engine{} }

// Consolidate runs one consolidation. When no channel is usable it returns
// the classified grid without data columns together with ErrNoChannelsProvided.
func (e *Engine) Consolidate(req Request) (*Table, error) {
	grid, err := NewCalendarGrid(req.Year, req.Month, req.Holidays, req.Options.Rule)
	if err != nil {
		return nil, err
	}

	table := &Table{
		Year:      req.Year,
		Month:     req.Month,
		Rule:      grid.Rule(),
		Holidays:  grid.Holidays(),
		Intervals: grid.Intervals(),
		Warnings:  append([]Warning(nil), req.Warnings...),
	}

	channels := e.alignChannels(req, grid, table)
	uploaded := 0
	for _, channel := range channels {
		if channel.Present {
			uploaded++
		}
	}
	if uploaded == 0 {
		return table, ErrNoChannelsProvided
	}

	groups := Aggregate(grid, channels, req.Factors)
	sheets := e.matchSheets(req, groups, table)

	for _, group := range groups {
		for _, channel := range channels {
			if channel.Group != group.Name {
				continue
			}
			table.Columns = append(table.Columns, Column{
				Name:    channelColumnName(channel.ChannelID),
				Kind:    ColumnChannel,
				Channel: channel.ChannelID,
				Group:   channel.Group,
				Cells:   valueCells(channel.Values),
			})
		}
		sheet, ok := sheets[group.Name]
		if !ok {
			continue
		}
		columns, discarded := alignSupplementary(sheet, grid, req.Options.Fill)
		if discarded > 0 {
			table.Warnings = append(table.Warnings, NewWarning(WarningDiscardedReadings, sheet.Sheet,
				"%d supplementary rows outside %04d-%02d", discarded, req.Year, int(req.Month)))
		}
		for f, field := range sheet.Fields {
			table.Columns = append(table.Columns, Column{
				Name:  supplementaryColumnName(group.Name, field),
				Kind:  ColumnSupplementary,
				Group: group.Name,
				Field: field,
				Cells: columns[f],
			})
		}
	}

	for _, group := range groups {
		for _, channel := range channels {
			if channel.Group != group.Name {
				continue
			}
			table.Columns = append(table.Columns, Column{
				Name:    weightedColumnName(channel.ChannelID),
				Kind:    ColumnWeighted,
				Channel: channel.ChannelID,
				Group:   channel.Group,
				Cells:   valueCells(Weighted(channel, req.Factors)),
			})
		}
	}

	for _, group := range groups {
		hp := make([]float64, grid.Len())
		hfp := make([]float64, grid.Len())
		for i, total := range group.Total {
			if grid.At(i).Period == PeriodHP {
				hp[i] = total
			} else {
				hfp[i] = total
			}
		}
		table.Columns = append(table.Columns,
			Column{Name: GroupColumnName(group.Name, ColumnGroupTotal), Kind: ColumnGroupTotal, Group: group.Name, Cells: valueCells(group.Total)},
			Column{Name: GroupColumnName(group.Name, ColumnGroupHP), Kind: ColumnGroupHP, Group: group.Name, Cells: valueCells(hp)},
			Column{Name: GroupColumnName(group.Name, ColumnGroupHFP), Kind: ColumnGroupHFP, Group: group.Name, Cells: valueCells(hfp)},
		)
	}

	for _, channel := range channels {
		table.Channels = append(table.Channels, ChannelSummary{
			ChannelID: channel.ChannelID,
			Group:     channel.Group,
			Factor:    req.Factors.Factor(channel.ChannelID),
			Present:   channel.Present,
			Stats:     channel.Stats,
		})
	}
	table.Groups = groups
	return table, nil
}

// alignChannels aligns every uploaded channel against the grid and appends
// all-zero channels for factor table entries that were not uploaded.
func (e *Engine) alignChannels(req Request, grid *CalendarGrid, table *Table) []AlignedChannel {
	policy := req.Options.Duplicates
	seen := make(map[string]struct{}, len(req.Channels))
	channels := make([]AlignedChannel, 0, len(req.Channels)+req.Factors.Len())

	for _, series := range req.Channels {
		if series.ChannelID == "" {
			table.Warnings = append(table.Warnings, NewWarning(WarningInvalidChannelFile, "", "channel without identifier skipped"))
			continue
		}
		if _, dup := seen[series.ChannelID]; dup {
			table.Warnings = append(table.Warnings, NewWarning(WarningDuplicateChannel, series.ChannelID, "channel uploaded more than once; later upload skipped"))
			continue
		}
		seen[series.ChannelID] = struct{}{}

		aligned := Align(series, grid, policy)
		if aligned.Stats.Duplicates > 0 {
			table.Warnings = append(table.Warnings, NewWarning(WarningDuplicateReadings, series.ChannelID,
				"%d duplicate timestamps resolved with policy %q", aligned.Stats.Duplicates, policyName(policy)))
		}
		if aligned.Stats.Discarded > 0 {
			table.Warnings = append(table.Warnings, NewWarning(WarningDiscardedReadings, series.ChannelID,
				"%d readings outside the %04d-%02d grid", aligned.Stats.Discarded, req.Year, int(req.Month)))
		}
		channels = append(channels, aligned)
	}

	if len(channels) == 0 {
		return channels
	}
	for _, channelID := range req.Factors.ChannelIDs() {
		if _, ok := seen[channelID]; ok {
			continue
		}
		channels = append(channels, AbsentChannel(channelID, grid))
		table.Warnings = append(table.Warnings, NewWarning(WarningMissingChannel, channelID, "listed in the factor table but not uploaded; filled with zero"))
	}
	return channels
}

// matchSheets pairs supplementary sheets with groups by normalized name.
func (e *Engine) matchSheets(req Request, groups []GroupAggregate, table *Table) map[string]SupplementarySheet {
	if req.Supplementary == nil {
		return nil
	}
	known := make(map[string]struct{}, len(groups))
	for _, group := range groups {
		known[group.Name] = struct{}{}
	}

	sheets := make(map[string]SupplementarySheet, len(req.Supplementary))
	for _, sheet := range req.Supplementary {
		group := sheet.Group
		if group == "" {
			group = NormalizeName(sheet.Sheet)
		}
		if _, ok := known[group]; !ok {
			table.Warnings = append(table.Warnings, NewWarning(WarningUnknownSupplementarySheet, sheet.Sheet, "no channel group named %q", group))
			continue
		}
		if _, dup := sheets[group]; dup {
			table.Warnings = append(table.Warnings, NewWarning(WarningUnknownSupplementarySheet, sheet.Sheet, "group %q already has a sheet; ignored", group))
			continue
		}
		sheet.Group = group
		sheets[group] = sheet
	}
	for _, group := range groups {
		if _, ok := sheets[group.Name]; !ok {
			table.Warnings = append(table.Warnings, NewWarning(WarningUnmatchedSupplementarySheet, group.Name, "no supplementary sheet; columns omitted"))
		}
	}
	return sheets
}

func policyName(policy DuplicatePolicy) DuplicatePolicy {
	if policy == "" {
		return DuplicateLastWins
	}
	return policy
}
