package interfaces

import (
	consolidation "loadprofile/internal/consolidation/domain"
)

// TableView is the JSON shape of a consolidated table.
type TableView struct {
	Run      *consolidation.Run      `json:"run,omitempty"`
	Year     int                     `json:"year"`
	Month    int                     `json:"month"`
	Rule     string                  `json:"rule"`
	Holidays []int                   `json:"holidays"`
	Header   []string                `json:"header"`
	Rows     [][]any                 `json:"rows"`
	Groups   []GroupView             `json:"groups"`
	Warnings []consolidation.Warning `json:"warnings"`
}

// GroupView summarizes one group.
type GroupView struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
	HP      float64  `json:"hp"`
	HFP     float64  `json:"hfp"`
	Total   float64  `json:"total"`
	Peak    float64  `json:"peak"`
}

// NewTableView flattens a table into rows. Blank cells become null.
func NewTableView(run *consolidation.Run, table *consolidation.Table) TableView {
	view := TableView{
		Run:      run,
		Year:     table.Year,
		Month:    int(table.Month),
		Rule:     string(table.Rule),
		Holidays: append([]int{}, table.Holidays...),
		Header:   table.Header(),
		Rows:     make([][]any, 0, table.Rows()),
		Groups:   make([]GroupView, 0, len(table.Groups)),
		Warnings: append([]consolidation.Warning{}, table.Warnings...),
	}
	for i, interval := range table.Intervals {
		row := make([]any, 0, 3+len(table.Columns))
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
		view.Rows = append(view.Rows, row)
	}
	for _, group := range table.Groups {
		view.Groups = append(view.Groups, GroupView{
			Name:    group.Name,
			Members: group.Members,
			HP:      group.HP,
			HFP:     group.HFP,
			Total:   group.Sum(),
			Peak:    group.Peak,
		})
	}
	return view
}
