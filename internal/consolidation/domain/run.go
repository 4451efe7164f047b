package consolidation

import (
	"errors"
	"time"
)

// RunStatus is the outcome of a run.
type RunStatus string

const (
	RunCompleted  RunStatus = "completed"
	RunNoChannels RunStatus = "no_channels"
)

var (
	// ErrEmptyRunID is returned when a run has no identifier.
	ErrEmptyRunID = errors.New("consolidation: empty run id")
	// ErrNilRun is returned when saving a nil run.
	ErrNilRun = errors.New("consolidation: nil run")
	// ErrRunNotFound is returned when a run cannot be found.
	ErrRunNotFound = errors.New("consolidation: run not found")
)

// GroupSummary is the persisted part of a GroupAggregate.
type GroupSummary struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
	HP      float64  `json:"hp"`
	HFP     float64  `json:"hfp"`
	Total   float64  `json:"total"`
	Peak    float64  `json:"peak"`
}

// Run is the record kept for every consolidation.
type Run struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"`
	Actor     string         `json:"actor"`
	Year      int            `json:"year"`
	Month     time.Month     `json:"month"`
	Holidays  []int          `json:"holidays"`
	Rule      BoundaryRule   `json:"rule"`
	Status    RunStatus      `json:"status"`
	Channels  int            `json:"channels"`
	Rows      int            `json:"rows"`
	Groups    []GroupSummary `json:"groups"`
	Warnings  []Warning      `json:"warnings"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewRun summarizes a consolidated table.
func NewRun(id, tenantID, actor string, table *Table, status RunStatus, createdAt time.Time) (*Run, error) {
	if id == "" {
		return nil, ErrEmptyRunID
	}
	if table == nil {
		return nil, ErrNilRun
	}
	run := &Run{
		ID:        id,
		TenantID:  tenantID,
		Actor:     actor,
		Year:      table.Year,
		Month:     table.Month,
		Holidays:  append([]int(nil), table.Holidays...),
		Rule:      table.Rule,
		Status:    status,
		Rows:      table.Rows(),
		Warnings:  append([]Warning(nil), table.Warnings...),
		CreatedAt: createdAt,
	}
	for _, channel := range table.Channels {
		if channel.Present {
			run.Channels++
		}
	}
	for _, group := range table.Groups {
		run.Groups = append(run.Groups, GroupSummary{
			Name:    group.Name,
			Members: append([]string(nil), group.Members...),
			HP:      group.HP,
			HFP:     group.HFP,
			Total:   group.Sum(),
			Peak:    group.Peak,
		})
	}
	return run, nil
}

// Period returns "2006-01" for the run month.
func (r *Run) Period() string {
	return time.Date(r.Year, r.Month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// Clone returns a detached copy.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Holidays = append([]int(nil), r.Holidays...)
	cp.Warnings = append([]Warning(nil), r.Warnings...)
	cp.Groups = nil
	for _, group := range r.Groups {
		group.Members = append([]string(nil), group.Members...)
		cp.Groups = append(cp.Groups, group)
	}
	return &cp
}
