package memory

import (
	"context"
	"sort"
	"sync"

	consolidation "loadprofile/internal/consolidation/domain"
)

// RunRepository keeps runs in memory. Used when no database is configured
// and in tests.
type RunRepository struct {
	mu   sync.RWMutex
	runs map[string]*consolidation.Run
}

// NewRunRepository constructs a repository.
func NewRunRepository() *RunRepository {
	return &RunRepository{runs: make(map[string]*consolidation.Run)}
}

// Save stores a copy of the run, replacing any run with the same id.
func (r *RunRepository) Save(ctx context.Context, run *consolidation.Run) error {
	_ = ctx
	if run == nil {
		return consolidation.ErrNilRun
	}
	if run.ID == "" {
		return consolidation.ErrEmptyRunID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run.Clone()
	return nil
}

// Get loads a run of the tenant.
func (r *RunRepository) Get(ctx context.Context, tenantID, id string) (*consolidation.Run, error) {
	_ = ctx
	if id == "" {
		return nil, consolidation.ErrEmptyRunID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	run := r.runs[id]
	if run == nil || run.TenantID != tenantID {
		return nil, consolidation.ErrRunNotFound
	}
	return run.Clone(), nil
}

// List returns matching runs, newest first.
func (r *RunRepository) List(ctx context.Context, filter consolidation.RunFilter) ([]*consolidation.Run, error) {
	_ = ctx
	r.mu.RLock()
	result := make([]*consolidation.Run, 0, len(r.runs))
	for _, run := range r.runs {
		if filter.TenantID != "" && run.TenantID != filter.TenantID {
			continue
		}
		if filter.Year != 0 && run.Year != filter.Year {
			continue
		}
		if filter.Month != 0 && int(run.Month) != filter.Month {
			continue
		}
		result = append(result, run.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}
