package consolidation

import "context"

// RunFilter narrows a run listing. Zero values match everything.
type RunFilter struct {
	TenantID string
	Year     int
	Month    int
	Limit    int
}

// RunRepository persists run records.
type RunRepository interface {
	Save(ctx context.Context, run *Run) error
	Get(ctx context.Context, tenantID, id string) (*Run, error)
	List(ctx context.Context, filter RunFilter) ([]*Run, error)
}
