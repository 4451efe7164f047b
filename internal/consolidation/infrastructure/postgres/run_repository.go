package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	consolidation "loadprofile/internal/consolidation/domain"
)

// RunRepository stores runs in consolidation_runs.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository constructs a repository.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Save upserts a run.
func (r *RunRepository) Save(ctx context.Context, run *consolidation.Run) error {
	if r == nil || r.db == nil {
		return errors.New("consolidation repo: nil db")
	}
	if run == nil {
		return consolidation.ErrNilRun
	}
	if run.ID == "" {
		return consolidation.ErrEmptyRunID
	}
	holidays, err := marshalList(run.Holidays)
	if err != nil {
		return err
	}
	groups, err := marshalList(run.Groups)
	if err != nil {
		return err
	}
	warnings, err := marshalList(run.Warnings)
	if err != nil {
		return err
	}
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO consolidation_runs (
	id, tenant_id, actor, year, month, holidays, rule, status, channels, row_count, groups, warnings, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	channels = EXCLUDED.channels,
	row_count = EXCLUDED.row_count,
	groups = EXCLUDED.groups,
	warnings = EXCLUDED.warnings`,
		run.ID, run.TenantID, run.Actor, run.Year, int(run.Month), holidays, string(run.Rule), string(run.Status),
		run.Channels, run.Rows, groups, warnings, createdAt.UTC())
	return err
}

// Get loads a run of the tenant.
func (r *RunRepository) Get(ctx context.Context, tenantID, id string) (*consolidation.Run, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("consolidation repo: nil db")
	}
	if id == "" {
		return nil, consolidation.ErrEmptyRunID
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+runColumns+`
FROM consolidation_runs
WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, consolidation.ErrRunNotFound
	}
	return run, err
}

// List returns matching runs, newest first.
func (r *RunRepository) List(ctx context.Context, filter consolidation.RunFilter) ([]*consolidation.Run, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("consolidation repo: nil db")
	}
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.TenantID != "" {
		add("tenant_id = $%d", filter.TenantID)
	}
	if filter.Year != 0 {
		add("year = $%d", filter.Year)
	}
	if filter.Month != 0 {
		add("month = $%d", filter.Month)
	}
	query := "SELECT " + runColumns + "\nFROM consolidation_runs"
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*consolidation.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Count returns the number of stored runs.
func (r *RunRepository) Count(ctx context.Context) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("consolidation repo: nil db")
	}
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM consolidation_runs`).Scan(&count)
	return count, err
}

const runColumns = `id, tenant_id, actor, year, month, holidays, rule, status, channels, row_count, groups, warnings, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*consolidation.Run, error) {
	var (
		run                        consolidation.Run
		month                      int
		rule, status               string
		holidays, groups, warnings []byte
	)
	if err := row.Scan(
		&run.ID,
		&run.TenantID,
		&run.Actor,
		&run.Year,
		&month,
		&holidays,
		&rule,
		&status,
		&run.Channels,
		&run.Rows,
		&groups,
		&warnings,
		&run.CreatedAt,
	); err != nil {
		return nil, err
	}
	run.Month = time.Month(month)
	run.Rule = consolidation.BoundaryRule(rule)
	run.Status = consolidation.RunStatus(status)
	run.CreatedAt = run.CreatedAt.UTC()
	if err := unmarshalList(holidays, &run.Holidays); err != nil {
		return nil, err
	}
	if err := unmarshalList(groups, &run.Groups); err != nil {
		return nil, err
	}
	if err := unmarshalList(warnings, &run.Warnings); err != nil {
		return nil, err
	}
	return &run, nil
}

func marshalList[T any](items []T) (string, error) {
	if len(items) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("consolidation repo: marshal: %w", err)
	}
	return string(data), nil
}

// unmarshalList keeps empty lists nil so stored runs compare equal to fresh ones.
func unmarshalList[T any](data []byte, out *[]T) error {
	var items []T
	if len(data) > 0 {
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("consolidation repo: unmarshal: %w", err)
		}
	}
	if len(items) == 0 {
		items = nil
	}
	*out = items
	return nil
}
