package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"loadprofile/internal/audit"
	consolidation "loadprofile/internal/consolidation/domain"
	"loadprofile/internal/consolidation/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestRunRepository_RoundTrip(t *testing.T) {
	db := openDB(t)
	defer db.Close()
	if err := applyMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	ctx := context.Background()
	_, _ = db.ExecContext(ctx, "DELETE FROM consolidation_runs WHERE tenant_id LIKE 'tenant-it-%'")

	repo := postgres.NewRunRepository(db)
	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	run := &consolidation.Run{
		ID:       "run-it-1",
		TenantID: "tenant-it-a",
		Actor:    "user-1",
		Year:     2024,
		Month:    time.February,
		Holidays: []int{5},
		Rule:     consolidation.RuleOffPeakOutside,
		Status:   consolidation.RunCompleted,
		Channels: 2,
		Rows:     29 * 96,
		Groups: []consolidation.GroupSummary{
			{Name: "ACOS", Members: []string{"Acos 1.LP", "Acos 2.LP"}, HP: 10, HFP: 20, Total: 30, Peak: 4},
		},
		Warnings: []consolidation.Warning{
			{Kind: consolidation.WarningMissingChannel, Subject: "Acos 3.LP", Message: "not uploaded"},
		},
		CreatedAt: created,
	}
	if err := repo.Save(ctx, run); err != nil {
		t.Fatalf("save: %v", err)
	}
	later := *run
	later.ID = "run-it-2"
	later.Holidays = nil
	later.Warnings = nil
	later.CreatedAt = created.Add(time.Hour)
	if err := repo.Save(ctx, &later); err != nil {
		t.Fatalf("save later: %v", err)
	}

	got, err := repo.Get(ctx, "tenant-it-a", "run-it-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got, run) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, run)
	}
	if _, err := repo.Get(ctx, "tenant-it-b", "run-it-1"); !errors.Is(err, consolidation.ErrRunNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	runs, err := repo.List(ctx, consolidation.RunFilter{TenantID: "tenant-it-a", Year: 2024, Month: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-it-2" {
		t.Fatalf("unexpected listing %+v", runs)
	}
	if runs[0].Warnings != nil || runs[0].Holidays != nil {
		t.Fatalf("expected empty lists to load as nil")
	}
	if count, err := repo.Count(ctx); err != nil || count < 2 {
		t.Fatalf("count: %d %v", count, err)
	}
}

func TestAuditRepository_Log(t *testing.T) {
	db := openDB(t)
	defer db.Close()
	if err := applyMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	ctx := context.Background()

	repo := audit.NewRepository(db)
	entry := audit.Entry{
		ID:           audit.NewID(),
		TenantID:     "tenant-it-a",
		Actor:        "user-1",
		Action:       "consolidation.run",
		ResourceType: "consolidation_run",
		ResourceID:   "run-it-1",
		Metadata:     []byte(`{"period":"2024-02"}`),
	}
	if err := repo.Log(ctx, entry); err != nil {
		t.Fatalf("log: %v", err)
	}
	var action string
	if err := db.QueryRowContext(ctx, "SELECT action FROM audit_logs WHERE id = $1", entry.ID).Scan(&action); err != nil {
		t.Fatalf("query: %v", err)
	}
	if action != "consolidation.run" {
		t.Fatalf("unexpected action %q", action)
	}
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db
}

func applyMigrations(db *sql.DB) error {
	root := projectRoot()
	files := []string{
		filepath.Join(root, "migrations", "001_consolidation_runs.sql"),
		filepath.Join(root, "migrations", "002_audit_logs.sql"),
	}
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := db.Exec(string(content)); err != nil {
			return err
		}
	}
	return nil
}

func projectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return filepath.Clean(filepath.Join(dir, "..", "..", ".."))
}
