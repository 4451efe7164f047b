package audit

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"
)

// Repository writes audit logs to Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs an audit repository.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

// Log writes an audit entry.
func (r *Repository) Log(ctx context.Context, entry Entry) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	entry = prepare(entry, time.Now())

	_, err := r.db.ExecContext(ctx, `
INSERT INTO audit_logs (
	id, tenant_id, actor, role, action, resource_type, resource_id,
	metadata, payload_digest, ip, user_agent, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)`, entry.ID, entry.TenantID, entry.Actor, entry.Role, entry.Action, entry.ResourceType, entry.ResourceID,
		nullableJSON(entry.Metadata), entry.PayloadDigest, entry.IP, entry.UserAgent, entry.CreatedAt)
	return err
}

func nullableJSON(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}

// MemoryLog keeps entries in memory. Used when no database is configured.
type MemoryLog struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryLog constructs an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Log appends an entry.
func (m *MemoryLog) Log(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, prepare(entry, time.Now()))
	return nil
}

// Entries returns a copy of the recorded entries.
func (m *MemoryLog) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}
