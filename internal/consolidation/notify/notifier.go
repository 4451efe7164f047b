package notify

import (
	"context"

	consolidation "loadprofile/internal/consolidation/domain"
)

// RunMessage represents a notification payload for a finished run.
type RunMessage struct {
	TenantID string            `json:"tenant_id"`
	RunID    string            `json:"run_id"`
	Period   string            `json:"period"`
	Status   string            `json:"status"`
	Channels int               `json:"channels"`
	Warnings map[string]int    `json:"warnings,omitempty"`
	Meta     map[string]string `json:"meta,omitempty"`
}

// Notifier sends notifications.
type Notifier interface {
	Notify(ctx context.Context, msg RunMessage) error
}

// NeedsAttention reports whether a run should be announced: runs without a
// usable channel or with any warning.
func NeedsAttention(run *consolidation.Run) bool {
	if run == nil {
		return false
	}
	return run.Status == consolidation.RunNoChannels || len(run.Warnings) > 0
}

// NewRunMessage summarizes a run, counting warnings by kind.
func NewRunMessage(run *consolidation.Run) RunMessage {
	msg := RunMessage{
		TenantID: run.TenantID,
		RunID:    run.ID,
		Period:   run.Period(),
		Status:   string(run.Status),
		Channels: run.Channels,
	}
	if len(run.Warnings) > 0 {
		msg.Warnings = make(map[string]int)
		for _, warning := range run.Warnings {
			msg.Warnings[string(warning.Kind)]++
		}
	}
	return msg
}
