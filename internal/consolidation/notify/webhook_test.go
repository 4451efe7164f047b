package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	consolidation "loadprofile/internal/consolidation/domain"
)

func TestWebhookNotifierPayload(t *testing.T) {
	payloadCh := make(chan webhookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		payloadCh <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	run := &consolidation.Run{
		ID:       "run-1",
		TenantID: "tenant-1",
		Year:     2024,
		Month:    time.February,
		Status:   consolidation.RunCompleted,
		Channels: 2,
		Warnings: []consolidation.Warning{
			{Kind: consolidation.WarningMissingChannel, Subject: "ACOS 2.LP"},
			{Kind: consolidation.WarningDiscardedReadings, Subject: "ACOS 1.LP"},
			{Kind: consolidation.WarningDiscardedReadings, Subject: "ACOS 3.LP"},
		},
	}
	if !NeedsAttention(run) {
		t.Fatalf("expected run with warnings to need attention")
	}

	notifier := NewWebhookNotifier(server.URL, time.Second)
	if err := notifier.Notify(context.Background(), NewRunMessage(run)); err != nil {
		t.Fatalf("notify: %v", err)
	}

	select {
	case payload := <-payloadCh:
		if payload.MsgType != "text" {
			t.Fatalf("expected text message, got %q", payload.MsgType)
		}
		for _, want := range []string{"Run: run-1", "Period: 2024-02", "discarded_readings=2", "missing_channel=1"} {
			if !strings.Contains(payload.Text.Content, want) {
				t.Fatalf("expected %q in content %q", want, payload.Text.Content)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("webhook not called")
	}
}

func TestWebhookNotifierNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, time.Second)
	if err := notifier.Notify(context.Background(), RunMessage{RunID: "run-1"}); err == nil {
		t.Fatalf("expected error for non-2xx response")
	}
}

func TestNeedsAttention(t *testing.T) {
	cases := []struct {
		name string
		run  *consolidation.Run
		want bool
	}{
		{name: "nil", run: nil, want: false},
		{name: "clean", run: &consolidation.Run{Status: consolidation.RunCompleted}, want: false},
		{name: "no channels", run: &consolidation.Run{Status: consolidation.RunNoChannels}, want: true},
	}
	for _, tc := range cases {
		if got := NeedsAttention(tc.run); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}
