package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// WebhookNotifier posts run notices as text messages.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

type webhookText struct {
	Content string `json:"content"`
}

// NewWebhookNotifier constructs a notifier.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Notify sends a run notice to the webhook.
func (n *WebhookNotifier) Notify(ctx context.Context, msg RunMessage) error {
	if n == nil || n.url == "" {
		return errors.New("webhook notifier: empty url")
	}
	payload := webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: formatRunMessage(msg)},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook notifier: status %d", resp.StatusCode)
	}
	return nil
}

func formatRunMessage(msg RunMessage) string {
	var b strings.Builder
	b.WriteString("[Load profile consolidation]\n")
	if msg.TenantID != "" {
		fmt.Fprintf(&b, "Tenant: %s\n", msg.TenantID)
	}
	fmt.Fprintf(&b, "Run: %s\n", msg.RunID)
	fmt.Fprintf(&b, "Period: %s\n", msg.Period)
	fmt.Fprintf(&b, "Status: %s\n", msg.Status)
	fmt.Fprintf(&b, "Channels: %d\n", msg.Channels)
	if len(msg.Warnings) > 0 {
		kinds := make([]string, 0, len(msg.Warnings))
		for kind := range msg.Warnings {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		b.WriteString("Warnings:")
		for _, kind := range kinds {
			fmt.Fprintf(&b, " %s=%d", kind, msg.Warnings[kind])
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
