// Package alert delivers anomaly notifications to Slack-compatible
// webhooks. It listens for the insight module's severe-anomaly events and
// renders them as Block Kit messages.
package alert

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/frostline-io/frostline/pkg/analytics"
)

// Block Kit message fragments. Only the shapes this module emits.
type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

// Message is a Block Kit webhook payload.
type Message struct {
	Blocks []slackBlock `json:"blocks"`
}

// BuildGeoMessage renders a severe geographic anomaly alert: a header, one
// mrkdwn line per country, and a context footer naming the month.
func BuildGeoMessage(a analytics.GeoAlert) Message {
	lines := make([]string, 0, len(a.Items))
	for _, item := range a.Items {
		lines = append(lines, fmt.Sprintf("  - *%s*: Score %.1f/100 ($%s)",
			item.Country, item.Score, groupThousands(item.Revenue)))
	}

	return Message{Blocks: []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: "Anomaly Alert"}},
		{Type: "section", Text: &slackText{
			Type: "mrkdwn",
			Text: fmt.Sprintf("*%d severe anomalies detected:*\n%s",
				len(a.Items), strings.Join(lines, "\n")),
		}},
		{Type: "context", Elements: []slackText{{
			Type: "mrkdwn",
			Text: fmt.Sprintf("%s: view the dashboard for details", a.Month.Format("January 2006")),
		}}},
	}}
}

// BuildReportMessage renders a single metric anomaly report.
func BuildReportMessage(r *analytics.AnomalyReport) Message {
	direction := "above"
	if r.Direction == analytics.BelowBaseline {
		direction = "below"
	}
	return Message{Blocks: []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: "Anomaly Alert"}},
		{Type: "section", Text: &slackText{
			Type: "mrkdwn",
			Text: fmt.Sprintf("*%s* on %s: %s (z=%.2f, %s baseline)",
				r.Metric, r.Period.Format("2006-01-02"),
				groupThousands(r.Value), r.ZScore, direction),
		}},
		{Type: "context", Elements: []slackText{{
			Type: "mrkdwn",
			Text: "View the dashboard for details",
		}}},
	}}
}

// groupThousands formats a number with comma-grouped integer digits,
// matching the dashboard's $12,345 display form.
func groupThousands(v float64) string {
	s := strconv.FormatFloat(v, 'f', 0, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// SlackNotifier posts Block Kit messages to a webhook URL.
type SlackNotifier struct {
	client *http.Client
	url    string
	secret string
}

// NewSlackNotifier creates a notifier for the given webhook URL. A non-empty
// secret adds an HMAC-SHA256 X-Signature header for generic endpoints.
func NewSlackNotifier(url string, timeout time.Duration, secret string) *SlackNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SlackNotifier{
		client: &http.Client{Timeout: timeout},
		url:    url,
		secret: secret,
	}
}

// Post delivers one message to the webhook.
func (n *SlackNotifier) Post(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Frostline-Alert/0.1")

	if n.secret != "" {
		mac := hmac.New(sha256.New, []byte(n.secret))
		mac.Write(body)
		req.Header.Set("X-Signature", hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack POST %s: %w", n.url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain body for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack POST %s: status %d", n.url, resp.StatusCode)
	}
	return nil
}
