package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/apfl99/DexSwipe-Backend/internal/metrics"
)

// AlertType categorizes the kind of alert.
type AlertType string

const (
	AlertTypeScamToken       AlertType = "SCAM_TOKEN"
	AlertTypeBudgetExhausted AlertType = "BUDGET_EXHAUSTED"
	AlertTypeCircuitOpen     AlertType = "PROVIDER_CIRCUIT_OPEN"
	AlertTypeUnhealthy       AlertType = "UNHEALTHY"
	AlertTypeRecovery        AlertType = "RECOVERY"
)

// Alert is one operator notification. Subject narrows the cooldown key,
// e.g. a token address or a provider name.
type Alert struct {
	Type    AlertType
	Chain   string
	Stage   string
	Subject string
	Title   string
	Message string
	Fields  map[string]string
}

type Alerter interface {
	Send(ctx context.Context, alert Alert) error
}

// MultiAlerter fans out alerts to multiple channels.
type MultiAlerter struct {
	alerters []Alerter
	cooldown time.Duration
	logger   *slog.Logger
	nowFn    func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewMultiAlerter creates a multi-channel alerter. Alerts with the same
// type, chain, stage and subject are sent at most once per cooldown.
func NewMultiAlerter(cooldown time.Duration, logger *slog.Logger, alerters ...Alerter) *MultiAlerter {
	return &MultiAlerter{
		alerters: alerters,
		cooldown: cooldown,
		logger:   logger.With("component", "alerter"),
		nowFn:    time.Now,
		lastSent: make(map[string]time.Time),
	}
}

func cooldownKey(a Alert) string {
	return fmt.Sprintf("%s:%s:%s:%s", a.Type, a.Chain, a.Stage, a.Subject)
}

// Send dispatches alert to all channels, respecting cooldown.
func (m *MultiAlerter) Send(ctx context.Context, alert Alert) error {
	key := cooldownKey(alert)
	now := m.nowFn()

	m.mu.Lock()
	if last, ok := m.lastSent[key]; ok && now.Sub(last) < m.cooldown {
		m.mu.Unlock()
		m.logger.Debug("alert suppressed by cooldown", "key", key)
		for _, a := range m.alerters {
			metrics.AlertsCooldownSkipped.WithLabelValues(alerterName(a), string(alert.Type)).Inc()
		}
		return nil
	}
	m.lastSent[key] = now
	m.mu.Unlock()

	var firstErr error
	for _, a := range m.alerters {
		if err := a.Send(ctx, alert); err != nil {
			m.logger.Warn("alert send failed",
				"channel", alerterName(a),
				"type", alert.Type,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		metrics.AlertsSentTotal.WithLabelValues(alerterName(a), string(alert.Type)).Inc()
	}
	return firstErr
}

func alerterName(a Alerter) string {
	switch a.(type) {
	case *SlackAlerter:
		return "slack"
	case *WebhookAlerter:
		return "webhook"
	case *LogAlerter:
		return "log"
	default:
		return "unknown"
	}
}

// SlackAlerter posts alerts to a Slack incoming webhook.
type SlackAlerter struct {
	webhookURL string
	client     *http.Client
}

func NewSlackAlerter(webhookURL string) *SlackAlerter {
	return &SlackAlerter{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func emojiFor(t AlertType) string {
	switch t {
	case AlertTypeScamToken:
		return ":no_entry:"
	case AlertTypeBudgetExhausted:
		return ":money_with_wings:"
	case AlertTypeCircuitOpen:
		return ":electric_plug:"
	case AlertTypeRecovery:
		return ":white_check_mark:"
	default:
		return ":warning:"
	}
}

func (s *SlackAlerter) Send(ctx context.Context, alert Alert) error {
	scope := alert.Chain
	if alert.Stage != "" {
		scope += "/" + alert.Stage
	}
	text := fmt.Sprintf("%s *[%s]* %s: %s\n%s",
		emojiFor(alert.Type), alert.Type, scope, alert.Title, alert.Message)

	if len(alert.Fields) > 0 {
		keys := make([]string, 0, len(alert.Fields))
		for k := range alert.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		text += "\n"
		for _, k := range keys {
			text += fmt.Sprintf("- *%s*: %s\n", k, alert.Fields[k])
		}
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	return post(ctx, s.client, s.webhookURL, body, "slack")
}

// WebhookAlerter posts alerts as JSON to a generic HTTP endpoint.
type WebhookAlerter struct {
	url    string
	client *http.Client
	nowFn  func() time.Time
}

func NewWebhookAlerter(url string) *WebhookAlerter {
	return &WebhookAlerter{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		nowFn:  time.Now,
	}
}

func (w *WebhookAlerter) Send(ctx context.Context, alert Alert) error {
	payload := map[string]any{
		"type":    string(alert.Type),
		"chain":   alert.Chain,
		"stage":   alert.Stage,
		"subject": alert.Subject,
		"title":   alert.Title,
		"message": alert.Message,
		"fields":  alert.Fields,
		"time":    w.nowFn().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	return post(ctx, w.client, w.url, body, "webhook")
}

func post(ctx context.Context, client *http.Client, url string, body []byte, channel string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", channel, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s alert: %w", channel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", channel, resp.StatusCode)
	}
	return nil
}

// LogAlerter writes alerts to the structured log. It is the fallback
// channel when no webhook is configured.
type LogAlerter struct {
	logger *slog.Logger
}

func NewLogAlerter(logger *slog.Logger) *LogAlerter {
	return &LogAlerter{logger: logger.With("component", "alert_log")}
}

func (l *LogAlerter) Send(_ context.Context, alert Alert) error {
	l.logger.Warn(alert.Title,
		"alert_type", string(alert.Type),
		"chain", alert.Chain,
		"stage", alert.Stage,
		"subject", alert.Subject,
		"message", alert.Message,
	)
	return nil
}

// NoopAlerter does nothing.
type NoopAlerter struct{}

func (n *NoopAlerter) Send(_ context.Context, _ Alert) error { return nil }
