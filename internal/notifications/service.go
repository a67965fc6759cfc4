package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"surplus/internal/config"
	"surplus/internal/services"
)

const userAgent = "surplus/0.1.0"

// Event identifies a notification kind.
type Event string

const (
	EventRecordReady  Event = "record_ready"
	EventRunCompleted Event = "run_completed"
	EventError        Event = "error"
	EventTest         Event = "test"
)

// Payload carries event-specific fields.
type Payload map[string]any

// Service publishes events to an operator-facing channel.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a webhook-backed service when a webhook URL is
// configured and a no-op service otherwise.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	return NewWebhookService(cfg.Notifications.WebhookURL, timeout)
}

// NewWebhookService posts JSON messages to endpoint.
func NewWebhookService(endpoint string, timeout time.Duration) Service {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return noopService{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &webhookService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether svc delivers anywhere.
func Enabled(svc Service) bool {
	if svc == nil {
		return false
	}
	_, noop := svc.(noopService)
	return !noop
}

// Message is the JSON body posted to the webhook.
type Message struct {
	Event    Event    `json:"event"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Tags     []string `json:"tags,omitempty"`
	Priority string   `json:"priority,omitempty"`
	Data     Payload  `json:"data,omitempty"`
}

type webhookService struct {
	endpoint string
	client   *http.Client
}

func (w *webhookService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return w.send(ctx, msg)
}

func format(event Event, payload Payload) (Message, bool) {
	msg := Message{Event: event, Data: sanitize(payload)}
	switch event {
	case EventRecordReady:
		caseNumber := payloadString(payload, "case_number")
		owner := payloadString(payload, "owner_name")
		msg.Title = "Surplus - Record Ready"
		msg.Message = fmt.Sprintf("Record ready: %s", fallback(caseNumber, "unknown case"))
		if owner != "" {
			msg.Message += fmt.Sprintf(" (%s)", owner)
		}
		if amount := payloadString(payload, "amount"); amount != "" {
			msg.Message += fmt.Sprintf("\nSurplus: %s", amount)
		}
		msg.Tags = []string{"surplus", "record", "ready"}
	case EventRunCompleted:
		pipelineName := fallback(payloadString(payload, "pipeline"), "pipeline")
		status := payloadString(payload, "status")
		msg.Title = "Surplus - Run Complete"
		if status != "" && status != "ok" {
			msg.Title = "Surplus - Run Complete (with errors)"
			msg.Priority = "high"
		}
		msg.Message = fmt.Sprintf("%s finished with status %s", pipelineName, fallback(status, "unknown"))
		if duration := payloadString(payload, "duration"); duration != "" {
			msg.Message += fmt.Sprintf(" in %s", duration)
		}
		msg.Tags = []string{"surplus", "run", fallback(status, "completed")}
	case EventError:
		var builder strings.Builder
		builder.WriteString("Error")
		if label := payloadString(payload, "context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		builder.WriteString(fallback(payloadString(payload, "error"), "unknown"))
		msg.Title = "Surplus - Error"
		msg.Message = builder.String()
		msg.Tags = []string{"surplus", "error", "alert"}
		msg.Priority = "high"
	case EventTest:
		msg.Title = "Surplus - Test"
		msg.Message = "Notification system test"
		msg.Tags = []string{"surplus", "test"}
		msg.Priority = "low"
	default:
		return Message{}, false
	}
	return msg, true
}

func (w *webhookService) send(ctx context.Context, msg Message) error {
	if w == nil || w.client == nil {
		return nil
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return services.Wrap(services.ErrExternal, "notifications", "encode", string(msg.Event), err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "notifications", "build request", w.endpoint, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	if msg.Title != "" {
		req.Header.Set("Title", msg.Title)
	}
	if len(msg.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.Tags, ","))
	}
	if msg.Priority != "" && msg.Priority != "default" {
		req.Header.Set("Priority", msg.Priority)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrExternal, "notifications", "send", "webhook request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return services.Wrap(services.ErrExternal, "notifications", "send",
			fmt.Sprintf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))), nil)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// sanitize converts error values so the payload encodes as JSON.
func sanitize(payload Payload) Payload {
	if len(payload) == 0 {
		return nil
	}
	out := make(Payload, len(payload))
	for k, v := range payload {
		if err, ok := v.(error); ok {
			out[k] = err.Error()
			continue
		}
		out[k] = v
	}
	return out
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
