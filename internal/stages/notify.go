package stages

import (
	"context"
	"time"

	"surplus/internal/logging"
	"surplus/internal/notifications"
	"surplus/internal/services"
	"surplus/internal/stage"
)

// ActionSendNotification is the stage name manifests use for the notify
// handler.
const ActionSendNotification = "send_notification"

// Notify publishes a record-ready event for the extracted fields.
type Notify struct {
	loggerHolder
	Service notifications.Service
	now     func() time.Time
}

// NewNotify returns a notify handler delivering through svc.
func NewNotify(svc notifications.Service) *Notify {
	return &Notify{Service: svc, now: time.Now}
}

// External marks notify stages as gated whether or not the manifest says so.
func (n *Notify) External() bool { return true }

func (n *Notify) Handle(ctx context.Context, in stage.Payload) (stage.Payload, error) {
	fields, err := mapValue(in, "notify", KeyFields)
	if err != nil {
		return nil, err
	}
	if !notifications.Enabled(n.Service) {
		return nil, services.Wrap(services.ErrConfiguration, "notify", "publish", "notifications.webhook_url is not configured", nil)
	}
	payload := notifications.Payload{}
	for _, key := range []string{"case_number", "owner_name", "amount", "surplus_amount"} {
		if value, ok := stringValue(fields[key]); ok && value != "" {
			payload[key] = value
		}
	}
	if _, ok := payload["amount"]; !ok {
		if value, ok := payload["surplus_amount"]; ok {
			payload["amount"] = value
		}
	}
	if err := n.Service.Publish(ctx, notifications.EventRecordReady, payload); err != nil {
		return nil, err
	}
	now := time.Now
	if n.now != nil {
		now = n.now
	}
	n.log().Info("record notification sent", logging.String("case_number", payloadText(payload, "case_number")))

	out := in.Clone()
	out[KeyNotifiedAt] = now().UTC().Format(time.RFC3339)
	return out, nil
}

// HealthCheck reports whether a webhook is configured.
func (n *Notify) HealthCheck(context.Context) stage.Health {
	if !notifications.Enabled(n.Service) {
		return stage.Unhealthy("notify", "notifications.webhook_url is not configured")
	}
	return stage.Healthy("notify")
}

func payloadText(payload notifications.Payload, key string) string {
	value, _ := stringValue(payload[key])
	return value
}
