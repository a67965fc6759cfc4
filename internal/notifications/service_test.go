package notifications_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"surplus/internal/config"
	"surplus/internal/notifications"
	"surplus/internal/services"
)

func TestNewServiceReturnsNoopWhenWebhookMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.WebhookURL = ""
	svc := notifications.NewService(&cfg)
	if notifications.Enabled(svc) {
		t.Fatal("expected noop service")
	}
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestWebhookServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "record ready",
			event: notifications.EventRecordReady,
			payload: notifications.Payload{
				"case_number": "2024-CV-0042",
				"owner_name":  "Ada Lovelace",
				"amount":      "$1,250.00",
			},
			expectTitle:   "Surplus - Record Ready",
			expectMessage: "Record ready: 2024-CV-0042 (Ada Lovelace)\nSurplus: $1,250.00",
			expectTags:    "surplus,record,ready",
		},
		{
			name:  "run completed ok",
			event: notifications.EventRunCompleted,
			payload: notifications.Payload{
				"pipeline": "county-intake",
				"status":   "ok",
				"duration": "2s",
			},
			expectTitle:   "Surplus - Run Complete",
			expectMessage: "county-intake finished with status ok in 2s",
			expectTags:    "surplus,run,ok",
		},
		{
			name:  "run completed partial",
			event: notifications.EventRunCompleted,
			payload: notifications.Payload{
				"pipeline": "county-intake",
				"status":   "partial",
			},
			expectTitle:    "Surplus - Run Complete (with errors)",
			expectMessage:  "county-intake finished with status partial",
			expectTags:     "surplus,run,partial",
			expectPriority: "high",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"error":   errors.New("webhook down"),
				"context": "notify",
			},
			expectTitle:    "Surplus - Error",
			expectMessage:  "Error with notify: webhook down",
			expectTags:     "surplus,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "Surplus - Test",
			expectMessage:  "Notification system test",
			expectTags:     "surplus,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var (
				gotHeaders http.Header
				gotBody    notifications.Message
			)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotHeaders = r.Header.Clone()
				data, _ := io.ReadAll(r.Body)
				if err := json.Unmarshal(data, &gotBody); err != nil {
					t.Errorf("decode body: %v", err)
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			svc := notifications.NewWebhookService(server.URL, time.Second)
			if !notifications.Enabled(svc) {
				t.Fatal("expected webhook service to be enabled")
			}
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			if gotBody.Title != tc.expectTitle || gotHeaders.Get("Title") != tc.expectTitle {
				t.Fatalf("title = %q / %q, want %q", gotBody.Title, gotHeaders.Get("Title"), tc.expectTitle)
			}
			if gotBody.Message != tc.expectMessage {
				t.Fatalf("message = %q, want %q", gotBody.Message, tc.expectMessage)
			}
			if gotHeaders.Get("Tags") != tc.expectTags {
				t.Fatalf("tags = %q, want %q", gotHeaders.Get("Tags"), tc.expectTags)
			}
			if gotHeaders.Get("Priority") != tc.expectPriority {
				t.Fatalf("priority = %q, want %q", gotHeaders.Get("Priority"), tc.expectPriority)
			}
			if gotBody.Event != tc.event {
				t.Fatalf("event = %q, want %q", gotBody.Event, tc.event)
			}
			if !strings.HasPrefix(gotHeaders.Get("User-Agent"), "surplus/") {
				t.Fatalf("unexpected user agent %q", gotHeaders.Get("User-Agent"))
			}
		})
	}
}

func TestWebhookServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	svc := notifications.NewWebhookService(server.URL, time.Second)
	err := svc.Publish(context.Background(), notifications.EventTest, nil)
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	if !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected external error marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status code in error, got %v", err)
	}
}

func TestUnknownEventIsIgnored(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	svc := notifications.NewWebhookService(server.URL, time.Second)
	if err := svc.Publish(context.Background(), notifications.Event("mystery"), nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if called {
		t.Fatal("unknown events should not be delivered")
	}
}
