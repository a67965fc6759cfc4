package stages

import (
	"context"
	"os"
	"strings"
	"time"

	"surplus/internal/fixtures"
	"surplus/internal/logging"
	"surplus/internal/services"
	"surplus/internal/stage"
)

// Fetch loads the record named by payload["source"].
type Fetch struct {
	loggerHolder
	Fetcher fixtures.Fetcher
}

// NewFetch returns a fetch handler backed by fetcher.
func NewFetch(fetcher fixtures.Fetcher) *Fetch {
	return &Fetch{Fetcher: fetcher}
}

func (f *Fetch) Handle(ctx context.Context, in stage.Payload) (stage.Payload, error) {
	source, ok := stringValue(in[KeySource])
	source = strings.TrimSpace(source)
	if !ok || source == "" {
		return nil, services.Wrap(services.ErrValidation, "fetch", "read payload", `payload has no "source"`, nil)
	}
	if f.Fetcher == nil {
		return nil, services.Wrap(services.ErrConfiguration, "fetch", "fetch", "no fetcher configured", nil)
	}
	result, err := f.Fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	f.log().Debug(
		"record fetched",
		logging.String("source", source),
		logging.Bool("from_fixture", result.FromFixture),
		logging.Int("field_count", len(result.Data)),
	)

	out := in.Clone()
	out[KeyRecord] = result.Data
	provenance := map[string]any{
		"source":       source,
		"from_fixture": result.FromFixture,
		"fetched_at":   result.FetchedAt.Format(time.RFC3339),
	}
	if result.URL != "" {
		provenance["url"] = result.URL
	}
	out[KeyFetch] = provenance
	return out, nil
}

// HealthCheck verifies the fixture directory exists when fetching offline.
func (f *Fetch) HealthCheck(context.Context) stage.Health {
	switch fetcher := f.Fetcher.(type) {
	case nil:
		return stage.Unhealthy("fetch", "no fetcher configured")
	case *fixtures.FixtureFetcher:
		info, err := os.Stat(fetcher.Store.Root())
		if err != nil || !info.IsDir() {
			return stage.Unhealthy("fetch", "fixtures directory missing: "+fetcher.Store.Root())
		}
	}
	return stage.Healthy("fetch")
}
