package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"surplus/internal/compliance"
	"surplus/internal/config"
	"surplus/internal/runstore"
)

const probeTimeout = 5 * time.Second

// CheckEndpoint verifies that baseURL answers an HTTP HEAD. Any status below
// 500 other than an auth rejection counts as reachable since the base URL
// itself need not serve a record.
func CheckEndpoint(ctx context.Context, name, baseURL, userAgent string) Result {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing base_url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	client := &http.Client{Timeout: probeTimeout}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, base, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("probe failed (%v)", err)}
	}
	if ua := strings.TrimSpace(userAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeProbeError(err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Result{Name: name, Detail: fmt.Sprintf("%s rejected the request (%d)", base, resp.StatusCode)}
	case resp.StatusCode >= 500:
		return Result{Name: name, Detail: fmt.Sprintf("%s unhealthy (%d)", base, resp.StatusCode)}
	default:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", base)}
	}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckRunStore opens the history database, which also applies the schema.
func CheckRunStore(ctx context.Context, cfg *config.Config) Result {
	const name = "Run history"
	store, err := runstore.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer store.Close()
	if _, err := store.Stats(ctx); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: store.Path()}
}

// CheckWebhook reports whether notifications can be delivered. A missing
// webhook only fails in LIVE mode, where notify stages would otherwise run.
func CheckWebhook(cfg *config.Config) Result {
	const name = "Notifications"
	if strings.TrimSpace(cfg.Notifications.WebhookURL) != "" {
		return Result{Name: name, Passed: true, Detail: "webhook configured"}
	}
	if cfg.OperatingMode() == compliance.ModeLive {
		return Result{Name: name, Detail: "LIVE mode without notifications.webhook_url"}
	}
	return Result{Name: name, Passed: true, Detail: "disabled (no webhook_url)"}
}

func summarizeProbeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "probe timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "probe timed out (endpoint unreachable)"
	}
	return err.Error()
}
