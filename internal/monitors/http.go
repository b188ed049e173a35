package monitors

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spyglass-dev/spyglass/internal/models"
	"github.com/spyglass-dev/spyglass/internal/types"
)

type HTTPAdapter struct{}

func (a *HTTPAdapter) Execute(ctx context.Context, monitor *models.Monitor) (types.CheckOutcome, error) {
	var cfg types.HttpConfig
	if err := decodeConfig(monitor, &cfg); err != nil {
		return types.CheckOutcome{}, err
	}

	method := cfg.Method
	if method == "" {
		method = http.MethodGet
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.IgnoreTLS},
	}
	client := &http.Client{Transport: transport}

	var body *strings.Reader
	if cfg.Body != "" {
		body = strings.NewReader(cfg.Body)
	} else {
		body = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, body)
	if err != nil {
		return types.CheckOutcome{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	for key, value := range cfg.Headers {
		req.Header.Add(key, value)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return down(start, "request failed: %v", err), nil
	}
	defer resp.Body.Close()

	latency := time.Since(start)

	expected := cfg.ExpectedStatus
	if expected == 0 {
		// Any non-error status counts as up unless pinned.
		if resp.StatusCode >= 400 {
			return down(start, "unexpected status code: %s", resp.Status), nil
		}
	} else if resp.StatusCode != expected {
		return down(start, "unexpected status code: %s", resp.Status), nil
	}

	if cfg.DegradedAfterMs > 0 && latency.Milliseconds() > cfg.DegradedAfterMs {
		return degraded(start, "response took %dms, degraded threshold %dms", latency.Milliseconds(), cfg.DegradedAfterMs), nil
	}

	outcome := up(start)
	outcome.Meta = map[string]interface{}{"status_code": resp.StatusCode}
	return outcome, nil
}
