package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"runlog/internal/logging"
)

// APIDeliverer ships batches to the remote log store over HTTP as JSON
// arrays. Failures are returned for the caller's retry loop; nothing is
// surfaced to the emitting path.
type APIDeliverer struct {
	base   *url.URL
	apiKey string
	http   *http.Client
}

// NewAPIDeliverer parses the store base URL and prepares a client with the
// given per-request timeout.
func NewAPIDeliverer(base, apiKey string, timeout time.Duration) (*APIDeliverer, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		return nil, fmt.Errorf("shipping url is required for the api handler class")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse shipping url: %w", err)
	}
	parsed.Path = ""
	parsed.RawQuery = ""
	parsed.Fragment = ""

	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APIDeliverer{
		base:   parsed,
		apiKey: apiKey,
		http:   &http.Client{Timeout: timeout},
	}, nil
}

// Deliver posts the batch to /api/logs.
func (d *APIDeliverer) Deliver(ctx context.Context, batch []logging.Record) error {
	if len(batch) == 0 {
		return nil
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode log batch: %w", err)
	}

	endpoint := d.base.ResolveReference(&url.URL{Path: "/api/logs"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("log store returned status %d", resp.StatusCode)
	}
	return nil
}
