// Package sensorapi polls the HTTP status endpoint of a networked depth
// sensor and reports whether it is ready to stream.
package sensorapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Status is one poll result. State is the lower-cased state string the
// sensor reported, "ok" for an empty body, or "error"/"http_<code>".
type Status struct {
	State     string
	Available bool
}

var readyStates = map[string]bool{
	"ok":        true,
	"ready":     true,
	"idle":      true,
	"running":   true,
	"streaming": true,
}

// Poll queries endpoint every interval until ctx is done and calls update
// with each result.
func Poll(ctx context.Context, endpoint string, interval time.Duration, update func(Status)) {
	if endpoint == "" || update == nil || interval <= 0 {
		return
	}
	client := &http.Client{
		Timeout: 900 * time.Millisecond,
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		update(Fetch(ctx, client, endpoint))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Fetch polls endpoint once; a nil client uses a short default timeout.
func Fetch(ctx context.Context, client *http.Client, endpoint string) Status {
	if client == nil {
		client = &http.Client{Timeout: 900 * time.Millisecond}
	}
	state := fetchState(ctx, client, endpoint)
	return Status{State: state, Available: readyStates[state]}
}

func fetchState(ctx context.Context, client *http.Client, endpoint string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "error"
	}
	resp, err := client.Do(req)
	if err != nil {
		return "error"
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("http_%d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "error"
	}
	if len(body) == 0 {
		return "ok"
	}

	state, ok := extractState(body)
	if !ok {
		return "ok"
	}
	return state
}

func extractState(payload []byte) (string, bool) {
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", false
	}
	state := findState(decoded)
	if state == "" {
		return "", false
	}
	return strings.ToLower(state), true
}

// findState returns the first string under a state, status or value key,
// searching nested objects and arrays depth first.
func findState(value any) string {
	switch v := value.(type) {
	case map[string]any:
		for _, key := range []string{"state", "status", "value"} {
			entry, ok := v[key]
			if !ok {
				continue
			}
			if s, ok := entry.(string); ok {
				return s
			}
			if nested := findState(entry); nested != "" {
				return nested
			}
		}
	case []any:
		for _, entry := range v {
			if nested := findState(entry); nested != "" {
				return nested
			}
		}
	}
	return ""
}
