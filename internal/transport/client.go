// Package transport is the HTTP client half of the wire protocol used for
// both the Controller RPC surface (spec.md §6) and the Leader/Worker RPC
// kinds (spec.md §4.5, "Worker/Leader RPC"). It is the generalized,
// msgpack-framed descendant of johnjansen-torua's internal/cluster
// PostJSON/GetJSON helpers: same shared *http.Client, same context-first
// signature, bodies swapped from JSON to the self-describing binary
// encoding spec.md §6 calls for.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/flowmesh/dataflow/internal/wire"
)

// httpClient is shared across all RPC calls made by this process, enabling
// connection reuse to worker and controller peers.
var httpClient = &http.Client{Timeout: 30 * time.Second}

// Post sends body msgpack-encoded to url and decodes the msgpack response
// into out (which may be nil to discard the response body).
func Post(ctx context.Context, url string, body, out any) error {
	payload, err := wire.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", wire.ContentType)

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("transport: %s: http %d", url, resp.StatusCode)
	}
	if out == nil {
		return nil
	}

	respBody := make([]byte, 0, 4096)
	buf := bytes.NewBuffer(respBody)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return err
	}
	return wire.Unmarshal(buf.Bytes(), out)
}

// Get performs a GET request and decodes the msgpack response into out.
func Get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("transport: %s: http %d", url, resp.StatusCode)
	}

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return err
	}
	return wire.Unmarshal(buf.Bytes(), out)
}

// WithTimeout returns a context bounded by d, mirroring the per-request
// timeout knobs spec.md §5 requires (5s authority reads, 30min migration
// calls) so each call site can pick its own budget.
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}
