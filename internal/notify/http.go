package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	httpSendTimeout = 5 * time.Second
	httpMaxRetries  = 3
)

// HTTPNotifier POSTs payloads as JSON to a collector endpoint. Transient
// failures are retried with exponential backoff, bounded so a dead endpoint
// cannot hold the caller for long.
type HTTPNotifier struct {
	endpoint string
	client   *http.Client
}

func NewHTTPNotifier(endpoint string) *HTTPNotifier {
	return &HTTPNotifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: httpSendTimeout},
	}
}

// remoteResponse mirrors the collector's acknowledgment body.
type remoteResponse struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	UserID int    `json:"userId"`
}

func (n *HTTPNotifier) Send(ctx context.Context, p Payload) Result {
	body, err := json.Marshal(p)
	if err != nil {
		return Result{Err: fmt.Errorf("marshal payload: %w", err)}
	}

	var resp remoteResponse
	op := func() error {
		return n.post(ctx, body, &resp)
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), httpMaxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		slog.WarnContext(ctx, "Remote sync failed", "endpoint", n.endpoint, "error", err)
		return Result{Err: fmt.Errorf("remote sync: %w", err)}
	}

	slog.InfoContext(ctx, "Remote sync accepted", "endpoint", n.endpoint, "remote_id", resp.ID)
	return Result{Info: fmt.Sprintf("remote accepted, id=%d", resp.ID)}
}

func (n *HTTPNotifier) post(ctx context.Context, body []byte, out *remoteResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("remote returned %s", resp.Status)
	}
	if resp.StatusCode >= 400 {
		// Client errors won't improve on retry
		return backoff.Permanent(fmt.Errorf("remote returned %s", resp.Status))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		// A non-JSON acknowledgment still counts as delivered
		slog.Debug("Unparseable remote acknowledgment", "error", err)
	}
	return nil
}

func (n *HTTPNotifier) Close() error { return nil }
