package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrNoEndpoint is returned when no workflow URL is configured.
var ErrNoEndpoint = errors.New("workflow endpoint not configured")

// Dispatcher posts notifications to the workflow runner's HTTP trigger.
type Dispatcher struct {
	URL        string
	Client     *http.Client
	MaxRetries uint64
	Backoff    time.Duration
}

// NewDispatcher returns a dispatcher with a 10s client timeout and three retries.
func NewDispatcher(url string) *Dispatcher {
	return &Dispatcher{
		URL:        url,
		Client:     &http.Client{Timeout: 10 * time.Second},
		MaxRetries: 3,
		Backoff:    500 * time.Millisecond,
	}
}

// Send delivers n. Network errors and 5xx responses are retried with exponential
// backoff; other non-2xx responses fail immediately.
func (d *Dispatcher) Send(ctx context.Context, n Notification) error {
	if d.URL == "" {
		return ErrNoEndpoint
	}
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	backoff := d.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	b := retry.WithMaxRetries(d.MaxRetries, retry.NewExponential(backoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		switch {
		case resp.StatusCode >= 500:
			return retry.RetryableError(fmt.Errorf("workflow %s: status %d", n.Event, resp.StatusCode))
		case resp.StatusCode >= 300:
			return fmt.Errorf("workflow %s: status %d", n.Event, resp.StatusCode)
		}
		return nil
	})
}
