// internal/service/audit/client.go
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ledroitcheck-service/internal/domain/handoff"

	"go.uber.org/zap"
)

// SystemName identifies this service in audit events.
const SystemName = "LedroitCheck"

// Client posts derived-login audit events to an external endpoint. A client
// with an empty URL drops events.
type Client struct {
	url     string
	http    *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

func NewClient(url string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		url:     url,
		http:    &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  logger,
	}
}

// Send posts ev and waits at most the configured timeout.
func (c *Client) Send(ctx context.Context, ev handoff.AuditEvent) error {
	if c.url == "" {
		return nil
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build audit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("audit request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("audit endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// Report sends ev and only logs a failure.
func (c *Client) Report(ctx context.Context, ev handoff.AuditEvent) {
	if err := c.Send(ctx, ev); err != nil {
		c.logger.Warn("audit failed, continuing", zap.Error(err))
		return
	}
	if c.url != "" {
		c.logger.Info("audit sent")
	}
}
