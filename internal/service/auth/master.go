// internal/service/auth/master.go
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	xerrors "ledroitcheck-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// MasterClient authenticates users against the master system.
type MasterClient struct {
	url     string
	system  string
	http    *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

type masterRequest struct {
	Usuario  string `json:"usuario"`
	Password string `json:"password"`
	Sistema  string `json:"sistema"`
}

type refreshRequest struct {
	Iniciales string `json:"iniciales"`
	Sistema   string `json:"sistema"`
}

func NewMasterClient(url, system string, timeout time.Duration, logger *zap.Logger) *MasterClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MasterClient{
		url:     url,
		system:  system,
		http:    &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  logger,
	}
}

// Authenticate posts the credentials and returns the master's decoded result.
// A result whose success flag is not true yields xerrors.ErrUnauthorized.
func (c *MasterClient) Authenticate(ctx context.Context, usuario, password string) (map[string]any, error) {
	return c.post(ctx, c.url, masterRequest{Usuario: usuario, Password: password, Sistema: c.system})
}

// Refresh asks the master for the current entitlements of initials.
func (c *MasterClient) Refresh(ctx context.Context, initials string) (map[string]any, error) {
	return c.post(ctx, c.url+"/refresh", refreshRequest{Iniciales: initials, Sistema: c.system})
}

func (c *MasterClient) post(ctx context.Context, url string, payload any) (map[string]any, error) {
	if c.url == "" {
		return nil, fmt.Errorf("master auth url not configured: %w", xerrors.ErrUnavailable)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal master request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build master request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("master request failed: %w: %v", xerrors.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read master response: %w: %v", xerrors.ErrUnavailable, err)
	}

	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil || result == nil {
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("master returned %d: %w", resp.StatusCode, xerrors.ErrUnavailable)
		}
		return nil, fmt.Errorf("master returned an unreadable body (%d): %w", resp.StatusCode, xerrors.ErrUnavailable)
	}

	if ok, _ := result["success"].(bool); !ok {
		msg, _ := result["message"].(string)
		if msg == "" {
			msg = "credentials rejected"
		}
		c.logger.Info("master rejected request", zap.Int("status", resp.StatusCode), zap.String("message", msg))
		return nil, fmt.Errorf("%s: %w", msg, xerrors.ErrUnauthorized)
	}
	return result, nil
}
