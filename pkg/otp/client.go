package otp

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/citizencard-qa/autotests-mobile/pkg/config"
	"github.com/citizencard-qa/autotests-mobile/pkg/core"
	"github.com/citizencard-qa/autotests-mobile/pkg/logger"
)

// Defaults for fetching codes.
const (
	DefaultSettleDelay  = 4 * time.Second
	DefaultPollTimeout  = 30 * time.Second
	DefaultPollInterval = time.Second
)

// Client talks to the notifications service that mirrors SMS sent to test phones.
type Client struct {
	url          string
	http         *http.Client
	settleDelay  time.Duration
	pollTimeout  time.Duration
	pollInterval time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithInsecureSkipVerify disables TLS verification; the test stand uses self-signed certificates.
func WithInsecureSkipVerify(skip bool) Option {
	return func(c *Client) {
		if !skip {
			return
		}
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		c.http = &http.Client{Transport: t, Timeout: c.http.Timeout}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithSettleDelay sets the pause before the first request.
func WithSettleDelay(d time.Duration) Option { return func(c *Client) { c.settleDelay = d } }

// WithPollTimeout sets the total budget of WaitForCode.
func WithPollTimeout(d time.Duration) Option { return func(c *Client) { c.pollTimeout = d } }

// WithPollInterval sets the first retry interval of WaitForCode.
func WithPollInterval(d time.Duration) Option { return func(c *Client) { c.pollInterval = d } }

// NewClient creates a notifications client for url.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:          url,
		http:         &http.Client{Timeout: 30 * time.Second},
		settleDelay:  DefaultSettleDelay,
		pollTimeout:  DefaultPollTimeout,
		pollInterval: DefaultPollInterval,
		sleep:        sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromConfig creates a client for the configured notifications endpoint.
func FromConfig(cfg config.OTP, opts ...Option) *Client {
	base := []Option{WithInsecureSkipVerify(cfg.InsecureSkipVerify)}
	if cfg.SettleDelay > 0 {
		base = append(base, WithSettleDelay(cfg.SettleDelay))
	}
	if cfg.PollTimeout > 0 {
		base = append(base, WithPollTimeout(cfg.PollTimeout))
	}
	return NewClient(cfg.NotificationsURL, append(base, opts...)...)
}

// RequestHelper identifies whose messages to fetch: by gateway id, phone, or both.
type RequestHelper struct {
	GatewayID string
	Phone     string

	client *Client
}

// Helper binds a phone and gateway id to the client.
func (c *Client) Helper(phone, gatewayID string) *RequestHelper {
	return &RequestHelper{GatewayID: gatewayID, Phone: phone, client: c}
}

// GetNotifications waits for the backend to settle, then fetches the message list once.
func (h *RequestHelper) GetNotifications(ctx context.Context) (*Parser, error) {
	if err := h.client.sleep(ctx, h.client.settleDelay); err != nil {
		return nil, err
	}
	return h.client.fetch(ctx, h.Phone, h.GatewayID)
}

// WaitForCode polls the message list with exponential backoff until the kind's
// code shows up or the poll budget runs out.
func (h *RequestHelper) WaitForCode(ctx context.Context, kind Kind) (string, error) {
	if err := h.client.sleep(ctx, h.client.settleDelay); err != nil {
		return "", err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.client.pollInterval
	b.MaxInterval = 5 * h.client.pollInterval
	b.MaxElapsedTime = h.client.pollTimeout

	var code string
	attempt := 0
	op := func() error {
		attempt++
		p, err := h.client.fetch(ctx, h.Phone, h.GatewayID)
		if err != nil {
			var de *decodeError
			if errors.As(err, &de) {
				return backoff.Permanent(err)
			}
			return err
		}
		code, err = p.Code(kind)
		return err
	}
	notify := func(err error, next time.Duration) {
		logger.Debug("otp: attempt %d for %s failed: %v, retrying in %s", attempt, kind, err, next)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", core.ErrOTPNotReceived.
			WithDetails(map[string]interface{}{"kind": string(kind), "phone": h.Phone, "attempts": attempt}).
			WithCause(err)
	}
	logger.Info("otp: %s code received for %s after %d attempt(s)", kind, h.Phone, attempt)
	return code, nil
}

// LoginCode waits for the login code sent to phone.
func (c *Client) LoginCode(ctx context.Context, phone string) (string, error) {
	return c.Helper(phone, "").WaitForCode(ctx, KindLogin)
}

type decodeError struct{ err error }

func (e *decodeError) Error() string { return "decode notifications: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func (c *Client) fetch(ctx context.Context, phone, gatewayID string) (*Parser, error) {
	body, err := json.Marshal(map[string]string{
		"phone":     phone,
		"biztalkId": gatewayID,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build notifications request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notifications request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read notifications: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("notifications returned %d: %s", resp.StatusCode, string(data))
	}

	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, &decodeError{err: err}
	}
	logger.Debug("otp: %d message(s) for phone=%s biztalkId=%s", len(messages), phone, gatewayID)
	return NewParser(messages), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
