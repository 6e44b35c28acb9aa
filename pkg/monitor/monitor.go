// Package monitor pushes the XML issue feed to a monitoring system's push
// endpoint.
package monitor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/aclscan/aclscan/pkg/logger"
)

const (
	retryMax     = 3
	retryWaitMax = 3 * time.Second
)

// Option configures a Pusher.
type Option func(*Pusher)

func WithLogger(l logger.Logger) Option {
	return func(p *Pusher) {
		p.logger = l
	}
}

// WithHTTPClient replaces the retrying default client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Pusher) {
		p.client = client
	}
}

// Pusher delivers one feed document per run. Transient failures retry with
// backoff; the idempotency key keeps a retried delivery from double-counting
// on the receiving side.
type Pusher struct {
	endpoint string
	client   *http.Client
	logger   logger.Logger
}

func NewPusher(endpoint string, opts ...Option) *Pusher {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = retryMax
	client.RetryWaitMax = retryWaitMax

	p := &Pusher{
		endpoint: endpoint,
		client:   client.StandardClient(),
		logger:   logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enabled reports whether an endpoint is configured. A disabled pusher
// accepts pushes and drops them.
func (p *Pusher) Enabled() bool {
	return p.endpoint != ""
}

// Push POSTs the encoded feed. Any response outside the 2xx range is an
// error; the run itself is not failed by the caller, only logged.
func (p *Pusher) Push(ctx context.Context, feed []byte) error {
	if !p.Enabled() {
		p.logger.Debug("no monitor endpoint configured, feed not pushed")
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(feed))
	if err != nil {
		return fmt.Errorf("monitor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml")
	req.Header.Set("X-Idempotency-Key", uuid.New().String())

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("push issue feed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("monitor endpoint returned %s", resp.Status)
	}

	p.logger.Info("issue feed pushed",
		zap.String("endpoint", p.endpoint),
		zap.Int("bytes", len(feed)),
	)
	return nil
}
