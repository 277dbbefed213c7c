package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrDelivery is returned when the downstream POST fails, times out or answers non-2xx.
var ErrDelivery = errors.New("forwarder: delivery failed")

// TokenSigner issues a bearer token for each delivery.
type TokenSigner interface {
	Generate(subject, scope string) (string, error)
}

// Forwarder POSTs JSON payloads to the automation endpoint. It never retries.
type Forwarder struct {
	httpClient     *http.Client
	signer         TokenSigner
	defaultTimeout time.Duration
	logger         *zap.Logger
}

// New creates a forwarder. signer may be nil; then no Authorization header is sent.
func New(httpClient *http.Client, signer TokenSigner, defaultTimeout time.Duration, logger *zap.Logger) *Forwarder {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Forwarder{httpClient: httpClient, signer: signer, defaultTimeout: defaultTimeout, logger: logger}
}

// Deliver serializes payload and POSTs it to targetURL. The default timeout applies when ctx has no deadline.
func (f *Forwarder) Deliver(ctx context.Context, payload any, targetURL string) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.defaultTimeout)
		defer cancel()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal payload: %v", ErrDelivery, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.signer != nil {
		tok, err := f.signer.Generate("zoom-webhook", "deliver")
		if err != nil {
			return fmt.Errorf("%w: sign request: %v", ErrDelivery, err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrDelivery, resp.StatusCode)
	}
	f.logger.Info("payload delivered",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("latency", time.Since(start)),
	)
	return nil
}
