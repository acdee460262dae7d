/*
Package notify delivers submitted contracts to external services.

CHANNELS:
  EmailSender: confirmation email through the EmailJS REST API
  CRMWebhook:  contact + contract fields posted to the CRM inbound webhook

Both implement contract.Notifier. When a channel is not configured it
returns contract.ErrNotifierDisabled without doing any I/O, and the contract
service records the channel as skipped.

TRANSPORT:
  Requests go through hashicorp/go-retryablehttp: connection errors and 5xx
  responses are retried with exponential backoff, 4xx responses are not.

SEE ALSO:
  - contract/service.go: best-effort delivery and retry bookkeeping
*/
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/aircare/contract-engine/logger"
)

// ErrDelivery marks a failed outbound call.
var ErrDelivery = errors.New("delivery failed")

// ClientConfig tunes the outbound HTTP client.
type ClientConfig struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// DefaultClientConfig is used by the server.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:      10 * time.Second,
		RetryMax:     3,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
	}
}

// NewHTTPClient builds a retrying HTTP client that logs through zap.
func NewHTTPClient(cfg ClientConfig, log *logger.Logger) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = cfg.RetryMax
	c.RetryWaitMin = cfg.RetryWaitMin
	c.RetryWaitMax = cfg.RetryWaitMax
	c.HTTPClient.Timeout = cfg.Timeout
	if log != nil {
		c.Logger = leveledLogger{log.Named("http")}
	} else {
		c.Logger = nil
	}
	return c
}

// postJSON sends body as JSON and returns the response body on 2xx.
func postJSON(ctx context.Context, client *retryablehttp.Client, url string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "encode payload")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "post %s", url), ErrDelivery)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "read response"), ErrDelivery)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Mark(
			fmt.Errorf("post %s: status %d: %s", url, resp.StatusCode, truncate(string(respBody), 200)),
			ErrDelivery,
		)
	}
	return respBody, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// leveledLogger adapts the zap logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	log *logger.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.log.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.log.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.log.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.log.Warnw(msg, kv...) }
