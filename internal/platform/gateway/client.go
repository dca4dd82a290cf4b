package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/paygate/pkg/apperr"
	"github.com/fatflowers/paygate/pkg/config"
	"github.com/fatflowers/paygate/pkg/logctx"
	"github.com/fatflowers/paygate/pkg/metrics"
	"github.com/fatflowers/paygate/pkg/signature"
)

// ErrUnreachable is returned once the retry budget is spent without a
// parseable response.
var ErrUnreachable = apperr.New(apperr.KindGatewayUnreachable, "payment gateway unreachable")

// Response is the parsed gateway envelope.
type Response struct {
	Status                int             `json:"Status"`
	UserErrorMessage      string          `json:"UserErrorMessage"`
	TechnicalErrorDetails string          `json:"TechnicalErrorDetails"`
	Data                  json.RawMessage `json:"Data"`
}

func (r *Response) OK() bool { return r != nil && r.Status == 0 }

// DecodeData unmarshals the Data field into out.
func (r *Response) DecodeData(out any) error {
	if r == nil || len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}
	return json.Unmarshal(r.Data, out)
}

type sendOptions struct {
	retry   bool
	timeout time.Duration
}

type SendOption func(*sendOptions)

// WithoutRetry sends exactly once. Used for calls that move money where a
// lost response must not turn into a second attempt.
func WithoutRetry() SendOption {
	return func(o *sendOptions) { o.retry = false }
}

func WithTimeout(d time.Duration) SendOption {
	return func(o *sendOptions) { o.timeout = d }
}

// Client sends signed JSON requests to the gateway.
type Client struct {
	baseURL     string
	companyID   string
	apiKey      string
	testingMode bool
	httpClient  *http.Client
	maxRetries  int
	backoff     time.Duration
	log         *zap.SugaredLogger
	metrics     *metrics.Collectors
}

func NewClient(cfg *config.Config, log *zap.SugaredLogger, m *metrics.Collectors) *Client {
	gc := cfg.Gateway
	return &Client{
		baseURL:     strings.TrimRight(gc.BaseURL, "/"),
		companyID:   gc.CompanyID,
		apiKey:      gc.APIKey,
		testingMode: gc.TestingMode,
		httpClient:  &http.Client{Timeout: gc.Timeout},
		maxRetries:  gc.MaxRetries,
		backoff:     gc.RetryBackoff,
		log:         log,
		metrics:     m,
	}
}

// Send posts body to path with credentials attached. Business failures come
// back as a Response with a non-zero Status; transport failures after the
// retry budget come back as ErrUnreachable.
func (c *Client) Send(ctx context.Context, path string, body any, opts ...SendOption) (*Response, error) {
	o := sendOptions{retry: true}
	for _, opt := range opts {
		opt(&o)
	}

	payload, err := c.buildPayload(body)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal gateway request: %w", err)
	}

	lg := logctx.FromCtx(ctx, c.log).With("gateway_path", path)
	lg.Infow("gateway_request", "body", Sanitize(payload))

	attempts := 1
	if o.retry {
		attempts += c.maxRetries
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			wait := c.backoff * time.Duration(attempt-1)
			lg.Warnw("gateway_retry", "attempt", attempt, "wait_ms", wait.Milliseconds(), "err", lastErr)
			select {
			case <-ctx.Done():
				return nil, apperr.Wrap(apperr.KindGatewayUnreachable, ErrUnreachable.Message, ctx.Err())
			case <-time.After(wait):
			}
		}

		start := time.Now()
		resp, retryable, err := c.do(ctx, path, raw, o.timeout)
		outcome := "ok"
		switch {
		case err != nil:
			outcome = "transport_error"
		case !resp.OK():
			outcome = "declined"
		}
		c.metrics.GatewayLatency(path, outcome, time.Since(start))

		if err == nil {
			lg.Infow("gateway_response", "status", resp.Status, "user_error", resp.UserErrorMessage, "elapsed_ms", time.Since(start).Milliseconds())
			return resp, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	lg.Errorw("gateway_unreachable", "attempts", attempts, "err", lastErr)
	return nil, apperr.Wrap(apperr.KindGatewayUnreachable, ErrUnreachable.Message, lastErr)
}

func (c *Client) do(ctx context.Context, path string, raw []byte, timeout time.Duration) (*Response, bool, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, false, fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Signature", signature.Sign(c.apiKey, raw))
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, !errors.Is(err, context.Canceled), fmt.Errorf("gateway request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, true, fmt.Errorf("read gateway response: %w", err)
	}
	if res.StatusCode >= http.StatusInternalServerError {
		return nil, res.StatusCode != http.StatusInternalServerError, fmt.Errorf("gateway returned status %d", res.StatusCode)
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, false, fmt.Errorf("decode gateway response (status %d): %w", res.StatusCode, err)
	}
	return &out, false, nil
}

func (c *Client) buildPayload(body any) (map[string]any, error) {
	payload := map[string]any{}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal gateway body: %w", err)
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			return nil, fmt.Errorf("gateway body must be a JSON object: %w", err)
		}
	}
	payload["Credentials"] = map[string]any{"CompanyID": c.companyID, "APIKey": c.apiKey}
	if c.testingMode {
		payload["IsTest"] = true
	}
	return payload, nil
}
