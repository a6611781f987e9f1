package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_checkout/internal/auth"
	"github.com/fjod/go_checkout/pkg/circuitbreaker"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseBody = 1 << 20 // 1MB

func init() {
	// the backend reads amounts as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// APIError is a non-2xx answer, or a 2xx answer whose envelope says success=false.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storefront api: status %d: %s", e.Status, e.Message)
}

// Retryable is true for server-side failures.
func (e *APIError) Retryable() bool {
	return e.Status >= http.StatusInternalServerError
}

type response struct {
	status int
	body   []byte
}

// Client talks to the storefront REST backend (orders, coupons, recurring orders, settings).
type Client struct {
	baseURL  string
	http     *http.Client
	timeout  time.Duration
	cb       *gobreaker.CircuitBreaker[*response]
	validate *validator.Validate
	now      func() time.Time
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func WithBreaker(s circuitbreaker.Settings, log *slog.Logger) Option {
	return func(c *Client) {
		c.cb = circuitbreaker.New[*response](s, log, countsAsSuccess)
	}
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout:  timeout,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cb == nil {
		c.cb = circuitbreaker.New[*response](circuitbreaker.DefaultSettings("storefront"), nil, countsAsSuccess)
	}
	return c
}

// countsAsSuccess keeps business rejections (4xx) from tripping the breaker.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && !apiErr.Retryable()
}

func (c *Client) do(ctx context.Context, method, path string, in any) ([]byte, error) {
	session, err := auth.Require(ctx, c.now())
	if err != nil {
		return nil, err
	}

	var payload []byte
	if in != nil {
		payload, err = json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal %s %s request: %w", method, path, err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.cb.Execute(func() (*response, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, body)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+session.Token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if reqID := middleware.GetReqID(ctx); reqID != "" {
			req.Header.Set(middleware.RequestIDHeader, reqID)
		}

		httpResp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer httpResp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
		if err != nil {
			return nil, fmt.Errorf("read %s %s response: %w", method, path, err)
		}

		r := &response{status: httpResp.StatusCode, body: raw}
		if httpResp.StatusCode >= http.StatusBadRequest {
			return r, &APIError{Status: httpResp.StatusCode, Message: errorMessage(raw, httpResp.Status)}
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

func errorMessage(body []byte, fallback string) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	return fallback
}
