// Package backend holds the request/response contracts of the remote
// calculator, statistics, analytics and chat services, and one adapter per
// service. Each adapter call validates its input, issues a single request
// and maps the response onto typed results or typed errors.
package backend

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

	"github.com/kartoza/stats-workbench/internal/config"
)

// maxResponseBytes caps how much of a response body is read
const maxResponseBytes = 32 << 20

// Call outcomes reported to an Observer
const (
	OutcomeOK           = "ok"
	OutcomeAPIError     = "api_error"
	OutcomeConnectError = "connect_error"
	OutcomeCancelled    = "cancelled"
	OutcomeTooLarge     = "too_large"
)

// Observer is told about every request an adapter sends
type Observer func(service, operation, outcome string, elapsed time.Duration)

// Services bundles one adapter per remote collaborator
type Services struct {
	Calculator *Calculator
	Stats      *Stats
	Analytics  *Analytics
	Chat       *Chat
}

type options struct {
	httpClient *http.Client
	observer   Observer
}

// Option customises adapter construction
type Option func(*options)

// WithHTTPClient makes every adapter share the given client
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithObserver installs a hook called once per request
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// New builds all adapters from the injected configuration
func New(cfg config.Config, opts ...Option) *Services {
	// One client for all adapters unless the caller supplies its own
	opts = append([]Option{WithHTTPClient(&http.Client{})}, opts...)

	return &Services{
		Calculator: NewCalculator(cfg.Backends.CalculatorBaseURL, opts...),
		Stats:      NewStats(cfg.Backends.StatsBaseURL, opts...),
		Analytics:  NewAnalytics(cfg.Backends.AnalyticsBaseURL, opts...),
		Chat:       NewChat(cfg.Backends.ChatBaseURL, cfg.Chat, opts...),
	}
}

// endpoint is the shared plumbing behind every adapter
type endpoint struct {
	service        string
	baseURL        string
	connectMessage string
	client         *http.Client
	observer       Observer
}

func newEndpoint(service, baseURL, connectMessage string, opts []Option) endpoint {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{}
	}
	return endpoint{
		service:        service,
		baseURL:        strings.TrimRight(baseURL, "/"),
		connectMessage: connectMessage,
		client:         o.httpClient,
		observer:       o.observer,
	}
}

// request describes one outbound call
type request struct {
	operation   string
	method      string
	path        string
	body        io.Reader
	contentType string
	header      http.Header
}

// response is a fully read reply
type response struct {
	status int
	body   []byte
}

func (r response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// jsonBody encodes v for use as a request body
func jsonBody(v interface{}) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return bytes.NewReader(data), nil
}

// send performs exactly one attempt and reads the whole body
func (e endpoint) send(ctx context.Context, req request) (response, error) {
	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, req.method, e.baseURL+req.path, req.body)
	if err != nil {
		return response{}, fmt.Errorf("%s %s: failed to build request: %w", e.service, req.operation, err)
	}
	for key, values := range req.header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return response{}, e.transportFailure(ctx, req.operation, start, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return response{}, e.transportFailure(ctx, req.operation, start, err)
	}

	out := response{status: resp.StatusCode, body: body}
	if out.ok() {
		e.observe(req.operation, OutcomeOK, start)
	} else {
		e.observe(req.operation, OutcomeAPIError, start)
	}
	return out, nil
}

// transportFailure separates a cancelled call or an oversized request body
// from an unreachable service
func (e endpoint) transportFailure(ctx context.Context, operation string, start time.Time, err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		e.observe(operation, OutcomeTooLarge, start)
		return &TooLargeError{Service: e.service, Limit: tooLarge.Limit}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		e.observe(operation, OutcomeCancelled, start)
		return fmt.Errorf("%s %s: %w", e.service, operation, ctxErr)
	}
	e.observe(operation, OutcomeConnectError, start)
	return &ConnectError{Service: e.service, Message: e.connectMessage, Err: err}
}

func (e endpoint) observe(operation, outcome string, start time.Time) {
	if e.observer != nil {
		e.observer(e.service, operation, outcome, time.Since(start))
	}
}

// decode unmarshals a successful body or reports it as malformed
func (e endpoint) decode(resp response, v interface{}) error {
	if err := json.Unmarshal(resp.body, v); err != nil {
		return &APIError{
			Service: e.service,
			Status:  resp.status,
			Message: fmt.Sprintf("malformed response from %s service: %v", e.service, err),
		}
	}
	return nil
}

// apiError builds an APIError from the named field of an error body,
// falling back to the given message
func (e endpoint) apiError(resp response, fallback string, path ...string) *APIError {
	msg := fieldMessage(resp.body, path...)
	if msg == "" {
		msg = fallback
	}
	return &APIError{Service: e.service, Status: resp.status, Message: msg}
}

// checkStatus probes GET {base}/ and reports whether it answered 200
func (e endpoint) checkStatus(ctx context.Context) bool {
	resp, err := e.send(ctx, request{operation: "status", method: http.MethodGet, path: "/"})
	if err != nil {
		return false
	}
	return resp.status == http.StatusOK
}

// fieldMessage extracts a string at the given key path from a JSON object.
// Plumber serialises scalars as one-element arrays, so those are unwrapped.
func fieldMessage(body []byte, path ...string) string {
	if len(path) == 0 {
		return ""
	}
	var node interface{}
	if err := json.Unmarshal(body, &node); err != nil {
		return ""
	}
	for _, key := range path {
		obj, ok := node.(map[string]interface{})
		if !ok {
			return ""
		}
		node = obj[key]
	}
	if arr, ok := node.([]interface{}); ok && len(arr) > 0 {
		node = arr[0]
	}
	s, _ := node.(string)
	return s
}
