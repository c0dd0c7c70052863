// Package client is a typed REST client for the featureboard API.
//
// Calls go through a circuit breaker: network errors and 5xx answers count as
// failures, 4xx answers do not. Every non-2xx answer is returned as *Error,
// which unwraps to the matching apperr kind.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"featureboard/internal/apperr"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 16 << 20

// Error is a non-2xx API answer.
type Error struct {
	StatusCode int
	Kind       error
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.StatusCode, e.Kind)
	}
	return fmt.Sprintf("api: %d %s", e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error { return e.Kind }

type Client struct {
	base string
	http *http.Client
	cb   *gobreaker.CircuitBreaker[*response]
	log  zerolog.Logger

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithLogger(l zerolog.Logger) Option { return func(c *Client) { c.log = l } }

// WithToken starts the client with an existing session token.
func WithToken(tok string) Option { return func(c *Client) { c.token = tok } }

// WithBreaker overrides the breaker settings; Name and IsSuccessful are
// always set by the client.
func WithBreaker(st gobreaker.Settings) Option {
	return func(c *Client) { c.cb = newBreaker(st, c.log) }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
		log:  zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.cb == nil {
		c.cb = newBreaker(gobreaker.Settings{
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}, c.log)
	}
	return c
}

func newBreaker(st gobreaker.Settings, log zerolog.Logger) *gobreaker.CircuitBreaker[*response] {
	st.Name = "featureboard-api"
	// A caller giving up is not a server failure.
	st.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, context.Canceled) }
	prev := st.OnStateChange
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		if prev != nil {
			prev(name, from, to)
		}
	}
	return gobreaker.NewCircuitBreaker[*response](st)
}

// Token returns the current session token, if any.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(tok string) {
	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// errServer marks a 5xx answer so the breaker counts it.
type errServer struct{ resp *response }

func (e errServer) Error() string { return fmt.Sprintf("server error %d", e.resp.status) }

// do sends one request. body is JSON-encoded unless it is raw []byte, in
// which case the caller supplies contentType.
func (c *Client) do(ctx context.Context, method, path string, body any, contentType string, out any) (*response, error) {
	resp, err := c.cb.Execute(func() (*response, error) {
		var rd io.Reader
		switch b := body.(type) {
		case nil:
		case []byte:
			rd = bytes.NewReader(b)
		default:
			buf, err := json.Marshal(b)
			if err != nil {
				return nil, fmt.Errorf("encode request: %w", err)
			}
			rd = bytes.NewReader(buf)
			contentType = "application/json"
		}
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if tok := c.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}

		hr, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer hr.Body.Close()
		data, err := io.ReadAll(io.LimitReader(hr.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		r := &response{status: hr.StatusCode, header: hr.Header, body: data}
		if hr.StatusCode >= 500 {
			return r, errServer{r}
		}
		return r, nil
	})

	var se errServer
	switch {
	case errors.As(err, &se):
		return nil, apiError(se.resp)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, apperr.Transport(err, "api unavailable")
	case err != nil:
		return nil, apperr.Transport(err, "%s %s", method, path)
	}

	if resp.status < 200 || resp.status > 299 {
		return nil, apiError(resp)
	}
	if out != nil && len(resp.body) > 0 {
		if err := json.Unmarshal(resp.body, out); err != nil {
			return nil, apperr.Transport(err, "decode %s %s", method, path)
		}
	}
	return resp, nil
}

func apiError(r *response) *Error {
	var env struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(r.body, &env)
	return &Error{StatusCode: r.status, Kind: apperr.FromStatus(r.status), Message: env.Error}
}
