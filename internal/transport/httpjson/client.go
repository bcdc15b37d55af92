package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dreamware/primeturn/internal/protocol"
	"github.com/dreamware/primeturn/internal/transport"
)

// StatusError is returned when the server answers with a non-2xx code. A 400
// error also wraps protocol.ErrInvalidRequest.
type StatusError struct {
	URL  string
	Body string
	Code int
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %s: %d", e.URL, e.Code)
	}
	return fmt.Sprintf("http %s: %d: %s", e.URL, e.Code, e.Body)
}

// Client talks to a coordinator at a base URL such as "http://127.0.0.1:3000".
// It is safe for concurrent use.
type Client struct {
	http    *http.Client
	baseURL string
	closed  atomic.Bool
}

var _ transport.Client = (*Client)(nil)

// NewClient returns a client whose every call is bounded by timeout.
// A bare host:port is given an http:// scheme.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) Register(ctx context.Context, req *protocol.RegisterRequest) (*protocol.RegisterResponse, error) {
	var out protocol.RegisterResponse
	if err := c.postJSON(ctx, protocol.OpRegister, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SubmitPrime(ctx context.Context, req *protocol.PrimeRequest) (*protocol.PrimeResponse, error) {
	var out protocol.PrimeResponse
	if err := c.postJSON(ctx, protocol.OpPrime, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CurrentIndex(ctx context.Context, _ *protocol.CurrentIndexRequest) (*protocol.CurrentIndexResponse, error) {
	var out protocol.CurrentIndexResponse
	if err := c.getJSON(ctx, protocol.OpGetCurrentIndex, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Ping(ctx context.Context, req *protocol.PingRequest) (*protocol.PingResponse, error) {
	var out protocol.PingResponse
	if err := c.postJSON(ctx, protocol.OpPing, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Close releases idle connections. Later calls fail with transport.ErrClosed.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) postJSON(ctx context.Context, op protocol.Op, body, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, op, bytes.NewReader(reqBody), out)
}

func (c *Client) getJSON(ctx context.Context, op protocol.Op, out any) error {
	return c.do(ctx, http.MethodGet, op, nil, out)
}

func (c *Client) do(ctx context.Context, method string, op protocol.Op, body io.Reader, out any) error {
	if c.closed.Load() {
		return transport.ErrClosed
	}
	url := c.baseURL + op.Path()
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		se := &StatusError{URL: url, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		if resp.StatusCode == http.StatusBadRequest {
			return fmt.Errorf("%w: %w", protocol.ErrInvalidRequest, se)
		}
		return se
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}
