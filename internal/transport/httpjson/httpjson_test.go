package httpjson

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/primeturn/internal/protocol"
	"github.com/dreamware/primeturn/internal/transport"
	"github.com/dreamware/primeturn/internal/worker"
)

// stubService records requests and returns canned answers.
type stubService struct {
	mu        sync.Mutex
	registers []protocol.RegisterRequest
	primes    []protocol.PrimeRequest
	pings     []protocol.PingRequest
	index     int
	err       error
}

func (s *stubService) Register(_ context.Context, req *protocol.RegisterRequest) (*protocol.RegisterResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.registers = append(s.registers, *req)
	return &protocol.RegisterResponse{Status: protocol.StatusRegistered, Message: protocol.StatusRegistered.Message(), Order: len(s.registers) - 1}, nil
}

func (s *stubService) SubmitPrime(_ context.Context, req *protocol.PrimeRequest) (*protocol.PrimeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.primes = append(s.primes, *req)
	if req.ClientID != "turn-holder" {
		return protocol.WrongTurn("turn-holder"), nil
	}
	return protocol.Accepted(req.PrimeNumber), nil
}

func (s *stubService) CurrentIndex(context.Context, *protocol.CurrentIndexRequest) (*protocol.CurrentIndexResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &protocol.CurrentIndexResponse{Index: s.index}, nil
}

func (s *stubService) Ping(_ context.Context, req *protocol.PingRequest) (*protocol.PingResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pings = append(s.pings, *req)
	return &protocol.PingResponse{Message: protocol.PongMessage}, nil
}

func newTestServer(t *testing.T, svc transport.Service) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(NewHandler(svc, nil))
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, 2*time.Second)
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestClientRoundTrip(t *testing.T) {
	svc := &stubService{index: 2}
	_, client := newTestServer(t, svc)
	ctx := context.Background()

	reg, err := client.Register(ctx, &protocol.RegisterRequest{ClientID: "w1", PublicKey: "a2V5"})
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusRegistered, reg.Status)
	assert.Equal(t, 0, reg.Order)
	assert.Equal(t, []protocol.RegisterRequest{{ClientID: "w1", PublicKey: "a2V5"}}, svc.registers)

	resp, err := client.SubmitPrime(ctx, &protocol.PrimeRequest{ClientID: "w1", PrimeNumber: "17", Signature: "ab"})
	require.NoError(t, err, "rejections are responses, not errors")
	assert.Equal(t, protocol.StatusWrongTurn, resp.Status)
	assert.Equal(t, "turn-holder", resp.Expected)

	resp, err = client.SubmitPrime(ctx, &protocol.PrimeRequest{ClientID: "turn-holder", PrimeNumber: "17", Signature: "ab"})
	require.NoError(t, err)
	assert.True(t, resp.Accepted())
	assert.Equal(t, "Prime number added: 17", resp.Message)

	idx, err := client.CurrentIndex(ctx, &protocol.CurrentIndexRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Index)

	pong, err := client.Ping(ctx, &protocol.PingRequest{ClientID: "w1"})
	require.NoError(t, err)
	assert.Equal(t, "pong", pong.Message)
}

func TestServiceErrorsMapToStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"invalid request", protocol.ErrInvalidRequest, http.StatusBadRequest},
		{"canceled", context.Canceled, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := newTestServer(t, &stubService{err: tt.err})

			_, err := client.Register(context.Background(), &protocol.RegisterRequest{ClientID: "w1"})
			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.code, se.Code)
			assert.Equal(t, tt.code == http.StatusBadRequest, errors.Is(err, protocol.ErrInvalidRequest))
		})
	}
}

// failingService answers every call with err and counts the calls.
type failingService struct {
	err   error
	calls atomic.Int32
}

func (s *failingService) Register(context.Context, *protocol.RegisterRequest) (*protocol.RegisterResponse, error) {
	s.calls.Add(1)
	return nil, s.err
}

func (s *failingService) SubmitPrime(context.Context, *protocol.PrimeRequest) (*protocol.PrimeResponse, error) {
	s.calls.Add(1)
	return nil, s.err
}

func (s *failingService) CurrentIndex(context.Context, *protocol.CurrentIndexRequest) (*protocol.CurrentIndexResponse, error) {
	s.calls.Add(1)
	return nil, s.err
}

func (s *failingService) Ping(context.Context, *protocol.PingRequest) (*protocol.PingResponse, error) {
	s.calls.Add(1)
	return nil, s.err
}

func TestWorkerDoesNotRetryInvalidRequest(t *testing.T) {
	svc := &failingService{err: protocol.ErrInvalidRequest}
	_, client := newTestServer(t, svc)

	cfg := worker.DefaultConfig()
	cfg.AutoStart = false
	cfg.PingInterval = 0
	cfg.RetryCount = 3
	cfg.RetryDelay = time.Millisecond
	w, err := worker.New(cfg, client, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	err = w.Register(context.Background())
	require.ErrorIs(t, err, protocol.ErrInvalidRequest)
	assert.NotErrorIs(t, err, worker.ErrRetriesExhausted)
	assert.Equal(t, protocol.CodeRequestValidation, worker.Code(err))
	assert.Equal(t, int32(1), svc.calls.Load(), "a bad request is sent once")
}

func TestWorkerRetriesServerFailure(t *testing.T) {
	svc := &failingService{err: errors.New("boom")}
	_, client := newTestServer(t, svc)

	cfg := worker.DefaultConfig()
	cfg.AutoStart = false
	cfg.PingInterval = 0
	cfg.RetryCount = 2
	cfg.RetryDelay = time.Millisecond
	w, err := worker.New(cfg, client, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	err = w.Register(context.Background())
	require.ErrorIs(t, err, worker.ErrRetriesExhausted)
	assert.Equal(t, int32(3), svc.calls.Load())
}

func TestHandlerRejectsBadRequests(t *testing.T) {
	srv, _ := newTestServer(t, &stubService{})

	resp, err := http.Post(srv.URL+"/prime", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/register")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	for _, path := range []string{"/", "/mine", "/register/extra"} {
		resp, err = http.Post(srv.URL+path, "application/json", strings.NewReader("{}"))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestClientAfterClose(t *testing.T) {
	_, client := newTestServer(t, &stubService{})
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	_, err := client.Ping(context.Background(), &protocol.PingRequest{ClientID: "w1"})
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(url, 500*time.Millisecond)
	_, err := client.CurrentIndex(context.Background(), &protocol.CurrentIndexRequest{})
	assert.Error(t, err)
}

func TestNewClientAddsScheme(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:3000", NewClient("127.0.0.1:3000", time.Second).baseURL)
	assert.Equal(t, "https://coord", NewClient("https://coord/", time.Second).baseURL)
}
