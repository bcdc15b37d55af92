package integration

import (
	"context"
	"net"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/dreamware/primeturn/internal/coordinator"
	"github.com/dreamware/primeturn/internal/transport"
	"github.com/dreamware/primeturn/internal/transport/grpcjson"
	"github.com/dreamware/primeturn/internal/transport/httpjson"
	"github.com/dreamware/primeturn/internal/worker"
)

// TestSystem is a coordinator served over HTTP and gRPC plus the workers
// talking to it, all in one process.
type TestSystem struct {
	t        *testing.T
	coord    *coordinator.Coordinator
	tracker  *coordinator.LivenessTracker
	httpSrv  *httptest.Server
	grpcSrv  *grpc.Server
	grpcAddr string
	workers  []*worker.Worker
	mu       sync.Mutex
}

// NewTestSystem starts a coordinator for cfg on loopback listeners.
func NewTestSystem(t *testing.T, cfg coordinator.Config) *TestSystem {
	t.Helper()
	coord := coordinator.New(cfg, nil)
	tracker := coordinator.NewLivenessTracker(50*time.Millisecond, nil)
	handler := coordinator.NewHandler(coord, tracker)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	grpcSrv := grpcjson.NewServer(handler, nil)
	go func() { _ = grpcSrv.Serve(ln) }()

	ts := &TestSystem{
		t:        t,
		coord:    coord,
		tracker:  tracker,
		httpSrv:  httptest.NewServer(httpjson.NewHandler(handler, nil)),
		grpcSrv:  grpcSrv,
		grpcAddr: ln.Addr().String(),
	}
	go tracker.Start(context.Background())
	t.Cleanup(ts.Stop)
	return ts
}

func (ts *TestSystem) client(useGRPC bool) transport.Client {
	if !useGRPC {
		return httpjson.NewClient(ts.httpSrv.URL, 5*time.Second)
	}
	c, err := grpcjson.Dial(ts.grpcAddr, grpcjson.WithCallTimeout(5*time.Second))
	require.NoError(ts.t, err)
	return c
}

// AddWorker creates and starts a worker. Odd-numbered workers use gRPC.
func (ts *TestSystem) AddWorker(cfg worker.Config) *worker.Worker {
	ts.mu.Lock()
	useGRPC := len(ts.workers)%2 == 1
	ts.mu.Unlock()

	w, err := worker.New(cfg, ts.client(useGRPC), nil)
	require.NoError(ts.t, err)
	require.NoError(ts.t, w.Start(context.Background()))

	ts.mu.Lock()
	ts.workers = append(ts.workers, w)
	ts.mu.Unlock()
	return w
}

// WaitDone blocks until the session completes.
func (ts *TestSystem) WaitDone(timeout time.Duration) *coordinator.Report {
	ts.t.Helper()
	select {
	case <-ts.coord.Done():
		return ts.coord.Report()
	case <-time.After(timeout):
		ts.t.Fatalf("session did not complete; %d primes accepted", len(ts.coord.Primes()))
		return nil
	}
}

// Stop tears down every worker and both servers.
func (ts *TestSystem) Stop() {
	ts.mu.Lock()
	workers := ts.workers
	ts.workers = nil
	ts.mu.Unlock()

	for _, w := range workers {
		_ = w.Stop()
	}
	ts.tracker.Stop()
	ts.grpcSrv.Stop()
	ts.httpSrv.Close()
}

func fastWorker(workerCount int, roundRobin bool) worker.Config {
	cfg := worker.DefaultConfig()
	cfg.WorkerCount = workerCount
	cfg.RoundRobin = roundRobin
	cfg.MinInterval = time.Millisecond
	cfg.MaxInterval = 5 * time.Millisecond
	cfg.RetryCount = 1
	cfg.RetryDelay = 10 * time.Millisecond
	cfg.PingInterval = 20 * time.Millisecond
	cfg.TurnPollDelay = time.Millisecond
	return cfg
}

func startWorkers(ts *TestSystem, n int, cfg worker.Config) []*worker.Worker {
	var wg sync.WaitGroup
	out := make([]*worker.Worker, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out[i] = ts.AddWorker(cfg)
		}(i)
	}
	wg.Wait()
	return out
}

// TestRoundRobinSession runs three workers to a twelve-prime target and
// checks the turns were shared evenly.
func TestRoundRobinSession(t *testing.T) {
	ts := NewTestSystem(t, coordinator.Config{WorkerCount: 3, PrimeLimit: 12, RoundRobin: true})
	workers := startWorkers(ts, 3, fastWorker(3, true))

	report := ts.WaitDone(30 * time.Second)
	require.NotNil(t, report)

	assert.Len(t, report.Primes, 12)
	seen := make(map[string]bool)
	for _, p := range report.Primes {
		assert.False(t, seen[p], "duplicate %s in ledger", p)
		seen[p] = true
	}

	require.Len(t, report.Scores, 3)
	for _, s := range report.Scores {
		assert.Equal(t, 4, s.Score, "client %s", s.ClientID)
	}
	assert.Equal(t, 12, report.Total())

	orders := make(map[int]bool)
	for _, w := range workers {
		order, ok := w.Order()
		require.True(t, ok)
		orders[order] = true
	}
	assert.Equal(t, map[int]bool{0: true, 1: true, 2: true}, orders)

	// Workers not holding the turn keep polling; Stop ends their loops cleanly.
	for _, w := range workers {
		require.NoError(t, w.Stop())
		assert.NoError(t, w.Wait())
	}

	assert.Eventually(t, func() bool { return len(ts.tracker.All()) == 3 }, 5*time.Second, 10*time.Millisecond,
		"every worker should have pinged")
}

// TestFreeForAllSession turns round-robin off: any worker may submit at any
// time and the cursor never moves.
func TestFreeForAllSession(t *testing.T) {
	ts := NewTestSystem(t, coordinator.Config{WorkerCount: 3, PrimeLimit: 9, RoundRobin: false})
	startWorkers(ts, 3, fastWorker(3, false))

	report := ts.WaitDone(30 * time.Second)
	require.NotNil(t, report)
	assert.Len(t, report.Primes, 9)
	assert.Equal(t, 9, report.Total())
	assert.Equal(t, 0, ts.coord.CurrentTurn())
}

// TestLateWorkerNeverSubmits registers a fourth worker after the queue froze.
func TestLateWorkerNeverSubmits(t *testing.T) {
	ts := NewTestSystem(t, coordinator.Config{WorkerCount: 2, PrimeLimit: 6, RoundRobin: true})
	startWorkers(ts, 2, fastWorker(2, true))
	require.Eventually(t, func() bool { return len(ts.coord.Queue()) == 2 }, 10*time.Second, time.Millisecond)

	late := ts.AddWorker(fastWorker(2, true))
	order, ok := late.Order()
	require.True(t, ok)
	assert.Equal(t, 2, order)

	report := ts.WaitDone(30 * time.Second)
	require.NotNil(t, report)
	assert.NotContains(t, ts.coord.Queue(), late.ID())
	for _, s := range report.Scores {
		if s.ClientID == late.ID() {
			assert.Zero(t, s.Score)
		}
	}
	assert.Zero(t, late.Stats().Accepted)
}
