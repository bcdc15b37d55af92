package worker

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/sirupsen/logrus"

	"github.com/dreamware/primeturn/internal/pacing"
	"github.com/dreamware/primeturn/internal/protocol"
	"github.com/dreamware/primeturn/internal/signing"
	"github.com/dreamware/primeturn/internal/transport"
)

// PrimeBits is the bit length of every candidate prime.
const PrimeBits = 64

// Limit optionally bounds the number of submission iterations. The zero value
// is Unlimited.
type Limit struct {
	n       int
	bounded bool
}

// Unlimited lets the loop run until the worker stops or fails.
var Unlimited = Limit{}

// Times bounds the loop to n submissions. Negative n is treated as zero.
func Times(n int) Limit {
	if n < 0 {
		n = 0
	}
	return Limit{n: n, bounded: true}
}

// Bounded reports whether the limit is finite.
func (l Limit) Bounded() bool { return l.bounded }

// N returns the bound, meaningful only when Bounded.
func (l Limit) N() int { return l.n }

func (l Limit) String() string {
	if !l.bounded {
		return "unlimited"
	}
	return strconv.Itoa(l.n)
}

func (l Limit) more() bool { return !l.bounded || l.n > 0 }

func (l Limit) next() Limit {
	if l.bounded {
		l.n--
	}
	return l
}

// Config holds the worker's behavior settings.
type Config struct {
	// ID identifies the worker; empty means a fresh KSUID.
	ID string

	// WorkerCount is the session size, used for variable pacing.
	WorkerCount int

	// RoundRobin makes the loop poll for its turn before every submission.
	RoundRobin bool

	// AutoStart begins the loop, bounded by Iterations, as soon as Start
	// has registered.
	AutoStart  bool
	Iterations Limit

	// PrimeInterval is the pause after a submission unless VarySpeeds is set,
	// in which case the pause is spread between MinInterval and MaxInterval
	// by order.
	PrimeInterval time.Duration
	VarySpeeds    bool
	MinInterval   time.Duration
	MaxInterval   time.Duration

	// RetryCount is how many times a failed call is repeated, RetryDelay the
	// pause before each repeat.
	RetryCount int
	RetryDelay time.Duration

	// PingInterval is the heartbeat period; zero disables the heartbeat.
	PingInterval time.Duration

	// TurnPollDelay is the pause between turn polls.
	TurnPollDelay time.Duration
}

// DefaultConfig returns the settings a worker uses when nothing is configured.
func DefaultConfig() Config {
	return Config{
		WorkerCount:   3,
		RoundRobin:    true,
		AutoStart:     true,
		Iterations:    Unlimited,
		PrimeInterval: time.Second,
		VarySpeeds:    true,
		MinInterval:   50 * time.Millisecond,
		MaxInterval:   200 * time.Millisecond,
		RetryCount:    5,
		RetryDelay:    time.Second,
		PingInterval:  20 * time.Second,
		TurnPollDelay: 100 * time.Millisecond,
	}
}

// Stats counts the outcomes of this worker's submissions.
type Stats struct {
	Rejected  map[protocol.Status]int
	Submitted int
	Accepted  int
}

// Worker is one session participant. It is safe for concurrent use.
type Worker struct {
	client   transport.Client
	keys     *signing.KeyPair
	log      *logrus.Entry
	generate func() (*big.Int, error)
	hb       *heartbeat
	stop     chan struct{}
	loopDone chan struct{}
	loopErr  error
	id       string
	cfg      Config
	stats    Stats
	retry    retryPolicy
	order    int
	mu       sync.Mutex
	loops    sync.WaitGroup
	stopOnce sync.Once
	loopOnce sync.Once
	active   atomic.Bool

	registered bool
	sending    bool
	started    bool
}

// New creates a worker speaking through client and generates its RSA
// identity. A key generation failure is returned and the worker is unusable.
// A nil logger discards output.
func New(cfg Config, client transport.Client, log *logrus.Entry) (*Worker, error) {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	id := cfg.ID
	if id == "" {
		id = ksuid.New().String()
	}

	keys, err := signing.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate identity keys: %w", err)
	}

	w := &Worker{
		client:   client,
		keys:     keys,
		log:      log.WithFields(logrus.Fields{"component": "worker", "client_id": id}),
		generate: randomPrime,
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
		id:       id,
		cfg:      cfg,
		stats:    Stats{Rejected: make(map[protocol.Status]int)},
		retry:    retryPolicy{Attempts: 1 + cfg.RetryCount, Delay: cfg.RetryDelay},
	}
	w.active.Store(true)
	w.log.Infof("Client started. clientId: %s", id)
	return w, nil
}

func randomPrime() (*big.Int, error) {
	return rand.Prime(rand.Reader, PrimeBits)
}

// ID returns the worker's identifier.
func (w *Worker) ID() string { return w.id }

// PublicKeyPEM returns the PEM encoding of the worker's public key.
func (w *Worker) PublicKeyPEM() []byte { return w.keys.PublicPEM }

// Order returns the order assigned at registration and whether registration
// has happened.
func (w *Worker) Order() (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.order, w.registered
}

// Stats returns a snapshot of the submission counters.
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.stats
	out.Rejected = make(map[protocol.Status]int, len(w.stats.Rejected))
	for k, v := range w.stats.Rejected {
		out.Rejected[k] = v
	}
	return out
}

// Start begins the heartbeat, registers with retry and, when AutoStart is
// set, launches the submission loop in the background. ctx bounds
// registration and the auto-started loop; the heartbeat runs until Stop.
//
// Start succeeds once. A later call returns ErrAlreadyStarted, unless the
// earlier one failed to register.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if !w.active.Load() {
		w.mu.Unlock()
		return ErrStopped
	}
	if w.started {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	w.started = true
	if w.hb == nil {
		w.hb = startHeartbeat(context.WithoutCancel(ctx), w.client, w.id, w.cfg.PingInterval, w.log)
	}
	w.mu.Unlock()

	if err := w.Register(ctx); err != nil {
		w.mu.Lock()
		w.started = false
		w.mu.Unlock()
		return err
	}
	if !w.cfg.AutoStart {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.active.Load() {
		return ErrStopped
	}
	w.loops.Add(1)
	go func() {
		defer w.loops.Done()
		w.finishLoop(w.SendPrimes(ctx, w.cfg.Iterations))
	}()
	return nil
}

// Register announces the worker and its base64-encoded public key, retrying
// transport failures, and records the assigned order.
func (w *Worker) Register(ctx context.Context) error {
	req := &protocol.RegisterRequest{
		ClientID:  w.id,
		PublicKey: base64.StdEncoding.EncodeToString(w.keys.PublicPEM),
	}
	resp, err := withRetry(ctx, w, "registration", func(ctx context.Context) (*protocol.RegisterResponse, error) {
		return w.client.Register(ctx, req)
	})
	if err != nil {
		return fmt.Errorf("register %s: %w", w.id, err)
	}

	w.mu.Lock()
	w.order = resp.Order
	w.registered = true
	w.mu.Unlock()

	w.log.WithField("order", resp.Order).Infof("Registered to server. Order: %d", resp.Order)
	return nil
}

// SendPrimes runs the submission loop until limit is spent, the worker stops,
// ctx ends or the session completes. Those endings return nil. Any other
// ending returns an error wrapping ErrStartSending.
func (w *Worker) SendPrimes(ctx context.Context, limit Limit) error {
	w.mu.Lock()
	switch {
	case !w.active.Load():
		w.mu.Unlock()
		return ErrStopped
	case !w.registered:
		w.mu.Unlock()
		return ErrNotRegistered
	case w.sending:
		w.mu.Unlock()
		return ErrAlreadySending
	}
	w.sending = true
	w.loops.Add(1)
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.sending = false
		w.mu.Unlock()
		w.loops.Done()
	}()

	if err := w.sendLoop(ctx, limit); err != nil {
		w.log.WithError(err).Error("Error occurred, submission loop stopped")
		return fmt.Errorf("%w: %w", ErrStartSending, err)
	}
	return nil
}

func (w *Worker) sendLoop(ctx context.Context, limit Limit) error {
	interval := w.pacing().Interval()
	w.log.WithFields(logrus.Fields{
		"interval":    interval,
		"iterations":  limit.String(),
		"round_robin": w.cfg.RoundRobin,
	}).Info("Sending primes")

	for remaining := limit; w.active.Load() && remaining.more(); {
		if ctx.Err() != nil {
			return nil
		}
		if w.cfg.RoundRobin {
			mine, err := w.myTurn(ctx)
			if err != nil {
				if w.stopping(ctx, err) {
					return nil
				}
				return fmt.Errorf("poll turn: %w", err)
			}
			if !mine {
				if !w.pause(ctx, w.cfg.TurnPollDelay) {
					return nil
				}
				continue
			}
		}

		resp, err := w.sendPrime(ctx)
		if err != nil {
			if w.stopping(ctx, err) {
				return nil
			}
			return err
		}
		if resp.Status == protocol.StatusCompleted {
			w.log.Info(resp.Message)
			return nil
		}

		if !w.pause(ctx, interval) {
			return nil
		}
		remaining = remaining.next()
	}
	return nil
}

// myTurn compares the coordinator's cursor with this worker's order.
func (w *Worker) myTurn(ctx context.Context) (bool, error) {
	resp, err := w.client.CurrentIndex(ctx, &protocol.CurrentIndexRequest{})
	if err != nil {
		return false, err
	}
	order, _ := w.Order()
	return resp.Index == order, nil
}

// sendPrime generates, signs and submits one candidate.
func (w *Worker) sendPrime(ctx context.Context) (*protocol.PrimeResponse, error) {
	prime, err := w.generate()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneratePrime, err)
	}
	text := prime.String()
	sig, err := signing.Sign(text, w.keys.Private)
	if err != nil {
		return nil, fmt.Errorf("sign prime: %w", err)
	}

	req := &protocol.PrimeRequest{ClientID: w.id, PrimeNumber: text, Signature: sig}
	resp, err := withRetry(ctx, w, "submission to the server", func(ctx context.Context) (*protocol.PrimeResponse, error) {
		return w.client.SubmitPrime(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	w.record(text, resp)
	return resp, nil
}

func (w *Worker) record(prime string, resp *protocol.PrimeResponse) {
	w.mu.Lock()
	w.stats.Submitted++
	if resp.Accepted() {
		w.stats.Accepted++
	} else {
		w.stats.Rejected[resp.Status]++
	}
	w.mu.Unlock()

	entry := w.log.WithFields(logrus.Fields{"prime": prime, "status": resp.Status})
	if resp.Accepted() {
		entry.Infof("Server response: %s", resp.Message)
		return
	}
	entry.Debugf("Server response: %s", resp.Message)
}

func (w *Worker) pacing() pacing.Policy {
	order, _ := w.Order()
	return pacing.Policy{
		Fixed:       w.cfg.PrimeInterval,
		Vary:        w.cfg.VarySpeeds,
		Order:       order,
		WorkerCount: w.cfg.WorkerCount,
		Min:         w.cfg.MinInterval,
		Max:         w.cfg.MaxInterval,
	}
}

// pause sleeps for d and reports false if the worker stopped or ctx ended first.
func (w *Worker) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return w.active.Load() && ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-w.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

// stopping reports whether err is a consequence of Stop or of ctx ending.
func (w *Worker) stopping(ctx context.Context, err error) bool {
	return errors.Is(err, ErrStopped) || ctx.Err() != nil || !w.active.Load()
}

func (w *Worker) finishLoop(err error) {
	w.loopOnce.Do(func() {
		w.loopErr = err
		close(w.loopDone)
	})
}

// Done is closed when the auto-started loop ends, or on Stop if none ran.
func (w *Worker) Done() <-chan struct{} { return w.loopDone }

// Wait blocks until Done and returns the auto-started loop's error.
func (w *Worker) Wait() error {
	<-w.loopDone
	return w.loopErr
}

// Stop marks the worker inactive, stops the heartbeat, waits for running
// loops to observe it at their next boundary and closes the transport.
// In-flight calls are allowed to finish. Stop is idempotent.
func (w *Worker) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.active.Store(false)
		hb := w.hb
		w.mu.Unlock()

		w.log.Info("Worker is shutting down")
		close(w.stop)
		if hb != nil {
			hb.stop()
		}
		w.loops.Wait()
		w.finishLoop(nil)
		err = w.client.Close()
	})
	return err
}
