// Package coordinator owns the shared session state of a prime-collection run
// and arbitrates every worker request against it.
// See doc.go for complete package documentation.
package coordinator

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/dreamware/primeturn/internal/protocol"
	"github.com/dreamware/primeturn/internal/signing"
)

// ErrEmptyClientID is returned when a request carries no identifier.
var ErrEmptyClientID = fmt.Errorf("%w: client id is required", protocol.ErrInvalidRequest)

// Phase is the top-level state of a session.
type Phase int

const (
	// PhaseRegistering lasts until the configured number of workers registered.
	PhaseRegistering Phase = iota
	// PhaseProcessing admits submissions in turn order.
	PhaseProcessing
	// PhaseCompleted is terminal: the ledger reached its target.
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseRegistering:
		return "registering"
	case PhaseProcessing:
		return "processing"
	case PhaseCompleted:
		return "completed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Config fixes the size and admission policy of a session.
type Config struct {
	// WorkerCount is the number of registrations that starts processing.
	WorkerCount int
	// PrimeLimit is the ledger size that completes the session.
	PrimeLimit int
	// RoundRobin restricts submissions to the worker holding the turn.
	// When false any registered worker may submit and the cursor never moves.
	RoundRobin bool
}

// Validate checks that the session can ever start and finish.
func (c Config) Validate() error {
	if c.WorkerCount < 1 {
		return errors.New("worker count must be at least 1")
	}
	if c.PrimeLimit < 1 {
		return errors.New("prime limit must be at least 1")
	}
	return nil
}

// VerifyFunc checks signature over message against a PEM public key.
type VerifyFunc func(message, signature string, publicKey []byte) bool

// Coordinator is the single owner of the registry, turn queue, cursor and
// ledger. Every operation runs under one mutex, so concurrent registrations
// and submissions never observe or produce partial updates.
//
// When the ledger reaches Config.PrimeLimit the coordinator moves to
// PhaseCompleted, builds a Report and closes the Done channel. It does not
// terminate the process; the hosting entry point watches Done and shuts down.
type Coordinator struct {
	started  time.Time
	cfg      Config
	log      *logrus.Entry
	now      func() time.Time
	verify   VerifyFunc
	registry *Registry
	ledger   *Ledger
	report   *Report
	done     chan struct{}
	queue    []string
	cursor   int
	phase    Phase
	mu       sync.Mutex
}

// New creates a coordinator in PhaseRegistering and starts its session clock.
// A nil logger discards output.
func New(cfg Config, log *logrus.Entry) *Coordinator {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	c := &Coordinator{
		cfg:      cfg,
		log:      log.WithField("component", "coordinator"),
		now:      time.Now,
		verify:   signing.Verify,
		registry: NewRegistry(),
		ledger:   NewLedger(),
		done:     make(chan struct{}),
		phase:    PhaseRegistering,
	}
	c.started = c.now()
	c.log.Infof("Server started... -> %s", c.started.Format(time.RFC3339Nano))
	return c
}

// SetVerifyFunction replaces signature verification, for tests that do not
// want to generate keys.
func (c *Coordinator) SetVerifyFunction(fn VerifyFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verify = fn
}

// SetClock replaces the time source and restarts the session clock from it.
func (c *Coordinator) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	c.started = now()
}

// Register adds id to the registry on first sight and returns its order.
// Known identifiers get their existing order back and change nothing.
//
// The registration that brings the registry to Config.WorkerCount freezes the
// turn queue and moves the session to PhaseProcessing. Later registrations
// are recorded but never join the queue.
func (c *Coordinator) Register(id string, publicKey []byte) (*protocol.RegisterResponse, error) {
	if id == "" {
		return nil, ErrEmptyClientID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.log.WithField("client_id", id).Info("Client registration request received")

	rec, added := c.registry.Add(id, publicKey)
	if !added {
		return &protocol.RegisterResponse{
			Status:  protocol.StatusAlreadyRegistered,
			Message: protocol.StatusAlreadyRegistered.Message(),
			Order:   rec.Order,
		}, nil
	}

	if c.registry.Len() >= c.cfg.WorkerCount && c.phase == PhaseRegistering {
		c.startProcessing()
	}

	return &protocol.RegisterResponse{
		Status:  protocol.StatusRegistered,
		Message: protocol.StatusRegistered.Message(),
		Order:   rec.Order,
	}, nil
}

// startProcessing freezes the turn queue. Caller holds mu.
func (c *Coordinator) startProcessing() {
	c.queue = c.registry.IDs()
	c.phase = PhaseProcessing
	c.log.Info("All clients have registered. Starting processing...")
	c.log.Infof("Client queue: %s", strings.Join(c.queue, ", "))
}

// Submit judges one signed prime. The checks run in a fixed order: phase,
// turn, registration, signature, duplicate. Nothing is mutated unless every
// check passes; then the prime enters the ledger, the submitter's score grows
// and the cursor advances by one.
func (c *Coordinator) Submit(id, prime, signature string) *protocol.PrimeResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.phase {
	case PhaseRegistering:
		return protocol.Rejected(protocol.StatusNotStarted)
	case PhaseCompleted:
		return protocol.Rejected(protocol.StatusCompleted)
	}

	if c.cfg.RoundRobin {
		if expected := c.queue[c.cursor]; id != expected {
			return protocol.WrongTurn(expected)
		}
	}

	rec, ok := c.registry.Get(id)
	if !ok {
		return protocol.Rejected(protocol.StatusClientNotFound)
	}
	if !c.verify(prime, signature, rec.PublicKey) {
		return protocol.Rejected(protocol.StatusInvalidSignature)
	}
	if !c.ledger.Add(prime) {
		return protocol.Rejected(protocol.StatusDuplicate)
	}

	rec.Score++
	if c.cfg.RoundRobin {
		c.cursor = (c.cursor + 1) % len(c.queue)
	}
	c.log.WithFields(logrus.Fields{"client_id": id, "prime": prime}).Info("Prime number added")

	if c.ledger.Len() >= c.cfg.PrimeLimit {
		c.complete()
	}
	return protocol.Accepted(prime)
}

// complete enters the terminal phase exactly once. Caller holds mu.
func (c *Coordinator) complete() {
	if c.phase == PhaseCompleted {
		return
	}
	c.phase = PhaseCompleted
	end := c.now()
	c.report = newReport(c.ledger.Values(), c.registry.Records(), end.Sub(c.started))
	c.report.Log(c.log)
	close(c.done)
}

// CurrentTurn returns the cursor into the turn queue.
func (c *Coordinator) CurrentTurn() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// Phase returns the session phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Queue returns a copy of the frozen turn queue, nil before processing starts.
func (c *Coordinator) Queue() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.queue)
}

// Clients returns copies of all records in registration order.
func (c *Coordinator) Clients() []ClientRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.Records()
}

// Primes returns the accepted primes in acceptance order.
func (c *Coordinator) Primes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.Values()
}

// Done is closed when the session completes.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Report returns the final report, or nil while the session is running.
func (c *Coordinator) Report() *Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.report
}
