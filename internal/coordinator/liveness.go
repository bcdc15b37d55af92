// Package coordinator owns the shared session state of a prime-collection run.
// This file implements liveness tracking for workers that send heartbeats.
package coordinator

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// Liveness states reported by the tracker.
const (
	LivenessAlive = "alive"
	LivenessQuiet = "quiet"
)

// WorkerLiveness tracks the heartbeats received from a single worker.
// Thread-safe: Protected by LivenessTracker's mutex when accessed.
type WorkerLiveness struct {
	FirstSeen time.Time // Timestamp of the first heartbeat
	LastSeen  time.Time // Timestamp of the most recent heartbeat
	ClientID  string    // Identifier the worker pinged with
	Status    string    // Current status: "alive" or "quiet"
	Beats     int       // Number of heartbeats received
}

// LivenessTracker records worker heartbeats and periodically flags workers
// that have gone quiet. It is advisory only: a quiet worker is logged and
// reported through the callback, but it keeps its registration and its turn.
// A worker that dies holding the turn therefore stalls the session.
// Thread-safe: All methods are safe for concurrent access.
type LivenessTracker struct {
	workers    map[string]*WorkerLiveness // Heartbeat state per worker
	onQuiet    func(clientID string)      // Callback when a worker goes quiet
	now        func() time.Time           // Time source
	log        *logrus.Entry              // Component logger
	ctx        context.Context            // Context for cancellation
	cancel     context.CancelFunc         // Cancel function for shutdown
	interval   time.Duration              // How often to sweep
	quietAfter time.Duration              // Silence before a worker is flagged
	mu         sync.RWMutex               // Protects workers map
	wg         sync.WaitGroup             // Wait group for graceful shutdown
}

// NewLivenessTracker creates a tracker that sweeps every interval and flags
// workers silent for three intervals.
//
// Parameters:
//   - interval: How often to sweep, normally the workers' heartbeat period
//   - log: Logger; nil discards output
//
// Example:
//
//	tracker := NewLivenessTracker(20*time.Second, log)
//	go tracker.Start(ctx)
//	defer tracker.Stop()
func NewLivenessTracker(interval time.Duration, log *logrus.Entry) *LivenessTracker {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &LivenessTracker{
		workers:    make(map[string]*WorkerLiveness),
		now:        time.Now,
		log:        log.WithField("component", "liveness"),
		ctx:        ctx,
		cancel:     cancel,
		interval:   interval,
		quietAfter: 3 * interval,
	}
}

// SetOnQuiet sets the callback invoked when a worker transitions to quiet.
// The callback runs on its own goroutine.
func (t *LivenessTracker) SetOnQuiet(callback func(clientID string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuiet = callback
}

// SetClock overrides the time source.
func (t *LivenessTracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// RecordPing notes a heartbeat from clientID, reviving it if it was quiet.
func (t *LivenessTracker) RecordPing(clientID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	w, ok := t.workers[clientID]
	if !ok {
		w = &WorkerLiveness{ClientID: clientID, FirstSeen: now}
		t.workers[clientID] = w
	}
	if w.Status == LivenessQuiet {
		t.log.WithField("client_id", clientID).Info("Worker heartbeat resumed")
	}
	w.LastSeen = now
	w.Beats++
	w.Status = LivenessAlive
}

// Start sweeps until ctx or the tracker itself is canceled. It blocks.
//
// Parameters:
//   - ctx: Context for cancellation; nil uses the tracker's internal context
func (t *LivenessTracker) Start(ctx context.Context) {
	t.wg.Add(1)
	defer t.wg.Done()

	if ctx == nil {
		ctx = t.ctx
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.log.Debugf("Liveness tracker started with interval %v", t.interval)

	for {
		select {
		case <-ticker.C:
			t.Sweep()
		case <-ctx.Done():
			return
		case <-t.ctx.Done():
			return
		}
	}
}

// Stop cancels Start and waits for it to return.
func (t *LivenessTracker) Stop() {
	t.cancel()
	t.wg.Wait()
}

// Sweep flags every alive worker whose last heartbeat is older than the quiet
// threshold and returns the identifiers that changed state.
func (t *LivenessTracker) Sweep() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var flagged []string
	for id, w := range t.workers {
		if w.Status == LivenessQuiet || now.Sub(w.LastSeen) <= t.quietAfter {
			continue
		}
		w.Status = LivenessQuiet
		flagged = append(flagged, id)
		t.log.WithFields(logrus.Fields{
			"client_id":  id,
			"silent_for": now.Sub(w.LastSeen).String(),
		}).Warn("Worker heartbeat missing")
		if t.onQuiet != nil {
			go t.onQuiet(id)
		}
	}
	slices.Sort(flagged)
	return flagged
}

// Get returns a copy of the state for clientID, or nil if it never pinged.
func (t *LivenessTracker) Get(clientID string) *WorkerLiveness {
	t.mu.RLock()
	defer t.mu.RUnlock()

	w, ok := t.workers[clientID]
	if !ok {
		return nil
	}
	cp := *w
	return &cp
}

// All returns copies of every tracked worker keyed by identifier.
func (t *LivenessTracker) All() map[string]*WorkerLiveness {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]*WorkerLiveness, len(t.workers))
	for id, w := range t.workers {
		cp := *w
		out[id] = &cp
	}
	return out
}

// IsAlive reports whether clientID has pinged recently enough.
func (t *LivenessTracker) IsAlive(clientID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	w, ok := t.workers[clientID]
	return ok && w.Status == LivenessAlive
}
