package worker

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/primeturn/internal/protocol"
	"github.com/dreamware/primeturn/internal/transport"
)

// heartbeat pings the coordinator on a fixed period and logs each round trip.
// Failures are logged and otherwise ignored.
type heartbeat struct {
	client   transport.Service
	log      *logrus.Entry
	cancel   context.CancelFunc
	clientID string
	interval time.Duration
	wg       sync.WaitGroup
}

// startHeartbeat begins pinging in the background until stop or ctx ends.
// A non-positive interval disables it.
func startHeartbeat(ctx context.Context, client transport.Service, clientID string, interval time.Duration, log *logrus.Entry) *heartbeat {
	h := &heartbeat{
		client:   client,
		clientID: clientID,
		interval: interval,
		log:      log.WithField("component", "heartbeat"),
	}
	if interval <= 0 {
		return h
	}

	ctx, h.cancel = context.WithCancel(ctx)
	h.wg.Add(1)
	go h.run(ctx)
	return h
}

func (h *heartbeat) run(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.ping(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// ping sends one heartbeat, bounded by the heartbeat interval.
func (h *heartbeat) ping(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, h.interval)
	defer cancel()

	h.log.Debug("Ping sending...")
	start := time.Now()
	resp, err := h.client.Ping(ctx, &protocol.PingRequest{ClientID: h.clientID})
	if err != nil {
		if parent.Err() == nil {
			h.log.WithError(err).Error("Ping error")
		}
		return
	}
	h.log.WithField("rtt", time.Since(start)).Debugf("Ping response received: %s", resp.Message)
}

// stop cancels the ticker and waits for an in-flight ping to finish.
func (h *heartbeat) stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	h.wg.Wait()
}
