// Package main runs the coordinator of a prime-collection session.
//
// The coordinator serves the protocol over HTTP and, unless --grpc-port is 0,
// over gRPC at the same time. It waits for the configured number of workers,
// arbitrates their turns and stops as soon as the prime limit is reached:
//
//	┌───────────────────────────────────────────┐
//	│               coordinator                 │
//	├───────────────────────────────────────────┤
//	│  HTTP  :3000  /register /prime            │
//	│               /get_current_index /ping    │
//	│               /health                     │
//	│  gRPC  :3001  primeturn.Coordinator       │
//	├───────────────────────────────────────────┤
//	│  coordinator.Coordinator  session state   │
//	│  coordinator.LivenessTracker  heartbeats  │
//	└───────────────────────────────────────────┘
//
// On completion the final report is logged, the listeners are closed without
// draining and the process exits 0. SIGINT or SIGTERM drains in-flight
// requests for up to five seconds instead.
//
// Example usage:
//
//	CLIENT_COUNT=3 PRIME_LIMIT=120 ./coordinator
//	./coordinator --client-count 2 --prime-limit 10 --grpc-port 0
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"google.golang.org/grpc"

	"github.com/dreamware/primeturn/internal/config"
	"github.com/dreamware/primeturn/internal/coordinator"
	"github.com/dreamware/primeturn/internal/transport/grpcjson"
	"github.com/dreamware/primeturn/internal/transport/httpjson"
)

// shutdownTimeout bounds the graceful drain after a signal.
const shutdownTimeout = 5 * time.Second

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "coordinator",
		Usage: "arbitrate a round-robin prime-collection session",
		Flags: config.CoordinatorFlags(),
		Action: func(c *cli.Context) error {
			cfg, err := config.CoordinatorFromContext(c)
			if err != nil {
				return err
			}
			logger, err := config.NewLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			log := logrus.NewEntry(logger)

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			httpLn, err := net.Listen("tcp", cfg.HTTPAddr())
			if err != nil {
				return fmt.Errorf("listen http: %w", err)
			}
			var grpcLn net.Listener
			if cfg.GRPCPort != 0 {
				if grpcLn, err = net.Listen("tcp", cfg.GRPCAddr()); err != nil {
					return multierr.Append(fmt.Errorf("listen grpc: %w", err), httpLn.Close())
				}
			}
			return newHost(cfg, log, httpLn, grpcLn).run(ctx)
		},
	}
}

// host owns the coordinator and the servers exposing it.
type host struct {
	coord   *coordinator.Coordinator
	tracker *coordinator.LivenessTracker
	log     *logrus.Entry
	http    *http.Server
	httpLn  net.Listener
	grpc    *grpc.Server
	grpcLn  net.Listener
}

// newHost wires a fresh session to the given listeners. grpcLn may be nil.
func newHost(cfg config.Coordinator, log *logrus.Entry, httpLn, grpcLn net.Listener) *host {
	coord := coordinator.New(cfg.Session(), log)
	tracker := coordinator.NewLivenessTracker(cfg.LivenessInterval, log)
	tracker.SetOnQuiet(func(clientID string) {
		queue := coord.Queue()
		if turn := coord.CurrentTurn(); turn < len(queue) && queue[turn] == clientID {
			log.WithField("client_id", clientID).Warn("Turn holder went quiet, the session may stall")
		}
	})
	handler := coordinator.NewHandler(coord, tracker)

	h := &host{
		coord:   coord,
		tracker: tracker,
		log:     log.WithField("component", "host"),
		http:    httpjson.NewServer(httpLn.Addr().String(), handler, log),
		httpLn:  httpLn,
		grpcLn:  grpcLn,
	}
	if grpcLn != nil {
		h.grpc = grpcjson.NewServer(handler, log)
	}
	return h
}

// run serves until the session completes, ctx ends or a server fails.
func (h *host) run(ctx context.Context) error {
	errc := make(chan error, 2)

	go func() {
		h.log.Infof("HTTP listening on %s", h.httpLn.Addr())
		if err := h.http.Serve(h.httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("serve http: %w", err)
		}
	}()
	if h.grpc != nil {
		go func() {
			h.log.Infof("gRPC listening on %s", h.grpcLn.Addr())
			if err := h.grpc.Serve(h.grpcLn); err != nil {
				errc <- fmt.Errorf("serve grpc: %w", err)
			}
		}()
	}

	trackerCtx, cancelTracker := context.WithCancel(ctx)
	go h.tracker.Start(trackerCtx)
	defer func() {
		cancelTracker()
		h.tracker.Stop()
	}()

	select {
	case <-h.coord.Done():
		h.log.Info("Session completed, shutting down")
		return h.close()
	case <-ctx.Done():
		h.log.Info("Shutdown requested, draining")
		return h.shutdown()
	case err := <-errc:
		return multierr.Append(err, h.close())
	}
}

// close stops the servers immediately, abandoning in-flight requests.
func (h *host) close() error {
	if h.grpc != nil {
		h.grpc.Stop()
	}
	if err := h.http.Close(); err != nil {
		return fmt.Errorf("close http: %w", err)
	}
	return nil
}

// shutdown drains both servers, bounded by shutdownTimeout.
func (h *host) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error
	if h.grpc != nil {
		stopped := make(chan struct{})
		go func() {
			h.grpc.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			h.grpc.Stop()
			err = multierr.Append(err, errors.New("grpc drain timed out"))
		}
	}
	if serr := h.http.Shutdown(ctx); serr != nil {
		err = multierr.Append(err, fmt.Errorf("shutdown http: %w", serr))
	}
	h.log.Info("coordinator stopped")
	return err
}
