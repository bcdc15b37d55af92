// Package main runs one worker of a prime-collection session.
//
// The worker generates an RSA identity, connects to the coordinator over
// HTTP or gRPC, starts its heartbeat and registers, retrying while the
// coordinator is not up yet. With auto-start on (the default) it then submits
// signed 64-bit primes, waiting for its turn when round-robin is on, until
// the session completes, a call exhausts its retries or it is interrupted.
//
// Configuration comes from flags or their environment variables; see
// config.WorkerFlags. The most common ones:
//   - HOST, PORT, GRPC_PORT: where the coordinator listens
//   - TRANSPORT: http (default) or grpc
//   - CLIENT_COUNT: session size, used for variable pacing
//   - ITERATIONS: stop after this many submissions (unbounded when unset)
//
// Example usage:
//
//	HOST=127.0.0.1 PORT=3000 ./worker
//	./worker --host 127.0.0.1 --transport grpc --iterations 40
//
// Exit codes:
//   - 0: session over or shutdown via signal
//   - 1: bad configuration, registration failure or a terminal submission error
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/dreamware/primeturn/internal/config"
	"github.com/dreamware/primeturn/internal/transport"
	"github.com/dreamware/primeturn/internal/transport/grpcjson"
	"github.com/dreamware/primeturn/internal/transport/httpjson"
	"github.com/dreamware/primeturn/internal/worker"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "worker",
		Usage: "submit signed primes to a coordinator",
		Flags: config.WorkerFlags(),
		Action: func(c *cli.Context) error {
			cfg, err := config.WorkerFromContext(c)
			if err != nil {
				return err
			}
			logger, err := config.NewLogger(cfg.LogLevel)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logrus.NewEntry(logger))
		},
	}
}

// run drives one worker until its loop ends or ctx is canceled. A failure is
// logged with its numeric code before it is returned.
func run(ctx context.Context, cfg config.Worker, log *logrus.Entry) (err error) {
	defer func() {
		if err != nil {
			log.WithError(err).WithField("code", worker.Code(err)).Error("Worker ended with an error")
		}
	}()

	client, err := dial(cfg)
	if err != nil {
		return err
	}

	w, err := worker.New(cfg.WorkerConfig(), client, log)
	if err != nil {
		return multierr.Append(err, client.Close())
	}
	if err := w.Start(ctx); err != nil {
		return multierr.Append(err, w.Stop())
	}

	select {
	case <-w.Done():
	case <-ctx.Done():
		log.Info("Shutdown requested")
	}
	return multierr.Append(w.Stop(), w.Wait())
}

// dial opens the configured transport to the coordinator.
func dial(cfg config.Worker) (transport.Client, error) {
	if cfg.Transport == config.TransportGRPC {
		c, err := grpcjson.Dial(cfg.GRPCAddr(), grpcjson.WithCallTimeout(config.DefaultCallTimeout))
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return httpjson.NewClient(cfg.HTTPAddr(), config.DefaultCallTimeout), nil
}
