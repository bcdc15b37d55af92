// Package config reads the coordinator and worker settings from command-line
// flags, each backed by an environment variable and a default.
//
// Durations the workers use are plain millisecond integers (PRIME_INTERVAL=1000),
// matching how deployments already set them. LIVENESS_INTERVAL is a Go
// duration string.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/dreamware/primeturn/internal/coordinator"
	"github.com/dreamware/primeturn/internal/worker"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Transport names accepted by --transport.
const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// Defaults.
const (
	DefaultHost             = "0.0.0.0"
	DefaultPort             = 3000
	DefaultGRPCPort         = 3001
	DefaultClientCount      = 3
	DefaultPrimeLimit       = 120
	DefaultPrimeInterval    = 1000
	DefaultMinInterval      = 50
	DefaultMaxInterval      = 200
	DefaultRetryCount       = 5
	DefaultRetryDelay       = 1000
	DefaultPingInterval     = 20000
	DefaultTurnPollDelay    = 100
	DefaultLivenessInterval = 30 * time.Second
	DefaultLogLevel         = "info"

	// DefaultCallTimeout bounds one worker call to the coordinator.
	DefaultCallTimeout = 10 * time.Second
)

// Flag names.
const (
	FlagHost             = "host"
	FlagPort             = "port"
	FlagGRPCPort         = "grpc-port"
	FlagTransport        = "transport"
	FlagClientCount      = "client-count"
	FlagPrimeLimit       = "prime-limit"
	FlagRoundRobin       = "round-robin"
	FlagAutoStart        = "auto-start"
	FlagPrimeInterval    = "prime-interval"
	FlagVarySpeeds       = "vary-speeds"
	FlagMinInterval      = "min-interval"
	FlagMaxInterval      = "max-interval"
	FlagRetryCount       = "retry-count"
	FlagRetryDelay       = "retry-delay"
	FlagPingInterval     = "ping-interval"
	FlagTurnPollDelay    = "turn-poll-delay"
	FlagIterations       = "iterations"
	FlagLivenessInterval = "liveness-interval"
	FlagLogLevel         = "log-level"
)

// Common holds the settings both processes share.
type Common struct {
	Host        string
	LogLevel    string
	Port        int
	GRPCPort    int
	ClientCount int
	RoundRobin  bool
}

// Coordinator is the coordinator process configuration.
type Coordinator struct {
	Common
	PrimeLimit       int
	LivenessInterval time.Duration
}

// Worker is the worker process configuration. Intervals are milliseconds.
type Worker struct {
	Common
	Transport     string
	PrimeInterval int
	MinInterval   int
	MaxInterval   int
	RetryCount    int
	RetryDelay    int
	PingInterval  int
	TurnPollDelay int
	// Iterations bounds the auto-started loop when IterationsSet.
	Iterations    int
	IterationsSet bool
	AutoStart     bool
	VarySpeeds    bool
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    FlagHost,
			Value:   DefaultHost,
			Usage:   "coordinator host",
			EnvVars: []string{"HOST"},
		},
		&cli.IntFlag{
			Name:    FlagPort,
			Value:   DefaultPort,
			Usage:   "coordinator HTTP port",
			EnvVars: []string{"PORT"},
		},
		&cli.IntFlag{
			Name:    FlagGRPCPort,
			Value:   DefaultGRPCPort,
			Usage:   "coordinator gRPC port",
			EnvVars: []string{"GRPC_PORT"},
		},
		&cli.IntFlag{
			Name:    FlagClientCount,
			Value:   DefaultClientCount,
			Usage:   "number of workers in the session",
			EnvVars: []string{"CLIENT_COUNT"},
		},
		&cli.BoolFlag{
			Name:    FlagRoundRobin,
			Value:   true,
			Usage:   "admit submissions in strict turn order",
			EnvVars: []string{"USE_ROUND_ROBIN"},
		},
		&cli.StringFlag{
			Name:    FlagLogLevel,
			Value:   DefaultLogLevel,
			Usage:   "logging level",
			EnvVars: []string{"LOG_LEVEL"},
		},
	}
}

// CoordinatorFlags returns the flags read by CoordinatorFromContext.
func CoordinatorFlags() []cli.Flag {
	return append(commonFlags(),
		&cli.IntFlag{
			Name:    FlagPrimeLimit,
			Value:   DefaultPrimeLimit,
			Usage:   "distinct primes to collect before the session completes",
			EnvVars: []string{"PRIME_LIMIT"},
		},
		&cli.DurationFlag{
			Name:    FlagLivenessInterval,
			Value:   DefaultLivenessInterval,
			Usage:   "how often to look for workers that stopped pinging",
			EnvVars: []string{"LIVENESS_INTERVAL"},
		},
	)
}

// WorkerFlags returns the flags read by WorkerFromContext.
func WorkerFlags() []cli.Flag {
	return append(commonFlags(),
		&cli.StringFlag{
			Name:    FlagTransport,
			Value:   TransportHTTP,
			Usage:   "transport to the coordinator: http or grpc",
			EnvVars: []string{"TRANSPORT"},
		},
		&cli.BoolFlag{
			Name:    FlagAutoStart,
			Value:   true,
			Usage:   "start sending primes right after registering",
			EnvVars: []string{"AUTO_START_SENDING_PRIMES"},
		},
		&cli.IntFlag{
			Name:    FlagPrimeInterval,
			Value:   DefaultPrimeInterval,
			Usage:   "pause after each submission in ms",
			EnvVars: []string{"PRIME_INTERVAL"},
		},
		&cli.BoolFlag{
			Name:    FlagVarySpeeds,
			Value:   true,
			Usage:   "spread the pause between min and max interval by order",
			EnvVars: []string{"VARY_CLIENT_SPEEDS"},
		},
		&cli.IntFlag{
			Name:    FlagMinInterval,
			Value:   DefaultMinInterval,
			Usage:   "shortest variable pause in ms",
			EnvVars: []string{"MIN_CLIENT_INTERVAL"},
		},
		&cli.IntFlag{
			Name:    FlagMaxInterval,
			Value:   DefaultMaxInterval,
			Usage:   "longest variable pause in ms",
			EnvVars: []string{"MAX_CLIENT_INTERVAL"},
		},
		&cli.IntFlag{
			Name:    FlagRetryCount,
			Value:   DefaultRetryCount,
			Usage:   "retries for a failed call",
			EnvVars: []string{"CLIENT_RETRY_COUNT"},
		},
		&cli.IntFlag{
			Name:    FlagRetryDelay,
			Value:   DefaultRetryDelay,
			Usage:   "pause between retries in ms",
			EnvVars: []string{"CLIENT_RETRY_DELAY"},
		},
		&cli.IntFlag{
			Name:    FlagPingInterval,
			Value:   DefaultPingInterval,
			Usage:   "heartbeat period in ms, 0 disables",
			EnvVars: []string{"CLIENT_PING_INTERVAL"},
		},
		&cli.IntFlag{
			Name:    FlagTurnPollDelay,
			Value:   DefaultTurnPollDelay,
			Usage:   "pause between turn polls in ms",
			EnvVars: []string{"TURN_POLL_DELAY"},
		},
		&cli.IntFlag{
			Name:    FlagIterations,
			Usage:   "submissions before stopping, unbounded when unset",
			EnvVars: []string{"ITERATIONS"},
		},
	)
}

func commonFromContext(c *cli.Context) Common {
	return Common{
		Host:        c.String(FlagHost),
		LogLevel:    c.String(FlagLogLevel),
		Port:        c.Int(FlagPort),
		GRPCPort:    c.Int(FlagGRPCPort),
		ClientCount: c.Int(FlagClientCount),
		RoundRobin:  c.Bool(FlagRoundRobin),
	}
}

// CoordinatorFromContext reads and validates the coordinator configuration.
func CoordinatorFromContext(c *cli.Context) (Coordinator, error) {
	cfg := Coordinator{
		Common:           commonFromContext(c),
		PrimeLimit:       c.Int(FlagPrimeLimit),
		LivenessInterval: c.Duration(FlagLivenessInterval),
	}
	return cfg, cfg.Validate()
}

// WorkerFromContext reads and validates the worker configuration.
func WorkerFromContext(c *cli.Context) (Worker, error) {
	cfg := Worker{
		Common:        commonFromContext(c),
		Transport:     c.String(FlagTransport),
		PrimeInterval: c.Int(FlagPrimeInterval),
		MinInterval:   c.Int(FlagMinInterval),
		MaxInterval:   c.Int(FlagMaxInterval),
		RetryCount:    c.Int(FlagRetryCount),
		RetryDelay:    c.Int(FlagRetryDelay),
		PingInterval:  c.Int(FlagPingInterval),
		TurnPollDelay: c.Int(FlagTurnPollDelay),
		Iterations:    c.Int(FlagIterations),
		IterationsSet: c.IsSet(FlagIterations),
		AutoStart:     c.Bool(FlagAutoStart),
		VarySpeeds:    c.Bool(FlagVarySpeeds),
	}
	return cfg, cfg.Validate()
}

// Validate reports every problem found, combined.
func (c Common) Validate() error {
	var err error
	if c.ClientCount < 1 {
		err = multierr.Append(err, invalid("client count must be at least 1, got %d", c.ClientCount))
	}
	if c.Port < 0 || c.Port > 65535 {
		err = multierr.Append(err, invalid("port %d out of range", c.Port))
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		err = multierr.Append(err, invalid("grpc port %d out of range", c.GRPCPort))
	}
	if _, perr := logrus.ParseLevel(c.LogLevel); perr != nil {
		err = multierr.Append(err, invalid("log level: %v", perr))
	}
	return err
}

// Validate reports every problem found, combined.
func (c Coordinator) Validate() error {
	err := c.Common.Validate()
	if c.PrimeLimit < 1 {
		err = multierr.Append(err, invalid("prime limit must be at least 1, got %d", c.PrimeLimit))
	}
	if c.LivenessInterval <= 0 {
		err = multierr.Append(err, invalid("liveness interval must be positive, got %v", c.LivenessInterval))
	}
	return err
}

// Validate reports every problem found, combined.
func (c Worker) Validate() error {
	err := c.Common.Validate()
	if c.Transport != TransportHTTP && c.Transport != TransportGRPC {
		err = multierr.Append(err, invalid("unknown transport %q", c.Transport))
	}
	for _, v := range []struct {
		name  string
		value int
	}{
		{FlagPrimeInterval, c.PrimeInterval},
		{FlagMinInterval, c.MinInterval},
		{FlagMaxInterval, c.MaxInterval},
		{FlagRetryCount, c.RetryCount},
		{FlagRetryDelay, c.RetryDelay},
		{FlagPingInterval, c.PingInterval},
		{FlagTurnPollDelay, c.TurnPollDelay},
	} {
		if v.value < 0 {
			err = multierr.Append(err, invalid("%s must not be negative, got %d", v.name, v.value))
		}
	}
	if c.MinInterval > c.MaxInterval {
		err = multierr.Append(err, invalid("min interval %d exceeds max interval %d", c.MinInterval, c.MaxInterval))
	}
	if c.IterationsSet && c.Iterations < 0 {
		err = multierr.Append(err, invalid("iterations must not be negative, got %d", c.Iterations))
	}
	return err
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// HTTPAddr is the coordinator's HTTP host:port.
func (c Common) HTTPAddr() string { return net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) }

// GRPCAddr is the coordinator's gRPC host:port.
func (c Common) GRPCAddr() string { return net.JoinHostPort(c.Host, strconv.Itoa(c.GRPCPort)) }

// Session converts the settings into a coordinator.Config.
func (c Coordinator) Session() coordinator.Config {
	return coordinator.Config{
		WorkerCount: c.ClientCount,
		PrimeLimit:  c.PrimeLimit,
		RoundRobin:  c.RoundRobin,
	}
}

// WorkerConfig converts the settings into a worker.Config.
func (c Worker) WorkerConfig() worker.Config {
	limit := worker.Unlimited
	if c.IterationsSet {
		limit = worker.Times(c.Iterations)
	}
	return worker.Config{
		WorkerCount:   c.ClientCount,
		RoundRobin:    c.RoundRobin,
		AutoStart:     c.AutoStart,
		Iterations:    limit,
		PrimeInterval: ms(c.PrimeInterval),
		VarySpeeds:    c.VarySpeeds,
		MinInterval:   ms(c.MinInterval),
		MaxInterval:   ms(c.MaxInterval),
		RetryCount:    c.RetryCount,
		RetryDelay:    ms(c.RetryDelay),
		PingInterval:  ms(c.PingInterval),
		TurnPollDelay: ms(c.TurnPollDelay),
	}
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// NewLogger builds the process logger at level, writing text with full
// timestamps to stderr.
func NewLogger(level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: log level: %v", ErrInvalid, err)
	}
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(lvl)
	return log, nil
}
