package transport

import (
	"context"
	"errors"
	"io"

	"github.com/dreamware/primeturn/internal/protocol"
)

// ErrClosed is returned by clients used after Close.
var ErrClosed = errors.New("transport closed")

// Service is the coordinator side of the protocol. Protocol rejections are
// reported inside the responses; a non-nil error always means the call
// itself failed.
//
// Implementations must be safe for concurrent use.
type Service interface {
	Register(ctx context.Context, req *protocol.RegisterRequest) (*protocol.RegisterResponse, error)
	SubmitPrime(ctx context.Context, req *protocol.PrimeRequest) (*protocol.PrimeResponse, error)
	CurrentIndex(ctx context.Context, req *protocol.CurrentIndexRequest) (*protocol.CurrentIndexResponse, error)
	Ping(ctx context.Context, req *protocol.PingRequest) (*protocol.PingResponse, error)
}

// Client is a worker's connection to the coordinator.
type Client interface {
	Service
	io.Closer
}
