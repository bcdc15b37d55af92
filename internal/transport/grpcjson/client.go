package grpcjson

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/dreamware/primeturn/internal/protocol"
	"github.com/dreamware/primeturn/internal/transport"
)

// Client is a gRPC connection to a coordinator.
type Client struct {
	conn   *grpc.ClientConn
	closed atomic.Bool
}

var _ transport.Client = (*Client)(nil)

// Dial creates a client for target ("host:port" or any grpc target URI).
// The connection is established lazily on the first call. Extra options
// are applied after the defaults.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc client %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// WithCallTimeout bounds every call that has no earlier deadline.
func WithCallTimeout(d time.Duration) grpc.DialOption {
	return grpc.WithChainUnaryInterceptor(func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if _, ok := ctx.Deadline(); !ok && d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	})
}

func (c *Client) Register(ctx context.Context, req *protocol.RegisterRequest) (*protocol.RegisterResponse, error) {
	out := new(protocol.RegisterResponse)
	if err := c.invoke(ctx, methodRegister, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SubmitPrime(ctx context.Context, req *protocol.PrimeRequest) (*protocol.PrimeResponse, error) {
	out := new(protocol.PrimeResponse)
	if err := c.invoke(ctx, methodSubmitPrime, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CurrentIndex(ctx context.Context, req *protocol.CurrentIndexRequest) (*protocol.CurrentIndexResponse, error) {
	if req == nil {
		req = &protocol.CurrentIndexRequest{}
	}
	out := new(protocol.CurrentIndexResponse)
	if err := c.invoke(ctx, methodCurrentIndex, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Ping(ctx context.Context, req *protocol.PingRequest) (*protocol.PingResponse, error) {
	out := new(protocol.PingResponse)
	if err := c.invoke(ctx, methodPing, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close tears down the connection. Later calls fail with transport.ErrClosed.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	if c.closed.Load() {
		return transport.ErrClosed
	}
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return fromStatus(err)
	}
	return nil
}

// fromStatus restores protocol.ErrInvalidRequest from an InvalidArgument status.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if ok && st.Code() == codes.InvalidArgument {
		return fmt.Errorf("%w: %s", protocol.ErrInvalidRequest, st.Message())
	}
	return err
}
