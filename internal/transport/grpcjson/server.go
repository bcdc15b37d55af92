package grpcjson

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dreamware/primeturn/internal/protocol"
	"github.com/dreamware/primeturn/internal/transport"
)

// NewServer returns a grpc.Server with svc registered. The caller owns
// Serve, GracefulStop and Stop.
func NewServer(svc transport.Service, log *logrus.Entry, opts ...grpc.ServerOption) *grpc.Server {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	log = log.WithField("component", "grpcjson")

	opts = append([]grpc.ServerOption{
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.ChainUnaryInterceptor(logUnary(log), statusUnary),
	}, opts...)
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&ServiceDesc, svc)
	return srv
}

// statusUnary converts service errors into gRPC status errors.
func statusUnary(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}

func logUnary(log *logrus.Entry) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		entry := log.WithFields(logrus.Fields{
			"method":   info.FullMethod,
			"duration": time.Since(start),
		})
		if err != nil {
			entry.WithError(err).Debug("rpc failed")
		} else {
			entry.Trace("rpc")
		}
		return resp, err
	}
}

func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, protocol.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
