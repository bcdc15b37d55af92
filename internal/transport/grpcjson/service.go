package grpcjson

import (
	"context"

	"google.golang.org/grpc"

	"github.com/dreamware/primeturn/internal/protocol"
	"github.com/dreamware/primeturn/internal/transport"
)

const serviceName = "primeturn.Coordinator"

const (
	methodRegister     = "/" + serviceName + "/Register"
	methodSubmitPrime  = "/" + serviceName + "/SubmitPrime"
	methodCurrentIndex = "/" + serviceName + "/CurrentIndex"
	methodPing         = "/" + serviceName + "/Ping"
)

// ServiceDesc describes the coordinator service for grpc.Server.RegisterService.
// The registered implementation must satisfy transport.Service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*transport.Service)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: registerHandler},
		{MethodName: "SubmitPrime", Handler: submitPrimeHandler},
		{MethodName: "CurrentIndex", Handler: currentIndexHandler},
		{MethodName: "Ping", Handler: pingHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "primeturn/coordinator",
}

func registerHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(protocol.RegisterRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(transport.Service).Register(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodRegister}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(transport.Service).Register(ctx, req.(*protocol.RegisterRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func submitPrimeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(protocol.PrimeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(transport.Service).SubmitPrime(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodSubmitPrime}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(transport.Service).SubmitPrime(ctx, req.(*protocol.PrimeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func currentIndexHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(protocol.CurrentIndexRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(transport.Service).CurrentIndex(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodCurrentIndex}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(transport.Service).CurrentIndex(ctx, req.(*protocol.CurrentIndexRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func pingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(protocol.PingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(transport.Service).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodPing}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(transport.Service).Ping(ctx, req.(*protocol.PingRequest))
	}
	return interceptor(ctx, in, info, handler)
}
