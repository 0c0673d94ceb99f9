// Package bridge carries the game session over gRPC. The service is described by hand
// with well-known protobuf types so no generated code is needed:
//
//	service dino.v1.Environment {
//	  rpc Poll(google.protobuf.Empty) returns (google.protobuf.ListValue);
//	  rpc Submit(google.protobuf.StringValue) returns (google.protobuf.Empty);
//	}
//
// Poll replies with the 18-number frame vector; Submit takes "pass", "jump" or "duck".
package bridge

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName  = "dino.v1.Environment"
	pollMethod   = "/" + ServiceName + "/Poll"
	submitMethod = "/" + ServiceName + "/Submit"
)

// EnvironmentServer is the server API for the Environment service.
type EnvironmentServer interface {
	Poll(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	Submit(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
}

// ServiceDesc describes the Environment service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EnvironmentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Poll", Handler: pollHandler},
		{MethodName: "Submit", Handler: submitHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dino/v1/environment.proto",
}

// Register adds impl to server.
func Register(server grpc.ServiceRegistrar, impl EnvironmentServer) {
	server.RegisterService(&ServiceDesc, impl)
}

func pollHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EnvironmentServer).Poll(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: pollMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EnvironmentServer).Poll(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func submitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EnvironmentServer).Submit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: submitMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EnvironmentServer).Submit(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}
