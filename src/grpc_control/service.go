package grpc_control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service. Messages are protobuf
// well-known types so no generated code is needed.
const ServiceName = "optionsobserver.control.v1.Control"

// ControlServer is the server side of the control service.
type ControlServer interface {
	Status(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	RefreshScripMaster(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	Logout(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

type unaryCall func(srv ControlServer, ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)

// -----------------------------------------------------------------------------

func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ControlServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(ControlServer), ctx, req.(*emptypb.Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc registers a ControlServer with grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Status",
			Handler: unaryHandler("Status", func(srv ControlServer, ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
				return srv.Status(ctx, req)
			}),
		},
		{
			MethodName: "RefreshScripMaster",
			Handler: unaryHandler("RefreshScripMaster", func(srv ControlServer, ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
				return srv.RefreshScripMaster(ctx, req)
			}),
		},
		{
			MethodName: "Logout",
			Handler: unaryHandler("Logout", func(srv ControlServer, ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
				return srv.Logout(ctx, req)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "optionsobserver/control/v1/control.proto",
}

// -----------------------------------------------------------------------------

// ControlClient is the client side, used by operators' tooling and tests.
type ControlClient struct {
	cc grpc.ClientConnInterface
}

func NewControlClient(cc grpc.ClientConnInterface) *ControlClient {
	return &ControlClient{cc: cc}
}

func (c *ControlClient) invoke(ctx context.Context, method string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ControlClient) Status(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Status", opts...)
}

func (c *ControlClient) RefreshScripMaster(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "RefreshScripMaster", opts...)
}

func (c *ControlClient) Logout(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Logout", opts...)
}
