package chkcontrol

import (
	"context"

	"google.golang.org/grpc"
)

// Handler is the Leader-side implementation of the operator commands.
type Handler interface {
	Start(ctx context.Context, req *StartRequest) (*StartReply, error)
	Stop(ctx context.Context, req *StopRequest) (*StopReply, error)
	Query(ctx context.Context, req *QueryRequest) (*QueryReply, error)
	Act(ctx context.Context, req *ActRequest) (*ActReply, error)
	Prop(ctx context.Context, req *PropRequest) (*PropReply, error)
}

const serviceName = "chk.Control"

func unaryHandler[Req any, Resp any](call func(Handler, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		h := srv.(Handler)
		if interceptor == nil {
			return call(h, ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName}
		return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
			return call(h, ctx, req.(*Req))
		})
	}
}

// ServiceDesc is the hand-built equivalent of the protoc-gen-go-grpc
// output for the operator control service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Start", Handler: unaryHandler(Handler.Start)},
		{MethodName: "Stop", Handler: unaryHandler(Handler.Stop)},
		{MethodName: "Query", Handler: unaryHandler(Handler.Query)},
		{MethodName: "Act", Handler: unaryHandler(Handler.Act)},
		{MethodName: "Prop", Handler: unaryHandler(Handler.Prop)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "chk/control.proto",
}
