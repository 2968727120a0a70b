package chkrpc

import (
	"context"

	"google.golang.org/grpc"
)

// Handler implements the ten cluster RPC opcodes (spec §6.2) server-side.
// chkleader implements the leader-facing subset (Report, Rejoin); chkengine
// implements the engine-facing subset (Start, Stop, Query, Mark, Act,
// ContList, PoolStart, PoolMBS). A process running both roles (co-resident
// leader+engine) implements all ten on one Handler.
type Handler interface {
	Start(ctx context.Context, req *StartRequest) (*StartReply, error)
	Stop(ctx context.Context, req *StopRequest) (*StopReply, error)
	Query(ctx context.Context, req *QueryRequest) (*QueryReply, error)
	Mark(ctx context.Context, req *MarkRequest) (*MarkReply, error)
	Act(ctx context.Context, req *ActRequest) (*ActReply, error)
	ContList(ctx context.Context, req *ContListRequest) (*ContListReply, error)
	PoolStart(ctx context.Context, req *PoolStartRequest) (*PoolStartReply, error)
	PoolMBS(ctx context.Context, req *PoolMBSRequest) (*PoolMBSReply, error)
	Report(ctx context.Context, req *ReportRequest) (*ReportReply, error)
	Rejoin(ctx context.Context, req *RejoinRequest) (*RejoinReply, error)
}

const serviceName = "chk.Cluster"

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

// ServiceDesc is the hand-written equivalent of what protoc-gen-go-grpc
// would emit from a .proto file describing these ten RPCs; see codec.go
// for why no protoc toolchain is needed.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Start", Handler: unaryHandler(Handler.Start)},
		{MethodName: "Stop", Handler: unaryHandler(Handler.Stop)},
		{MethodName: "Query", Handler: unaryHandler(Handler.Query)},
		{MethodName: "Mark", Handler: unaryHandler(Handler.Mark)},
		{MethodName: "Act", Handler: unaryHandler(Handler.Act)},
		{MethodName: "ContList", Handler: unaryHandler(Handler.ContList)},
		{MethodName: "PoolStart", Handler: unaryHandler(Handler.PoolStart)},
		{MethodName: "PoolMBS", Handler: unaryHandler(Handler.PoolMBS)},
		{MethodName: "Report", Handler: unaryHandler(Handler.Report)},
		{MethodName: "Rejoin", Handler: unaryHandler(Handler.Rejoin)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "chk/cluster.proto",
}
