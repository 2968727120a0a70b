package chkrpc

import (
	"fmt"
	"net"

	"github.com/oriys/chk/internal/logging"
	"google.golang.org/grpc"
)

// Server hosts the cluster RPC service on real gRPC transport (spec §6.2).
// Grounded on the teacher's internal/grpc/server.go Start/Stop lifecycle.
type Server struct {
	grpcServer *grpc.Server
}

// NewServer wraps h behind a grpc.Server configured to use the "proto"
// JSON codec (codec.go) by default, so no protoc-generated stub is ever
// required on either side of the wire.
func NewServer(h Handler, opts ...grpc.ServerOption) *Server {
	s := grpc.NewServer(opts...)
	s.RegisterService(&ServiceDesc, h)
	return &Server{grpcServer: s}
}

// Serve starts listening on addr and blocks until the listener closes or
// the server is stopped.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("chkrpc: listen: %w", err)
	}
	logging.Op().Info("cluster RPC server started", "addr", addr)
	return s.grpcServer.Serve(lis)
}

func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}
