package chkcontrol

import (
	"fmt"
	"net"

	"github.com/oriys/chk/internal/logging"
	"google.golang.org/grpc"
)

// Server hosts the operator control service (spec §6.1) on real gRPC
// transport, separate from chkrpc's cluster RPC listener.
type Server struct {
	grpcServer *grpc.Server
}

// NewServer wraps h behind a grpc.Server using the "chkjson" codec.
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
		return fmt.Errorf("chkcontrol: listen: %w", err)
	}
	logging.Op().Info("control API server started", "addr", addr)
	return s.grpcServer.Serve(lis)
}

func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}
