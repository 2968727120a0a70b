package chkrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client invokes the cluster RPC opcodes against one peer rank. Leader and
// PS-leader fan-out (chkleader, chkengine) hold one Client per destination
// rank; MARK/ACT/START broadcasts dial each survivor concurrently and feed
// the replies through the aggregators in aggregate.go.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a peer's cluster RPC listener. The "proto" codec
// registered in codec.go is selected via CallContentSubtype on every
// invocation below, so no .proto-derived stub is linked in.
func Dial(ctx context.Context, addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("chkrpc: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func callOpts() []grpc.CallOption {
	return []grpc.CallOption{grpc.CallContentSubtype(codecName)}
}

func (c *Client) Start(ctx context.Context, req *StartRequest) (*StartReply, error) {
	resp := new(StartReply)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/Start", req, resp, callOpts()...); err != nil {
		return nil, err
	}
	return resp, resp.Err.ToError()
}

func (c *Client) Stop(ctx context.Context, req *StopRequest) (*StopReply, error) {
	resp := new(StopReply)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/Stop", req, resp, callOpts()...); err != nil {
		return nil, err
	}
	return resp, resp.Err.ToError()
}

func (c *Client) Query(ctx context.Context, req *QueryRequest) (*QueryReply, error) {
	resp := new(QueryReply)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/Query", req, resp, callOpts()...); err != nil {
		return nil, err
	}
	return resp, resp.Err.ToError()
}

func (c *Client) Mark(ctx context.Context, req *MarkRequest) (*MarkReply, error) {
	resp := new(MarkReply)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/Mark", req, resp, callOpts()...); err != nil {
		return nil, err
	}
	return resp, resp.Err.ToError()
}

func (c *Client) Act(ctx context.Context, req *ActRequest) (*ActReply, error) {
	resp := new(ActReply)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/Act", req, resp, callOpts()...); err != nil {
		return nil, err
	}
	return resp, resp.Err.ToError()
}

func (c *Client) ContList(ctx context.Context, req *ContListRequest) (*ContListReply, error) {
	resp := new(ContListReply)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/ContList", req, resp, callOpts()...); err != nil {
		return nil, err
	}
	return resp, resp.Err.ToError()
}

func (c *Client) PoolStart(ctx context.Context, req *PoolStartRequest) (*PoolStartReply, error) {
	resp := new(PoolStartReply)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/PoolStart", req, resp, callOpts()...); err != nil {
		return nil, err
	}
	return resp, resp.Err.ToError()
}

func (c *Client) PoolMBS(ctx context.Context, req *PoolMBSRequest) (*PoolMBSReply, error) {
	resp := new(PoolMBSReply)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/PoolMBS", req, resp, callOpts()...); err != nil {
		return nil, err
	}
	return resp, resp.Err.ToError()
}

func (c *Client) Report(ctx context.Context, req *ReportRequest) (*ReportReply, error) {
	resp := new(ReportReply)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/Report", req, resp, callOpts()...); err != nil {
		return nil, err
	}
	return resp, resp.Err.ToError()
}

func (c *Client) Rejoin(ctx context.Context, req *RejoinRequest) (*RejoinReply, error) {
	resp := new(RejoinReply)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/Rejoin", req, resp, callOpts()...); err != nil {
		return nil, err
	}
	return resp, resp.Err.ToError()
}
