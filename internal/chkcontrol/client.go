package chkcontrol

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is checkctl's connection to a Leader's control API.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a Leader's control API listener.
func Dial(ctx context.Context, addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("chkcontrol: dial %s: %w", addr, err)
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

func (c *Client) Act(ctx context.Context, req *ActRequest) (*ActReply, error) {
	resp := new(ActReply)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/Act", req, resp, callOpts()...); err != nil {
		return nil, err
	}
	return resp, resp.Err.ToError()
}

func (c *Client) Prop(ctx context.Context, req *PropRequest) (*PropReply, error) {
	resp := new(PropReply)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/Prop", req, resp, callOpts()...); err != nil {
		return nil, err
	}
	return resp, resp.Err.ToError()
}
