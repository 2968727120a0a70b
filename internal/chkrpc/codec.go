// Package chkrpc implements the cluster RPC transport (spec §6.2, C6.2):
// the ten collective/unicast opcodes carried over real gRPC transport,
// without a protoc-generated stub. Since none of the message bodies need
// wire compatibility with any other language, we register a codec under
// the name "proto" — the name grpc-go's client and server default to when
// no explicit CallContentSubtype is set — that marshals with
// encoding/json instead of protobuf, and hand-write the ServiceDesc/
// MethodDesc tables a protoc-gen-go-grpc plugin would otherwise produce.
//
// Grounded on the teacher's internal/grpc/server.go (grpc.NewServer,
// net.Listen, graceful stop) for the server lifecycle; the wire codec
// itself has no teacher analogue; see DESIGN.md.
package chkrpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

const codecName = "proto"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("chkrpc: marshal: %w", err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("chkrpc: unmarshal: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
