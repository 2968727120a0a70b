package chkobs

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartRPCSpan opens a client span for an outgoing cluster RPC opcode.
func StartRPCSpan(ctx context.Context, opcode string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, AttrOpcode.String(opcode))
	return Tracer().Start(ctx, "chk.rpc."+opcode,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// StartServerSpan opens a server span for an incoming cluster RPC.
func StartServerSpan(ctx context.Context, opcode string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, AttrOpcode.String(opcode))
	return Tracer().Start(ctx, "chk.rpc."+opcode,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartPhaseSpan opens an internal span for a pool worker's phase
// transition (spec §4.8).
func StartPhaseSpan(ctx context.Context, pool, phase string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "chk.phase."+phase,
		trace.WithAttributes(AttrPool.String(pool), AttrPhase.String(phase)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// SetSpanError marks span as errored.
func SetSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK marks span as successful.
func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// Attribute keys for checker spans.
var (
	AttrOpcode = attribute.Key("chk.rpc.opcode")
	AttrPool   = attribute.Key("chk.pool")
	AttrPhase  = attribute.Key("chk.phase")
	AttrRank   = attribute.Key("chk.rank")
	AttrGen    = attribute.Key("chk.gen")
	AttrClass  = attribute.Key("chk.class")
)
