package chkobs

import (
	"context"
	"testing"
)

func TestInitDisabledIsNoop(t *testing.T) {
	if err := Init(context.Background(), Config{Enabled: false}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if Enabled() {
		t.Fatal("Enabled() = true for a disabled config")
	}
	ctx, span := StartRPCSpan(context.Background(), "START")
	defer span.End()
	if ctx == nil {
		t.Fatal("StartRPCSpan returned a nil context")
	}
}

func TestInitStdoutExporterEnablesTracing(t *testing.T) {
	cfg := Config{Enabled: true, Exporter: "stdout", ServiceName: "chk-test", SampleRate: 1.0}
	if err := Init(context.Background(), cfg); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer Shutdown(context.Background())

	if !Enabled() {
		t.Fatal("Enabled() = false after enabling tracing")
	}
	_, span := StartPhaseSpan(context.Background(), "pool-a", "POOL_MBS")
	SetSpanOK(span)
	span.End()
}
