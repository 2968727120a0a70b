package chkconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oriys/chk/internal/chktypes"
)

func TestDefaultConfigMatchesSpecDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Scheduler.Tick != 300*time.Millisecond {
		t.Fatalf("tick = %v, want 300ms", cfg.Scheduler.Tick)
	}
	if cfg.Scheduler.RejoinBackoff != time.Second {
		t.Fatalf("rejoin backoff = %v, want 1s", cfg.Scheduler.RejoinBackoff)
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chk.yaml")
	body := "postgres:\n  dsn: postgres://custom/db\nscheduler:\n  tick: 500ms\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Postgres.DSN != "postgres://custom/db" {
		t.Fatalf("dsn = %q, want override", cfg.Postgres.DSN)
	}
	if cfg.Scheduler.Tick != 500*time.Millisecond {
		t.Fatalf("tick = %v, want 500ms", cfg.Scheduler.Tick)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("redis addr = %q, want untouched default", cfg.Redis.Addr)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	cfg := DefaultConfig()
	t.Setenv("CHK_PG_DSN", "postgres://env/db")
	t.Setenv("CHK_GRPC_ADDR", ":7777")
	t.Setenv("CHK_SCHED_TICK", "150ms")
	t.Setenv("CHK_RANK", "4")

	LoadFromEnv(cfg)

	if cfg.Postgres.DSN != "postgres://env/db" {
		t.Fatalf("dsn = %q, want env override", cfg.Postgres.DSN)
	}
	if cfg.GRPC.Addr != ":7777" {
		t.Fatalf("grpc addr = %q, want env override", cfg.GRPC.Addr)
	}
	if cfg.Scheduler.Tick != 150*time.Millisecond {
		t.Fatalf("tick = %v, want 150ms", cfg.Scheduler.Tick)
	}
	if cfg.Rank != 4 {
		t.Fatalf("rank = %d, want 4", cfg.Rank)
	}
}

func TestPolicyTableFallsBackToDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policies = []PolicyConfig{
		{Class: chktypes.ClassContBadLabel.String(), Action: chktypes.ActionTrustPS.String()},
	}

	pt := cfg.PolicyTable()
	if got := pt.Resolve(chktypes.ClassContBadLabel); got != chktypes.ActionTrustPS {
		t.Fatalf("overridden class resolved to %v, want TRUST_PS", got)
	}
	if got := pt.Resolve(chktypes.ClassPoolNonexistOnMS); got != chktypes.ActionReadd {
		t.Fatalf("unconfigured class resolved to %v, want the built-in default READD", got)
	}
}
