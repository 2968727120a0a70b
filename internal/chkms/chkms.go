// Package chkms declares the Management Service collaborator interfaces
// the checker calls into but does not implement (spec §1 non-goal: "the
// on-disk pool-map mutation layer; the container metadata store ...
// explicitly out of scope, interfaces only"). Production wiring supplies a
// concrete client against the real MS; tests supply a stub.
package chkms

import (
	"context"

	"github.com/google/uuid"
)

// Client is the MS-facing surface the checker needs: the authoritative
// pool list (chkleader's startup reconciliation, spec §4.7) and pool
// registration/deregistration (orphan READD, dangling-pool DISCARD).
type Client interface {
	ListPools(ctx context.Context) ([]uuid.UUID, error)
	RegisterPool(ctx context.Context, pool uuid.UUID, label string) error
	DeregisterPool(ctx context.Context, pool uuid.UUID) error
}
