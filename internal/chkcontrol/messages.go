// Package chkcontrol implements the operator-facing control API (spec
// §6.1): start/stop/query/act/prop, issued against a Leader instance and
// distinct from the cluster RPCs of chkrpc (which the Leader in turn uses
// to fan these out to engines). Wire shape and dispatch follow the same
// hand-built grpc.ServiceDesc pattern as chkrpc.
package chkcontrol

import (
	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chktypes"
)

// StartRequest is the body of the operator "start" command (spec §6.1).
type StartRequest struct {
	Ranks      []uint32             `json:"ranks"`
	Policies   chktypes.PolicyTable `json:"policies"`
	Pools      []uuid.UUID          `json:"pools"`
	Flags      chktypes.StartFlags  `json:"flags"`
	PhaseLimit chktypes.Phase       `json:"phase_limit"`
	LeaderRank uint32               `json:"leader_rank"`
}

type StartReply struct {
	Err *chkcontrolError `json:"err,omitempty"`
}

// StopRequest is the body of the operator "stop" command.
type StopRequest struct {
	Pools []uuid.UUID `json:"pools"`
}

type StopReply struct {
	Err *chkcontrolError `json:"err,omitempty"`
}

// QueryRequest is the body of the operator "query" command.
type QueryRequest struct {
	Pools []uuid.UUID `json:"pools"`
}

// QueryReply reports the instance's overall status/phase plus a
// per-pool shard snapshot.
type QueryReply struct {
	InstanceStatus chktypes.Status          `json:"instance_status"`
	InstancePhase  chktypes.Phase           `json:"instance_phase"`
	Pools          []QueryPoolResult        `json:"pools"`
	Err            *chkcontrolError         `json:"err,omitempty"`
}

// QueryPoolResult is one pool's entry in a QueryReply.
type QueryPoolResult struct {
	Pool   uuid.UUID        `json:"pool"`
	Phase  chktypes.Phase   `json:"phase"`
	Status chktypes.Status  `json:"status"`
	Shards []chktypes.Shard `json:"shards"`
}

// ActRequest is the body of the operator "act" command, answering a
// pending interactive report.
type ActRequest struct {
	Seq    chktypes.Seq    `json:"seq"`
	Class  chktypes.Class  `json:"class"`
	Action chktypes.Action `json:"action"`
	ForAll bool            `json:"for_all"`
}

type ActReply struct {
	Err *chkcontrolError `json:"err,omitempty"`
}

// PropRequest is the body of the operator "prop" command (empty: it
// queries the running instance's current policy table).
type PropRequest struct{}

type PropReply struct {
	Policies chktypes.PolicyTable `json:"policies"`
	Flags    chktypes.StartFlags  `json:"flags"`
	Err      *chkcontrolError     `json:"err,omitempty"`
}

// chkcontrolError mirrors chkrpc.RemoteError: a wire-safe encoding of one
// of the taxonomy's sentinel errors (spec §7). Kept as a distinct type so
// the operator wire format does not reuse the cluster transport's error
// type; the package imports chkrpc only for MergeInstanceStatus.
type chkcontrolError struct {
	Kind string `json:"kind"`
}

// NewError wraps err (nil-safe) as the wire form of a taxonomy sentinel.
func NewError(err error) *chkcontrolError {
	if err == nil {
		return nil
	}
	return &chkcontrolError{Kind: chktypes.KindOf(err)}
}

// ToError reconstitutes the sentinel error e names.
func (e *chkcontrolError) ToError() error {
	if e == nil {
		return nil
	}
	return chktypes.ErrorFromKind(e.Kind)
}
