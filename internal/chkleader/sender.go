package chkleader

import (
	"context"

	"github.com/oriys/chk/internal/chkreport"
	"github.com/oriys/chk/internal/chktypes"
)

// PolicyResolver exposes the running instance's current policy table,
// satisfied by *chkinstance.Instance.
type PolicyResolver interface {
	Policies() chktypes.PolicyTable
}

// LocalSender is the Leader's own chkreport.Sender: reports that reach the
// Leader (either emitted locally by a pool/dangling worker, or relayed
// here from an engine's REPORT RPC) are resolved against the policy
// table directly, with no further network hop (spec §4.5 "report on the
// Leader is symmetric" — the Leader is its own destination).
type LocalSender struct {
	Policies PolicyResolver
}

// SendReport returns unit's action as-is unless it is DEFAULT or
// INTERACT, in which case it resolves the action from the current policy
// table; a class with no configured action, or mapped to INTERACT, comes
// back as ActionInteract. chkreport.Reporter parks a report only when the
// unit itself carries ActionInteract, whatever this returns.
func (s *LocalSender) SendReport(ctx context.Context, unit *chkreport.Report) (chktypes.Action, error) {
	if unit.Action != chktypes.ActionDefault && unit.Action != chktypes.ActionInteract {
		return unit.Action, nil
	}
	action := s.Policies.Policies().Resolve(unit.Class)
	return action, nil
}
