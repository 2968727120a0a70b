package chkengine

import (
	"context"

	"github.com/oriys/chk/internal/chkreport"
	"github.com/oriys/chk/internal/chkrpc"
	"github.com/oriys/chk/internal/chktypes"
)

// RemoteSender is an Engine's chkreport.Sender: every report crosses the
// wire to the Leader via CHK_REPORT, the mirror image of chkleader's
// LocalSender (spec §4.5 "report on the Leader is symmetric").
type RemoteSender struct {
	Client *chkrpc.Client
}

func (s *RemoteSender) SendReport(ctx context.Context, unit *chkreport.Report) (chktypes.Action, error) {
	resp, err := s.Client.Report(ctx, &chkrpc.ReportRequest{
		Seq:     unit.Seq,
		Class:   unit.Class,
		Action:  unit.Action,
		Result:  unit.Result,
		Rank:    unit.Rank,
		Target:  unit.Target,
		Pool:    unit.Pool,
		PoolLbl: unit.PoolLabel,
		Cont:    unit.Cont,
		ContLbl: unit.ContLabel,
		Obj:     unit.Obj,
		Dkey:    string(unit.Dkey),
		Akey:    string(unit.Akey),
		Msg:     unit.Msg,
		Options: unit.ActChoices,
		Details: unit.ActDetails,
	})
	if err != nil {
		return chktypes.ActionDefault, err
	}
	if rerr := resp.Err.ToError(); rerr != nil {
		return chktypes.ActionDefault, rerr
	}
	return unit.Action, nil
}
