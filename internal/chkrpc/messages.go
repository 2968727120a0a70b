package chkrpc

import (
	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chktypes"
)

// StartRequest is the body of CHK_START (spec §6.2).
type StartRequest struct {
	Gen        chktypes.Gen          `json:"gen"`
	Flags      chktypes.StartFlags   `json:"flags"`
	Phase      chktypes.Phase        `json:"phase"`
	LeaderRank uint32                `json:"leader_rank"`
	Ranks      []uint32              `json:"ranks"`
	Policies   chktypes.PolicyTable  `json:"policies"`
	Pools      []uuid.UUID           `json:"pools"`
	IVUUID     uuid.UUID             `json:"iv_uuid"`
}

// StartReply aggregates clues[] and cmp_ranks[] across engines.
type StartReply struct {
	Clues    []chktypes.Clue `json:"clues"`
	CmpRanks []uint32        `json:"cmp_ranks"`
	Err      *RemoteError    `json:"err,omitempty"`
}

// StopRequest is the body of CHK_STOP.
type StopRequest struct {
	Gen   chktypes.Gen `json:"gen"`
	Pools []uuid.UUID  `json:"pools"`
}

// StopReply aggregates an OR'd "any pool stopped" flag and the rank list.
type StopReply struct {
	AnyStopped bool         `json:"any_stopped"`
	Ranks      []uint32     `json:"ranks"`
	Err        *RemoteError `json:"err,omitempty"`
}

// QueryRequest is the body of CHK_QUERY.
type QueryRequest struct {
	Gen   chktypes.Gen `json:"gen"`
	Pools []uuid.UUID  `json:"pools"`
}

// QueryReply aggregates shards[] and merges instance status (merge_info).
type QueryReply struct {
	InstanceStatus chktypes.Status        `json:"instance_status"`
	InstancePhase  chktypes.Phase         `json:"instance_phase"`
	Shards         []chktypes.Shard       `json:"shards"`
	Err            *RemoteError           `json:"err,omitempty"`
}

// MarkRequest is the body of CHK_MARK, sent to survivors after a rank
// eviction.
type MarkRequest struct {
	Gen          chktypes.Gen `json:"gen"`
	Rank         uint32       `json:"rank"`
	GroupVersion uint64       `json:"group_version"`
}

type MarkReply struct {
	Err *RemoteError `json:"err,omitempty"`
}

// ActRequest is the body of CHK_ACT, unicast unless Flags carries
// ActFlagForAll.
type ActRequest struct {
	Gen    chktypes.Gen     `json:"gen"`
	Seq    chktypes.Seq     `json:"seq"`
	Class  chktypes.Class   `json:"class"`
	Action chktypes.Action  `json:"action"`
	Flags  chktypes.ActFlags `json:"flags"`
}

type ActReply struct {
	Err *RemoteError `json:"err,omitempty"`
}

// ContListRequest is the body of CHK_CONT_LIST (PS-leader -> pool ranks).
type ContListRequest struct {
	Gen  chktypes.Gen `json:"gen"`
	Pool uuid.UUID    `json:"pool"`
}

// ContListReply aggregates conts[].
type ContListReply struct {
	Conts []uuid.UUID  `json:"conts"`
	Err   *RemoteError `json:"err,omitempty"`
}

// PoolStartRequest is the body of CHK_POOL_START (leader -> pool ranks).
type PoolStartRequest struct {
	Gen   chktypes.Gen        `json:"gen"`
	Pool  uuid.UUID           `json:"pool"`
	Phase chktypes.Phase      `json:"phase"`
	Flags chktypes.StartFlags `json:"flags"`
}

type PoolStartReply struct {
	Err *RemoteError `json:"err,omitempty"`
}

// PoolMBSRequest is the body of CHK_POOL_MBS (leader -> PS-leader, unicast).
type PoolMBSRequest struct {
	Gen      chktypes.Gen        `json:"gen"`
	Pool     uuid.UUID           `json:"pool"`
	Phase    chktypes.Phase      `json:"phase"`
	Flags    chktypes.StartFlags `json:"flags"`
	Label    string              `json:"label"`
	LabelSeq uint64              `json:"label_seq"`
	Members  map[uint32][]string `json:"members"`
}

// PoolMBSReply carries the rsvc hint (preferred next PS-leader candidate).
type PoolMBSReply struct {
	RSVCHint uint32       `json:"rsvc_hint"`
	Err      *RemoteError `json:"err,omitempty"`
}

// ReportRequest is the body of CHK_REPORT (engine -> leader, unicast),
// mirroring the chkreport.Report wire shape (spec §6.4).
type ReportRequest struct {
	Seq     chktypes.Seq    `json:"seq"`
	Class   chktypes.Class  `json:"class"`
	Action  chktypes.Action `json:"action"`
	Result  int32           `json:"result"`
	Rank    uint32          `json:"rank"`
	Target  uint32          `json:"target"`
	Pool    uuid.UUID       `json:"pool"`
	PoolLbl string          `json:"pool_label"`
	Cont    uuid.UUID       `json:"cont"`
	ContLbl string          `json:"cont_label"`
	Obj     string          `json:"obj"`
	Dkey    string          `json:"dkey"`
	Akey    string          `json:"akey"`
	Msg     string          `json:"msg"`
	Options []chktypes.Action `json:"options,omitempty"`
	Details []string          `json:"details,omitempty"`
}

type ReportReply struct {
	Err *RemoteError `json:"err,omitempty"`
}

// RejoinRequest is the body of CHK_REJOIN (engine -> leader, unicast).
type RejoinRequest struct {
	Gen    chktypes.Gen `json:"gen"`
	Rank   uint32       `json:"rank"`
	IVUUID uuid.UUID    `json:"iv_uuid"`
}

// RejoinReply carries the resume instruction: either a pool list to
// resume (with per-pool CRF flags) or a refusal (Err set).
type RejoinReply struct {
	Pools []uuid.UUID           `json:"pools"`
	Flags []chktypes.PoolFlags  `json:"flags"`
	Err   *RemoteError          `json:"err,omitempty"`
}

// RemoteError carries one of the taxonomy's sentinel kinds across the
// wire (spec §7); chktypes sentinel errors do not themselves implement
// json.Marshaler, so RPC replies carry this instead and the client
// reconstitutes a sentinel via ToError.
type RemoteError struct {
	Kind string `json:"kind"`
}

// NewRemoteError wraps err (nil-safe) as the wire form of a taxonomy
// sentinel, for handlers building a reply.
func NewRemoteError(err error) *RemoteError {
	if err == nil {
		return nil
	}
	return &RemoteError{Kind: chktypes.KindOf(err)}
}

// ToError reconstitutes the sentinel error a RemoteError names, or a
// plain error wrapping the kind string if it is unrecognized.
func (e *RemoteError) ToError() error {
	if e == nil {
		return nil
	}
	return chktypes.ErrorFromKind(e.Kind)
}
