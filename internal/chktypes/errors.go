package chktypes

import "errors"

// Error taxonomy (spec §7). These are sentinel values, not wrapped: callers
// compare with errors.Is. At the RPC boundary KindOf/ErrorFromKind map
// them to and from a kind string carried in the reply body
// (chkrpc.RemoteError); everywhere else they propagate verbatim, per
// "all wrappers log at WARN and return the store's error verbatim; no
// internal retry" (spec §4.1).
var (
	// Transient transport: caller retries with 1s back-off until pause is set.
	ErrOutOfGroup  = errors.New("chk: rank out of group")
	ErrGroupVersion = errors.New("chk: stale group version")
	ErrAgain       = errors.New("chk: try again")
	ErrTimedOut    = errors.New("chk: timed out")

	// Stale generation: silently ignored by the target.
	ErrNotApplicable = errors.New("chk: not applicable to current generation")

	// Not-leader / stale bookmark: controller must re-discover the leader.
	ErrNotLeader = errors.New("chk: not the leader")
	ErrStale     = errors.New("chk: stale bookmark")

	// Logical, no retry.
	ErrInval      = errors.New("chk: invalid argument")
	ErrNoMem      = errors.New("chk: out of memory")
	ErrNoHdl      = errors.New("chk: no such handle")
	ErrBusy       = errors.New("chk: already starting")
	ErrInProgress = errors.New("chk: stopping in progress")
	ErrAlready    = errors.New("chk: already started")

	// Fatal.
	ErrIO = errors.New("chk: bookmark magic mismatch")

	// ErrInterrupted is returned to a report producer whose pending record
	// was woken by a shutdown rather than an operator decision.
	ErrInterrupted = errors.New("chk: interrupted")
)

// IsTransient reports whether err belongs to the transient-transport class
// that warrants the caller's 1s back-off retry loop.
func IsTransient(err error) bool {
	switch {
	case errors.Is(err, ErrOutOfGroup):
	case errors.Is(err, ErrGroupVersion):
	case errors.Is(err, ErrAgain):
	case errors.Is(err, ErrTimedOut):
	default:
		return false
	}
	return true
}

var errKinds = []struct {
	kind string
	err  error
}{
	{"out_of_group", ErrOutOfGroup},
	{"group_version", ErrGroupVersion},
	{"again", ErrAgain},
	{"timed_out", ErrTimedOut},
	{"not_applicable", ErrNotApplicable},
	{"not_leader", ErrNotLeader},
	{"stale", ErrStale},
	{"inval", ErrInval},
	{"no_mem", ErrNoMem},
	{"no_hdl", ErrNoHdl},
	{"busy", ErrBusy},
	{"in_progress", ErrInProgress},
	{"already", ErrAlready},
	{"io", ErrIO},
	{"interrupted", ErrInterrupted},
}

// KindOf maps a sentinel error from the taxonomy above to its wire kind
// string, for chkrpc's RemoteError. Unrecognized errors map to "unknown".
func KindOf(err error) string {
	for _, k := range errKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "unknown"
}

// ErrorFromKind reconstitutes a sentinel error from its wire kind string.
// An unrecognized kind reconstitutes as a plain error carrying the kind,
// so callers that only check IsTransient/errors.Is against the taxonomy
// degrade safely rather than panicking on an unknown wire value.
func ErrorFromKind(kind string) error {
	for _, k := range errKinds {
		if k.kind == kind {
			return k.err
		}
	}
	return errors.New("chk: remote error: " + kind)
}
