package chktypes

// Class is an inconsistency class (spec §3 "Policies").
type Class int

const (
	ClassEngineNotInMap Class = iota
	ClassEngineDownInMap
	ClassEngineHasNoStorage
	ClassPoolNonexistOnEngine
	ClassPoolNonexistOnMS
	ClassPoolBadLabel
	ClassPoolLessSvcWithoutQuorum
	ClassContNonexistOnPS
	ClassContBadLabel
	ClassUnknown
)

var classNames = map[Class]string{
	ClassEngineNotInMap:           "engine-not-in-map",
	ClassEngineDownInMap:          "engine-down-in-map",
	ClassEngineHasNoStorage:       "engine-has-no-storage",
	ClassPoolNonexistOnEngine:     "pool-nonexist-on-engine",
	ClassPoolNonexistOnMS:         "pool-nonexist-on-ms",
	ClassPoolBadLabel:             "pool-bad-label",
	ClassPoolLessSvcWithoutQuorum: "pool-less-svc-without-quorum",
	ClassContNonexistOnPS:         "cont-nonexist-on-ps",
	ClassContBadLabel:             "cont-bad-label",
	ClassUnknown:                  "unknown",
}

func (c Class) String() string {
	if n, ok := classNames[c]; ok {
		return n
	}
	return "unknown"
}

// Action is a repair action chosen either by policy default or by an
// operator answering an INTERACT report.
type Action int

const (
	ActionDefault Action = iota
	ActionInteract
	ActionIgnore
	ActionDiscard
	ActionReadd
	ActionTrustMS
	ActionTrustPS
	ActionTrustTarget
	ActionTrustMajority
	ActionTrustLatest
	ActionTrustOldest
	ActionTrustECParity
	ActionTrustECData
)

var actionNames = map[Action]string{
	ActionDefault:       "DEFAULT",
	ActionInteract:      "INTERACT",
	ActionIgnore:        "IGNORE",
	ActionDiscard:       "DISCARD",
	ActionReadd:         "READD",
	ActionTrustMS:       "TRUST_MS",
	ActionTrustPS:       "TRUST_PS",
	ActionTrustTarget:   "TRUST_TARGET",
	ActionTrustMajority: "TRUST_MAJORITY",
	ActionTrustLatest:   "TRUST_LATEST",
	ActionTrustOldest:   "TRUST_OLDEST",
	ActionTrustECParity: "TRUST_EC_PARITY",
	ActionTrustECData:   "TRUST_EC_DATA",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return "UNKNOWN"
}

// PolicyTable is a fixed-size mapping from inconsistency class to action.
// It is persisted as a whole under the "property" key (chkbookmark) and
// individual classes may be rewritten at runtime by a "for all" action
// (spec §4.5).
type PolicyTable map[Class]Action

// DefaultPolicyTable returns the built-in defaults named throughout spec §4
// (auto-readd orphans, auto-discard dangling pools and containers, trust
// MS on a pool label conflict, and interactive resolution for container
// label conflicts, quorum judgement calls and unknown classes).
func DefaultPolicyTable() PolicyTable {
	return PolicyTable{
		ClassEngineNotInMap:           ActionIgnore,
		ClassEngineDownInMap:          ActionIgnore,
		ClassEngineHasNoStorage:       ActionIgnore,
		ClassPoolNonexistOnEngine:     ActionDiscard,
		ClassPoolNonexistOnMS:         ActionReadd,
		ClassPoolBadLabel:             ActionTrustMS,
		ClassPoolLessSvcWithoutQuorum: ActionInteract,
		ClassContNonexistOnPS:         ActionDiscard,
		ClassContBadLabel:             ActionInteract,
		ClassUnknown:                  ActionInteract,
	}
}

// Resolve returns the configured action for class, falling back to
// ActionInteract if the table has no entry (fail safe towards asking the
// operator rather than silently guessing).
func (t PolicyTable) Resolve(c Class) Action {
	if a, ok := t[c]; ok && a != ActionDefault {
		return a
	}
	return ActionInteract
}

// Clone returns a shallow copy safe to mutate independently of t.
func (t PolicyTable) Clone() PolicyTable {
	out := make(PolicyTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// ParseClass looks up a Class by its String() name, for config files and
// the checkctl "prop" command (spec §6.1).
func ParseClass(name string) (Class, bool) {
	for c, n := range classNames {
		if n == name {
			return c, true
		}
	}
	return 0, false
}

// ParseAction looks up an Action by its String() name, for config files
// and the checkctl "prop"/"act" commands (spec §6.1).
func ParseAction(name string) (Action, bool) {
	for a, n := range actionNames {
		if n == name {
			return a, true
		}
	}
	return 0, false
}
