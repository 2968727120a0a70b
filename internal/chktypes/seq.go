package chktypes

import (
	"golang.org/x/sys/unix"
)

// Seq is the 64-bit report sequence (spec §3 "Identifiers"). Bits 40-62
// (23 bits) encode the origin rank, bit 63 is reserved and always clear,
// bits 0-39 are a local counter seeded from a high-resolution monotonic
// clock. Sequences are unique per rank and effectively unique cluster-wide;
// collisions are resolved by the Leader asking the originator to
// regenerate (returns ErrAgain).
type Seq uint64

const (
	rankBitPos  = 40
	rankBits    = 23
	rankMask    = (uint64(1) << rankBits) - 1
	counterMask = (uint64(1) << rankBitPos) - 1
)

// LeaderRank is the reserved sentinel origin used by reports the Leader
// generates locally (orphan/dangling pool detection), truncated to the
// 23-bit rank field.
const LeaderRank uint32 = uint32(rankMask)

// Gen is the 64-bit monotonic instance generation minted at Start.
type Gen uint64

func nowMonotonicRaw40() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts); err != nil {
		// Clock access should never fail on a supported platform; fall
		// back to a degenerate but still-monotonic-within-process value
		// rather than panicking the scheduler.
		return counterMask
	}
	nanos := uint64(ts.Sec)*1_000_000_000 + uint64(ts.Nsec)
	return nanos & counterMask
}

// NewGen mints a new instance generation from the high-resolution clock.
func NewGen() Gen {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts); err != nil {
		return Gen(1)
	}
	return Gen(uint64(ts.Sec)*1_000_000_000 + uint64(ts.Nsec))
}

// NewSeq allocates a fresh sequence number for reports originated by rank.
// rank is truncated to 23 bits; pass LeaderRank for Leader-local reports.
func NewSeq(rank uint32) Seq {
	r := uint64(rank) & rankMask
	c := nowMonotonicRaw40()
	return Seq((r << rankBitPos) | c)
}

// OriginRank extracts the origin rank encoded in seq.
func OriginRank(seq Seq) uint32 {
	return uint32((uint64(seq) >> rankBitPos) & rankMask)
}

// IsFromLeader reports whether seq was generated locally by the Leader.
func IsFromLeader(seq Seq) bool {
	return OriginRank(seq) == LeaderRank
}
