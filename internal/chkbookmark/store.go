// Package chkbookmark implements the Bookmark & Property store (spec §4.1,
// C1). It abstracts a single-table KV with transactional upsert, delete,
// fetch and traverse, and layers typed wrappers for each key family
// ("leader", "engine", "property", "ranks", and one key per pool UUID) on
// top of it.
//
// All wrappers log at WARN and return the underlying store's error
// verbatim; there is no internal retry (spec §4.1).
package chkbookmark

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chktypes"
	"github.com/oriys/chk/internal/logging"
)

const (
	KeyLeader   = "leader"
	KeyEngine   = "engine"
	KeyProperty = "property"
	KeyRanks    = "ranks"
)

// KV is the minimal transactional key-value contract this package needs.
// Implementations: Postgres (production, see postgres.go).
type KV interface {
	// Upsert writes a single key/value pair.
	Upsert(ctx context.Context, key string, value []byte) error
	// UpsertMany writes all pairs atomically in a single transaction. Used
	// for the "property"+"ranks" pair, which must land together or not at
	// all (spec §4.1, §6.3).
	UpsertMany(ctx context.Context, kv map[string][]byte) error
	// Fetch returns the value for key, and ok=false if absent.
	Fetch(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Delete removes key. Not an error if absent.
	Delete(ctx context.Context, key string) error
	// Traverse calls fn for every key matching prefix, in unspecified
	// order. fn returning an error stops the traversal and is returned.
	Traverse(ctx context.Context, prefix string, fn func(key string, value []byte) error) error
	// Close releases resources held by the store.
	Close() error
}

// Store layers typed wrappers over a KV.
type Store struct {
	kv KV
}

func New(kv KV) *Store {
	return &Store{kv: kv}
}

func (s *Store) warn(op string, err error) error {
	if err != nil {
		logging.Op().Warn("bookmark store operation failed", "op", op, "error", err)
	}
	return err
}

// GetLeaderBookmark fetches and validates the leader instance bookmark.
func (s *Store) GetLeaderBookmark(ctx context.Context) (*chktypes.InstanceBookmark, bool, error) {
	return s.getInstanceBookmark(ctx, KeyLeader, chktypes.MagicLeader)
}

func (s *Store) PutLeaderBookmark(ctx context.Context, bk *chktypes.InstanceBookmark) error {
	bk.Magic = chktypes.MagicLeader
	return s.putInstanceBookmark(ctx, KeyLeader, bk)
}

// GetEngineBookmark fetches and validates the engine instance bookmark.
func (s *Store) GetEngineBookmark(ctx context.Context) (*chktypes.InstanceBookmark, bool, error) {
	return s.getInstanceBookmark(ctx, KeyEngine, chktypes.MagicEngine)
}

func (s *Store) PutEngineBookmark(ctx context.Context, bk *chktypes.InstanceBookmark) error {
	bk.Magic = chktypes.MagicEngine
	return s.putInstanceBookmark(ctx, KeyEngine, bk)
}

func (s *Store) getInstanceBookmark(ctx context.Context, key string, want chktypes.Magic) (*chktypes.InstanceBookmark, bool, error) {
	raw, ok, err := s.kv.Fetch(ctx, key)
	if err != nil {
		return nil, false, s.warn("fetch:"+key, err)
	}
	if !ok {
		return nil, false, nil
	}
	var bk chktypes.InstanceBookmark
	if err := json.Unmarshal(raw, &bk); err != nil {
		return nil, false, s.warn("decode:"+key, fmt.Errorf("%w: %v", chktypes.ErrIO, err))
	}
	if bk.Magic != want {
		return nil, false, s.warn("magic:"+key, fmt.Errorf("%w: have %s want %s", chktypes.ErrIO, bk.Magic, want))
	}
	return &bk, true, nil
}

func (s *Store) putInstanceBookmark(ctx context.Context, key string, bk *chktypes.InstanceBookmark) error {
	raw, err := json.Marshal(bk)
	if err != nil {
		return s.warn("encode:"+key, err)
	}
	return s.warn("upsert:"+key, s.kv.Upsert(ctx, key, raw))
}

// GetPoolBookmark fetches a pool's bookmark by UUID (canonical lowercase
// string form is the key, per spec §6.3).
func (s *Store) GetPoolBookmark(ctx context.Context, pool uuid.UUID) (*chktypes.PoolBookmark, bool, error) {
	key := poolKey(pool)
	raw, ok, err := s.kv.Fetch(ctx, key)
	if err != nil {
		return nil, false, s.warn("fetch:"+key, err)
	}
	if !ok {
		return nil, false, nil
	}
	var bk chktypes.PoolBookmark
	if err := json.Unmarshal(raw, &bk); err != nil {
		return nil, false, s.warn("decode:"+key, fmt.Errorf("%w: %v", chktypes.ErrIO, err))
	}
	if bk.Magic != chktypes.MagicPool {
		return nil, false, s.warn("magic:"+key, fmt.Errorf("%w: have %s want POOL", chktypes.ErrIO, bk.Magic))
	}
	return &bk, true, nil
}

func (s *Store) PutPoolBookmark(ctx context.Context, bk *chktypes.PoolBookmark) error {
	bk.Magic = chktypes.MagicPool
	key := poolKey(bk.PoolUUID)
	raw, err := json.Marshal(bk)
	if err != nil {
		return s.warn("encode:"+key, err)
	}
	return s.warn("upsert:"+key, s.kv.Upsert(ctx, key, raw))
}

func (s *Store) DeletePoolBookmark(ctx context.Context, pool uuid.UUID) error {
	return s.warn("delete:pool", s.kv.Delete(ctx, poolKey(pool)))
}

// TraversePools calls fn once per persisted pool bookmark.
func (s *Store) TraversePools(ctx context.Context, fn func(*chktypes.PoolBookmark) error) error {
	return s.warn("traverse:pools", s.kv.Traverse(ctx, poolKeyPrefix, func(key string, value []byte) error {
		var bk chktypes.PoolBookmark
		if err := json.Unmarshal(value, &bk); err != nil {
			return fmt.Errorf("%w: decode %s: %v", chktypes.ErrIO, key, err)
		}
		return fn(&bk)
	}))
}

// DeleteAllPools traverses and deletes every persisted pool bookmark. Used
// by the instance "reset path" (spec §4.2 step 4).
func (s *Store) DeleteAllPools(ctx context.Context) error {
	var keys []string
	err := s.kv.Traverse(ctx, poolKeyPrefix, func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return s.warn("traverse:pools-for-delete", err)
	}
	for _, k := range keys {
		if err := s.kv.Delete(ctx, k); err != nil {
			return s.warn("delete:"+k, err)
		}
	}
	return nil
}

// Property is the process-wide policy table plus instance flags, persisted
// atomically with Ranks (spec §4.1, §6.3: "a reader seeing one but not the
// other treats the store as corrupt").
type Property struct {
	Policies chktypes.PolicyTable `json:"policies"`
	Flags    chktypes.StartFlags  `json:"flags"`
}

// Ranks is the leader's persisted membership list and group version.
type Ranks struct {
	RankIDs      []uint32 `json:"rank_ids"`
	GroupVersion uint64   `json:"group_version"`
}

// GetPropertyAndRanks reads both keys and enforces the joint-existence
// invariant: present/absent must agree, else ErrIO.
func (s *Store) GetPropertyAndRanks(ctx context.Context) (*Property, *Ranks, bool, error) {
	propRaw, propOK, err := s.kv.Fetch(ctx, KeyProperty)
	if err != nil {
		return nil, nil, false, s.warn("fetch:property", err)
	}
	ranksRaw, ranksOK, err := s.kv.Fetch(ctx, KeyRanks)
	if err != nil {
		return nil, nil, false, s.warn("fetch:ranks", err)
	}
	if propOK != ranksOK {
		return nil, nil, false, s.warn("joint:property-ranks", fmt.Errorf("%w: property present=%v ranks present=%v", chktypes.ErrIO, propOK, ranksOK))
	}
	if !propOK {
		return nil, nil, false, nil
	}
	var prop Property
	if err := json.Unmarshal(propRaw, &prop); err != nil {
		return nil, nil, false, s.warn("decode:property", fmt.Errorf("%w: %v", chktypes.ErrIO, err))
	}
	var ranks Ranks
	if err := json.Unmarshal(ranksRaw, &ranks); err != nil {
		return nil, nil, false, s.warn("decode:ranks", fmt.Errorf("%w: %v", chktypes.ErrIO, err))
	}
	return &prop, &ranks, true, nil
}

// PutPropertyAndRanks writes both keys in the same transaction.
func (s *Store) PutPropertyAndRanks(ctx context.Context, prop *Property, ranks *Ranks) error {
	propRaw, err := json.Marshal(prop)
	if err != nil {
		return s.warn("encode:property", err)
	}
	ranksRaw, err := json.Marshal(ranks)
	if err != nil {
		return s.warn("encode:ranks", err)
	}
	return s.warn("upsert-many:property+ranks", s.kv.UpsertMany(ctx, map[string][]byte{
		KeyProperty: propRaw,
		KeyRanks:    ranksRaw,
	}))
}

func (s *Store) Close() error { return s.kv.Close() }

const poolKeyPrefix = "pool:"

func poolKey(pool uuid.UUID) string {
	return poolKeyPrefix + pool.String()
}
