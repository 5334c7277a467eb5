// Package cache implements the result cache of spec §4.7: a content-
// addressed key derived from a query's full signature (source identity,
// operation IR, options, privacy mode, and dependency signatures),
// backed by a pluggable Store, with TTL and source-state validation on
// lookup.
package cache

import (
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/sqldef/powerquery/query"
)

// Key is an opaque, stable cache key: "pq:v1:" followed by a hex digest
// of the canonical signature. Two queries that are observably identical
// (same source, same operation pipeline, same options, same privacy
// mode, same dependency signatures) always produce the same Key,
// regardless of step names/ids or map iteration order.
type Key string

// SourceSignature is the source-identity half of a query's signature: a
// JSON-safe value returned by connector.Connector.CacheKey, folded
// together with the resolved credential's stable id. Cacheable is false
// when the source (or its credential) lacks a stable identity, which
// makes the whole query uncacheable (spec §4.7, "$cacheable flag
// propagated bottom-up").
type SourceSignature struct {
	Value     any
	Cacheable bool
}

// Options is the cache-relevant subset of engine.Options: anything that
// changes the result must be part of the key, but step names/ids and
// purely cosmetic settings (progress callbacks, concurrency) must not.
type Options struct {
	Limit        int
	MaxStepIndex int
}

// Signature is the full recursive signature of one query as spec §4.7
// defines it. Deps holds, for every merge/append dependency, that
// dependency's own Signature under the same keying scheme, so a change
// anywhere in the dependency chain busts the cache.
type Signature struct {
	Source  SourceSignature
	Steps   []query.Operation
	Options Options
	Privacy string
	Deps    map[string]Signature
}

// cacheable reports whether sig, and every signature it transitively
// depends on, has a stable source identity.
func (sig Signature) cacheable() bool {
	if !sig.Source.Cacheable {
		return false
	}
	for _, dep := range sig.Deps {
		if !dep.cacheable() {
			return false
		}
	}
	return true
}

// canonical is the JSON-safe shape actually hashed. Deps is rendered as
// a sorted slice (not the source map) so key derivation never depends
// on Go's randomized map iteration order.
type canonical struct {
	Source  any                 `json:"source"`
	Steps   []query.Operation   `json:"steps"`
	Options Options             `json:"options"`
	Privacy string              `json:"privacy"`
	Deps    []canonicalDepEntry `json:"deps,omitempty"`
}

type canonicalDepEntry struct {
	QueryID   string    `json:"queryId"`
	Signature canonical `json:"signature"`
}

func (sig Signature) canonicalize() canonical {
	depIDs := make([]string, 0, len(sig.Deps))
	for id := range sig.Deps {
		depIDs = append(depIDs, id)
	}
	sort.Strings(depIDs)
	deps := make([]canonicalDepEntry, 0, len(depIDs))
	for _, id := range depIDs {
		deps = append(deps, canonicalDepEntry{QueryID: id, Signature: sig.Deps[id].canonicalize()})
	}
	return canonical{
		Source:  sig.Source.Value,
		Steps:   sig.Steps,
		Options: sig.Options,
		Privacy: sig.Privacy,
		Deps:    deps,
	}
}

// ComputeKey derives the cache key for sig, returning ok == false when
// sig (or any of its dependencies) is not cacheable, matching spec
// §4.7's computeCacheKey → null.
func ComputeKey(sig Signature) (Key, bool, error) {
	if !sig.cacheable() {
		return "", false, nil
	}
	payload, err := json.Marshal(sig.canonicalize())
	if err != nil {
		return "", false, fmt.Errorf("cache: marshal signature: %w", err)
	}
	sum := blake2b.Sum256(payload)
	return Key(fmt.Sprintf("pq:v1:%x", sum)), true, nil
}
