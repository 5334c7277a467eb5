// Package engine implements spec §4.8's Execution Engine: the single
// entry point, Engine.Execute, that resolves a query's source, folds as
// much of its step pipeline as the source supports, runs whatever is
// left locally, and serves/populates the result cache around all of it.
package engine

import (
	"context"
	"fmt"

	"github.com/sqldef/powerquery/cache"
	"github.com/sqldef/powerquery/connector"
	"github.com/sqldef/powerquery/folding"
	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/progress"
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/session"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

// CacheMode selects how Execute consults the result cache (spec §4.8
// step 2: "unless cache.mode is bypass or refresh").
type CacheMode int

const (
	CacheNormal CacheMode = iota
	CacheBypass
	CacheRefresh
)

// ValidationMode selects how a cache hit is checked for staleness
// before being trusted.
type ValidationMode int

const (
	// ValidationTTL trusts any entry within its TTL; no source probe.
	ValidationTTL ValidationMode = iota
	// ValidationSourceState re-probes the connector's GetSourceState (when
	// available) even for an entry still within its TTL.
	ValidationSourceState
	// ValidationNone makes no source probe. TTL expiry in
	// cache.Manager.Lookup still applies, so it behaves like ValidationTTL.
	ValidationNone
)

// Options controls one Execute call. Limit and MaxStepIndex both feed
// cache.Options so two calls that differ in either never collide in the
// cache; Privacy is the privacy mode asserted for this run (spec §4.7's
// signature field of the same name).
type Options struct {
	Limit        *int
	MaxStepIndex *int
	Cache        CacheMode
	Validation   ValidationMode
	Privacy      string
}

// FoldingRecord is the folding half of ExecutionMeta, spec §4.8 step 7's
// "assemble QueryExecutionMeta including folding record".
type FoldingRecord struct {
	Type        folding.Type
	Sql         string
	Args        []value.Value
	Odata       string
	Diagnostics []folding.Diagnostic
}

// ExecutionMeta is everything about a run beyond the resulting table:
// whether it came from cache, what folded, and the source states worth
// persisting alongside the cached value for future validation.
type ExecutionMeta struct {
	RowCount     int
	FromCache    bool
	Folding      *FoldingRecord
	SourceStates map[string]connector.SourceState
}

// Engine ties together the pieces spec §4.8 names: a connector
// registry, the shared session (credentials/permissions/clock), the
// result cache, a progress sink, and the set of queries a merge/append
// or QueryRef might resolve against.
type Engine struct {
	Connectors     map[string]connector.Connector
	Queries        map[string]*query.Query
	Cache          *cache.Manager
	Session        *session.Session
	Emitter        progress.Emitter
	FoldingEnabled bool
	Privacy        PrivacyPolicy

	prov *provenance
}

func (e *Engine) emit(ev progress.Event) { progress.Emit(e.Emitter, ev) }

func (e *Engine) resolve(id string) (*query.Query, bool) {
	q, ok := e.Queries[id]
	return q, ok
}

func (e *Engine) provenanceTable() *provenance {
	if e.prov == nil {
		e.prov = newProvenance()
	}
	return e.prov
}

// Execute runs q to completion, implementing spec §4.8's eight-step
// algorithm. It starts with an empty call stack; the internal execute
// carries the set of query ids already on the current call stack, so a
// merge/append or QueryRef cycle is reported as KindCycleError instead
// of recursing forever.
func (e *Engine) Execute(ctx context.Context, q *query.Query, opts Options) (table.Table, ExecutionMeta, error) {
	return e.execute(ctx, q, opts, map[string]bool{})
}

// CacheKey computes the cache.Key q would be stored/looked up under for
// opts, without running it — used by cache-management tooling that needs
// to evict a specific entry (spec §4.7's key is a pure function of the
// signature, so it can be recomputed independently of Execute).
func (e *Engine) CacheKey(ctx context.Context, q *query.Query, opts Options) (cache.Key, bool, error) {
	sig, err := e.buildSignature(ctx, q, opts, map[string]bool{})
	if err != nil {
		return "", false, err
	}
	return cache.ComputeKey(sig)
}

func (e *Engine) execute(ctx context.Context, q *query.Query, opts Options, path map[string]bool) (table.Table, ExecutionMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, ExecutionMeta{}, pqerr.Wrap(pqerr.KindCancelled, "engine: context cancelled", err)
	}

	// Step 1: cycle check.
	if path[q.ID] {
		return nil, ExecutionMeta{}, pqerr.New(pqerr.KindCycleError, "engine: cycle detected involving query "+q.ID)
	}
	childPath := make(map[string]bool, len(path)+1)
	for id := range path {
		childPath[id] = true
	}
	childPath[q.ID] = true

	// Step 2: cache lookup. CacheRefresh skips the lookup but still
	// computes the key so the fresh result is stored in step 8;
	// CacheBypass neither reads nor writes the cache.
	var key cache.Key
	var cacheable bool
	if opts.Cache != CacheBypass && e.Cache != nil {
		sig, err := e.buildSignature(ctx, q, opts, path)
		if err == nil {
			if k, ok, kerr := cache.ComputeKey(sig); kerr == nil && ok {
				key, cacheable = k, true
			}
		}
	}
	if opts.Cache == CacheNormal && e.Cache != nil {
		if cacheable {
			validator := e.validatorFor(ctx, q, opts)
			entry, status, err := e.Cache.Lookup(key, validator)
			if err == nil && status == cache.StatusHit {
				e.emit(progress.Event{Kind: progress.KindCacheHit, QueryID: q.ID})
				return entry.Value, ExecutionMeta{RowCount: entry.Value.RowCount(), FromCache: true, SourceStates: entry.SourceStates}, nil
			}
		}
		e.emit(progress.Event{Kind: progress.KindCacheMiss, QueryID: q.ID})
	}

	// Step 3: plan/fold.
	plan, fold, err := e.planFold(q)
	if err != nil {
		return nil, ExecutionMeta{}, err
	}
	for _, diag := range plan.Diagnostics {
		if diag.Blocked {
			e.emit(progress.Event{Kind: progress.KindPrivacyFirewall, QueryID: q.ID, Step: diag.StepIndex, Err: fmt.Errorf("%s", diag.Message)})
		}
	}

	// Step 4: load source. A QueryRef source has no connector of its own;
	// its table is the referenced query's own result, recursed into under
	// the same cycle-checked path rather than resolved through loadSource.
	var t table.Table
	var sourceState connector.SourceState
	sourceID := q.ID + ":source"
	if q.Source.Kind == query.SourceQueryRef {
		refQuery, ok := e.resolve(q.Source.QueryRef.QueryID)
		if !ok {
			return nil, ExecutionMeta{}, pqerr.New(pqerr.KindUnknownQuery, "engine: unresolved query reference "+q.Source.QueryRef.QueryID)
		}
		refTable, _, err := e.execute(ctx, refQuery, Options{}, childPath)
		if err != nil {
			return nil, ExecutionMeta{}, err
		}
		t = refTable
	} else {
		var err error
		t, sourceState, err = e.loadSource(ctx, q, fold)
		if err != nil {
			return nil, ExecutionMeta{}, err
		}
		e.provenanceTable().tag(t, sourceID)
	}

	// Step 5: run remaining (unfolded) steps.
	localSteps := q.Steps[plan.LocalStepOffset:]
	t, err = e.runSteps(ctx, t, q, localSteps, plan.LocalStepOffset, childPath)
	if err != nil {
		return nil, ExecutionMeta{}, err
	}

	// Step 6: limit.
	if opts.Limit != nil && *opts.Limit < t.RowCount() {
		t = t.Head(*opts.Limit)
	}

	// Step 7: assemble metadata.
	meta := ExecutionMeta{RowCount: t.RowCount(), SourceStates: map[string]connector.SourceState{}}
	if q.Source.Kind != query.SourceQueryRef {
		meta.SourceStates[sourceID] = sourceState
	}
	if fold != nil || plan.Type != folding.Local {
		rec := &FoldingRecord{Type: plan.Type, Diagnostics: plan.Diagnostics}
		if fold != nil {
			rec.Sql, rec.Args, rec.Odata = fold.sql, fold.args, fold.odataQuery
		}
		meta.Folding = rec
	}

	// Step 8: cache set (errors ignored).
	if cacheable && e.Cache != nil {
		_ = e.Cache.Set(key, cache.Entry{Value: t, TTLMillis: ttlMillisFor(q), SourceStates: meta.SourceStates})
		e.emit(progress.Event{Kind: progress.KindCacheSet, QueryID: q.ID})
	}

	return t, meta, nil
}

func ttlMillisFor(q *query.Query) int64 {
	if q.RefreshPolicy == nil || q.RefreshPolicy.Mode != query.RefreshOnInterval || q.RefreshPolicy.IntervalSeconds <= 0 {
		return 0
	}
	return int64(q.RefreshPolicy.IntervalSeconds) * 1000
}

// validatorFor builds a cache.Validator backed by the source connector's
// GetSourceState, when both the engine's validation mode calls for it
// and the connector implements SourceStater; otherwise nil (TTL-only).
func (e *Engine) validatorFor(ctx context.Context, q *query.Query, opts Options) cache.Validator {
	if opts.Validation != ValidationSourceState {
		return nil
	}
	connectorID, err := connectorIDFor(q.Source.Kind)
	if err != nil {
		return nil
	}
	conn, ok := e.Connectors[connectorID]
	if !ok {
		return nil
	}
	stater, ok := conn.(connector.SourceStater)
	if !ok {
		return nil
	}
	req, err := buildRequest(connectorID, q.Source, nil)
	if err != nil {
		return nil
	}
	host := e.hostFor(nil)
	return func(entry cache.Entry) (bool, error) {
		known := connector.KnownState{}
		if ss, ok := entry.SourceStates[q.ID+":source"]; ok {
			known.KnownEtag = ss.Etag
			if ss.HasSourceTimestamp {
				known.KnownSourceTimestamp, known.HasKnownSourceTimestamp = ss.SourceTimestamp, true
			}
		}
		state, err := stater.GetSourceState(ctx, req, host, known)
		if err != nil {
			return false, err
		}
		if state.HasEtag && known.KnownEtag != "" {
			return state.Etag == known.KnownEtag, nil
		}
		if state.HasSourceTimestamp && known.HasKnownSourceTimestamp {
			return state.SourceTimestamp == known.KnownSourceTimestamp, nil
		}
		if !state.HasEtag && !state.HasSourceTimestamp && known.KnownEtag == "" && !known.HasKnownSourceTimestamp {
			// No source state on either side: nothing to compare, so the
			// entry is kept and left to TTL expiry.
			return true, nil
		}
		return false, nil
	}
}
