package engine

import (
	"context"

	"github.com/sqldef/powerquery/cache"
	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/query"
)

// buildSignature assembles q's cache.Signature without executing
// anything: it resolves the connector's CacheKey for the source and,
// for every merge/append dependency, recurses into that query's own
// signature (spec §4.7, "for each merge/append dependency: the
// recursive signature under the same keying scheme"). path guards
// against the same cycle buildSignature's caller (Execute) already
// detects, since a dependency cycle would otherwise recurse forever
// here too.
func (e *Engine) buildSignature(ctx context.Context, q *query.Query, opts Options, path map[string]bool) (cache.Signature, error) {
	if path[q.ID] {
		return cache.Signature{}, pqerr.New(pqerr.KindCycleError, "engine: cycle detected involving query "+q.ID)
	}
	next := make(map[string]bool, len(path)+1)
	for id := range path {
		next[id] = true
	}
	next[q.ID] = true

	srcSig, err := e.sourceSignature(q.Source)
	if err != nil {
		return cache.Signature{}, err
	}
	srcSig.Cacheable = srcSig.Cacheable && q.Cacheable

	steps := make([]query.Operation, len(q.Steps))
	for i, s := range q.Steps {
		steps[i] = s.Operation
	}
	if opts.MaxStepIndex != nil && *opts.MaxStepIndex < len(steps) {
		steps = steps[:*opts.MaxStepIndex]
	}

	deps := map[string]cache.Signature{}
	for _, id := range q.DependsOnQueries() {
		depQuery, ok := e.resolve(id)
		if !ok {
			return cache.Signature{}, pqerr.New(pqerr.KindUnknownQuery, "engine: unresolved query dependency "+id)
		}
		depSig, err := e.buildSignature(ctx, depQuery, Options{}, next)
		if err != nil {
			return cache.Signature{}, err
		}
		deps[id] = depSig
	}

	opt := cache.Options{}
	if opts.Limit != nil {
		opt.Limit = *opts.Limit
	}
	if opts.MaxStepIndex != nil {
		opt.MaxStepIndex = *opts.MaxStepIndex
	}

	return cache.Signature{
		Source:  srcSig,
		Steps:   steps,
		Options: opt,
		Privacy: opts.Privacy,
		Deps:    deps,
	}, nil
}

// sourceSignature wraps the connector's own CacheKey for source; it is
// uncacheable when no connector is registered or CacheKey fails. A
// QueryRef source yields a fixed {kind, queryId} value marked cacheable.
// q.Cacheable is ANDed in by buildSignature, not here.
func (e *Engine) sourceSignature(source query.Source) (cache.SourceSignature, error) {
	if source.Kind == query.SourceQueryRef {
		// A query-ref source has no connector of its own; its identity
		// is entirely the referenced query's signature, folded in via
		// Deps by the caller (DependsOnQueries already includes it).
		return cache.SourceSignature{Value: map[string]any{"kind": "queryRef", "queryId": source.QueryRef.QueryID}, Cacheable: true}, nil
	}

	connectorID, err := connectorIDFor(source.Kind)
	if err != nil {
		return cache.SourceSignature{}, err
	}
	conn, ok := e.Connectors[connectorID]
	if !ok {
		return cache.SourceSignature{Cacheable: false}, nil
	}
	req, err := buildRequest(connectorID, source, nil)
	if err != nil {
		return cache.SourceSignature{}, err
	}
	key, err := conn.CacheKey(req)
	if err != nil {
		return cache.SourceSignature{Cacheable: false}, nil
	}
	return cache.SourceSignature{Value: key, Cacheable: true}, nil
}
