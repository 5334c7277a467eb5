// Package refresh implements spec §4.9's Refresh Orchestrator: given a
// set of root query ids, compute their transitive dependency closure,
// topologically order it, and run it with a concurrency cap, one
// Engine.Execute per query, deduplicating a query that several roots
// depend on.
package refresh

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sqldef/powerquery/engine"
	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/progress"
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
)

// Status is a job's terminal outcome.
type Status int

const (
	StatusComplete Status = iota
	StatusError
	StatusCancelled
)

// Result is one query's outcome within a Run call.
type Result struct {
	QueryID string
	Status  Status
	Table   table.Table
	Meta    engine.ExecutionMeta
	Err     error
}

// Orchestrator runs refreshes across a set of registered queries,
// sharing one Engine (and so one session and cache) across every job.
type Orchestrator struct {
	Engine      *engine.Engine
	Queries     map[string]*query.Query
	Concurrency int // 0 disables concurrency (sequential); <0 means unlimited
	Emitter     progress.Emitter
}

func (o *Orchestrator) emit(ev progress.Event) { progress.Emit(o.Emitter, ev) }

// Run refreshes every query in rootIDs' transitive dependency closure
// (spec §4.9 steps 1-2), then schedules them with the orchestrator's
// concurrency cap, a job becoming ready once every dependency it has is
// done (steps 3-5). Cancelling ctx rejects queued jobs and is observed
// by in-flight ones at their next engine suspension point (step 6).
func (o *Orchestrator) Run(ctx context.Context, rootIDs []string, opts engine.Options) (map[string]Result, error) {
	closure, err := o.closure(rootIDs)
	if err != nil {
		return nil, err
	}
	order, err := topologicalSort(closure, o.Queries)
	if err != nil {
		return nil, err
	}

	deps := make(map[string][]string, len(order))
	for _, id := range order {
		deps[id] = o.Queries[id].DependsOnQueries()
	}

	done := make(map[string]chan struct{}, len(order))
	for _, id := range order {
		done[id] = make(chan struct{})
	}

	var mu sync.Mutex
	results := make(map[string]Result, len(order))

	eg, egCtx := errgroup.WithContext(ctx)
	if o.Concurrency > 0 {
		eg.SetLimit(o.Concurrency)
	} else if o.Concurrency == 0 {
		eg.SetLimit(1)
	}

	for _, id := range order {
		id := id
		o.emit(progress.Event{Kind: progress.KindJobQueued, QueryID: id})
		eg.Go(func() error {
			defer close(done[id])

			for _, dep := range deps[id] {
				if ch, ok := done[dep]; ok {
					select {
					case <-ch:
					case <-egCtx.Done():
						o.record(&mu, results, Result{QueryID: id, Status: StatusCancelled, Err: egCtx.Err()})
						o.emit(progress.Event{Kind: progress.KindJobCancelled, QueryID: id})
						return nil
					}
				}
			}
			if egCtx.Err() != nil {
				o.record(&mu, results, Result{QueryID: id, Status: StatusCancelled, Err: egCtx.Err()})
				o.emit(progress.Event{Kind: progress.KindJobCancelled, QueryID: id})
				return nil
			}

			mu.Lock()
			if existing, ok := results[id]; ok && existing.Status == StatusComplete {
				mu.Unlock()
				return nil
			}
			mu.Unlock()

			o.emit(progress.Event{Kind: progress.KindJobStart, QueryID: id})
			q := o.Queries[id]
			t, meta, err := o.Engine.Execute(egCtx, q, opts)
			if err != nil {
				if pqerr.Is(err, pqerr.KindCancelled) {
					o.record(&mu, results, Result{QueryID: id, Status: StatusCancelled, Err: err})
					o.emit(progress.Event{Kind: progress.KindJobCancelled, QueryID: id})
					return nil
				}
				o.record(&mu, results, Result{QueryID: id, Status: StatusError, Err: err})
				o.emit(progress.Event{Kind: progress.KindJobError, QueryID: id, Err: err})
				return nil
			}
			o.record(&mu, results, Result{QueryID: id, Status: StatusComplete, Table: t, Meta: meta})
			o.emit(progress.Event{Kind: progress.KindJobComplete, QueryID: id, Rows: t.RowCount()})
			return nil
		})
	}

	_ = eg.Wait()
	return results, nil
}

func (o *Orchestrator) record(mu *sync.Mutex, results map[string]Result, r Result) {
	mu.Lock()
	results[r.QueryID] = r
	mu.Unlock()
}

// closure computes the transitive set of query ids rootIDs depend on,
// including the roots themselves (spec §4.9 step 1).
func (o *Orchestrator) closure(rootIDs []string) (map[string]bool, error) {
	seen := map[string]bool{}
	var visit func(id string) error
	visit = func(id string) error {
		if seen[id] {
			return nil
		}
		q, ok := o.Queries[id]
		if !ok {
			return pqerr.New(pqerr.KindUnknownQuery, "refresh: unresolved query "+id)
		}
		seen[id] = true
		for _, dep := range q.DependsOnQueries() {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, id := range rootIDs {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return seen, nil
}
