package engine

import (
	"context"
	"fmt"

	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/progress"
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/steps"
	"github.com/sqldef/powerquery/streaming"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

// streamBatchSize matches spec §5's "suspend... inside tight loops every
// N cells (order 128)" suspension granularity, scaled up by a typical
// column count to a reasonable row-batch size.
const streamBatchSize = 512

// runSteps executes local (unfolded) steps against t, starting at
// offset in q.Steps (spec §4.8 step 5). A step sequence streaming can
// run entirely in bounded memory; anything else (sort_rows, group_by,
// merge, append, pivot, ...) runs through steps.Apply one operation at
// a time, recursing into merge/append dependencies as needed.
func (e *Engine) runSteps(ctx context.Context, t table.Table, q *query.Query, localSteps []query.Step, offset int, path map[string]bool) (table.Table, error) {
	ops := make([]query.Operation, len(localSteps))
	for i, s := range localSteps {
		ops[i] = s.Operation
	}
	if streaming.IsStreamable(ops) {
		out, err := e.runStreaming(ctx, t, ops)
		if err != nil {
			return nil, err
		}
		e.provenanceTable().combine(out, t)
		return out, nil
	}
	return e.runSequential(ctx, t, q, localSteps, offset, path)
}

func (e *Engine) runStreaming(ctx context.Context, t table.Table, ops []query.Operation) (table.Table, error) {
	pipeline, err := streaming.Compile(t.Columns(), ops)
	if err != nil {
		return nil, err
	}

	var outRows [][]value.Value
	consumer := streaming.NewConsumer(pipeline, streamBatchSize, func(b streaming.Batch) error {
		outRows = append(outRows, b.Rows...)
		e.emit(progress.Event{Kind: progress.KindStreamBatch, Rows: len(b.Rows)})
		return nil
	})

	var batch [][]value.Value
	var pushErr error
	stopped := false
	t.IterRows(func(row []value.Value) bool {
		if ctx.Err() != nil {
			pushErr = pqerr.Wrap(pqerr.KindCancelled, "engine: context cancelled", ctx.Err())
			return false
		}
		batch = append(batch, row)
		if len(batch) < streamBatchSize {
			return true
		}
		done, err := consumer.Push(ctx, batch)
		batch = batch[:0]
		if err != nil {
			pushErr = err
			return false
		}
		if done {
			stopped = true
			return false
		}
		return true
	})
	if pushErr != nil {
		return nil, pushErr
	}
	if !stopped && len(batch) > 0 {
		if _, err := consumer.Push(ctx, batch); err != nil {
			return nil, err
		}
	}
	if !stopped {
		if err := consumer.Flush(ctx); err != nil {
			return nil, err
		}
	}

	return table.New(pipeline.Columns(), outRows), nil
}

func (e *Engine) runSequential(ctx context.Context, t table.Table, q *query.Query, localSteps []query.Step, offset int, path map[string]bool) (table.Table, error) {
	prov := e.provenanceTable()
	for i, step := range localSteps {
		if err := ctx.Err(); err != nil {
			return nil, pqerr.Wrap(pqerr.KindCancelled, "engine: context cancelled", err)
		}
		stepIndex := offset + i
		opName := fmt.Sprintf("%v", step.Operation.Kind)
		e.emit(progress.Event{Kind: progress.KindStepStart, QueryID: q.ID, Step: stepIndex, Operator: opName})

		deps, depTables, err := e.resolveDeps(ctx, step.Operation, path)
		if err != nil {
			return nil, err
		}
		for _, dep := range depTables {
			if ok, reason := checkFirewall(e.Privacy, prov.sourcesOf(t), prov.sourcesOf(dep)); !ok {
				return nil, pqerr.New(pqerr.KindPrivacyBlocked, "engine: formula firewall: "+reason)
			}
		}

		next, err := steps.Apply(t, step.Operation, deps)
		if err != nil {
			return nil, err
		}
		prov.combine(next, append([]table.Table{t}, depTables...)...)
		t = next

		e.emit(progress.Event{Kind: progress.KindStepComplete, QueryID: q.ID, Step: stepIndex, Operator: opName, Rows: t.RowCount()})
	}
	return t, nil
}

// resolveDeps resolves the other queries a merge/append step needs,
// recursing into Engine.Execute for each and sharing this run's session
// and provenance side table (spec §4.8 step 5: "merge/append recurse
// into dependencies using shared session and rebuild source-id tags").
func (e *Engine) resolveDeps(ctx context.Context, op query.Operation, path map[string]bool) (steps.Deps, []table.Table, error) {
	var ids []string
	switch op.Kind {
	case query.OpMerge:
		ids = []string{op.Merge.RightQuery}
	case query.OpAppend:
		ids = op.Append.QueryIDs
	default:
		return nil, nil, nil
	}

	deps := steps.Deps{}
	tables := make([]table.Table, 0, len(ids))
	for _, id := range ids {
		depQuery, ok := e.resolve(id)
		if !ok {
			return nil, nil, pqerr.New(pqerr.KindUnknownQuery, "engine: unresolved query dependency "+id)
		}
		depTable, _, err := e.execute(ctx, depQuery, Options{}, path)
		if err != nil {
			return nil, nil, err
		}
		deps[id] = depTable
		tables = append(tables, depTable)
	}
	return deps, tables, nil
}
