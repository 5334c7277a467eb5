// Package streaming implements the batch-at-a-time execution mode of
// spec §4.4: operator sequences whose per-batch behavior depends on at
// most a bounded window of prior input are compiled into a Pipeline and
// driven one batch at a time instead of materializing the full table.
package streaming

import (
	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/steps"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

// boundedKinds is the streamable operator set of spec §4.4: any other
// kind (sort_rows, group_by, distinct_rows, pivot, unpivot, merge,
// append, fill_down, ...) makes IsStreamable false and the sequence runs
// on the materializing path. streaming/extsort, streaming/extgroup and
// streaming/extmerge are separate external-memory sort_rows, group_by
// and merge operators; the engine does not call them.
var boundedKinds = map[query.OpKind]bool{
	query.OpSelectColumns:    true,
	query.OpRemoveColumns:    true,
	query.OpRenameColumn:     true,
	query.OpChangeType:       true,
	query.OpFilterRows:       true,
	query.OpAddColumn:        true,
	query.OpAddIndexColumn:   true,
	query.OpTransformColumns: true,
	query.OpTake:             true,
	query.OpSkip:             true,
	query.OpRemoveRows:       true,
	query.OpPromoteHeaders:   true,
}

// IsStreamable reports whether every operator in ops belongs to the
// bounded-window set and can therefore run through a Pipeline without
// falling back to the materializing path.
func IsStreamable(ops []query.Operation) bool {
	for _, op := range ops {
		if !boundedKinds[op.Kind] {
			return false
		}
	}
	return true
}

// stage is one compiled pipeline position. apply consumes rows under the
// given input schema and returns the schema rows should be interpreted
// under downstream, the transformed rows, and whether downstream
// producers should stop (take's exhaustion signal).
type stage interface {
	apply(cols []table.Column, rows [][]value.Value) ([]table.Column, [][]value.Value, bool, error)
}

// Pipeline is a compiled streamable operator sequence. TransformBatch
// implements spec §4.4's transform_batch(rows) -> {rows, done}; calling
// it with an empty batch performs the implicit flush.
type Pipeline struct {
	cols   []table.Column
	stages []stage
}

// Compile builds a Pipeline for ops over the given input schema. It
// fails if ops is not streamable (callers should check IsStreamable
// first, or rely on this error to fall back to the materializing path).
func Compile(cols []table.Column, ops []query.Operation) (*Pipeline, error) {
	if !IsStreamable(ops) {
		return nil, pqerr.New(pqerr.KindInvalidArgument, "streaming: operator sequence is not streamable")
	}
	p := &Pipeline{cols: cols}
	for _, op := range ops {
		st, err := compileStage(op)
		if err != nil {
			return nil, err
		}
		p.stages = append(p.stages, st)
	}
	return p, nil
}

// TransformBatch runs rows through every compiled stage in order. A
// stage that exhausts its quota (take) truncates rows and marks done;
// later stages still process the truncated rows before the call
// returns, matching "done=true means downstream producers should stop"
// rather than "discard what's already been produced."
func (p *Pipeline) TransformBatch(rows [][]value.Value) ([][]value.Value, bool, error) {
	cur := rows
	cols := p.cols
	done := false
	for _, st := range p.stages {
		newCols, out, stDone, err := st.apply(cols, cur)
		if err != nil {
			return nil, false, err
		}
		cols = newCols
		cur = out
		if stDone {
			done = true
		}
	}
	p.cols = cols
	return cur, done, nil
}

// Columns reports the pipeline's current output schema, which only
// stabilizes once a promote_headers stage (if any) has consumed its
// header row.
func (p *Pipeline) Columns() []table.Column { return p.cols }

func compileStage(op query.Operation) (stage, error) {
	switch op.Kind {
	case query.OpAddIndexColumn:
		return &indexStage{op: op.AddIndexColumn}, nil
	case query.OpTake:
		return &takeStage{remaining: int64(op.Take.N)}, nil
	case query.OpSkip:
		return &skipStage{toSkip: int64(op.Skip.N)}, nil
	case query.OpRemoveRows:
		return &removeRowsStage{op: op.RemoveRows}, nil
	case query.OpPromoteHeaders:
		return &promoteHeadersStage{}, nil
	default:
		return &tableOpStage{op: op}, nil
	}
}

// tableOpStage covers every stateless bounded-window operator
// (select/remove/rename/change_type/filter_rows/add_column/
// transform_columns) by reusing the operator library one batch at a
// time: each batch is its own small table.Table.
type tableOpStage struct{ op query.Operation }

func (s *tableOpStage) apply(cols []table.Column, rows [][]value.Value) ([]table.Column, [][]value.Value, bool, error) {
	in := table.New(cols, rows)
	out, err := steps.Apply(in, s.op, nil)
	if err != nil {
		return nil, nil, false, err
	}
	return out.Columns(), rowsOf(out), false, nil
}

func rowsOf(t table.Table) [][]value.Value {
	rows := make([][]value.Value, 0, t.RowCount())
	t.IterRows(func(row []value.Value) bool {
		rows = append(rows, row)
		return true
	})
	return rows
}

// indexStage implements add_index_column across batches: the running
// index must continue from where the previous batch left off rather
// than resetting to Initial every call.
type indexStage struct {
	op      *query.AddIndexColumnOp
	next    int64
	started bool
	outCols []table.Column
}

func (s *indexStage) apply(cols []table.Column, rows [][]value.Value) ([]table.Column, [][]value.Value, bool, error) {
	if !s.started {
		s.next = s.op.Initial
		s.started = true
		s.outCols = append(append([]table.Column{}, cols...), table.Column{Name: s.op.Name, Type: table.TypeNumber})
	}
	increment := s.op.Increment
	if increment == 0 {
		increment = 1
	}
	out := make([][]value.Value, len(rows))
	for i, row := range rows {
		out[i] = append(append([]value.Value{}, row...), value.Number(float64(s.next)))
		s.next += increment
	}
	return s.outCols, out, false, nil
}

// takeStage implements take across batches: once the quota is consumed
// it reports done so the driver stops requesting input.
type takeStage struct{ remaining int64 }

func (s *takeStage) apply(cols []table.Column, rows [][]value.Value) ([]table.Column, [][]value.Value, bool, error) {
	if s.remaining <= 0 {
		return cols, nil, true, nil
	}
	if int64(len(rows)) >= s.remaining {
		out := rows[:s.remaining]
		s.remaining = 0
		return cols, out, true, nil
	}
	s.remaining -= int64(len(rows))
	return cols, rows, false, nil
}

// skipStage implements skip across batches: the skip count is consumed
// from however many leading batches it takes.
type skipStage struct{ toSkip int64 }

func (s *skipStage) apply(cols []table.Column, rows [][]value.Value) ([]table.Column, [][]value.Value, bool, error) {
	if s.toSkip >= int64(len(rows)) {
		s.toSkip -= int64(len(rows))
		return cols, nil, false, nil
	}
	out := rows[s.toSkip:]
	s.toSkip = 0
	return cols, out, false, nil
}

// removeRowsStage implements remove_rows across batches by tracking the
// global row position seen so far, since Offset/Count address the whole
// stream rather than a single batch.
type removeRowsStage struct {
	op  *query.RemoveRowsOp
	pos int64
}

func (s *removeRowsStage) apply(cols []table.Column, rows [][]value.Value) ([]table.Column, [][]value.Value, bool, error) {
	start := int64(s.op.Offset)
	end := start + int64(s.op.Count)
	out := make([][]value.Value, 0, len(rows))
	for _, row := range rows {
		if s.pos < start || s.pos >= end {
			out = append(out, row)
		}
		s.pos++
	}
	return cols, out, false, nil
}

// promoteHeadersStage implements promote_headers' pipeline splice: the
// first row it ever sees across the whole stream becomes the header;
// every batch after that (including the rest of the first one) passes
// through under the derived schema untouched.
type promoteHeadersStage struct {
	done    bool
	outCols []table.Column
}

func (s *promoteHeadersStage) apply(cols []table.Column, rows [][]value.Value) ([]table.Column, [][]value.Value, bool, error) {
	if s.done {
		return s.outCols, rows, false, nil
	}
	if len(rows) == 0 {
		return cols, nil, false, nil
	}
	header := rows[0]
	names := make([]string, len(header))
	for i, v := range header {
		names[i] = v.String()
	}
	names = table.MakeUniqueColumnNames(names)
	outCols := make([]table.Column, len(cols))
	for i, c := range cols {
		outCols[i] = table.Column{Name: names[i], Type: c.Type}
	}
	s.outCols = outCols
	s.done = true
	return outCols, rows[1:], false, nil
}
