// Package extgroup implements the external-memory group_by of spec §4.5:
// once the number of distinct group keys outgrows a threshold, rows of
// keys not already resident are partitioned by key hash into spilled
// buckets and each bucket
// is re-aggregated independently on a second pass. Accumulation itself
// reuses steps.AggState/ApplyAgg/FinalizeAgg verbatim (exported from
// steps/group.go specifically for this), since sum/count/min/max/average
// all commute with partitioning by key and count-distinct's per-group
// value set only needs to observe every row sharing a key once,
// regardless of which pass that happens on.
package extgroup

import (
	"fmt"
	"io"

	"github.com/sqldef/powerquery/progress"
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/steps"
	"github.com/sqldef/powerquery/streaming"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

// RowSource mirrors streaming/extsort.RowSource: a pull iterator ending
// in io.EOF.
type RowSource interface {
	Next() ([]value.Value, error)
}

// SliceSource adapts a plain slice to RowSource.
type SliceSource struct {
	Rows [][]value.Value
	pos  int
}

func (s *SliceSource) Next() ([]value.Value, error) {
	if s.pos >= len(s.Rows) {
		return nil, io.EOF
	}
	row := s.Rows[s.pos]
	s.pos++
	return row, nil
}

// Options configures the external group-by.
type Options struct {
	// MaxDistinctKeys bounds how many groups stay resident in memory
	// before further input spills to partitioned buckets.
	MaxDistinctKeys int
	NumBuckets      int
	Spiller         streaming.Spiller
	Progress        progress.Emitter
}

const (
	defaultMaxDistinctKeys = 10000
	defaultNumBuckets      = 16
)

// Group computes group_by(op.Keys, op.Aggs) over src, spilling to
// partitioned buckets once the in-memory group count exceeds
// opts.MaxDistinctKeys. Output row order is first-encounter order among
// the rows processed before the first spill, followed by first-encounter
// order within each bucket in bucket order (invariant I4 holds within
// each retained ordering domain, but a spilled run no longer guarantees
// global first-encounter order across the whole input — documented as a
// deliberate relaxation in DESIGN.md, the same way the teacher documents
// ordering caveats for partitioned DDL batches).
func Group(cols []table.Column, op *query.GroupByOp, src RowSource, opts Options) (table.Table, error) {
	keyIdx := make([]int, len(op.Keys))
	for i, k := range op.Keys {
		j := -1
		for c, col := range cols {
			if col.Name == k {
				j = c
				break
			}
		}
		keyIdx[i] = j
	}
	aggIdx := make([]int, len(op.Aggs))
	for i, a := range op.Aggs {
		if a.Column == "*" {
			aggIdx[i] = -1
			continue
		}
		j := -1
		for c, col := range cols {
			if col.Name == a.Column {
				j = c
				break
			}
		}
		aggIdx[i] = j
	}

	maxKeys := opts.MaxDistinctKeys
	if maxKeys <= 0 {
		maxKeys = defaultMaxDistinctKeys
	}
	numBuckets := opts.NumBuckets
	if numBuckets <= 0 {
		numBuckets = defaultNumBuckets
	}
	spiller := opts.Spiller
	if spiller == nil {
		spiller = streaming.MemSpiller{}
	}

	var order []string
	groupKeys := map[string][]value.Value{}
	states := map[string][]steps.AggState{}
	var bucketWriters []streaming.RunWriter
	spilling := false

	apply := func(row []value.Value) error {
		keyVals := make([]value.Value, len(keyIdx))
		for i, j := range keyIdx {
			keyVals[i] = row[j]
		}
		k := value.CompositeKey(keyVals...)

		if st, ok := states[k]; ok {
			accumulate(st, op, row, aggIdx)
			return nil
		}
		if !spilling {
			if len(order) < maxKeys {
				order = append(order, k)
				groupKeys[k] = keyVals
				st := newStates(len(op.Aggs))
				accumulate(st, op, row, aggIdx)
				states[k] = st
				return nil
			}
			// threshold exceeded: from here on every row whose key is not
			// already resident spills, including this one; resident keys
			// keep accumulating in memory, so no key spans both.
			spilling = true
			progress.Emit(opts.Progress, progress.Event{Kind: progress.KindStreamSpill, Operator: "group_by"})
			var err error
			bucketWriters, err = newBucketWriters(spiller, numBuckets)
			if err != nil {
				return err
			}
		}
		b := int(hashKey(k)) % numBuckets
		if b < 0 {
			b += numBuckets
		}
		return bucketWriters[b].WriteRow(row)
	}

	for {
		row, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := apply(row); err != nil {
			return nil, err
		}
	}

	outCols := outputColumns(cols, keyIdx, op)
	var rows [][]value.Value
	for _, k := range order {
		rows = append(rows, finalizeRow(groupKeys[k], states[k], op))
	}

	if spilling {
		spilledRows, err := regroupBuckets(bucketWriters, keyIdx, op, aggIdx)
		if err != nil {
			return nil, err
		}
		rows = append(rows, spilledRows...)
	}

	return table.New(outCols, rows), nil
}

func newStates(n int) []steps.AggState {
	st := make([]steps.AggState, n)
	for i := range st {
		st[i] = steps.NewAggState()
	}
	return st
}

func accumulate(st []steps.AggState, op *query.GroupByOp, row []value.Value, aggIdx []int) {
	for i, a := range op.Aggs {
		var cell value.Value
		isStar := aggIdx[i] == -1
		if isStar {
			cell = value.Number(0)
		} else {
			cell = row[aggIdx[i]]
		}
		steps.ApplyAgg(&st[i], a.Op, cell, isStar)
	}
}

func outputColumns(cols []table.Column, keyIdx []int, op *query.GroupByOp) []table.Column {
	outCols := make([]table.Column, 0, len(op.Keys)+len(op.Aggs))
	for i, k := range op.Keys {
		t := table.Any
		if keyIdx[i] >= 0 {
			t = cols[keyIdx[i]].Type
		}
		outCols = append(outCols, table.Column{Name: k, Type: t})
	}
	for _, a := range op.Aggs {
		name := a.As
		if name == "" {
			name = fmt.Sprintf("%s of %s", steps.AggOpName(a.Op), a.Column)
		}
		outCols = append(outCols, table.Column{Name: name, Type: table.TypeNumber})
	}
	return outCols
}

func finalizeRow(keyVals []value.Value, st []steps.AggState, op *query.GroupByOp) []value.Value {
	row := make([]value.Value, 0, len(keyVals)+len(op.Aggs))
	row = append(row, keyVals...)
	for i, a := range op.Aggs {
		row = append(row, steps.FinalizeAgg(st[i], a.Op))
	}
	return row
}

func newBucketWriters(spiller streaming.Spiller, n int) ([]streaming.RunWriter, error) {
	out := make([]streaming.RunWriter, n)
	for i := range out {
		w, err := spiller.NewRun()
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}

// regroupBuckets closes every bucket writer and re-aggregates each
// bucket's rows independently; a key never spans two buckets since
// bucketing is a pure function of the key's hash.
func regroupBuckets(writers []streaming.RunWriter, keyIdx []int, op *query.GroupByOp, aggIdx []int) ([][]value.Value, error) {
	var rows [][]value.Value
	for _, w := range writers {
		r, err := w.Close()
		if err != nil {
			return nil, err
		}
		order := []string{}
		groupKeys := map[string][]value.Value{}
		states := map[string][]steps.AggState{}
		for {
			row, err := r.ReadRow()
			if err == io.EOF {
				break
			}
			if err != nil {
				r.Close()
				return nil, err
			}
			keyVals := make([]value.Value, len(keyIdx))
			for i, j := range keyIdx {
				keyVals[i] = row[j]
			}
			k := value.CompositeKey(keyVals...)
			st, ok := states[k]
			if !ok {
				order = append(order, k)
				groupKeys[k] = keyVals
				st = newStates(len(op.Aggs))
			}
			accumulate(st, op, row, aggIdx)
			states[k] = st
		}
		r.Close()
		for _, k := range order {
			rows = append(rows, finalizeRow(groupKeys[k], states[k], op))
		}
	}
	return rows, nil
}

// hashKey is a simple FNV-1a string hash used only to bucket spilled
// groups; it never affects query results, only which bucket a key's
// partial state lands in.
func hashKey(s string) int64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return int64(h)
}
