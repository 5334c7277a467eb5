// Package extsort implements the external-memory sort of spec §4.5: when
// a streamable sequence contains sort_rows, the pipeline cannot hold the
// whole table in memory, so input is partitioned into sorted runs of at
// most MaxInMemoryRows, each spilled through a streaming.Spiller, and
// merged back with a k-way merge once every run is on disk. The in-memory
// comparator is the exact one steps/sort.go uses (value.Less, stable
// multi-key, nulls-first/last per key), so a query that switches between
// the streaming and materializing execution paths sees identical
// ordering (spec I3).
package extsort

import (
	"container/heap"
	"io"

	"github.com/sqldef/powerquery/progress"
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/streaming"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

// RowSource is a pull-based row iterator, the same shape the streaming
// pipeline already consumes batches through; Next returns io.EOF once
// exhausted.
type RowSource interface {
	Next() ([]value.Value, error)
}

// SliceSource adapts a plain slice to RowSource, used by tests and by
// callers that already materialized a batch.
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

// Options configures the external sort.
type Options struct {
	MaxInMemoryRows int
	Spiller         streaming.Spiller
	Progress        progress.Emitter
}

const defaultMaxInMemoryRows = 10000

// Sort reads every row from src, sorts it by sortBy, and returns a
// RowSource over the fully sorted output. If the input fits within a
// single run, no spill ever happens and the sort is equivalent to
// steps/sort.go's in-memory sortRows.
func Sort(sortBy []query.SortKey, cols []table.Column, src RowSource, opts Options) (RowSource, error) {
	idx := make([]int, len(sortBy))
	for i, k := range sortBy {
		j := -1
		for c, col := range cols {
			if col.Name == k.Column {
				j = c
				break
			}
		}
		idx[i] = j
	}
	less := comparator(sortBy, idx)

	maxRows := opts.MaxInMemoryRows
	if maxRows <= 0 {
		maxRows = defaultMaxInMemoryRows
	}
	spiller := opts.Spiller
	if spiller == nil {
		spiller = streaming.MemSpiller{}
	}

	var runs []streaming.RunReader
	var pos int64
	spilled := false
	for {
		batch, batchPositions, err := readBatch(src, maxRows, &pos)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		sortBatch(batch, batchPositions, less)
		w, err := spiller.NewRun()
		if err != nil {
			return nil, err
		}
		for i, row := range batch {
			if err := w.WriteRow(taggedRow(row, batchPositions[i])); err != nil {
				return nil, err
			}
		}
		r, err := w.Close()
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
		if len(runs) > 1 && !spilled {
			spilled = true
			progress.Emit(opts.Progress, progress.Event{Kind: progress.KindStreamSpill, Operator: "sort_rows"})
		}
	}

	return newMergeSource(runs, less), nil
}

func readBatch(src RowSource, n int, pos *int64) ([][]value.Value, []int64, error) {
	var rows [][]value.Value
	var positions []int64
	for len(rows) < n {
		row, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, row)
		positions = append(positions, *pos)
		*pos++
	}
	return rows, positions, nil
}

func sortBatch(rows [][]value.Value, positions []int64, less func(a, b []value.Value, posA, posB int64) bool) {
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	value.SortStable(order, func(i, j int) bool {
		return less(rows[order[i]], rows[order[j]], positions[order[i]], positions[order[j]])
	})
	sorted := make([][]value.Value, len(rows))
	sortedPos := make([]int64, len(rows))
	for i, o := range order {
		sorted[i] = rows[o]
		sortedPos[i] = positions[o]
	}
	copy(rows, sorted)
	copy(positions, sortedPos)
}

// comparator builds the same multi-key, nulls-aware, stable-tie-broken
// predicate steps/sort.go applies in-memory; the final tiebreaker here is
// an explicit input position (untagged in the in-memory path, where
// sort.SliceStable's own stability already provides it).
func comparator(sortBy []query.SortKey, idx []int) func(a, b []value.Value, posA, posB int64) bool {
	return func(a, b []value.Value, posA, posB int64) bool {
		for i, k := range sortBy {
			col := idx[i]
			if col < 0 {
				continue
			}
			va, vb := a[col], b[col]
			nullsFirst := k.Nulls == query.NullsFirst
			less := value.Less(va, vb, nullsFirst)
			greater := value.Less(vb, va, nullsFirst)
			if !less && !greater {
				continue
			}
			if k.Direction == query.Desc {
				return greater
			}
			return less
		}
		return posA < posB
	}
}

// taggedRow appends the row's original input position as a trailing
// cell so a k-way merge across spilled runs can still break ties by
// input order once everything is interleaved.
func taggedRow(row []value.Value, pos int64) []value.Value {
	return append(append([]value.Value{}, row...), value.Number(float64(pos)))
}

func untagRow(row []value.Value) ([]value.Value, int64) {
	n := len(row) - 1
	pos, _ := row[n].AsNumber()
	return row[:n], int64(pos)
}

type mergeItem struct {
	row    []value.Value
	pos    int64
	runIdx int
}

type mergeHeap struct {
	items []mergeItem
	less  func(a, b []value.Value, posA, posB int64) bool
}

func (h *mergeHeap) Len() int { return len(h.items) }
func (h *mergeHeap) Less(i, j int) bool {
	return h.less(h.items[i].row, h.items[j].row, h.items[i].pos, h.items[j].pos)
}
func (h *mergeHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *mergeHeap) Push(x any)    { h.items = append(h.items, x.(mergeItem)) }
func (h *mergeHeap) Pop() any {
	old := h.items
	n := len(old)
	it := old[n-1]
	h.items = old[:n-1]
	return it
}

// mergeSource performs the k-way merge lazily: each Next() call pops the
// smallest head row across every still-open run and refills from that
// run, so at most one row per run is held in memory at a time.
type mergeSource struct {
	runs []streaming.RunReader
	h    *mergeHeap
	err  error
}

func newMergeSource(runs []streaming.RunReader, less func(a, b []value.Value, posA, posB int64) bool) *mergeSource {
	m := &mergeSource{runs: runs, h: &mergeHeap{less: less}}
	for i, r := range runs {
		item, ok, err := m.read(i, r)
		if err != nil {
			m.err = err
			continue
		}
		if ok {
			m.h.items = append(m.h.items, item)
		}
	}
	heap.Init(m.h)
	return m
}

// read pulls the next row from run i, untagging its position marker.
// ok is false once the run is exhausted, at which point its backing
// storage is released.
func (m *mergeSource) read(runIdx int, r streaming.RunReader) (mergeItem, bool, error) {
	row, err := r.ReadRow()
	if err == io.EOF {
		_ = r.Close() // best-effort temp file cleanup; exhaustion itself is not an error
		return mergeItem{}, false, nil
	}
	if err != nil {
		return mergeItem{}, false, err
	}
	untagged, pos := untagRow(row)
	return mergeItem{row: untagged, pos: pos, runIdx: runIdx}, true, nil
}

func (m *mergeSource) fill(runIdx int, r streaming.RunReader) {
	item, ok, err := m.read(runIdx, r)
	if err != nil {
		if m.err == nil {
			m.err = err
		}
		return
	}
	if ok {
		heap.Push(m.h, item)
	}
}

func (m *mergeSource) Next() ([]value.Value, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.h.Len() == 0 {
		return nil, io.EOF
	}
	top := heap.Pop(m.h).(mergeItem)
	m.fill(top.runIdx, m.runs[top.runIdx])
	if m.err != nil {
		return nil, m.err
	}
	return top.row, nil
}
