// Package extmerge implements the external-memory merge (join) of spec
// §4.5: a streaming hash-join that partitions the build (right) side into
// spilled buckets by composite key hash, then probes the left side
// partition-by-partition, so memory is bounded to one partition at a
// time instead of the whole right side. Below the spill threshold it
// delegates straight to steps.Apply's in-memory merge, the same
// equi-join semantics (spec §4.3) including comparer handling; only flat
// join mode is supported here since nested join mode produces
// value.Table cells, and those cannot round-trip through a spill file
// (see value.Value.MarshalBinary's own restriction) — a nested merge
// always takes the in-memory materializing path regardless of input
// size, a scope decision recorded in DESIGN.md.
package extmerge

import (
	"io"
	"strings"

	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/progress"
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/steps"
	"github.com/sqldef/powerquery/streaming"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

// RowSource mirrors extsort/extgroup's pull iterator.
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

// Options configures the external merge.
type Options struct {
	// SpillThreshold: once the right side grows past this many rows, the
	// build side is partitioned to disk instead of kept as one in-memory
	// hash table.
	SpillThreshold int
	NumBuckets     int
	Spiller        streaming.Spiller
	Progress       progress.Emitter
}

const (
	defaultSpillThreshold = 10000
	defaultNumBuckets     = 16
)

// Merge joins left against right per op, falling back to steps.Apply's
// in-memory merge when right fits under the spill threshold or op
// requests nested join mode.
func Merge(leftCols []table.Column, leftSrc RowSource, rightCols []table.Column, rightSrc RowSource, op *query.MergeOp, opts Options) (table.Table, error) {
	if len(op.LeftKeys) != len(op.RightKeys) {
		return nil, pqerr.New(pqerr.KindInvalidJoin, "merge: leftKeys and rightKeys must be the same length")
	}

	threshold := opts.SpillThreshold
	if threshold <= 0 {
		threshold = defaultSpillThreshold
	}
	numBuckets := opts.NumBuckets
	if numBuckets <= 0 {
		numBuckets = defaultNumBuckets
	}
	spiller := opts.Spiller
	if spiller == nil {
		spiller = streaming.MemSpiller{}
	}

	rightRows, pushback, overflow, err := drainUpTo(rightSrc, threshold)
	if err != nil {
		return nil, err
	}
	leftRows, err := drainAll(leftSrc)
	if err != nil {
		return nil, err
	}

	if !overflow || op.JoinMode == query.JoinNested {
		leftTable := table.New(leftCols, leftRows)
		rest, err := drainAll(pushback)
		if err != nil {
			return nil, err
		}
		rightTable := table.New(rightCols, append(rightRows, rest...))
		return steps.Apply(leftTable, query.Operation{Kind: query.OpMerge, Merge: op}, steps.Deps{op.RightQuery: rightTable})
	}

	progress.Emit(opts.Progress, progress.Event{Kind: progress.KindStreamSpill, Operator: "merge"})
	return partitionedJoin(leftCols, leftRows, rightCols, rightRows, pushback, op, spiller, numBuckets)
}

func drainAll(src RowSource) ([][]value.Value, error) {
	var rows [][]value.Value
	for {
		row, err := src.Next()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}

// pushbackSource replays one peeked row before falling through to src,
// so drainUpTo's overflow probe never loses a row.
type pushbackSource struct {
	peeked []value.Value
	have   bool
	src    RowSource
}

func (p *pushbackSource) Next() ([]value.Value, error) {
	if p.have {
		p.have = false
		return p.peeked, nil
	}
	return p.src.Next()
}

// drainUpTo reads up to n rows and returns a RowSource covering whatever
// comes after them (including, if present, the one extra row read to
// detect overflow).
func drainUpTo(src RowSource, n int) (rows [][]value.Value, rest RowSource, overflow bool, err error) {
	for len(rows) < n {
		row, err := src.Next()
		if err == io.EOF {
			return rows, &pushbackSource{src: src}, false, nil
		}
		if err != nil {
			return nil, nil, false, err
		}
		rows = append(rows, row)
	}
	next, err := src.Next()
	if err == io.EOF {
		return rows, &pushbackSource{src: src}, false, nil
	}
	if err != nil {
		return nil, nil, false, err
	}
	return rows, &pushbackSource{peeked: next, have: true, src: src}, true, nil
}

func partitionedJoin(
	leftCols []table.Column, leftRows [][]value.Value,
	rightCols []table.Column, rightHead [][]value.Value, rightTail RowSource,
	op *query.MergeOp, spiller streaming.Spiller, numBuckets int,
) (table.Table, error) {
	leftIdx, err := colIndex(leftCols, op.LeftKeys)
	if err != nil {
		return nil, err
	}
	rightIdx, err := colIndex(rightCols, op.RightKeys)
	if err != nil {
		return nil, err
	}
	comparers := resolveComparers(op, len(leftIdx))

	leftWriters, err := newBucketWriters(spiller, numBuckets)
	if err != nil {
		return nil, err
	}
	rightWriters, err := newBucketWriters(spiller, numBuckets)
	if err != nil {
		return nil, err
	}

	for _, row := range leftRows {
		b := bucketFor(row, leftIdx, comparers, numBuckets)
		if err := leftWriters[b].WriteRow(row); err != nil {
			return nil, err
		}
	}
	for _, row := range rightHead {
		b := bucketFor(row, rightIdx, comparers, numBuckets)
		if err := rightWriters[b].WriteRow(row); err != nil {
			return nil, err
		}
	}
	for {
		row, err := rightTail.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		b := bucketFor(row, rightIdx, comparers, numBuckets)
		if err := rightWriters[b].WriteRow(row); err != nil {
			return nil, err
		}
	}

	outCols, err := mergedSchema(leftCols, rightCols, op, rightIdx)
	if err != nil {
		return nil, err
	}

	var allRows [][]value.Value
	for i := 0; i < numBuckets; i++ {
		lr, err := leftWriters[i].Close()
		if err != nil {
			return nil, err
		}
		rr, err := rightWriters[i].Close()
		if err != nil {
			return nil, err
		}
		bl, err := readAll(lr)
		if err != nil {
			return nil, err
		}
		br, err := readAll(rr)
		if err != nil {
			return nil, err
		}
		leftTable := table.New(leftCols, bl)
		rightTable := table.New(rightCols, br)
		out, err := steps.Apply(leftTable, query.Operation{Kind: query.OpMerge, Merge: op}, steps.Deps{op.RightQuery: rightTable})
		if err != nil {
			return nil, err
		}
		out.IterRows(func(row []value.Value) bool {
			allRows = append(allRows, row)
			return true
		})
	}
	return table.New(outCols, allRows), nil
}

func readAll(r streaming.RunReader) ([][]value.Value, error) {
	defer r.Close()
	var rows [][]value.Value
	for {
		row, err := r.ReadRow()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
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

func colIndex(cols []table.Column, names []string) ([]int, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		j := -1
		for c, col := range cols {
			if col.Name == name {
				j = c
				break
			}
		}
		if j < 0 {
			return nil, pqerr.UnknownColumn(name)
		}
		idx[i] = j
	}
	return idx, nil
}

func resolveComparers(op *query.MergeOp, n int) []query.Comparer {
	out := make([]query.Comparer, n)
	if len(op.Comparers) == n {
		copy(out, op.Comparers)
		return out
	}
	var def query.Comparer
	if op.Comparer != nil {
		def = *op.Comparer
	}
	for i := range out {
		out[i] = def
	}
	return out
}

func bucketFor(row []value.Value, idx []int, comparers []query.Comparer, numBuckets int) int {
	vs := make([]value.Value, len(idx))
	for i, j := range idx {
		vs[i] = normalizeForComparer(row[j], comparers[i])
	}
	k := value.CompositeKey(vs...)
	h := hashKey(k)
	b := int(h) % numBuckets
	if b < 0 {
		b += numBuckets
	}
	return b
}

func normalizeForComparer(v value.Value, c query.Comparer) value.Value {
	if v.Kind() != value.KindText {
		return v
	}
	caseInsensitive := c.Name == "ordinalIgnoreCase" || (c.CaseSensitive != nil && !*c.CaseSensitive)
	if !caseInsensitive {
		return v
	}
	s, _ := v.AsText()
	return value.Text(strings.ToLower(s))
}

func hashKey(s string) int64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return int64(h)
}

// mergedSchema mirrors steps/join.go's flat-mode column naming so the
// partitioned path's output schema matches the in-memory fallback's
// exactly.
func mergedSchema(leftCols, rightCols []table.Column, op *query.MergeOp, rightIdx []int) ([]table.Column, error) {
	rightKeySet := map[int]bool{}
	for _, j := range rightIdx {
		rightKeySet[j] = true
	}
	leftNames := map[string]bool{}
	for _, c := range leftCols {
		leftNames[c.Name] = true
	}
	var rightCarry []table.Column
	for i, c := range rightCols {
		if rightKeySet[i] && leftNames[c.Name] {
			continue
		}
		rightCarry = append(rightCarry, c)
	}
	names := table.MakeUniqueColumnNames(append(table.ColumnNames(leftCols), table.ColumnNames(rightCarry)...))
	out := make([]table.Column, len(leftCols)+len(rightCarry))
	for i, c := range leftCols {
		out[i] = table.Column{Name: names[i], Type: c.Type}
	}
	for i, c := range rightCarry {
		out[len(leftCols)+i] = table.Column{Name: names[len(leftCols)+i], Type: c.Type}
	}
	return out, nil
}
