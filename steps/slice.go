package steps

import (
	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

func take(t table.Table, op *query.TakeOp) (table.Table, error) {
	if op.N < 0 {
		return nil, pqerr.New(pqerr.KindInvalidArgument, "take: negative count")
	}
	return t.Head(op.N), nil
}

func skip(t table.Table, op *query.SkipOp) (table.Table, error) {
	if op.N < 0 {
		return nil, pqerr.New(pqerr.KindInvalidArgument, "skip: negative count")
	}
	rows := allRows(t)
	n := op.N
	if n > len(rows) {
		n = len(rows)
	}
	return table.New(t.Columns(), rows[n:]), nil
}

func removeRows(t table.Table, op *query.RemoveRowsOp) (table.Table, error) {
	if op.Offset < 0 || op.Count < 0 {
		return nil, pqerr.New(pqerr.KindInvalidArgument, "remove_rows: negative offset/count")
	}
	rows := allRows(t)
	start := op.Offset
	if start > len(rows) {
		start = len(rows)
	}
	end := start + op.Count
	if end > len(rows) {
		end = len(rows)
	}
	out := make([][]value.Value, 0, len(rows)-(end-start))
	out = append(out, rows[:start]...)
	out = append(out, rows[end:]...)
	return table.New(t.Columns(), out), nil
}
