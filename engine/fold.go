package engine

import (
	"github.com/sqldef/powerquery/connector/sqlconn"
	"github.com/sqldef/powerquery/folding"
	"github.com/sqldef/powerquery/folding/odatafold"
	"github.com/sqldef/powerquery/folding/sqlfold"
	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/query"
)

func sqlDialectFor(d string) (sqlfold.Dialect, error) {
	switch sqlconn.Dialect(d) {
	case sqlconn.Postgres:
		return sqlfold.Postgres, nil
	case sqlconn.MySQL:
		return sqlfold.MySQL, nil
	case sqlconn.SQLServer:
		return sqlfold.SQLServer, nil
	case sqlconn.SQLite:
		return sqlfold.SQLite, nil
	default:
		return 0, pqerr.New(pqerr.KindInvalidArgument, "engine: unknown sql dialect "+d)
	}
}

// planFold builds and walks the folding plan for q's source, when the
// source kind supports folding and the engine has it enabled (spec §4.8
// step 3). A source kind with no folding planner (Range/Table/Csv/...)
// always reports folding.Local with an empty plan.
func (e *Engine) planFold(q *query.Query) (folding.Plan, *foldResult, error) {
	if !e.FoldingEnabled {
		return folding.Plan{Type: folding.Local}, nil, nil
	}

	switch q.Source.Kind {
	case query.SourceDatabase:
		d := q.Source.Database
		dialect, err := sqlDialectFor(d.Dialect)
		if err != nil {
			return folding.Plan{}, nil, err
		}
		resolve := func(rightQueryID string) (string, bool) {
			dep, ok := e.resolve(rightQueryID)
			if !ok || dep.Source.Kind != query.SourceDatabase {
				return "", false
			}
			return dep.Source.Database.Sql, dep.Source.Database.ConnectionID == d.ConnectionID
		}
		b := sqlfold.New(dialect, d.Sql, resolve)
		plan := folding.Walk(q.Steps, b)
		if plan.Type == folding.Local {
			return plan, nil, nil
		}
		sql, args := b.Render()
		return plan, &foldResult{sql: sql, args: args}, nil

	case query.SourceOdata:
		b := odatafold.New()
		plan := folding.Walk(q.Steps, b)
		if plan.Type == folding.Local {
			return plan, nil, nil
		}
		return plan, odataFoldResult(b), nil

	default:
		return folding.Plan{Type: folding.Local}, nil, nil
	}
}
