package engine

import (
	"context"

	"github.com/sqldef/powerquery/connector"
	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/progress"
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
)

// loadSource implements spec §4.8 step 4: resolve the registered
// connector, acquire permission and credentials through the session (so
// a second query sharing the same connector/key in this run doesn't
// re-prompt), probe get_source_state before reading when the connector
// supports it, then execute.
func (e *Engine) loadSource(ctx context.Context, q *query.Query, fold *foldResult) (table.Table, connector.SourceState, error) {
	e.emit(progress.Event{Kind: progress.KindSourceStart, QueryID: q.ID})

	connectorID, err := connectorIDFor(q.Source.Kind)
	if err != nil {
		return nil, connector.SourceState{}, err
	}
	conn, ok := e.Connectors[connectorID]
	if !ok {
		return nil, connector.SourceState{}, pqerr.New(pqerr.KindConnectorFailure, "engine: no connector registered for "+connectorID)
	}
	req, err := buildRequest(connectorID, q.Source, fold)
	if err != nil {
		return nil, connector.SourceState{}, err
	}

	cacheKey, err := conn.CacheKey(req)
	if err != nil {
		cacheKey = req
	}
	if e.Session != nil {
		if _, err := e.Session.Authorize(connectorID, cacheKey, conn.PermissionKind(), map[string]any{"queryId": q.ID}); err != nil {
			return nil, connector.SourceState{}, err
		}
	}

	var creds *connector.Credentials
	if e.Session != nil {
		creds, err = e.Session.Credentials(ctx, connectorID, cacheKey, req)
		if err != nil && !pqerr.Is(err, pqerr.KindCredentialUnavailable) {
			return nil, connector.SourceState{}, err
		}
	}
	host := e.hostFor(creds)

	if stater, ok := conn.(connector.SourceStater); ok {
		if _, err := stater.GetSourceState(ctx, req, host, connector.KnownState{}); err != nil {
			return nil, connector.SourceState{}, pqerr.Wrap(pqerr.KindConnectorFailure, "engine: source state probe failed", err)
		}
	}

	result, err := conn.Execute(ctx, req, host)
	if err != nil {
		return nil, connector.SourceState{}, pqerr.Wrap(pqerr.KindConnectorFailure, "engine: connector execute failed for "+connectorID, err)
	}

	e.emit(progress.Event{Kind: progress.KindSourceComplete, QueryID: q.ID, Rows: result.Table.RowCount()})
	return result.Table, result.Meta.SourceState, nil
}

func (e *Engine) hostFor(creds *connector.Credentials) connector.Host {
	if e.Session != nil {
		return e.Session.Host(creds)
	}
	return connector.Host{Credentials: creds}
}
