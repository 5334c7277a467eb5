// Package testconn provides scriptable fake connectors used by engine,
// cache, and refresh orchestrator unit tests (spec §8 scenarios 5 and 6
// need an injectable clock and a read counter, neither of which a real
// connector can provide deterministically).
package testconn

import (
	"context"
	"sync/atomic"

	"github.com/sqldef/powerquery/connector"
	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/table"
)

const ID = "test"

// Script is a scriptable connector: each Execute call invokes Load and
// bumps ReadCount, so tests can assert on cache hit/miss behavior
// (spec §8 scenario 5) without a real I/O round trip.
type Script struct {
	Load      func() (table.Table, error)
	State     func() connector.SourceState
	ReadCount int64
	Perm      string
}

func New(load func() (table.Table, error)) *Script {
	return &Script{Load: load, Perm: "test"}
}

func (s *Script) ID() string             { return ID }
func (s *Script) PermissionKind() string { return s.Perm }

func (s *Script) CacheKey(req connector.Request) (any, error) {
	if name, ok := req.Params.(string); ok {
		return map[string]any{"kind": "test", "name": name}, nil
	}
	return map[string]any{"kind": "test"}, nil
}

func (s *Script) Execute(ctx context.Context, req connector.Request, host connector.Host) (connector.Result, error) {
	select {
	case <-ctx.Done():
		return connector.Result{}, pqerr.Wrap(pqerr.KindCancelled, "testconn: execute cancelled", ctx.Err())
	default:
	}
	atomic.AddInt64(&s.ReadCount, 1)
	t, err := s.Load()
	if err != nil {
		return connector.Result{}, pqerr.Wrap(pqerr.KindConnectorFailure, "testconn: load failed", err)
	}
	meta := connector.ResultMeta{RowCountKnown: true}
	if s.State != nil {
		meta.SourceState = s.State()
	}
	return connector.Result{Table: t, Meta: meta}, nil
}

func (s *Script) GetSourceState(ctx context.Context, req connector.Request, host connector.Host, known connector.KnownState) (connector.SourceState, error) {
	if s.State == nil {
		return connector.SourceState{}, nil
	}
	return s.State(), nil
}

// Reads reports how many times Execute actually ran Load, for
// scenario-5-style "read counter" assertions.
func (s *Script) Reads() int64 { return atomic.LoadInt64(&s.ReadCount) }

var _ connector.Connector = (*Script)(nil)
var _ connector.SourceStater = (*Script)(nil)
