package cache

import (
	"github.com/sqldef/powerquery/connector"
	"github.com/sqldef/powerquery/table"
)

// Entry is one cached result, spec §4.7's { value, created_at, ttl_ms }
// plus the source states needed to validate it without re-executing.
type Entry struct {
	Value     table.Table
	CreatedAt int64 // unix millis
	TTLMillis int64 // 0 means "never expires on TTL alone"

	// SourceStates carries, per source identity folded into the key, the
	// connector.SourceState observed when the entry was written, so a
	// source-state validation pass can re-probe and compare.
	SourceStates map[string]connector.SourceState
}

// Store is the storage backend a Manager sits on top of. Implementations
// must treat Get on a missing key as (Entry{}, false, nil), never an
// error; a deserialize failure is reported as a pqerr.KindCacheCorruption
// error so the Manager can delete-and-miss instead of failing the query.
type Store interface {
	Get(key Key) (Entry, bool, error)
	Set(key Key, entry Entry) error
	Delete(key Key) error
}
