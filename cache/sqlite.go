package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/sqldef/powerquery/connector"
	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

// SQLiteStore persists cache entries across process restarts, useful
// for a long-lived engine host. One row per key; the table body is
// stored as a sequence of length-prefixed value.Value.MarshalBinary
// cells, the same wire format streaming/spill.go uses.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) a cache database at path.
// Pass ":memory:" for an ephemeral store useful in tests.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite store: %w", err)
	}
	const ddl = `CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		ttl_millis INTEGER NOT NULL,
		columns TEXT NOT NULL,
		rows BLOB NOT NULL,
		source_states TEXT NOT NULL
	)`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: create cache_entries: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Get(key Key) (Entry, bool, error) {
	row := s.db.QueryRow(
		`SELECT created_at, ttl_millis, columns, rows, source_states FROM cache_entries WHERE key = ?`,
		string(key),
	)
	var createdAt, ttlMillis int64
	var columnsJSON, statesJSON string
	var rowsBlob []byte
	err := row.Scan(&createdAt, &ttlMillis, &columnsJSON, &rowsBlob, &statesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache: query cache_entries: %w", err)
	}

	var cols []table.Column
	if err := json.Unmarshal([]byte(columnsJSON), &cols); err != nil {
		return Entry{}, false, s.deleteCorrupt(key, "columns", err)
	}
	rows, err := decodeRows(rowsBlob, len(cols))
	if err != nil {
		return Entry{}, false, s.deleteCorrupt(key, "rows", err)
	}
	var states map[string]connector.SourceState
	if err := json.Unmarshal([]byte(statesJSON), &states); err != nil {
		return Entry{}, false, s.deleteCorrupt(key, "source_states", err)
	}

	return Entry{
		Value:        table.New(cols, rows),
		CreatedAt:    createdAt,
		TTLMillis:    ttlMillis,
		SourceStates: states,
	}, true, nil
}

// deleteCorrupt removes a key that failed to deserialize and reports it
// as KindCacheCorruption; the Manager downgrades this to a plain miss.
func (s *SQLiteStore) deleteCorrupt(key Key, field string, cause error) error {
	_ = s.Delete(key)
	return pqerr.Wrap(pqerr.KindCacheCorruption, fmt.Sprintf("cache: corrupt %s", field), cause)
}

func (s *SQLiteStore) Set(key Key, entry Entry) error {
	cols := entry.Value.Columns()
	columnsJSON, err := json.Marshal(cols)
	if err != nil {
		return fmt.Errorf("cache: marshal columns: %w", err)
	}
	rowsBlob, err := encodeRows(entry.Value)
	if err != nil {
		return fmt.Errorf("cache: marshal rows: %w", err)
	}
	statesJSON, err := json.Marshal(entry.SourceStates)
	if err != nil {
		return fmt.Errorf("cache: marshal source states: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO cache_entries (key, created_at, ttl_millis, columns, rows, source_states)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			created_at = excluded.created_at,
			ttl_millis = excluded.ttl_millis,
			columns = excluded.columns,
			rows = excluded.rows,
			source_states = excluded.source_states`,
		string(key), entry.CreatedAt, entry.TTLMillis, string(columnsJSON), rowsBlob, string(statesJSON),
	)
	if err != nil {
		return fmt.Errorf("cache: upsert cache_entries: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(key Key) error {
	_, err := s.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, string(key))
	return err
}

// encodeRows flattens t's rows as [uint32 rowCount][per-cell: uint32
// len][value.Value.MarshalBinary bytes]*. Unlike streaming.FileSpiller's
// run encoding there is no per-row width header: decodeRows is given the
// width by its caller.
func encodeRows(t table.Table) ([]byte, error) {
	var buf []byte
	buf = appendUint32(buf, uint32(t.RowCount()))
	var marshalErr error
	t.IterRows(func(row []value.Value) bool {
		for _, v := range row {
			b, err := v.MarshalBinary()
			if err != nil {
				marshalErr = err
				return false
			}
			buf = appendUint32(buf, uint32(len(b)))
			buf = append(buf, b...)
		}
		return true
	})
	if marshalErr != nil {
		return nil, marshalErr
	}
	return buf, nil
}

func decodeRows(data []byte, width int) ([][]value.Value, error) {
	rowCount, data, err := readUint32(data)
	if err != nil {
		return nil, err
	}
	rows := make([][]value.Value, rowCount)
	for r := range rows {
		row := make([]value.Value, width)
		for c := 0; c < width; c++ {
			n, rest, err := readUint32(data)
			if err != nil {
				return nil, err
			}
			if uint32(len(rest)) < n {
				return nil, fmt.Errorf("cache: truncated cell at row %d col %d", r, c)
			}
			var v value.Value
			if err := v.UnmarshalBinary(rest[:n]); err != nil {
				return nil, err
			}
			row[c] = v
			data = rest[n:]
		}
		rows[r] = row
	}
	return rows, nil
}

func appendUint32(buf []byte, n uint32) []byte {
	return append(buf, byte(n), byte(n>>8), byte(n>>16), byte(n>>24))
}

func readUint32(data []byte) (uint32, []byte, error) {
	if len(data) < 4 {
		return 0, nil, fmt.Errorf("cache: truncated uint32")
	}
	n := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
	return n, data[4:], nil
}
