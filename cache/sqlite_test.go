package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/connector"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := OpenSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	cols := []table.Column{{Name: "Name", Type: table.TypeText}, {Name: "Age", Type: table.TypeNumber}}
	rows := [][]value.Value{
		{value.Text("Alice"), value.Number(30)},
		{value.Text("Bob"), value.Null()},
	}
	tbl := table.New(cols, rows)

	key := Key("pq:v1:round-trip")
	entry := Entry{
		Value:     tbl,
		CreatedAt: 100,
		TTLMillis: 60000,
		SourceStates: map[string]connector.SourceState{
			"file:./a.csv": {Etag: "\"abc\"", HasEtag: true},
		},
	}
	require.NoError(t, store.Set(key, entry))

	got, ok, err := store.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(100), got.CreatedAt)
	assert.Equal(t, int64(60000), got.TTLMillis)
	assert.Equal(t, "\"abc\"", got.SourceStates["file:./a.csv"].Etag)
	require.Equal(t, 2, got.Value.RowCount())
	name, _ := got.Value.Cell(0, 0).AsText()
	assert.Equal(t, "Alice", name)
	assert.True(t, got.Value.Cell(1, 1).IsNull())
}

func TestSQLiteStoreMissOnUnknownKey(t *testing.T) {
	store, err := OpenSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.Get(Key("pq:v1:nope"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStoreDelete(t *testing.T) {
	store, err := OpenSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	key := Key("pq:v1:deleteme")
	tbl := table.New([]table.Column{{Name: "X", Type: table.TypeNumber}}, nil)
	require.NoError(t, store.Set(key, Entry{Value: tbl}))
	require.NoError(t, store.Delete(key))

	_, ok, err := store.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)
}
