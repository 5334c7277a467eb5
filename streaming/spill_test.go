package streaming

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/value"
)

func testSpillers() map[string]Spiller {
	return map[string]Spiller{
		"file": &FileSpiller{},
		"mem":  MemSpiller{},
	}
}

func TestSpillRoundTrip(t *testing.T) {
	for name, sp := range testSpillers() {
		t.Run(name, func(t *testing.T) {
			w, err := sp.NewRun()
			require.NoError(t, err)

			rows := [][]value.Value{
				{value.Text("a"), value.Number(1)},
				{value.Text("b"), value.Number(2)},
				{value.Null(), value.Number(3)},
			}
			for _, r := range rows {
				require.NoError(t, w.WriteRow(r))
			}
			r, err := w.Close()
			require.NoError(t, err)
			defer r.Close()

			var got [][]value.Value
			for {
				row, err := r.ReadRow()
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
				got = append(got, row)
			}
			require.Len(t, got, len(rows))
			for i := range rows {
				assert.Equal(t, rows[i][0].Key(), got[i][0].Key())
				assert.Equal(t, rows[i][1].Key(), got[i][1].Key())
			}
		})
	}
}

func TestFileSpillerCleansUpOnClose(t *testing.T) {
	sp := &FileSpiller{}
	w, err := sp.NewRun()
	require.NoError(t, err)
	require.NoError(t, w.WriteRow([]value.Value{value.Number(1)}))
	r, err := w.Close()
	require.NoError(t, err)
	require.NoError(t, r.Close())
}
