package rangeconn_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/connector"
	"github.com/sqldef/powerquery/connector/rangeconn"
	"github.com/sqldef/powerquery/value"
)

func TestExecuteRangeWithHeaders(t *testing.T) {
	c := rangeconn.New()
	req := connector.Request{ConnectorID: rangeconn.ID, Params: rangeconn.RangeRequest{
		HasHeaders: true,
		Values: [][]value.Value{
			{value.Text("Region"), value.Text("Sales")},
			{value.Text("East"), value.Number(100)},
		},
	}}
	res, err := c.Execute(context.Background(), req, connector.Host{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Table.RowCount())
	assert.Equal(t, "Region", res.Table.Columns()[0].Name)
}

func TestExecuteRangeWithoutHeaders(t *testing.T) {
	c := rangeconn.New()
	req := connector.Request{ConnectorID: rangeconn.ID, Params: rangeconn.RangeRequest{
		Values: [][]value.Value{{value.Number(1), value.Number(2)}},
	}}
	res, err := c.Execute(context.Background(), req, connector.Host{})
	require.NoError(t, err)
	assert.Equal(t, "A", res.Table.Columns()[0].Name)
	assert.Equal(t, "B", res.Table.Columns()[1].Name)
}

func TestCacheKeyDeterministic(t *testing.T) {
	c := rangeconn.New()
	req := connector.Request{Params: rangeconn.RangeRequest{Values: [][]value.Value{{value.Number(1)}}}}
	k1, err := c.CacheKey(req)
	require.NoError(t, err)
	k2, err := c.CacheKey(req)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}
