package testconn_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/connector"
	"github.com/sqldef/powerquery/connector/testconn"
	"github.com/sqldef/powerquery/table"
)

func TestScriptCountsReads(t *testing.T) {
	s := testconn.New(func() (table.Table, error) {
		return table.New([]table.Column{{Name: "A"}}, nil), nil
	})
	_, err := s.Execute(context.Background(), connector.Request{}, connector.Host{})
	require.NoError(t, err)
	_, err = s.Execute(context.Background(), connector.Request{}, connector.Host{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.Reads())
}

func TestScriptRespectsCancellation(t *testing.T) {
	s := testconn.New(func() (table.Table, error) {
		return table.New(nil, nil), nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Execute(ctx, connector.Request{}, connector.Host{})
	require.Error(t, err)
	assert.Equal(t, int64(0), s.Reads())
}
