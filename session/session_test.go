package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/connector"
	"github.com/sqldef/powerquery/pqerr"
)

func TestCredentialsDedupedAcrossCalls(t *testing.T) {
	calls := 0
	hook := func(ctx context.Context, connectorID string, req connector.Request) (*connector.Credentials, error) {
		calls++
		return &connector.Credentials{CredentialID: "cred-1"}, nil
	}
	s := New(hook, nil, func() int64 { return 0 })

	c1, err := s.Credentials(context.Background(), "sql", "dsn-a", connector.Request{})
	require.NoError(t, err)
	c2, err := s.Credentials(context.Background(), "sql", "dsn-a", connector.Request{})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Same(t, c1, c2)
}

func TestCredentialsDistinctKeysPromptSeparately(t *testing.T) {
	calls := 0
	hook := func(ctx context.Context, connectorID string, req connector.Request) (*connector.Credentials, error) {
		calls++
		return &connector.Credentials{CredentialID: connectorID}, nil
	}
	s := New(hook, nil, func() int64 { return 0 })

	_, err := s.Credentials(context.Background(), "sql", "dsn-a", connector.Request{})
	require.NoError(t, err)
	_, err = s.Credentials(context.Background(), "sql", "dsn-b", connector.Request{})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
}

func TestCredentialsWithoutHookFails(t *testing.T) {
	s := New(nil, nil, func() int64 { return 0 })
	_, err := s.Credentials(context.Background(), "sql", "dsn-a", connector.Request{})
	require.Error(t, err)
	assert.True(t, pqerr.Is(err, pqerr.KindCredentialUnavailable))
}

func TestAuthorizeDefaultsToAllowWithNoHook(t *testing.T) {
	s := New(nil, nil, func() int64 { return 0 })
	ok, err := s.Authorize("sql", "dsn-a", "network", nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAuthorizeDedupesHookCalls(t *testing.T) {
	calls := 0
	hook := func(kind string, details map[string]any) bool {
		calls++
		return true
	}
	s := New(nil, hook, func() int64 { return 0 })

	_, err := s.Authorize("sql", "dsn-a", "network", nil)
	require.NoError(t, err)
	_, err = s.Authorize("sql", "dsn-a", "network", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestAuthorizeDeniedReturnsPermissionError(t *testing.T) {
	s := New(nil, func(kind string, details map[string]any) bool { return false }, func() int64 { return 0 })
	ok, err := s.Authorize("sql", "dsn-a", "network", nil)
	assert.False(t, ok)
	require.Error(t, err)
	assert.True(t, pqerr.Is(err, pqerr.KindPermissionDenied))
}
