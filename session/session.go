// Package session implements spec §4.8's Session: the per-run
// credential and permission caches that make sure a connector backing
// several query sources in one execution only prompts once, plus the
// injected logical clock (connector.Host.Now / cache.Manager's now)
// that keeps cache-expiry tests deterministic.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/sqldef/powerquery/connector"
	"github.com/sqldef/powerquery/pqerr"
)

// Session holds the two de-dup caches spec §4.8 names plus the clock
// every Host in this run shares.
type Session struct {
	mu sync.Mutex

	credentials map[string]*connector.Credentials
	permissions map[string]bool

	credentialHook connector.CredentialHook
	permissionHook connector.PermissionHook

	now func() int64
}

// New builds a Session. A nil credentialHook means every credential
// request fails with KindCredentialUnavailable; a nil permissionHook
// means every permission request is allowed, matching
// connector.PermissionHook's documented "absence means allow" default.
func New(credentialHook connector.CredentialHook, permissionHook connector.PermissionHook, now func() int64) *Session {
	return &Session{
		credentials:    map[string]*connector.Credentials{},
		permissions:    map[string]bool{},
		credentialHook: credentialHook,
		permissionHook: permissionHook,
		now:            now,
	}
}

// Now returns the session's injected logical clock, unix millis.
func (s *Session) Now() int64 { return s.now() }

// dedupKey matches spec §4.8's "${connectorId}:${hash(cacheKey)}" shape.
func dedupKey(connectorID string, cacheKey any) (string, error) {
	payload, err := json.Marshal(cacheKey)
	if err != nil {
		return "", fmt.Errorf("session: marshal cache key: %w", err)
	}
	sum := blake2b.Sum256(payload)
	return fmt.Sprintf("%s:%x", connectorID, sum), nil
}

// Credentials resolves credentials for req against connectorID, calling
// the hook at most once per distinct cacheKey within this session's
// lifetime; later calls with the same key reuse the cached answer
// without re-prompting.
func (s *Session) Credentials(ctx context.Context, connectorID string, cacheKey any, req connector.Request) (*connector.Credentials, error) {
	key, err := dedupKey(connectorID, cacheKey)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if cached, ok := s.credentials[key]; ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	if s.credentialHook == nil {
		return nil, pqerr.New(pqerr.KindCredentialUnavailable, fmt.Sprintf("no credential hook registered for connector %q", connectorID))
	}
	creds, err := s.credentialHook(ctx, connectorID, req)
	if err != nil {
		return nil, pqerr.Wrap(pqerr.KindCredentialUnavailable, fmt.Sprintf("credential hook failed for connector %q", connectorID), err)
	}

	s.mu.Lock()
	s.credentials[key] = creds
	s.mu.Unlock()
	return creds, nil
}

// Authorize checks the permission cache for (connectorID, cacheKey,
// permissionKind) before calling the permission hook, so a query that
// touches the same source across several steps only prompts once.
func (s *Session) Authorize(connectorID string, cacheKey any, permissionKind string, details map[string]any) (bool, error) {
	base, err := dedupKey(connectorID, cacheKey)
	if err != nil {
		return false, err
	}
	key := base + ":" + permissionKind

	s.mu.Lock()
	if cached, ok := s.permissions[key]; ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	allowed := true
	if s.permissionHook != nil {
		allowed = s.permissionHook(permissionKind, details)
	}

	s.mu.Lock()
	s.permissions[key] = allowed
	s.mu.Unlock()

	if !allowed {
		return false, pqerr.New(pqerr.KindPermissionDenied, fmt.Sprintf("permission %q denied for connector %q", permissionKind, connectorID))
	}
	return true, nil
}

// Host builds a connector.Host sharing this session's clock and
// permission hook, for connectors that check permissions inline during
// Execute rather than through Authorize up front.
func (s *Session) Host(creds *connector.Credentials) connector.Host {
	return connector.Host{
		Credentials: creds,
		Now:         s.now,
		Permissions: connector.PermissionHook(s.permissionHook),
	}
}
