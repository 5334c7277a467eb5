package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/sqldef/powerquery/query"
)

// QueryOverride is one [[query]] entry: refresh/cache settings a host
// wants to manage outside the query pipeline definition itself (which
// stays in code or wherever the host builds query.Query values).
type QueryOverride struct {
	ID                string `toml:"id"`
	RefreshMode       string `toml:"refresh_mode"` // "manual" | "on_open" | "on_interval" | "on_dependency_change"
	IntervalSeconds   int    `toml:"interval_seconds"`
	BackgroundAllowed bool   `toml:"background_allowed"`
	Cacheable         *bool  `toml:"cacheable"`
}

// registeredQueriesFile is the top-level TOML document: a flat list of
// per-query overrides, same "[[x]] array of tables" shape as smf's
// schema file's [[tables]].
type registeredQueriesFile struct {
	Query []QueryOverride `toml:"query"`
}

// RegisteredQueries is the decoded manifest, indexed by query id for
// O(1) lookup when applying overrides.
type RegisteredQueries map[string]QueryOverride

// LoadRegisteredQueries reads and decodes path.
func LoadRegisteredQueries(path string) (RegisteredQueries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open registered queries %q: %w", path, err)
	}
	defer f.Close()
	return ParseRegisteredQueries(f)
}

// ParseRegisteredQueries decodes r as TOML into a RegisteredQueries map.
func ParseRegisteredQueries(r io.Reader) (RegisteredQueries, error) {
	var doc registeredQueriesFile
	if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("config: decode registered queries: %w", err)
	}
	out := make(RegisteredQueries, len(doc.Query))
	for _, q := range doc.Query {
		if q.ID == "" {
			return nil, fmt.Errorf("config: registered query missing id")
		}
		out[q.ID] = q
	}
	return out, nil
}

func refreshModeFromString(s string) (query.RefreshMode, bool) {
	switch s {
	case "manual":
		return query.RefreshManual, true
	case "on_open":
		return query.RefreshOnOpen, true
	case "on_interval":
		return query.RefreshOnInterval, true
	case "on_dependency_change":
		return query.RefreshOnDependencyChange, true
	default:
		return 0, false
	}
}

// Apply merges the override for q.ID (if any) onto a copy of q, the same
// "override field only if the override sets it" merge database.go's
// MergeGeneratorConfig does for dump options. A query with no matching
// override is returned unchanged.
func (r RegisteredQueries) Apply(q *query.Query) *query.Query {
	override, ok := r[q.ID]
	if !ok {
		return q
	}
	out := *q

	if mode, ok := refreshModeFromString(override.RefreshMode); ok {
		policy := query.RefreshPolicy{}
		if out.RefreshPolicy != nil {
			policy = *out.RefreshPolicy
		}
		policy.Mode = mode
		if override.IntervalSeconds > 0 {
			policy.IntervalSeconds = override.IntervalSeconds
		}
		policy.BackgroundAllowed = override.BackgroundAllowed
		out.RefreshPolicy = &policy
	}
	if override.Cacheable != nil {
		out.Cacheable = *override.Cacheable
	}
	return &out
}
