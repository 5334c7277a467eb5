package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/engine"
	"github.com/sqldef/powerquery/query"
)

func TestParseEngineConfigBytesOverridesDefaults(t *testing.T) {
	cfg, err := ParseEngineConfigBytes([]byte(`
folding_enabled: false
cache_size: 10
validation: source_state
privacy:
  "sales:source": private
  "region:source": public
`))
	require.NoError(t, err)
	assert.False(t, cfg.FoldingEnabled)
	assert.Equal(t, 10, cfg.CacheSize)
	assert.Equal(t, engine.ValidationSourceState, cfg.ValidationMode())

	policy := cfg.PrivacyPolicy()
	assert.Equal(t, engine.PrivacyPrivate, policy["sales:source"])
	assert.Equal(t, engine.PrivacyPublic, policy["region:source"])
}

func TestLoadEngineConfigEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadEngineConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultEngineConfig(), cfg)
}

func TestParseRegisteredQueriesAppliesOverride(t *testing.T) {
	doc := `
[[query]]
id = "sales"
refresh_mode = "on_interval"
interval_seconds = 3600
cacheable = false
`
	reg, err := ParseRegisteredQueries(strings.NewReader(doc))
	require.NoError(t, err)
	require.Contains(t, reg, "sales")

	q := &query.Query{ID: "sales", Cacheable: true}
	out := reg.Apply(q)
	require.NotNil(t, out.RefreshPolicy)
	assert.Equal(t, query.RefreshOnInterval, out.RefreshPolicy.Mode)
	assert.Equal(t, 3600, out.RefreshPolicy.IntervalSeconds)
	assert.False(t, out.Cacheable)
	assert.True(t, q.Cacheable, "Apply must not mutate the input query")
}

func TestApplyLeavesUnmatchedQueryUnchanged(t *testing.T) {
	reg := RegisteredQueries{}
	q := &query.Query{ID: "unrelated", Cacheable: true}
	assert.Same(t, q, reg.Apply(q))
}
