package progress_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/progress"
)

func TestFuncEmitterNilSafe(t *testing.T) {
	var f progress.Func
	assert.NotPanics(t, func() { f.Emit(progress.Event{Kind: progress.KindCacheHit}) })
}

func TestEmitHelperNilSafe(t *testing.T) {
	assert.NotPanics(t, func() { progress.Emit(nil, progress.Event{Kind: progress.KindStepStart}) })
}

func TestMultiFansOutToEveryEmitter(t *testing.T) {
	var got1, got2 []progress.Event
	m := progress.Multi{
		progress.Func(func(e progress.Event) { got1 = append(got1, e) }),
		progress.Func(func(e progress.Event) { got2 = append(got2, e) }),
	}
	m.Emit(progress.Event{Kind: progress.KindJobStart, QueryID: "q1"})
	require.Len(t, got1, 1)
	require.Len(t, got2, 1)
	assert.Equal(t, "q1", got1[0].QueryID)
}

func TestMetricsRecordsCacheAndSpillCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := progress.NewMetrics(reg)
	m.Emit(progress.Event{Kind: progress.KindCacheHit})
	m.Emit(progress.Event{Kind: progress.KindCacheMiss})
	m.Emit(progress.Event{Kind: progress.KindStreamSpill, Operator: "sort_rows"})
	m.ObserveStep("filter_rows", 0.01)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
