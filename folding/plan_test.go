package folding_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/folding"
	"github.com/sqldef/powerquery/query"
)

// stubFolder folds everything up to (but not including) a given kind.
type stubFolder struct {
	stopAt query.OpKind
}

func (f stubFolder) TryFold(op query.Operation) (bool, folding.Diagnostic) {
	if op.Kind == f.stopAt {
		return false, folding.Diagnostic{}
	}
	return true, folding.Diagnostic{}
}

func steps(kinds ...query.OpKind) []query.Step {
	out := make([]query.Step, len(kinds))
	for i, k := range kinds {
		out[i] = query.Step{ID: string(rune('a' + i)), Operation: query.Operation{Kind: k}}
	}
	return out
}

func TestWalkAllFoldableIsRemote(t *testing.T) {
	s := steps(query.OpSelectColumns, query.OpFilterRows, query.OpTake)
	plan := folding.Walk(s, stubFolder{stopAt: query.OpKind(-1)})
	assert.Equal(t, folding.Remote, plan.Type)
	assert.Empty(t, plan.LocalSteps)
	assert.Equal(t, 3, plan.LocalStepOffset)
}

func TestWalkNoneFoldableIsLocal(t *testing.T) {
	s := steps(query.OpSelectColumns, query.OpFilterRows)
	plan := folding.Walk(s, stubFolder{stopAt: query.OpSelectColumns})
	assert.Equal(t, folding.Local, plan.Type)
	assert.Equal(t, 0, plan.LocalStepOffset)
	require.Len(t, plan.LocalSteps, 2)
}

func TestWalkPartialIsHybrid(t *testing.T) {
	s := steps(query.OpSelectColumns, query.OpFilterRows, query.OpAddColumn)
	plan := folding.Walk(s, stubFolder{stopAt: query.OpAddColumn})
	assert.Equal(t, folding.Hybrid, plan.Type)
	assert.Equal(t, 2, plan.LocalStepOffset)
	require.Len(t, plan.LocalSteps, 1)
	assert.Equal(t, query.OpAddColumn, plan.LocalSteps[0].Kind)
}

func TestWalkRecordsDiagnosticsAtFailingStep(t *testing.T) {
	f := diagnosingFolder{stopAt: query.OpFilterRows}
	s := steps(query.OpSelectColumns, query.OpFilterRows)
	plan := folding.Walk(s, f)
	require.Len(t, plan.Diagnostics, 1)
	assert.Equal(t, 1, plan.Diagnostics[0].StepIndex)
	assert.True(t, plan.Diagnostics[0].Blocked)
}

type diagnosingFolder struct {
	stopAt query.OpKind
}

func (f diagnosingFolder) TryFold(op query.Operation) (bool, folding.Diagnostic) {
	if op.Kind == f.stopAt {
		return false, folding.Diagnostic{Message: "privacy firewall tripped", Blocked: true}
	}
	return true, folding.Diagnostic{}
}
