// Package folding implements the query-independent half of spec §4.6's
// folding planner: the left-to-right prefix walk that decides how much
// of a query's step list can be pushed into the remote source, plus the
// shared Plan/Diagnostic shapes both folding/sqlfold and
// folding/odatafold report through. Dialect- and protocol-specific
// folding logic lives in the two subpackages; this package only knows
// "try one step, stop at the first failure".
package folding

import "github.com/sqldef/powerquery/query"

// Type is the three-way plan classification of spec §4.6.
type Type int

const (
	// Local means no step folded; the whole pipeline runs against a
	// materialized source table.
	Local Type = iota
	// Remote means every step folded into the remote query.
	Remote
	// Hybrid means a non-empty prefix folded and LocalSteps/LocalStepOffset
	// describe what still has to run after loading the remote result.
	Hybrid
)

func (t Type) String() string {
	switch t {
	case Remote:
		return "remote"
	case Hybrid:
		return "hybrid"
	default:
		return "local"
	}
}

// Diagnostic records why the planner stopped folding at a particular
// step, surfaced by the engine as a privacy:firewall progress event
// when Blocked is true (spec §4.6 "Privacy diagnostics").
type Diagnostic struct {
	StepIndex int
	Message   string
	Blocked   bool // true when a privacy firewall, not plain unfoldability, stopped folding
}

// Plan is the spec §4.6 QueryExecutionPlan: how much of the pipeline
// folded, and what (if anything) still needs local execution.
type Plan struct {
	Type            Type
	LocalSteps      []query.Operation
	LocalStepOffset int
	Diagnostics     []Diagnostic
}

// Folder is implemented by one accumulating planner per protocol
// (sqlfold.Builder, odatafold.Builder). TryFold attempts to push op
// into the plan being built; ok == false stops the prefix walk at this
// step. A non-empty diag is recorded regardless of ok, so a Folder can
// explain *why* an op didn't fold even when that's expected (e.g. a
// privacy firewall trip should be visible even though it's not a bug).
type Folder interface {
	TryFold(op query.Operation) (ok bool, diag Diagnostic)
}

// Walk runs the spec §4.6 left-to-right prefix fold: iterate steps,
// handing each operation to f, stopping at the first one f refuses.
func Walk(steps []query.Step, f Folder) Plan {
	var diagnostics []Diagnostic
	i := 0
	for ; i < len(steps); i++ {
		ok, diag := f.TryFold(steps[i].Operation)
		if diag != (Diagnostic{}) {
			diag.StepIndex = i
			diagnostics = append(diagnostics, diag)
		}
		if !ok {
			break
		}
	}

	local := make([]query.Operation, len(steps)-i)
	for j := i; j < len(steps); j++ {
		local[j-i] = steps[j].Operation
	}

	typ := Hybrid
	switch {
	case i == 0:
		typ = Local
	case i == len(steps):
		typ = Remote
	}

	return Plan{Type: typ, LocalSteps: local, LocalStepOffset: i, Diagnostics: diagnostics}
}
