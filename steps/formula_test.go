package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sqldef/powerquery/value"
)

func evalSimple(t *testing.T, src string) value.Value {
	t.Helper()
	idx := map[string]int{"Sales": 0}
	return evalFormula(src, idx, []value.Value{value.Number(10)}, nil)
}

func TestEvalFormulaArithmeticPrecedence(t *testing.T) {
	v := evalSimple(t, "[Sales] + 2 * 3")
	n, ok := v.AsNumber()
	assert.True(t, ok)
	assert.Equal(t, float64(16), n)
}

func TestEvalFormulaComparison(t *testing.T) {
	v := evalSimple(t, "[Sales] > 5")
	b, ok := v.AsBool()
	assert.True(t, ok)
	assert.True(t, b)
}

func TestEvalFormulaStdlibCall(t *testing.T) {
	idx := map[string]int{"Name": 0}
	v := evalFormula(`upper([Name])`, idx, []value.Value{value.Text("ada")}, nil)
	s, ok := v.AsText()
	assert.True(t, ok)
	assert.Equal(t, "ADA", s)
}

func TestEvalFormulaUnknownColumnBecomesError(t *testing.T) {
	v := evalSimple(t, "[Bogus]")
	assert.True(t, v.IsError())
}

func TestEvalFormulaUnboundUnderscoreBecomesError(t *testing.T) {
	v := evalSimple(t, "_")
	assert.True(t, v.IsError())
}

func TestEvalFormulaSyntaxErrorBecomesError(t *testing.T) {
	v := evalSimple(t, "[Sales] +")
	assert.True(t, v.IsError())
}
