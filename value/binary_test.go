package value_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/value"
)

func roundTrip(t *testing.T, v value.Value) value.Value {
	t.Helper()
	data, err := v.MarshalBinary()
	require.NoError(t, err)
	var out value.Value
	require.NoError(t, out.UnmarshalBinary(data))
	return out
}

func TestBinaryRoundTripScalars(t *testing.T) {
	cases := []value.Value{
		value.Null(),
		value.Bool(true),
		value.Bool(false),
		value.Number(3.5),
		value.Number(-1),
		value.BigInt(big.NewInt(123456789012345)),
		value.Text("hello"),
		value.Text(""),
		value.Binary([]byte{1, 2, 3, 0, 255}),
		value.Duration(90 * time.Minute),
		value.Decimal(big.NewRat(1, 3)),
		value.Error("boom", nil),
	}
	for _, v := range cases {
		out := roundTrip(t, v)
		assert.Equal(t, v.Key(), out.Key(), "round-tripped value must keep the same canonical key")
	}
}

func TestBinaryRoundTripTemporal(t *testing.T) {
	ts := time.Date(2026, 7, 29, 10, 30, 0, 0, time.UTC)

	assert.Equal(t, value.Date(ts).Key(), roundTrip(t, value.Date(ts)).Key())
	assert.Equal(t, value.DateTime(ts).Key(), roundTrip(t, value.DateTime(ts)).Key())
	assert.Equal(t, value.DateTimeZone(ts).Key(), roundTrip(t, value.DateTimeZone(ts)).Key())
	assert.Equal(t, value.TimeOfDay(ts).Key(), roundTrip(t, value.TimeOfDay(ts)).Key())
}

func TestBinaryMarshalRejectsNestedTable(t *testing.T) {
	_, err := value.Table(nil).MarshalBinary()
	require.Error(t, err)
}

func TestBinaryUnmarshalRejectsTruncated(t *testing.T) {
	var v value.Value
	assert.Error(t, v.UnmarshalBinary(nil))
	assert.Error(t, v.UnmarshalBinary([]byte{99}))
}
