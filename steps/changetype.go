package steps

import (
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

// changeType implements spec §4.2 change_type: "Coerce values per
// per-type rules (text<->number via culture-insensitive parse;
// numbers<->date using epoch-days or ISO strings; invalid conversions
// become error sentinels)."
func changeType(t table.Table, op *query.ChangeTypeOp) (table.Table, error) {
	idx, err := t.ColumnIndex(op.Column)
	if err != nil {
		return nil, err
	}
	dt, ok := op.Type.(table.DataType)
	if !ok {
		return nil, pqerr.New(pqerr.KindInvalidArgument, "change_type: type must be a table.DataType")
	}

	cols := append([]table.Column{}, t.Columns()...)
	cols[idx] = table.Column{Name: cols[idx].Name, Type: dt}

	rows := allRows(t)
	for r := range rows {
		rows[r][idx] = coerce(rows[r][idx], dt)
	}
	return table.New(cols, rows), nil
}

const epoch = "1899-12-30" // Power Query's epoch-days origin

func coerce(v value.Value, dt table.DataType) value.Value {
	if v.IsNull() || v.IsError() {
		return v
	}
	switch dt {
	case table.Any:
		return v
	case table.TypeText:
		return coerceToText(v)
	case table.TypeNumber:
		return coerceToNumber(v)
	case table.TypeBoolean:
		return coerceToBoolean(v)
	case table.TypeDate:
		return coerceToTemporal(v, value.Date)
	case table.TypeDateTime:
		return coerceToTemporal(v, value.DateTime)
	case table.TypeDateTimeZone:
		return coerceToTemporal(v, value.DateTimeZone)
	case table.TypeTime:
		return coerceToTemporal(v, value.TimeOfDay)
	case table.TypeDecimal:
		return coerceToDecimal(v)
	default:
		return v
	}
}

func coerceToText(v value.Value) value.Value {
	if v.Kind() == value.KindText {
		return v
	}
	return value.Text(v.String())
}

func coerceToNumber(v value.Value) value.Value {
	switch v.Kind() {
	case value.KindNumber:
		return v
	case value.KindText:
		s := strings.TrimSpace(asText(v))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return value.Error("cannot convert text to number: "+s, err)
		}
		return value.Number(f)
	case value.KindBool:
		b, _ := v.AsBool()
		if b {
			return value.Number(1)
		}
		return value.Number(0)
	case value.KindDate, value.KindDateTime, value.KindDateTimeZone:
		t, _ := v.AsTime()
		return value.Number(epochDays(t))
	default:
		return value.Error("cannot convert value to number", nil)
	}
}

func coerceToBoolean(v value.Value) value.Value {
	switch v.Kind() {
	case value.KindBool:
		return v
	case value.KindNumber:
		n, _ := v.AsNumber()
		return value.Bool(n != 0)
	case value.KindText:
		switch strings.ToLower(strings.TrimSpace(asText(v))) {
		case "true":
			return value.Bool(true)
		case "false":
			return value.Bool(false)
		default:
			return value.Error("cannot convert text to boolean: "+asText(v), nil)
		}
	default:
		return value.Error("cannot convert value to boolean", nil)
	}
}

func coerceToTemporal(v value.Value, build func(time.Time) value.Value) value.Value {
	switch v.Kind() {
	case value.KindDate, value.KindDateTime, value.KindDateTimeZone, value.KindTime:
		t, _ := v.AsTime()
		return build(t)
	case value.KindText:
		s := strings.TrimSpace(asText(v))
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return build(t)
			}
		}
		return value.Error("cannot convert text to date/time: "+s, nil)
	case value.KindNumber:
		n, _ := v.AsNumber()
		return build(daysToTime(n))
	default:
		return value.Error("cannot convert value to date/time", nil)
	}
}

func coerceToDecimal(v value.Value) value.Value {
	switch v.Kind() {
	case value.KindDecimal:
		return v
	case value.KindNumber:
		n, _ := v.AsNumber()
		return value.Decimal(new(big.Rat).SetFloat64(n))
	case value.KindText:
		s := strings.TrimSpace(asText(v))
		r, ok := new(big.Rat).SetString(s)
		if !ok {
			return value.Error("cannot convert text to decimal: "+s, nil)
		}
		return value.Decimal(r)
	default:
		return value.Error("cannot convert value to decimal", nil)
	}
}

// epochDays/daysToTime implement Power Query's "numbers<->date using
// epoch-days" rule with the 1899-12-30 serial-date origin.
func epochDays(t time.Time) float64 {
	origin, _ := time.Parse("2006-01-02", epoch)
	return t.UTC().Sub(origin).Hours() / 24
}

func daysToTime(days float64) time.Time {
	origin, _ := time.Parse("2006-01-02", epoch)
	return origin.Add(time.Duration(days * 24 * float64(time.Hour)))
}
