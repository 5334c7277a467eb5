// Package table implements the columnar/row-addressable immutable data
// structure described in spec §3, with ragged-row semantics and a
// stable, idempotent column-name uniqueness procedure.
package table

import "fmt"

// DataType is the closed set of column types spec §3 names.
type DataType int

const (
	Any DataType = iota
	TypeText
	TypeNumber
	TypeBoolean
	TypeDate
	TypeDateTime
	TypeDateTimeZone
	TypeTime
	TypeDuration
	TypeDecimal
	TypeBinary
)

func (d DataType) String() string {
	switch d {
	case TypeText:
		return "text"
	case TypeNumber:
		return "number"
	case TypeBoolean:
		return "boolean"
	case TypeDate:
		return "date"
	case TypeDateTime:
		return "datetime"
	case TypeDateTimeZone:
		return "datetimezone"
	case TypeTime:
		return "time"
	case TypeDuration:
		return "duration"
	case TypeDecimal:
		return "decimal"
	case TypeBinary:
		return "binary"
	default:
		return "any"
	}
}

// Column is the {name, type} pair of spec §3.
type Column struct {
	Name string
	Type DataType
}

// MakeUniqueColumnNames disambiguates names in place order by appending
// "·N" suffixes, picking for each conflict the smallest N >= 2 not
// already present in the *output* built so far. The procedure is stable
// (preserves input order) and idempotent: running it twice produces the
// same result as running it once.
func MakeUniqueColumnNames(names []string) []string {
	used := make(map[string]bool, len(names))
	out := make([]string, len(names))
	for i, name := range names {
		if !used[name] {
			used[name] = true
			out[i] = name
			continue
		}
		n := 2
		for {
			candidate := fmt.Sprintf("%s·%d", name, n)
			if !used[candidate] {
				used[candidate] = true
				out[i] = candidate
				break
			}
			n++
		}
	}
	return out
}

// ColumnNames extracts the Name field of each column, in order.
func ColumnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
