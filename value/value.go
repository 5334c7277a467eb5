// Package value implements the canonical value domain shared by every
// table cell: null, boolean, number, big integer, text, the temporal
// types, decimal, binary, error sentinels, and nested tables.
//
// Equality is defined purely in terms of Key, the deterministic
// byte-stable canonical serialization described in spec §4.1 (the
// "value_key"). Two values are equal iff their Keys are equal; nulls are
// equal to nulls for join purposes. Ordering (Less) compares the typed
// values directly, with nulls last unless nullsFirst is set.
package value

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which variant of the value union a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindBigInt
	KindText
	KindDate
	KindDateTime
	KindDateTimeZone
	KindTime
	KindDuration
	KindDecimal
	KindBinary
	KindError
	KindTable
)

// ErrorReason carries the cause of an in-cell error sentinel (spec §7:
// per-row evaluation errors become sentinels, not propagated errors).
type ErrorReason struct {
	Message string
	Cause   error
}

// NestedTable breaks an import cycle with package table: a
// nested table value only needs to be serialized and counted, not
// transformed, so it is modeled structurally here.
type NestedTable interface {
	RowCount() int
	ColumnCount() int
	ColumnName(i int) string
	Cell(row, col int) Value
}

// Value is an immutable tagged union over the spec §3 value domain.
type Value struct {
	kind Kind

	b        bool
	f        float64
	big      *big.Int
	s        string
	t        time.Time
	dur      time.Duration
	dec      *big.Rat
	bin      []byte
	errRsn   *ErrorReason
	nested   NestedTable
	timeOnly bool // KindTime: t holds only the time-of-day component
	hasTZ    bool // KindDateTimeZone
}

func Null() Value                 { return Value{kind: KindNull} }
func Bool(b bool) Value            { return Value{kind: KindBool, b: b} }
func Number(f float64) Value       { return Value{kind: KindNumber, f: f} }
func BigInt(i *big.Int) Value      { return Value{kind: KindBigInt, big: i} }
func Text(s string) Value          { return Value{kind: KindText, s: s} }
func Binary(b []byte) Value        { return Value{kind: KindBinary, bin: b} }
func Table(t NestedTable) Value    { return Value{kind: KindTable, nested: t} }

func Date(t time.Time) Value {
	return Value{kind: KindDate, t: t.UTC().Truncate(24 * time.Hour)}
}

func DateTime(t time.Time) Value {
	return Value{kind: KindDateTime, t: t.UTC()}
}

func DateTimeZone(t time.Time) Value {
	return Value{kind: KindDateTimeZone, t: t, hasTZ: true}
}

func TimeOfDay(t time.Time) Value {
	return Value{kind: KindTime, t: t.UTC(), timeOnly: true}
}

func Duration(d time.Duration) Value {
	return Value{kind: KindDuration, dur: d}
}

func Decimal(r *big.Rat) Value {
	return Value{kind: KindDecimal, dec: r}
}

func Error(message string, cause error) Value {
	return Value{kind: KindError, errRsn: &ErrorReason{Message: message, Cause: cause}}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool  { return v.kind == KindNull }
func (v Value) IsError() bool { return v.kind == KindError }

func (v Value) ErrorReason() (*ErrorReason, bool) {
	if v.kind != KindError {
		return nil, false
	}
	return v.errRsn, true
}

func (v Value) AsBool() (bool, bool)       { return v.b, v.kind == KindBool }
func (v Value) AsNumber() (float64, bool)  { return v.f, v.kind == KindNumber }
func (v Value) AsText() (string, bool)     { return v.s, v.kind == KindText }
func (v Value) AsTime() (time.Time, bool) {
	switch v.kind {
	case KindDate, KindDateTime, KindDateTimeZone, KindTime:
		return v.t, true
	default:
		return time.Time{}, false
	}
}
func (v Value) AsTable() (NestedTable, bool) { return v.nested, v.kind == KindTable }

// Key returns the canonical, deterministic, byte-stable string
// serialization of v, used for equality, join keys, distinct, and
// group-by bucketing. Structurally equal values always produce an equal
// Key regardless of how they were constructed.
//
// Encoding rules (spec §4.1):
//   - null maps to a distinguished symbol ("\x00N") that cannot collide
//     with any legal text (text is tagged "\x00T:" and length-prefixed).
//   - numbers use strconv's shortest round-trippable decimal form ('g',
//     -1 precision) so 1.0 and 1 key identically.
//   - datetime and datetimezone values use the canonical UTC instant in
//     RFC3339Nano; dates use 2006-01-02 and times of day
//     15:04:05.000000000.
//   - composite values (tables) use a length-prefixed ordered sequence of
//     their cells' Keys.
func (v Value) Key() string {
	var sb strings.Builder
	v.writeKey(&sb)
	return sb.String()
}

const (
	tagNull = "\x00N"
	tagBool = "\x00B:"
	tagNum  = "\x00F:"
	tagBig  = "\x00I:"
	tagText = "\x00T:"
	tagTime = "\x00D:"
	tagDur  = "\x00U:"
	tagDec  = "\x00C:"
	tagBin  = "\x00X:"
	tagErr  = "\x00E:"
	tagTbl  = "\x00R:"
)

func (v Value) writeKey(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteString(tagNull)
	case KindBool:
		sb.WriteString(tagBool)
		if v.b {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	case KindNumber:
		sb.WriteString(tagNum)
		sb.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))
	case KindBigInt:
		sb.WriteString(tagBig)
		if v.big != nil {
			sb.WriteString(v.big.String())
		}
	case KindText:
		sb.WriteString(tagText)
		fmt.Fprintf(sb, "%d:", len(v.s))
		sb.WriteString(v.s)
	case KindDate:
		sb.WriteString(tagTime)
		sb.WriteString("date:")
		sb.WriteString(v.t.Format("2006-01-02"))
	case KindDateTime, KindDateTimeZone:
		sb.WriteString(tagTime)
		sb.WriteString("instant:")
		sb.WriteString(v.t.UTC().Format(time.RFC3339Nano))
	case KindTime:
		sb.WriteString(tagTime)
		sb.WriteString("time:")
		sb.WriteString(v.t.Format("15:04:05.000000000"))
	case KindDuration:
		sb.WriteString(tagDur)
		sb.WriteString(strconv.FormatInt(int64(v.dur), 10))
	case KindDecimal:
		sb.WriteString(tagDec)
		if v.dec != nil {
			sb.WriteString(v.dec.RatString())
		}
	case KindBinary:
		sb.WriteString(tagBin)
		fmt.Fprintf(sb, "%d:", len(v.bin))
		sb.WriteString(base64.StdEncoding.EncodeToString(v.bin))
	case KindError:
		sb.WriteString(tagErr)
		if v.errRsn != nil {
			sb.WriteString(v.errRsn.Message)
		}
	case KindTable:
		sb.WriteString(tagTbl)
		if v.nested == nil {
			sb.WriteString("0:0:")
			return
		}
		rows, cols := v.nested.RowCount(), v.nested.ColumnCount()
		fmt.Fprintf(sb, "%d:%d:", rows, cols)
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				cell := v.nested.Cell(r, c)
				cell.writeKey(sb)
				sb.WriteByte(';')
			}
		}
	}
}

// Equal reports structural equality via Key comparison; null == null
// holds, matching join null-safety (spec I5).
func Equal(a, b Value) bool { return a.Key() == b.Key() }

// wire kind tags for MarshalBinary/UnmarshalBinary. Deliberately distinct
// from Kind's own values so the wire format doesn't break if Kind's
// iota ordering ever changes.
const (
	wireNull byte = iota
	wireBool
	wireNumber
	wireBigInt
	wireText
	wireDate
	wireDateTime
	wireDateTimeZone
	wireTime
	wireDuration
	wireDecimal
	wireBinary
	wireError
	wireNestedUnsupported // KindTable: spill does not round-trip nested tables
)

var wireTagForKind = map[Kind]byte{
	KindNull: wireNull, KindBool: wireBool, KindNumber: wireNumber,
	KindBigInt: wireBigInt, KindText: wireText, KindDate: wireDate,
	KindDateTime: wireDateTime, KindDateTimeZone: wireDateTimeZone,
	KindTime: wireTime, KindDuration: wireDuration, KindDecimal: wireDecimal,
	KindBinary: wireBinary, KindError: wireError, KindTable: wireNestedUnsupported,
}

// MarshalBinary implements encoding.BinaryMarshaler, giving Value a
// reversible on-disk representation for spill files (streaming/extsort,
// extgroup, extmerge): unlike Key, which is a one-way canonical digest,
// this round-trips through UnmarshalBinary, except that an error's
// wrapped Cause is dropped. Nested table
// values cannot be spilled; callers should avoid running external-memory
// operators over columns holding them.
func (v Value) MarshalBinary() ([]byte, error) {
	var buf []byte
	tag, ok := wireTagForKind[v.kind]
	if !ok {
		tag = wireNull
	}
	if tag == wireNestedUnsupported {
		return nil, fmt.Errorf("value: cannot spill a nested table value")
	}
	buf = append(buf, tag)
	switch v.kind {
	case KindNull:
	case KindBool:
		if v.b {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case KindNumber:
		buf = appendUint64(buf, math.Float64bits(v.f))
	case KindBigInt:
		buf = appendString(buf, bigIntText(v.big))
	case KindText:
		buf = appendString(buf, v.s)
	case KindDate, KindDateTime, KindTime:
		buf = appendString(buf, v.t.Format(time.RFC3339Nano))
		if v.kind == KindTime {
			buf = append(buf, boolByte(v.timeOnly))
		}
	case KindDateTimeZone:
		buf = appendString(buf, v.t.Format(time.RFC3339Nano))
	case KindDuration:
		buf = appendUint64(buf, uint64(v.dur))
	case KindDecimal:
		num, den := "0", "1"
		if v.dec != nil {
			num, den = v.dec.Num().String(), v.dec.Denom().String()
		}
		buf = appendString(buf, num)
		buf = appendString(buf, den)
	case KindBinary:
		buf = appendBytes(buf, v.bin)
	case KindError:
		msg := ""
		if v.errRsn != nil {
			msg = v.errRsn.Message
		}
		buf = appendString(buf, msg)
	}
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler, the inverse of
// MarshalBinary. Errors round-trip their Message but not their wrapped
// Cause, which is not serializable.
func (v *Value) UnmarshalBinary(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("value: empty binary representation")
	}
	tag, rest := data[0], data[1:]
	switch tag {
	case wireNull:
		*v = Null()
	case wireBool:
		if len(rest) < 1 {
			return fmt.Errorf("value: truncated bool")
		}
		*v = Bool(rest[0] != 0)
	case wireNumber:
		bits, _, err := readUint64(rest)
		if err != nil {
			return err
		}
		*v = Number(math.Float64frombits(bits))
	case wireBigInt:
		s, _, err := readString(rest)
		if err != nil {
			return err
		}
		n := new(big.Int)
		if _, ok := n.SetString(s, 10); !ok {
			return fmt.Errorf("value: invalid big int %q", s)
		}
		*v = BigInt(n)
	case wireText:
		s, _, err := readString(rest)
		if err != nil {
			return err
		}
		*v = Text(s)
	case wireDate, wireDateTime, wireTime:
		s, tail, err := readString(rest)
		if err != nil {
			return err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		switch tag {
		case wireDate:
			*v = Date(t)
		case wireDateTime:
			*v = DateTime(t)
		case wireTime:
			if len(tail) < 1 {
				return fmt.Errorf("value: truncated time-only flag")
			}
			*v = TimeOfDay(t)
			v.timeOnly = tail[0] != 0
		}
	case wireDateTimeZone:
		s, _, err := readString(rest)
		if err != nil {
			return err
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		*v = DateTimeZone(t)
	case wireDuration:
		bits, _, err := readUint64(rest)
		if err != nil {
			return err
		}
		*v = Duration(time.Duration(bits))
	case wireDecimal:
		num, tail, err := readString(rest)
		if err != nil {
			return err
		}
		den, _, err := readString(tail)
		if err != nil {
			return err
		}
		n, ok1 := new(big.Int).SetString(num, 10)
		d, ok2 := new(big.Int).SetString(den, 10)
		if !ok1 || !ok2 {
			return fmt.Errorf("value: invalid decimal %s/%s", num, den)
		}
		*v = Decimal(new(big.Rat).SetFrac(n, d))
	case wireBinary:
		b, _, err := readBytes(rest)
		if err != nil {
			return err
		}
		*v = Binary(b)
	case wireError:
		msg, _, err := readString(rest)
		if err != nil {
			return err
		}
		*v = Error(msg, nil)
	default:
		return fmt.Errorf("value: unknown wire tag %d", tag)
	}
	return nil
}

func bigIntText(i *big.Int) string {
	if i == nil {
		return "0"
	}
	return i.String()
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func appendUint64(buf []byte, u uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], u)
	return append(buf, tmp[:]...)
}

func readUint64(data []byte) (uint64, []byte, error) {
	if len(data) < 8 {
		return 0, nil, fmt.Errorf("value: truncated uint64")
	}
	return binary.LittleEndian.Uint64(data[:8]), data[8:], nil
}

func appendBytes(buf []byte, b []byte) []byte {
	buf = appendUint64(buf, uint64(len(b)))
	return append(buf, b...)
}

func readBytes(data []byte) ([]byte, []byte, error) {
	n, rest, err := readUint64(data)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < n {
		return nil, nil, fmt.Errorf("value: truncated byte slice")
	}
	out := append([]byte{}, rest[:n]...)
	return out, rest[n:], nil
}

func appendString(buf []byte, s string) []byte {
	return appendBytes(buf, []byte(s))
}

func readString(data []byte) (string, []byte, error) {
	b, rest, err := readBytes(data)
	if err != nil {
		return "", nil, err
	}
	return string(b), rest, nil
}

// CompositeKey canonically serializes an ordered tuple of values, used
// by joins/group-by/distinct for multi-column keys (spec §4.1).
func CompositeKey(vs ...Value) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d:", len(vs))
	for _, v := range vs {
		v.writeKey(&sb)
		sb.WriteByte('|')
	}
	return sb.String()
}

// Less implements the partial spreadsheet ordering used by sort_rows:
// numbers < text < boolean < date/time families < binary < error, with
// null ordering last by default; nullsFirst puts nulls first instead.
func Less(a, b Value, nullsFirst bool) bool {
	aNull, bNull := a.IsNull(), b.IsNull()
	if aNull || bNull {
		if aNull && bNull {
			return false
		}
		if nullsFirst {
			return aNull
		}
		return bNull
	}
	ra, rb := typeRank(a.kind), typeRank(b.kind)
	if ra != rb {
		return ra < rb
	}
	switch a.kind {
	case KindBool:
		return !a.b && b.b
	case KindNumber:
		return a.f < b.f
	case KindBigInt:
		return a.big.Cmp(b.big) < 0
	case KindText:
		return a.s < b.s
	case KindDate, KindDateTime, KindDateTimeZone, KindTime:
		return a.t.Before(b.t)
	case KindDuration:
		return a.dur < b.dur
	case KindDecimal:
		return a.dec.Cmp(b.dec) < 0
	case KindBinary:
		return string(a.bin) < string(b.bin)
	case KindError:
		return a.errRsn.Message < b.errRsn.Message
	default:
		return false
	}
}

func typeRank(k Kind) int {
	switch k {
	case KindNumber, KindBigInt, KindDecimal:
		return 0
	case KindText:
		return 1
	case KindBool:
		return 2
	case KindDate, KindDateTime, KindDateTimeZone, KindTime, KindDuration:
		return 3
	case KindBinary:
		return 4
	case KindError:
		return 5
	case KindTable:
		return 6
	default:
		return 7
	}
}

// SortStable sorts vs (parallel index slice idx) by Less, using a stable
// sort so callers preserve input order on ties (spec I3).
func SortStable(idx []int, less func(i, j int) bool) {
	sort.SliceStable(idx, less)
}

// String renders v for debug/grid output (table.ToGrid, etc.).
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBigInt:
		if v.big == nil {
			return ""
		}
		return v.big.String()
	case KindText:
		return v.s
	case KindDate:
		return v.t.Format("2006-01-02")
	case KindDateTime:
		return v.t.Format("2006-01-02T15:04:05")
	case KindDateTimeZone:
		return v.t.Format(time.RFC3339)
	case KindTime:
		return v.t.Format("15:04:05")
	case KindDuration:
		return v.dur.String()
	case KindDecimal:
		if v.dec == nil {
			return ""
		}
		return v.dec.RatString()
	case KindBinary:
		return base64.StdEncoding.EncodeToString(v.bin)
	case KindError:
		return fmt.Sprintf("#Error: %s", v.errRsn.Message)
	case KindTable:
		return "#Table"
	default:
		return ""
	}
}
