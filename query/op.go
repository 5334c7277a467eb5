package query

import "github.com/sqldef/powerquery/value"

// OpKind identifies which Operation variant is populated.
type OpKind int

const (
	OpSelectColumns OpKind = iota
	OpRemoveColumns
	OpRenameColumn
	OpReorderColumns
	OpChangeType
	OpFilterRows
	OpSortRows
	OpDistinctRows
	OpRemoveRowsWithErrors
	OpGroupBy
	OpAddColumn
	OpAddIndexColumn
	OpCombineColumns
	OpSplitColumn
	OpTransformColumns
	OpTransformColumnNames
	OpFillDown
	OpReplaceValues
	OpReplaceErrorValues
	OpPromoteHeaders
	OpDemoteHeaders
	OpTake
	OpSkip
	OpRemoveRows
	OpPivot
	OpUnpivot
	OpMerge
	OpExpandTableColumn
	OpAppend
)

// Operation is the tagged union of spec §4.2's QueryOperation. Exactly
// the field matching Kind is populated.
type Operation struct {
	Kind OpKind

	SelectColumns        *SelectColumnsOp
	RemoveColumns        *RemoveColumnsOp
	RenameColumn         *RenameColumnOp
	ReorderColumns       *ReorderColumnsOp
	ChangeType           *ChangeTypeOp
	FilterRows           *FilterRowsOp
	SortRows             *SortRowsOp
	DistinctRows         *DistinctRowsOp
	RemoveRowsWithErrors *RemoveRowsWithErrorsOp
	GroupBy              *GroupByOp
	AddColumn            *AddColumnOp
	AddIndexColumn       *AddIndexColumnOp
	CombineColumns       *CombineColumnsOp
	SplitColumn          *SplitColumnOp
	TransformColumns     *TransformColumnsOp
	TransformColumnNames *TransformColumnNamesOp
	FillDown             *FillDownOp
	ReplaceValues        *ReplaceValuesOp
	ReplaceErrorValues   *ReplaceErrorValuesOp
	PromoteHeaders       *PromoteHeadersOp
	DemoteHeaders        *DemoteHeadersOp
	Take                 *TakeOp
	Skip                 *SkipOp
	RemoveRows           *RemoveRowsOp
	Pivot                *PivotOp
	Unpivot              *UnpivotOp
	Merge                *MergeOp
	ExpandTableColumn    *ExpandTableColumnOp
	Append               *AppendOp
}

type SelectColumnsOp struct{ Columns []string }
type RemoveColumnsOp struct{ Columns []string }
type RenameColumnOp struct{ Old, New string }

// MissingPolicy controls reorder_columns' handling of unknown names.
type MissingPolicy int

const (
	MissingError MissingPolicy = iota
	MissingIgnore
	MissingUseNull
)

type ReorderColumnsOp struct {
	Columns []string
	Missing MissingPolicy
}

type ChangeTypeOp struct {
	Column string
	Type   interface{} // table.DataType; kept as interface{} to avoid an import cycle with table
}

// --- filter predicate tree ---

type PredicateKind int

const (
	PredComparison PredicateKind = iota
	PredAnd
	PredOr
	PredNot
)

type ComparisonOp int

const (
	CmpEquals ComparisonOp = iota
	CmpNotEquals
	CmpLess
	CmpLessEq
	CmpGreater
	CmpGreaterEq
	CmpContains
	CmpStartsWith
	CmpEndsWith
	CmpIsNull
	CmpIsNotNull
)

type Comparison struct {
	Column        string
	Op            ComparisonOp
	Value         value.Value
	CaseSensitive *bool
}

// Predicate is the recursive tree of spec §4.2's filter_rows predicate.
type Predicate struct {
	Kind       PredicateKind
	Comparison *Comparison
	And        []Predicate
	Or         []Predicate
	Not        *Predicate
}

type FilterRowsOp struct{ Predicate Predicate }

type SortDirection int

const (
	Asc SortDirection = iota
	Desc
)

type NullsOrder int

const (
	NullsLast NullsOrder = iota
	NullsFirst
)

type SortKey struct {
	Column    string
	Direction SortDirection
	Nulls     NullsOrder
}

type SortRowsOp struct{ SortBy []SortKey }

type DistinctRowsOp struct{ Columns []string } // nil = all columns
type RemoveRowsWithErrorsOp struct{ Columns []string }

type AggOp int

const (
	AggSum AggOp = iota
	AggCount
	AggAverage
	AggMin
	AggMax
	AggCountDistinct
)

type Aggregation struct {
	Column string // "*" allowed for count
	Op     AggOp
	As     string // optional; defaults to "<op> of <column>"
}

type GroupByOp struct {
	Keys []string
	Aggs []Aggregation
}

type AddColumnOp struct {
	Name    string
	Formula string // sandboxed per-row expression referencing [Column]
}

type AddIndexColumnOp struct {
	Name      string
	Initial   int64
	Increment int64
}

type CombineColumnsOp struct {
	Columns   []string
	Delimiter string
	NewName   string
}

type SplitColumnOp struct {
	Column     string
	Delimiter  string
	NewColumns []string // optional; nil means unknown resulting schema
}

type ColumnTransform struct {
	Column  string
	Formula string // bound to `_`
	NewType interface{}
}

type TransformColumnsOp struct{ Transforms []ColumnTransform }

type NameOp int

const (
	NameUpper NameOp = iota
	NameLower
	NameTrim
)

type TransformColumnNamesOp struct{ Op NameOp }

type FillDownOp struct{ Columns []string }

type ReplaceValuesOp struct {
	Column  string
	Find    value.Value
	Replace value.Value
}

type ErrorReplacement struct {
	Column  string
	Replace value.Value
}

type ReplaceErrorValuesOp struct{ Replacements []ErrorReplacement }

type PromoteHeadersOp struct{}
type DemoteHeadersOp struct{}

type TakeOp struct{ N int }
type SkipOp struct{ N int }
type RemoveRowsOp struct {
	Offset int
	Count  int
}

type PivotOp struct {
	RowCol   string
	ValueCol string
	Agg      AggOp
}

type UnpivotOp struct {
	Columns  []string
	NameCol  string
	ValueCol string
}

// JoinType is the spec §4.3 join kind.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
	JoinFull
)

// JoinMode selects flat vs. nested merge output shape (spec §4.3).
type JoinMode int

const (
	JoinFlat JoinMode = iota
	JoinNested
)

// JoinAlgorithmHint is parsed and stored but never changes results
// (spec §9 Open Questions); the engine always uses a single hash-join
// implementation regardless of hint.
type JoinAlgorithmHint int

const (
	JoinHintDynamic JoinAlgorithmHint = iota
	JoinHintSortMerge
	JoinHintLeftHash
	JoinHintRightHash
	JoinHintPairwiseHash
)

// Comparer controls key comparison semantics for one or all join keys.
type Comparer struct {
	Name          string // e.g. "ordinalIgnoreCase"
	CaseSensitive *bool
}

type MergeOp struct {
	RightQuery      string
	JoinType        JoinType
	LeftKeys        []string
	RightKeys       []string
	JoinMode        JoinMode
	NewColumnName   string   // nested mode only
	RightColumns    []string // nested mode only; nil = all right columns
	Comparer        *Comparer
	Comparers       []Comparer // per-key; overrides Comparer when len>1 and non-uniform
	AlgorithmHint   JoinAlgorithmHint
}

type ExpandTableColumnOp struct {
	Column         string
	Columns        []string // nil = all nested columns
	NewColumnNames []string
}

type AppendOp struct{ QueryIDs []string }
