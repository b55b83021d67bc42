package query

import (
	"fmt"
	"sort"
	"strings"
)

// Op is a comparison operator in a filter expression.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpContains
	OpIn
)

var opNames = map[Op]string{
	OpEq:       "eq",
	OpNe:       "ne",
	OpGt:       "gt",
	OpGte:      "gte",
	OpLt:       "lt",
	OpLte:      "lte",
	OpContains: "contains",
	OpIn:       "in",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// ParseOp maps an operator name ("eq", "gt", ...) back to an Op.
func ParseOp(s string) (Op, bool) {
	for op, name := range opNames {
		if name == s {
			return op, true
		}
	}
	return OpEq, false
}

// Expr is a filter expression node. Expressions are plain data: providers
// inspect them (sqlgen translates them to SQL) and the in-memory engine
// compiles them into matcher closures.
type Expr interface {
	// Fingerprint returns a canonical string form of the expression. It is
	// used only as a compiled-matcher cache key; clause identity is the
	// ordered clause list, never the fingerprint.
	Fingerprint() string

	isExpr()
}

// ParamRef is a placeholder resolved against the Params carrier at apply
// time. Recognized names are "id" (Args.ID) and "name" (NamedArgs.Name).
type ParamRef struct {
	Name string
}

// Param references a named parameter, e.g. Eq("OwnerID", Param("id")).
func Param(name string) ParamRef { return ParamRef{Name: name} }

// ArgRef is a placeholder resolved against the positional values of the
// Params carrier at apply time.
type ArgRef struct {
	Index int
}

// Arg references the i-th positional parameter value.
func Arg(i int) ArgRef { return ArgRef{Index: i} }

// Cmp is a single field comparison. Value may be a literal, a ParamRef, or
// an ArgRef. Field addresses an exported struct field, a dotted path through
// nested structs, or a map key.
type Cmp struct {
	Field string
	Op    Op
	Value any
}

func (c Cmp) isExpr() {}

func (c Cmp) Fingerprint() string {
	return fmt.Sprintf("%s %s %s", c.Field, c.Op, valueFingerprint(c.Value))
}

// AndExpr matches when all children match.
type AndExpr struct {
	Exprs []Expr
}

func (a AndExpr) isExpr() {}

func (a AndExpr) Fingerprint() string { return nodeFingerprint("and", a.Exprs) }

// OrExpr matches when any child matches.
type OrExpr struct {
	Exprs []Expr
}

func (o OrExpr) isExpr() {}

func (o OrExpr) Fingerprint() string { return nodeFingerprint("or", o.Exprs) }

// NotExpr inverts its child.
type NotExpr struct {
	Expr Expr
}

func (n NotExpr) isExpr() {}

func (n NotExpr) Fingerprint() string {
	if n.Expr == nil {
		return "not()"
	}
	return "not(" + n.Expr.Fingerprint() + ")"
}

// Eq matches entities whose field equals value.
func Eq(field string, value any) Expr { return Cmp{Field: field, Op: OpEq, Value: value} }

// Ne matches entities whose field does not equal value.
func Ne(field string, value any) Expr { return Cmp{Field: field, Op: OpNe, Value: value} }

// Gt matches entities whose field is greater than value.
func Gt(field string, value any) Expr { return Cmp{Field: field, Op: OpGt, Value: value} }

// Gte matches entities whose field is greater than or equal to value.
func Gte(field string, value any) Expr { return Cmp{Field: field, Op: OpGte, Value: value} }

// Lt matches entities whose field is less than value.
func Lt(field string, value any) Expr { return Cmp{Field: field, Op: OpLt, Value: value} }

// Lte matches entities whose field is less than or equal to value.
func Lte(field string, value any) Expr { return Cmp{Field: field, Op: OpLte, Value: value} }

// Contains matches entities whose field contains value as a substring.
func Contains(field string, value any) Expr {
	return Cmp{Field: field, Op: OpContains, Value: value}
}

// In matches entities whose field equals one of the given values.
func In(field string, values ...any) Expr {
	return Cmp{Field: field, Op: OpIn, Value: values}
}

// And combines expressions; all must match.
func And(exprs ...Expr) Expr { return AndExpr{Exprs: exprs} }

// Or combines expressions; at least one must match.
func Or(exprs ...Expr) Expr { return OrExpr{Exprs: exprs} }

// Not inverts an expression.
func Not(expr Expr) Expr { return NotExpr{Expr: expr} }

func nodeFingerprint(name string, exprs []Expr) string {
	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		if e != nil {
			parts = append(parts, e.Fingerprint())
		}
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

func valueFingerprint(v any) string {
	switch ref := v.(type) {
	case ParamRef:
		return "$" + ref.Name
	case ArgRef:
		return fmt.Sprintf("$#%d", ref.Index)
	case []any:
		parts := make([]string, len(ref))
		for i, item := range ref {
			parts[i] = valueFingerprint(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(ref))
		for k := range ref {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ":" + valueFingerprint(ref[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%T(%v)", v, v)
	}
}
