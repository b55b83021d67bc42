// Package query builds declarative, composable query specifications over Go
// data.
//
// A Builder accumulates filter, ordering, paging, grouping, and eager-load
// clauses through fluent calls, then Build() freezes them into an immutable
// Query snapshot. The builder stays mutable and can be built again; later
// mutation never affects earlier snapshots.
//
// Filters come in two forms: inspectable expressions (Eq, Gt, In, And, Or,
// Not) that providers such as sqlgen can translate, and opaque Go functions
// via WhereFunc. Expression matchers are compiled once per distinct
// expression and held in a per-builder LRU cache; the ordered clause list is
// the source of truth, so two clauses with equal fingerprints still both
// apply.
//
// Runtime arguments travel in a Params value (Args, NamedArgs, IncludeArgs).
// Expressions reference them with Param("id"), Param("name") or Arg(i) and
// the references resolve when the query is applied.
package query
