// Package query implements the small filter language accepted by mandate
// listings, e.g.
//
//	status in ["ACTIVE", "ISSUED"] AND amount > 100
//	NOT (meta.agent == "merchant:emaar-store") OR issued_by matches "^Mo"
//
// Expressions are parsed once into an AST and evaluated per mandate.
package query

import "regexp"

// Node is any boolean-valued AST node.
type Node interface {
	node()
}

// Logical joins two nodes with AND or OR.
type Logical struct {
	Op    string // "AND" | "OR"
	Left  Node
	Right Node
}

// Not negates its operand.
type Not struct {
	Operand Node
}

// Compare is <field> <op> <value>.
type Compare struct {
	Field []string
	Op    Operator
	Value Value

	re *regexp.Regexp // compiled pattern for OpMatches
}

func (*Logical) node() {}
func (*Not) node()     {}
func (*Compare) node() {}

// Value is a literal on the right-hand side of a comparison: string, float64,
// bool, or []any for the operand of "in".
type Value struct {
	V any
}
