// Package filter implements the symbolic boolean predicate tree over
// column comparisons: the sealed-variant expression type, reduction to a
// fixpoint under a complexity budget, DNF/CNF normal-form conversion,
// equality/complementation matching, and the transforms the planner and
// mapping layers need (retain a column subset, renumber arguments,
// promote embedded constants to arguments).
//
// The tree is a closed, boolean-predicate-only algebra rather than a
// general SQL expression tree with arithmetic, functions, and
// subqueries: relkv filters never evaluate arithmetic or call functions,
// so the node set shrinks to the eight variants below instead of dozens
// of opcodes.
package filter

import "fmt"

// Op is a column comparison operator. Values are chosen so that
// flip(op) == op^1 (complementation of a binary comparison pairs adjacent
// values), the same bit trick a CompareResult-style comparison encoding
// would use.
type Op uint8

const (
	OpEq Op = iota
	OpNe
	OpGe
	OpLt
	OpLe
	OpGt
	OpIn
	OpNotIn
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpGe:
		return ">="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpIn:
		return "IN"
	case OpNotIn:
		return "NOT IN"
	default:
		return fmt.Sprintf("Op(%d)", o)
	}
}

// Flip returns the logical negation of op: a == b becomes a != b, and so
// on. OpIn/OpNotIn are only meaningful for In nodes but flip symmetrically
// all the same.
func (o Op) Flip() Op { return o ^ 1 }

// Reverse swaps the operand order of a relational operator: a < b becomes
// b > a. Equality/inequality/membership operators are their own reverse.
func (o Op) Reverse() Op {
	switch o {
	case OpLt:
		return OpGt
	case OpGt:
		return OpLt
	case OpLe:
		return OpGe
	case OpGe:
		return OpLe
	default:
		return o
	}
}

// isRange reports whether op is one of the four relational range
// operators (not equality, inequality, or membership).
func (o Op) isRange() bool {
	switch o {
	case OpGe, OpLt, OpLe, OpGt:
		return true
	}
	return false
}

// Expr is the sealed filter expression type. Every concrete node
// implements it via the unexported exprNode method, closing the variant
// set to the eight types defined in this package.
type Expr interface {
	exprNode()
	String() string
}

// True is the boolean identity "always matches".
type True struct{}

func (True) exprNode()      {}
func (True) String() string { return "TRUE" }

// False is the boolean identity "never matches".
type False struct{}

func (False) exprNode()      {}
func (False) String() string { return "FALSE" }

// ColumnToArg compares a column to a positional bound argument.
type ColumnToArg struct {
	Column string
	Op     Op
	ArgNum int
}

func (ColumnToArg) exprNode() {}
func (c ColumnToArg) String() string {
	return fmt.Sprintf("%s %s ?%d", c.Column, c.Op, c.ArgNum)
}

// ColumnToColumn compares two columns of the same row.
type ColumnToColumn struct {
	A  string
	Op Op
	B  string
}

func (ColumnToColumn) exprNode() {}
func (c ColumnToColumn) String() string {
	return fmt.Sprintf("%s %s %s", c.A, c.Op, c.B)
}

// ColumnToConstant compares a column to a constant embedded in the filter
// itself (as opposed to a bound argument).
type ColumnToConstant struct {
	Column   string
	Op       Op
	Constant any
}

func (ColumnToConstant) exprNode() {}
func (c ColumnToConstant) String() string {
	return fmt.Sprintf("%s %s %v", c.Column, c.Op, c.Constant)
}

// In tests column membership in the set bound to argument ArgNum. Op is
// always OpIn or OpNotIn; Not flips between them via Op.Flip(), the same
// mechanism every other node uses.
type In struct {
	Column string
	Op     Op
	ArgNum int
}

func (In) exprNode() {}
func (i In) String() string {
	return fmt.Sprintf("%s %s ?%d", i.Column, i.Op, i.ArgNum)
}

// AndGroup is an n-ary conjunction. Construction always flattens nested
// AndGroups and never stores fewer than two terms (use And to build one
// safely).
type AndGroup struct {
	Terms []Expr
}

func (AndGroup) exprNode() {}
func (a AndGroup) String() string { return joinTerms(a.Terms, " && ") }

// OrGroup is an n-ary disjunction, with the same flattening guarantee as
// AndGroup.
type OrGroup struct {
	Terms []Expr
}

func (OrGroup) exprNode() {}
func (o OrGroup) String() string { return joinTerms(o.Terms, " || ") }

func joinTerms(terms []Expr, sep string) string {
	s := ""
	for i, t := range terms {
		if i > 0 {
			s += sep
		}
		s += "(" + t.String() + ")"
	}
	return s
}

// And builds a conjunction of terms, flattening nested AndGroups and
// applying the identity-element rules: an empty conjunction is True, a
// single term is returned unwrapped, and any False term collapses the
// whole conjunction to False.
func And(terms ...Expr) Expr {
	flat := make([]Expr, 0, len(terms))
	for _, t := range terms {
		switch g := t.(type) {
		case AndGroup:
			flat = append(flat, g.Terms...)
		case True:
			// identity, drop
		case False:
			return False{}
		default:
			flat = append(flat, t)
		}
	}
	switch len(flat) {
	case 0:
		return True{}
	case 1:
		return flat[0]
	default:
		return AndGroup{Terms: flat}
	}
}

// Or builds a disjunction of terms, with the dual rules of And.
func Or(terms ...Expr) Expr {
	flat := make([]Expr, 0, len(terms))
	for _, t := range terms {
		switch g := t.(type) {
		case OrGroup:
			flat = append(flat, g.Terms...)
		case False:
			// identity, drop
		case True:
			return True{}
		default:
			flat = append(flat, t)
		}
	}
	switch len(flat) {
	case 0:
		return False{}
	case 1:
		return flat[0]
	default:
		return OrGroup{Terms: flat}
	}
}

// Not returns the logical complement of e, pushing negation down to the
// leaves (De Morgan) rather than wrapping e in an explicit Not node —
// the tree never carries a Not variant, matching the sealed-variant set
// named by the predicate algebra this package implements.
func Not(e Expr) Expr {
	switch v := e.(type) {
	case True:
		return False{}
	case False:
		return True{}
	case ColumnToArg:
		v.Op = v.Op.Flip()
		return v
	case ColumnToColumn:
		v.Op = v.Op.Flip()
		return v
	case ColumnToConstant:
		v.Op = v.Op.Flip()
		return v
	case In:
		v.Op = v.Op.Flip()
		return v
	case AndGroup:
		negated := make([]Expr, len(v.Terms))
		for i, t := range v.Terms {
			negated[i] = Not(t)
		}
		return Or(negated...)
	case OrGroup:
		negated := make([]Expr, len(v.Terms))
		for i, t := range v.Terms {
			negated[i] = Not(t)
		}
		return And(negated...)
	default:
		panic(fmt.Sprintf("filter: Not: unknown node type %T", e))
	}
}
