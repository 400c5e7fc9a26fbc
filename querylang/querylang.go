// Package querylang parses the textual query language accepted at the
// external interface (an expression over column names, a projection
// prefix, and an orderBy suffix) into a plan.QuerySpec.
//
// Built with participle (lexer.MustSimple token rules plus
// participle.MustBuild over a struct-tagged grammar type), generalized
// from a flat grammar to a recursive precedence-climbing boolean
// expression grammar, which participle supports natively via
// pointer-typed recursive fields.
package querylang

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/coreward/relkv/filter"
	"github.com/coreward/relkv/plan"
)

var queryLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Arg", Pattern: `\?[0-9]+`},
	{Name: "Float", Pattern: `[0-9]+\.[0-9]+`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "String", Pattern: `'[^']*'|"[^"]*"`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Op", Pattern: `==|!=|>=|<=|&&|\|\||!in\b|[><(){},!]`},
})

type queryGrammar struct {
	Projection []string     `( "{" @Ident ( "," @Ident )* "}" )?`
	Expr       *orExpr      `@@`
	OrderBy    []*orderTerm `( "orderBy" @@ ( "," @@ )* )?`
}

type orderTerm struct {
	Column     string `@Ident`
	Descending bool   `@"desc"?`
}

type orExpr struct {
	Left  *andExpr   `@@`
	Right []*andExpr `( "||" @@ )*`
}

type andExpr struct {
	Left  *unary   `@@`
	Right []*unary `( "&&" @@ )*`
}

type unary struct {
	Not   bool        `@"!"?`
	Group *orExpr     `(  "(" @@ ")"`
	Cmp   *comparison `  | @@ )`
}

type comparison struct {
	Column string `@Ident`
	Op     string `@( "==" | "!=" | ">=" | "<=" | ">" | "<" | "!in" | "in" )`
	Value  *value `@@`
}

type value struct {
	Arg    *string `  @Arg`
	Str    *string `| @String`
	Number *string `| ( @Float | @Int )`
	Bool   *string `| @( "true" | "false" )`
	Column *string `| @Ident`
}

var queryParser = participle.MustBuild[queryGrammar](
	participle.Lexer(queryLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// Parse parses a query-language string into a plan.QuerySpec.
func Parse(query string) (plan.QuerySpec, error) {
	g, err := queryParser.ParseString("", query)
	if err != nil {
		return plan.QuerySpec{}, fmt.Errorf("querylang: %w", err)
	}

	expr, err := buildOrExpr(g.Expr)
	if err != nil {
		return plan.QuerySpec{}, err
	}

	orderBy := make([]plan.OrderTerm, len(g.OrderBy))
	for i, t := range g.OrderBy {
		orderBy[i] = plan.OrderTerm{Column: t.Column, Descending: t.Descending}
	}

	return plan.QuerySpec{
		Projection: g.Projection,
		OrderBy:    orderBy,
		Filter:     expr,
	}, nil
}

func buildOrExpr(e *orExpr) (filter.Expr, error) {
	left, err := buildAndExpr(e.Left)
	if err != nil {
		return nil, err
	}
	if len(e.Right) == 0 {
		return left, nil
	}
	terms := []filter.Expr{left}
	for _, r := range e.Right {
		rt, err := buildAndExpr(r)
		if err != nil {
			return nil, err
		}
		terms = append(terms, rt)
	}
	return filter.Or(terms...), nil
}

func buildAndExpr(e *andExpr) (filter.Expr, error) {
	left, err := buildUnary(e.Left)
	if err != nil {
		return nil, err
	}
	if len(e.Right) == 0 {
		return left, nil
	}
	terms := []filter.Expr{left}
	for _, r := range e.Right {
		rt, err := buildUnary(r)
		if err != nil {
			return nil, err
		}
		terms = append(terms, rt)
	}
	return filter.And(terms...), nil
}

func buildUnary(u *unary) (filter.Expr, error) {
	var inner filter.Expr
	var err error
	switch {
	case u.Group != nil:
		inner, err = buildOrExpr(u.Group)
	case u.Cmp != nil:
		inner, err = buildComparison(u.Cmp)
	default:
		return nil, fmt.Errorf("querylang: empty term")
	}
	if err != nil {
		return nil, err
	}
	if u.Not {
		return filter.Not(inner), nil
	}
	return inner, nil
}

func buildComparison(c *comparison) (filter.Expr, error) {
	op, ok := parseOp(c.Op)
	if !ok {
		return nil, fmt.Errorf("querylang: unknown operator %q", c.Op)
	}

	if c.Op == "in" || c.Op == "!in" {
		if c.Value.Arg == nil {
			return nil, fmt.Errorf("querylang: %s requires a bound argument, got %q", c.Op, c.Value)
		}
		argNum, err := parseArgNum(*c.Value.Arg)
		if err != nil {
			return nil, err
		}
		return filter.In{Column: c.Column, Op: op, ArgNum: argNum}, nil
	}

	switch {
	case c.Value.Arg != nil:
		argNum, err := parseArgNum(*c.Value.Arg)
		if err != nil {
			return nil, err
		}
		return filter.ColumnToArg{Column: c.Column, Op: op, ArgNum: argNum}, nil
	case c.Value.Column != nil:
		return filter.ColumnToColumn{A: c.Column, Op: op, B: *c.Value.Column}, nil
	default:
		constant, err := parseConstant(c.Value)
		if err != nil {
			return nil, err
		}
		return filter.ColumnToConstant{Column: c.Column, Op: op, Constant: constant}, nil
	}
}

func parseOp(s string) (filter.Op, bool) {
	switch s {
	case "==":
		return filter.OpEq, true
	case "!=":
		return filter.OpNe, true
	case ">=":
		return filter.OpGe, true
	case "<=":
		return filter.OpLe, true
	case ">":
		return filter.OpGt, true
	case "<":
		return filter.OpLt, true
	case "in":
		return filter.OpIn, true
	case "!in":
		return filter.OpNotIn, true
	default:
		return 0, false
	}
}

func parseArgNum(tok string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(tok, "?"))
	if err != nil {
		return 0, fmt.Errorf("querylang: bad argument reference %q: %w", tok, err)
	}
	return n, nil
}

func parseConstant(v *value) (any, error) {
	switch {
	case v.Str != nil:
		return unquote(*v.Str), nil
	case v.Number != nil:
		if i, err := strconv.ParseInt(*v.Number, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(*v.Number, 64)
		if err != nil {
			return nil, fmt.Errorf("querylang: bad numeric literal %q: %w", *v.Number, err)
		}
		return f, nil
	case v.Bool != nil:
		return *v.Bool == "true", nil
	default:
		return nil, fmt.Errorf("querylang: empty value")
	}
}

func unquote(s string) string {
	if len(s) >= 2 {
		return s[1 : len(s)-1]
	}
	return s
}
