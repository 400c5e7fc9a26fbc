package filter

import "testing"

func TestNotNotIsIdentity(t *testing.T) {
	e := ColumnToArg{Column: "a", Op: OpEq, ArgNum: 1}
	got := Not(Not(e))
	if !exprEqualShape(got, e) {
		t.Fatalf("Not(Not(e)) = %v, want %v", got, e)
	}
}

func TestIsMatchComplementary(t *testing.T) {
	e := ColumnToArg{Column: "a", Op: OpEq, ArgNum: 1}
	if got := IsMatch(e, Not(e)); got != -1 {
		t.Fatalf("IsMatch(e, not e) = %d, want -1", got)
	}
	if got := IsMatch(e, e); got != 1 {
		t.Fatalf("IsMatch(e, e) = %d, want 1", got)
	}
}

func TestAndEmptyIsTrue(t *testing.T) {
	if _, ok := And().(True); !ok {
		t.Fatal("And() should be True")
	}
}

func TestOrEmptyIsFalse(t *testing.T) {
	if _, ok := Or().(False); !ok {
		t.Fatal("Or() should be False")
	}
}

func TestReduceComplementationToFalse(t *testing.T) {
	a := ColumnToArg{Column: "a", Op: OpEq, ArgNum: 1}
	e := And(a, Not(a))
	if _, ok := Reduce(e).(False); !ok {
		t.Fatalf("Reduce(a && !a) = %v, want False", Reduce(e))
	}
}

func TestReduceIdempotence(t *testing.T) {
	a := ColumnToArg{Column: "a", Op: OpEq, ArgNum: 1}
	e := And(a, a)
	if !exprEqualShape(Reduce(e), a) {
		t.Fatalf("Reduce(a && a) = %v, want %v", Reduce(e), a)
	}
}

func TestReduceOperatorMergeRange(t *testing.T) {
	// a >= 1 && a <= 1  =>  a == 1
	ge := ColumnToConstant{Column: "a", Op: OpGe, Constant: 1}
	le := ColumnToConstant{Column: "a", Op: OpLe, Constant: 1}
	got := Reduce(And(ge, le))
	want := ColumnToConstant{Column: "a", Op: OpEq, Constant: 1}
	if !exprEqualShape(got, want) {
		t.Fatalf("Reduce(a>=1 && a<=1) = %v, want %v", got, want)
	}
}

func TestReduceAbsorption(t *testing.T) {
	a := ColumnToArg{Column: "a", Op: OpEq, ArgNum: 1}
	b := ColumnToArg{Column: "b", Op: OpEq, ArgNum: 2}
	// a || (a && b) => a
	got := Reduce(Or(a, And(a, b)))
	if !exprEqualShape(got, a) {
		t.Fatalf("Reduce(a || (a && b)) = %v, want %v", got, a)
	}
}

func TestDNFDistributesOrOverAnd(t *testing.T) {
	a := ColumnToArg{Column: "a", Op: OpEq, ArgNum: 1}
	b := ColumnToArg{Column: "b", Op: OpGt, ArgNum: 2}
	c := ColumnToArg{Column: "b", Op: OpLt, ArgNum: 3}

	e := And(a, Or(b, c))
	dnf, err := DNF(e)
	if err != nil {
		t.Fatal(err)
	}
	og, ok := dnf.(OrGroup)
	if !ok || len(og.Terms) != 2 {
		t.Fatalf("DNF(a && (b||c)) = %v, want 2-term OrGroup", dnf)
	}
}

func TestCNFRoundTripsThroughReduce(t *testing.T) {
	a := ColumnToArg{Column: "a", Op: OpEq, ArgNum: 1}
	b := ColumnToArg{Column: "b", Op: OpGt, ArgNum: 2}
	e := Or(a, b)

	cnf, err := CNF(e)
	if err != nil {
		t.Fatal(err)
	}
	if !exprEqualShape(Reduce(cnf), Reduce(e)) {
		t.Fatalf("CNF(e).reduce() = %v, want %v", Reduce(cnf), Reduce(e))
	}
}

func TestRetainDropsUnwantedColumn(t *testing.T) {
	a := ColumnToArg{Column: "a", Op: OpEq, ArgNum: 1}
	b := ColumnToArg{Column: "b", Op: OpEq, ArgNum: 2}
	e := And(a, b)

	got := Retain(e, func(col string) RetainDecision {
		if col == "a" {
			return RetainKeep
		}
		return RetainDrop
	}, false, False{})

	if !exprEqualShape(got, a) {
		t.Fatalf("Retain dropped b should leave %v, got %v", a, got)
	}
}

func TestReplaceArgumentsRenumbers(t *testing.T) {
	e := ColumnToArg{Column: "a", Op: OpEq, ArgNum: 1}
	got := ReplaceArguments(e, func(n int) int { return n + 10 })
	want := ColumnToArg{Column: "a", Op: OpEq, ArgNum: 11}
	if !exprEqualShape(got, want) {
		t.Fatalf("ReplaceArguments = %v, want %v", got, want)
	}
}

func TestConstantsToArgumentsAssignsOrSkips(t *testing.T) {
	e := ColumnToConstant{Column: "a", Op: OpEq, Constant: 5}
	got := ConstantsToArguments(e, func(c ColumnToConstant) int { return 7 })
	want := ColumnToArg{Column: "a", Op: OpEq, ArgNum: 7}
	if !exprEqualShape(got, want) {
		t.Fatalf("ConstantsToArguments assigned = %v, want %v", got, want)
	}

	skip := ConstantsToArguments(e, func(c ColumnToConstant) int { return 0 })
	if !exprEqualShape(skip, e) {
		t.Fatalf("ConstantsToArguments skip=0 should leave constant, got %v", skip)
	}
}

func TestReferencedColumns(t *testing.T) {
	e := And(
		ColumnToArg{Column: "a", Op: OpEq, ArgNum: 1},
		ColumnToColumn{A: "b", Op: OpLt, B: "c"},
	)
	cols := ReferencedColumns(e)
	if len(cols) != 3 {
		t.Fatalf("ReferencedColumns = %v, want 3 columns", cols)
	}
}
