package mapview

import (
	"strings"
	"testing"

	"github.com/coreward/relkv/filter"
)

// upperMapper maps a source "name" column to an uppercased target
// "DisplayName" column. DisplayName_to_name is its inverse (reflection
// only finds exported methods on a concrete type, hence the capitalized
// target-column prefix).
type upperMapper struct{}

func (upperMapper) Map(source any) (any, error) {
	return strings.ToUpper(source.(string)), nil
}

func (upperMapper) DisplayName_to_name(target any) (any, error) {
	return strings.ToLower(target.(string)), nil
}

func (upperMapper) Id_to_id(target any) (any, error) {
	return target, nil
}

func TestDiscoverInversesFindsMatchingMethods(t *testing.T) {
	inverses, err := DiscoverInverses(upperMapper{})
	if err != nil {
		t.Fatal(err)
	}
	if len(inverses) != 2 {
		t.Fatalf("got %d inverses, want 2", len(inverses))
	}
	byTarget := make(map[string]Inverse)
	for _, inv := range inverses {
		byTarget[inv.TargetColumn] = inv
	}
	if _, ok := byTarget["DisplayName"]; !ok {
		t.Fatal("expected DisplayName inverse discovered")
	}
	if _, ok := byTarget["Id"]; !ok {
		t.Fatal("expected Id inverse discovered")
	}
}

func TestInverseCallInvokesUnderlyingMethod(t *testing.T) {
	inverses, err := DiscoverInverses(upperMapper{})
	if err != nil {
		t.Fatal(err)
	}
	set := NewInverseSet(inverses)
	inv, ok := set.Lookup("DisplayName")
	if !ok {
		t.Fatal("expected DisplayName inverse")
	}
	v, err := inv.Call("HELLO")
	if err != nil {
		t.Fatal(err)
	}
	if v.(string) != "hello" {
		t.Fatalf("got %v, want hello", v)
	}
}

func TestPushFilterFailsWhenColumnNotUntransformed(t *testing.T) {
	inverses, _ := DiscoverInverses(upperMapper{})
	set := NewInverseSet(inverses)
	// The reflected Inverse defaults Untransformed to false: a mapper's
	// transforming method is never safe for filter push-down.
	f := filter.ColumnToConstant{Column: "DisplayName", Op: filter.OpEq, Constant: "X"}

	_, ok := PushFilter(f, set)
	if ok {
		t.Fatal("expected push-down to fail for a transformed column")
	}
}

func TestPushFilterSucceedsForUntransformedColumn(t *testing.T) {
	set := NewInverseSet([]Inverse{UntransformedInverse("id")})
	f := filter.ColumnToConstant{Column: "id", Op: filter.OpEq, Constant: int64(5)}

	pushed, ok := PushFilter(f, set)
	if !ok {
		t.Fatal("expected push-down to succeed for an untransformed column")
	}
	cc, ok := pushed.(filter.ColumnToConstant)
	if !ok || cc.Column != "id" {
		t.Fatalf("pushed = %#v, want ColumnToConstant on id", pushed)
	}
}

func TestPushOrderFailsWhenMapperFilters(t *testing.T) {
	set := NewInverseSet([]Inverse{UntransformedInverse("id")})
	_, ok := PushOrder([]string{"id"}, set, true)
	if ok {
		t.Fatal("expected order push-down to fail when the mapper filters")
	}
}

func TestPushOrderSucceedsWhenAllColumnsUntransformed(t *testing.T) {
	set := NewInverseSet([]Inverse{UntransformedInverse("id"), UntransformedInverse("ts")})
	pushed, ok := PushOrder([]string{"id", "ts"}, set, false)
	if !ok {
		t.Fatal("expected order push-down to succeed")
	}
	if len(pushed) != 2 || pushed[0] != "id" || pushed[1] != "ts" {
		t.Fatalf("pushed = %v, want [id ts]", pushed)
	}
}

func TestPrepareArgsInvokesInverseForEachColumn(t *testing.T) {
	inverses, _ := DiscoverInverses(upperMapper{})
	set := NewInverseSet(inverses)

	sourceArgs, err := PrepareArgs([]any{"HELLO"}, []string{"DisplayName"}, set)
	if err != nil {
		t.Fatal(err)
	}
	if sourceArgs[0].(string) != "hello" {
		t.Fatalf("got %v, want hello", sourceArgs[0])
	}
}

func TestCacheGetReflectsOnceAndReusesSet(t *testing.T) {
	c := NewCache()
	calls := 0
	build := func(all []Inverse) []Inverse {
		calls++
		return all
	}

	set1, err := c.Get(upperMapper{}, KindFull, build)
	if err != nil {
		t.Fatal(err)
	}
	set2, err := c.Get(upperMapper{}, KindFull, build)
	if err != nil {
		t.Fatal(err)
	}
	if set1 != set2 {
		t.Fatal("expected the same cached InverseSet on the second Get")
	}
	if calls != 1 {
		t.Fatalf("build called %d times, want 1", calls)
	}
}
