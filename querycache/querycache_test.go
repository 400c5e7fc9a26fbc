package querycache

import "testing"

func TestScanFactoryRoundTrip(t *testing.T) {
	c := New(4)
	key := ScanFactoryKey{Query: "id == ?1", DoubleCheck: true}

	if _, ok := c.ScanFactory(key); ok {
		t.Fatal("expected miss before Put")
	}
	c.PutScanFactory(key, "factory-A")
	got, ok := c.ScanFactory(key)
	if !ok || got != "factory-A" {
		t.Fatalf("got %v, %v, want factory-A, true", got, ok)
	}
}

func TestScanFactoryKeyDistinguishesDoubleCheckFlag(t *testing.T) {
	c := New(4)
	k1 := ScanFactoryKey{Query: "sku == ?1", DoubleCheck: false}
	k2 := ScanFactoryKey{Query: "sku == ?1", DoubleCheck: true}

	c.PutScanFactory(k1, "no-guard")
	c.PutScanFactory(k2, "guarded")

	got1, _ := c.ScanFactory(k1)
	got2, _ := c.ScanFactory(k2)
	if got1 != "no-guard" || got2 != "guarded" {
		t.Fatalf("got %v / %v, want distinct cached entries", got1, got2)
	}
}

func TestEvictionUnderCapacity(t *testing.T) {
	c := New(2)
	c.PutScanFactory(ScanFactoryKey{Query: "a"}, 1)
	c.PutScanFactory(ScanFactoryKey{Query: "b"}, 2)
	c.PutScanFactory(ScanFactoryKey{Query: "c"}, 3)

	if _, ok := c.ScanFactory(ScanFactoryKey{Query: "a"}); ok {
		t.Fatal("expected the least recently used entry to be evicted")
	}
	if _, ok := c.ScanFactory(ScanFactoryKey{Query: "c"}); !ok {
		t.Fatal("expected the most recently added entry to survive")
	}
}

func TestClearEmptiesAllThreeSlots(t *testing.T) {
	c := New(4)
	c.PutScanFactory(ScanFactoryKey{Query: "a"}, 1)
	c.PutDerivedQuery("a", "derived")
	c.PutSortPlan("a:orderBy", "sorted")

	c.Clear()

	if _, ok := c.ScanFactory(ScanFactoryKey{Query: "a"}); ok {
		t.Fatal("expected scan factory slot cleared")
	}
	if _, ok := c.DerivedQuery("a"); ok {
		t.Fatal("expected derived query slot cleared")
	}
	if _, ok := c.SortPlan("a:orderBy"); ok {
		t.Fatal("expected sort plan slot cleared")
	}
}
