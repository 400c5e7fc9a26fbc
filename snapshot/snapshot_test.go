package snapshot

import (
	"bytes"
	"testing"
)

type row struct{ key, value []byte }

type sliceSource struct {
	rows []row
	pos  int
}

func (s *sliceSource) Next() ([]byte, []byte, bool, error) {
	if s.pos >= len(s.rows) {
		return nil, nil, false, nil
	}
	r := s.rows[s.pos]
	s.pos++
	return r.key, r.value, true, nil
}

type sliceSink struct {
	rows []row
}

func (s *sliceSink) Put(key, value []byte) error {
	s.rows = append(s.rows, row{append([]byte(nil), key...), append([]byte(nil), value...)})
	return nil
}

func TestExportImportRoundTrip(t *testing.T) {
	src := &sliceSource{rows: []row{
		{[]byte("k1"), []byte("v1")},
		{[]byte("k2"), []byte("v2-longer-value")},
		{[]byte("k3"), []byte{}},
	}}

	var buf bytes.Buffer
	if err := Export(&buf, src); err != nil {
		t.Fatal(err)
	}

	sink := &sliceSink{}
	if err := Import(&buf, sink); err != nil {
		t.Fatal(err)
	}

	if len(sink.rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(sink.rows))
	}
	for i, want := range src.rows {
		got := sink.rows[i]
		if !bytes.Equal(got.key, want.key) || !bytes.Equal(got.value, want.value) {
			t.Fatalf("row %d = %q/%q, want %q/%q", i, got.key, got.value, want.key, want.value)
		}
	}
}

func TestExportImportEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, &sliceSource{}); err != nil {
		t.Fatal(err)
	}
	sink := &sliceSink{}
	if err := Import(&buf, sink); err != nil {
		t.Fatal(err)
	}
	if len(sink.rows) != 0 {
		t.Fatalf("got %d rows, want 0", len(sink.rows))
	}
}

func TestImportRejectsNonXZInput(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, &sliceSource{}); err != nil {
		t.Fatal(err)
	}
	corrupted := bytes.Repeat([]byte{0xff}, 16)

	sink := &sliceSink{}
	if err := Import(bytes.NewReader(corrupted), sink); err == nil {
		t.Fatal("expected an error for non-xz input")
	}
}
