package state

import (
	"testing"

	"datalens/domain/table"
	"datalens/internal/errors"
)

func validPayload() *table.Payload {
	return &table.Payload{
		Headers:          []string{"a", "b"},
		Rows:             []table.Row{{"a": 1.0, "b": "x"}},
		DescribedHeaders: []string{"col", "count"},
		DescribedRows:    []table.Row{{"col": "a", "count": 1.0}},
	}
}

func TestReplaceInjectsIndexFirst(t *testing.T) {
	store := NewStore()
	if err := store.Replace(validPayload()); err != nil {
		t.Fatalf("Replace() = %v", err)
	}

	dataset, describe, version := store.Snapshot()
	wantHeaders := []string{"index", "a", "b"}
	if len(dataset.Headers) != len(wantHeaders) {
		t.Fatalf("headers = %v, want %v", dataset.Headers, wantHeaders)
	}
	for i, h := range wantHeaders {
		if dataset.Headers[i] != h {
			t.Errorf("headers[%d] = %q, want %q", i, dataset.Headers[i], h)
		}
	}
	row := dataset.Rows[0]
	if row["index"] != 0 || row["a"] != 1.0 || row["b"] != "x" {
		t.Errorf("row = %v", row)
	}
	if len(describe.Rows) != 1 {
		t.Errorf("describe rows = %d, want 1", len(describe.Rows))
	}
	if version != 1 {
		t.Errorf("version = %d, want 1", version)
	}
	if !store.Loaded() {
		t.Error("store should report loaded")
	}
}

func TestReplaceRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*table.Payload)
	}{
		{"missing headers", func(p *table.Payload) { p.Headers = nil }},
		{"missing data", func(p *table.Payload) { p.Rows = nil }},
		{"missing headers_described", func(p *table.Payload) { p.DescribedHeaders = nil }},
		{"missing data_described", func(p *table.Payload) { p.DescribedRows = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore()
			if err := store.Replace(validPayload()); err != nil {
				t.Fatalf("seed Replace() = %v", err)
			}
			_, _, before := store.Snapshot()

			bad := validPayload()
			bad.Rows = []table.Row{{"a": 9.0, "b": "zzz"}}
			tt.mutate(bad)

			err := store.Replace(bad)
			if err == nil {
				t.Fatal("Replace() accepted a malformed payload")
			}
			if errors.GetCode(err) != errors.CodeStructuralError {
				t.Errorf("error code = %q, want %q", errors.GetCode(err), errors.CodeStructuralError)
			}

			dataset, _, after := store.Snapshot()
			if after != before {
				t.Errorf("version moved from %d to %d on failure", before, after)
			}
			if dataset.Rows[0]["a"] != 1.0 {
				t.Error("prior dataset was mutated by a failed replace")
			}
		})
	}
}

func TestPrepareTouchesNoState(t *testing.T) {
	store := NewStore()
	dataset, describe, err := Prepare(validPayload())
	if err != nil {
		t.Fatalf("Prepare() = %v", err)
	}
	if store.Loaded() || store.Version() != 0 {
		t.Error("Prepare moved store state")
	}
	if dataset.Headers[0] != table.IndexColumn {
		t.Errorf("prepared headers = %v, want index first", dataset.Headers)
	}

	store.Install(dataset, describe)
	if store.Version() != 1 || !store.Loaded() {
		t.Errorf("version = %d, loaded = %v after install", store.Version(), store.Loaded())
	}
}

func TestReplaceRejectsShapeMismatch(t *testing.T) {
	store := NewStore()
	bad := validPayload()
	bad.Rows = []table.Row{{"a": 1.0}} // row missing column b

	if err := store.Replace(bad); err == nil {
		t.Fatal("Replace() accepted rows that do not match headers")
	}
	if store.Loaded() {
		t.Error("failed replace marked the store loaded")
	}
}

func TestReplaceIsAtomicAcrossFields(t *testing.T) {
	store := NewStore()
	if err := store.Replace(validPayload()); err != nil {
		t.Fatalf("Replace() = %v", err)
	}

	next := &table.Payload{
		Headers:          []string{"c"},
		Rows:             []table.Row{{"c": 7.0}, {"c": 8.0}},
		DescribedHeaders: []string{"col"},
		DescribedRows:    []table.Row{{"col": "c"}},
	}
	if err := store.Replace(next); err != nil {
		t.Fatalf("Replace() = %v", err)
	}

	dataset, describe, version := store.Snapshot()
	if version != 2 {
		t.Errorf("version = %d, want 2", version)
	}
	if len(dataset.Rows) != 2 || dataset.Headers[1] != "c" {
		t.Errorf("dataset did not swap wholesale: %v", dataset)
	}
	if describe.Headers[0] != "col" || len(describe.Rows) != 1 {
		t.Errorf("describe did not swap with dataset: %v", describe)
	}
}

func TestReplaceKeepsExistingIndexColumn(t *testing.T) {
	store := NewStore()
	p := &table.Payload{
		Headers:          []string{"index", "a"},
		Rows:             []table.Row{{"index": 5.0, "a": 1.0}},
		DescribedHeaders: []string{"col"},
		DescribedRows:    []table.Row{{"col": "a"}},
	}
	if err := store.Replace(p); err != nil {
		t.Fatalf("Replace() = %v", err)
	}
	dataset := store.Dataset()
	if len(dataset.Headers) != 2 {
		t.Errorf("index column was duplicated: %v", dataset.Headers)
	}
	if dataset.Rows[0]["index"] != 5.0 {
		t.Errorf("existing index values were rewritten: %v", dataset.Rows[0])
	}
}
