package coderec

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/omertheroot/correlf/internal/apperr"
)

func TestClassifyDisabledReturnsEmpty(t *testing.T) {
	b := NewBridge(false, "")
	regions, err := b.Classify(context.Background(), "/nonexistent/path")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if regions != nil {
		t.Errorf("regions = %v, want nil", regions)
	}
}

func TestClassifyBuiltinEntropy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.bin")
	data := make([]byte, EntropyWindowSize)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	b := NewBridge(true, BuiltinEntropyLocation)
	regions, err := b.Classify(context.Background(), path)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(regions) != 1 || regions[0].Tag != "data" {
		t.Fatalf("regions = %+v, want one data region", regions)
	}
}

func TestSplitDocumentsSingle(t *testing.T) {
	stream := []byte(`{"file":"a.bin","range_results":[[{"start":0,"end":10},10,"code"]]}`)
	docs, err := splitDocuments(stream)
	if err != nil {
		t.Fatalf("splitDocuments: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d docs, want 1", len(docs))
	}
	if docs[0].file != "a.bin" {
		t.Errorf("file = %q, want a.bin", docs[0].file)
	}
	if len(docs[0].regions) != 1 || docs[0].regions[0].Tag != "code" {
		t.Errorf("regions = %+v", docs[0].regions)
	}
}

func TestSplitDocumentsConcatenatedNoSeparator(t *testing.T) {
	stream := []byte(`{"file":"a.bin","range_results":[[{"start":0,"end":4},4,"code"]]}` +
		`{"file":"b.bin","range_results":[[{"start":4,"end":8},4,"data"]]}`)

	docs, err := splitDocuments(stream)
	if err != nil {
		t.Fatalf("splitDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	if docs[0].file != "a.bin" || docs[1].file != "b.bin" {
		t.Errorf("file names = %q, %q", docs[0].file, docs[1].file)
	}
	if docs[1].regions[0].Start != 4 || docs[1].regions[0].End != 8 {
		t.Errorf("second doc region = %+v", docs[1].regions[0])
	}
}

func TestDecodeDocumentMissingRangeResultsFails(t *testing.T) {
	_, err := decodeDocument([]byte(`{"file":"a.bin"}`))
	if err == nil {
		t.Fatal("expected error for missing range_results")
	}
	if kind, ok := apperr.KindOf(err); !ok || kind != apperr.InvalidEncoding {
		t.Errorf("Kind = %v, %v, want InvalidEncoding", kind, ok)
	}
}

func TestDecodeDocumentMalformedTupleFails(t *testing.T) {
	_, err := decodeDocument([]byte(`{"file":"a.bin","range_results":[[1,2]]}`))
	if err == nil {
		t.Fatal("expected error for malformed tuple")
	}
}

func TestClassifyBatchDisabledReturnsEmptyForEach(t *testing.T) {
	b := NewBridge(false, "")
	results, err := b.ClassifyBatch(context.Background(), []string{"x", "y"})
	if err != nil {
		t.Fatalf("ClassifyBatch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for k, v := range results {
		if v != nil {
			t.Errorf("results[%q] = %v, want nil", k, v)
		}
	}
}
