package catalog

import (
	"path/filepath"
	"testing"
)

func TestOpenJSONStoreCreatesEmptyStoreWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	store, err := OpenJSONStore(path)
	if err != nil {
		t.Fatalf("OpenJSONStore: %v", err)
	}
	all, err := store.FindAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Errorf("got %d records for a fresh store, want 0", len(all))
	}
}

func TestSaveAssignsIDsAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	store, err := OpenJSONStore(path)
	if err != nil {
		t.Fatal(err)
	}

	rec := &FileRecord{
		Filename: "busybox",
		SHA256:   "deadbeef",
		Representations: []Representation{
			{Type: StringMinHash, Data: []byte{1, 2, 3}},
		},
	}
	if err := store.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rec.ID == 0 {
		t.Error("expected a non-zero record ID after Save")
	}
	if rec.Representations[0].FileID != rec.ID {
		t.Errorf("representation FileID = %d, want %d", rec.Representations[0].FileID, rec.ID)
	}
	if rec.Representations[0].ID == 0 {
		t.Error("expected a non-zero representation ID after Save")
	}

	reopened, err := OpenJSONStore(path)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	all, err := reopened.FindAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Filename != "busybox" {
		t.Fatalf("reopened store = %+v, want one busybox record", all)
	}
}

func TestSaveAfterReopenContinuesIDSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	store, err := OpenJSONStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(&FileRecord{Filename: "a", SHA256: "aaa"}); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenJSONStore(path)
	if err != nil {
		t.Fatal(err)
	}
	recB := &FileRecord{Filename: "b", SHA256: "bbb"}
	if err := reopened.Save(recB); err != nil {
		t.Fatal(err)
	}
	if recB.ID != 2 {
		t.Errorf("ID after reopen = %d, want 2 (continuing the sequence)", recB.ID)
	}
}

func TestFindByHashReturnsAllFilenamesSharingAHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	store, err := OpenJSONStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(&FileRecord{Filename: "a.bin", SHA256: "shared"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(&FileRecord{Filename: "b.bin", SHA256: "shared"}); err != nil {
		t.Fatal(err)
	}

	found, err := store.FindByHash("shared")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 2 {
		t.Fatalf("got %d records sharing a hash, want 2", len(found))
	}
}

func TestFindByHashAndFilenameIsExact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	store, err := OpenJSONStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(&FileRecord{Filename: "a.bin", SHA256: "shared"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(&FileRecord{Filename: "b.bin", SHA256: "shared"}); err != nil {
		t.Fatal(err)
	}

	rec, found, err := store.FindByHashAndFilename("shared", "b.bin")
	if err != nil {
		t.Fatal(err)
	}
	if !found || rec.Filename != "b.bin" {
		t.Fatalf("FindByHashAndFilename = %+v, %v, want b.bin", rec, found)
	}

	_, found, err = store.FindByHashAndFilename("shared", "c.bin")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("expected no match for an unsaved filename")
	}
}
