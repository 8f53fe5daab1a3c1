package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/imHansiy/mediadex/internal/models"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	store := NewStore(path)

	doc := BuildDocument([]models.VersionGroup{
		movieGroupFixture("movie_1", "Dune"),
		tvGroupFixture("tv_2", "Dark", seasonFixture(1, 1)),
	})
	if err := store.Write(doc); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temp file left behind")
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Total != 2 || len(got.Movies) != 2 {
		t.Fatalf("loaded %d/%d entries, want 2", got.Total, len(got.Movies))
	}
	if _, ok := got.Movies[1].(*TVEntry); !ok {
		t.Errorf("entry 1 = %T, want *TVEntry", got.Movies[1])
	}
}

func TestStoreLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent.json"))

	doc, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.Total != 0 || doc.Movies == nil || len(doc.Movies) != 0 {
		t.Errorf("doc = %+v, want an empty document", doc)
	}
}

func TestStoreLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	doc, err := NewStore(path).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc.Movies) != 0 {
		t.Errorf("entries = %d, want 0", len(doc.Movies))
	}
}

func TestStoreLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewStore(path).Load(); err == nil {
		t.Fatal("expected a decode error")
	}
}

func TestStoreWriteCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "catalog.json")

	if err := NewStore(path).Write(&Document{Movies: []Entry{}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("artifact missing: %v", err)
	}
}

func TestStoreWriteReplacesPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	store := NewStore(path)

	first := BuildDocument([]models.VersionGroup{
		movieGroupFixture("movie_1", "Dune"),
		movieGroupFixture("movie_2", "Arrival"),
	})
	second := BuildDocument([]models.VersionGroup{
		movieGroupFixture("movie_3", "Blade Runner 2049"),
	})
	if err := store.Write(first); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := store.Write(second); err != nil {
		t.Fatalf("second write: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Total != 1 || got.Movies[0].EntryID() != "movie_3" {
		t.Errorf("loaded total %d, want only the second document", got.Total)
	}
}
