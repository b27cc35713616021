package checkpoint

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/hyperjump/styleseek/internal/models"
)

func sampleRecords() []*models.Record {
	return []*models.Record{
		{
			ID:        "p1",
			Embedding: []float32{0.25, -1.5, 0, 3.75},
			Content:   "Slim jeans by Levis. Color: Blue. Description: denim",
			Metadata: map[string]string{
				models.MetaName:     "Slim jeans",
				models.MetaBrand:    "Levis",
				models.MetaFilePath: "/data/images/p1.jpg",
			},
			IndexedAt: time.Unix(0, 1700000000000000000),
		},
		{
			ID:        "p2",
			Embedding: []float32{1, 1, 1, 1},
			Content:   "Tee by Acme. Color: Red. Description: cotton",
			Metadata:  map[string]string{models.MetaName: "Tee"},
			IndexedAt: time.Unix(0, 1700000001000000000),
		},
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx.ckpt")
	m := NewManager(path)
	want := sampleRecords()

	if err := m.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, ok, err := m.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !ok {
		t.Fatal("Load reported absent after Save")
	}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID {
			t.Errorf("record %d id = %s, want %s", i, got[i].ID, want[i].ID)
		}
		if !reflect.DeepEqual(got[i].Embedding, want[i].Embedding) {
			t.Errorf("record %d embedding = %v, want %v", i, got[i].Embedding, want[i].Embedding)
		}
		if got[i].Content != want[i].Content {
			t.Errorf("record %d content mismatch", i)
		}
		if !reflect.DeepEqual(got[i].Metadata, want[i].Metadata) {
			t.Errorf("record %d metadata = %v, want %v", i, got[i].Metadata, want[i].Metadata)
		}
		if !got[i].IndexedAt.Equal(want[i].IndexedAt) {
			t.Errorf("record %d indexed_at mismatch", i)
		}
	}
}

func TestLoadAbsent(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "missing.ckpt"))
	records, ok, err := m.Load()
	if err != nil {
		t.Fatalf("absent checkpoint should not error: %v", err)
	}
	if ok {
		t.Error("absent checkpoint reported present")
	}
	if records != nil {
		t.Error("absent checkpoint returned records")
	}
}

func TestSaveEmptySet(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "empty.ckpt"))
	if err := m.Save(nil); err != nil {
		t.Fatal(err)
	}
	got, ok, err := m.Load()
	if err != nil || !ok {
		t.Fatalf("Load = (%v, %v)", ok, err)
	}
	if len(got) != 0 {
		t.Errorf("got %d records, want 0", len(got))
	}
}

func TestSaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(filepath.Join(dir, "idx.ckpt"))
	if err := m.Save(sampleRecords()); err != nil {
		t.Fatal(err)
	}
	if err := m.Save(sampleRecords()[:1]); err != nil {
		t.Fatal(err)
	}
	got, ok, err := m.Load()
	if err != nil || !ok {
		t.Fatalf("Load = (%v, %v)", ok, err)
	}
	if len(got) != 1 {
		t.Errorf("got %d records, want 1", len(got))
	}
	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want only the checkpoint", len(entries))
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ckpt")
	if err := os.WriteFile(path, []byte("not a checkpoint"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := NewManager(path).Load(); err == nil {
		t.Error("expected error for corrupt checkpoint")
	}
}
