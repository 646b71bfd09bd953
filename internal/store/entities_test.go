package store

import (
	"testing"
)

func insertTestEntity(t *testing.T, db *DB, id, name string) *Entity {
	t.Helper()
	e := &Entity{
		ID:         id,
		Type:       "person",
		Name:       name,
		Summary:    name + " summary",
		FilePath:   "/mem/entities/person/" + id + ".md",
		Importance: 0.5,
	}
	if err := db.InsertEntity(e); err != nil {
		t.Fatalf("InsertEntity(%s): %v", id, err)
	}
	return e
}

func TestInsertAndGetEntity(t *testing.T) {
	db := testDB(t)

	e := insertTestEntity(t, db, "entity_01", "Ada")
	if e.CreatedAt == 0 || e.UpdatedAt != e.CreatedAt {
		t.Errorf("timestamps = %d/%d, want equal and non-zero", e.CreatedAt, e.UpdatedAt)
	}

	got, err := db.GetEntity("entity_01")
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if got == nil {
		t.Fatal("expected entity, got nil")
	}
	if got.Name != "Ada" || got.Summary != "Ada summary" || got.Importance != 0.5 {
		t.Errorf("got %+v", got)
	}
	if got.FilePath != e.FilePath {
		t.Errorf("FilePath = %q, want %q", got.FilePath, e.FilePath)
	}
}

func TestGetEntityMissing(t *testing.T) {
	db := testDB(t)

	got, err := db.GetEntity("entity_nope")
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestInsertEntityDuplicateID(t *testing.T) {
	db := testDB(t)

	insertTestEntity(t, db, "entity_01", "Ada")
	err := db.InsertEntity(&Entity{ID: "entity_01", Type: "person", Name: "Ada", FilePath: "x"})
	if err == nil {
		t.Error("expected error inserting duplicate entity id")
	}
}

func TestTouchEntity(t *testing.T) {
	db := testDB(t)

	e := &Entity{ID: "entity_01", Type: "person", Name: "Ada", FilePath: "x", CreatedAt: 1000}
	if err := db.InsertEntity(e); err != nil {
		t.Fatalf("InsertEntity: %v", err)
	}

	ok, err := db.TouchEntity("entity_01")
	if err != nil || !ok {
		t.Fatalf("TouchEntity = %v, %v", ok, err)
	}
	got, _ := db.GetEntity("entity_01")
	if got.UpdatedAt <= 1000 {
		t.Errorf("UpdatedAt = %d, want > 1000", got.UpdatedAt)
	}

	ok, err = db.TouchEntity("entity_missing")
	if err != nil {
		t.Fatalf("TouchEntity missing: %v", err)
	}
	if ok {
		t.Error("TouchEntity on missing id reported ok")
	}
}

func TestRecentEntities(t *testing.T) {
	db := testDB(t)

	for i, id := range []string{"entity_a", "entity_b", "entity_c"} {
		e := &Entity{ID: id, Type: "topic", Name: id, FilePath: "x", CreatedAt: int64(1000 * (i + 1))}
		if err := db.InsertEntity(e); err != nil {
			t.Fatalf("InsertEntity: %v", err)
		}
	}

	recent, err := db.RecentEntities(2)
	if err != nil {
		t.Fatalf("RecentEntities: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("len = %d, want 2", len(recent))
	}
	if recent[0].ID != "entity_c" || recent[1].ID != "entity_b" {
		t.Errorf("order = %s, %s; want entity_c, entity_b", recent[0].ID, recent[1].ID)
	}
}

func TestDeleteEntity(t *testing.T) {
	db := testDB(t)
	insertTestEntity(t, db, "entity_01", "Ada")

	ok, err := db.DeleteEntity("entity_01")
	if err != nil || !ok {
		t.Fatalf("DeleteEntity = %v, %v", ok, err)
	}
	ok, err = db.DeleteEntity("entity_01")
	if err != nil {
		t.Fatalf("DeleteEntity again: %v", err)
	}
	if ok {
		t.Error("second delete reported ok")
	}
}

func TestEntityBlobs(t *testing.T) {
	db := testDB(t)
	insertTestEntity(t, db, "entity_01", "Ada")

	refs, err := db.EntityBlobs()
	if err != nil {
		t.Fatalf("EntityBlobs: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("len = %d, want 1", len(refs))
	}
	r := refs[0]
	if r.ContentID != "entity_01" || r.ContentType != ContentEntity || r.Title != "Ada" {
		t.Errorf("ref = %+v", r)
	}
}
