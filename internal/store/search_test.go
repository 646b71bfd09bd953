package store

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/lazypower/mnemo/internal/memerr"
)

func indexDoc(t *testing.T, db *DB, id, typ, title, content string) {
	t.Helper()
	err := db.Index(SearchRecord{ContentID: id, ContentType: typ, Title: title, Summary: title + " summary", Content: content})
	if err != nil {
		t.Fatalf("Index(%s): %v", id, err)
	}
}

func TestSearchBasic(t *testing.T) {
	db := testDB(t)
	indexDoc(t, db, "entity_1", ContentEntity, "Ada Lovelace", "wrote the first published algorithm")
	indexDoc(t, db, "chat-1", ContentChat, "Gardening", "tomatoes need sun")

	hits, err := db.Search(SearchParams{Query: "algorithm"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ContentID != "entity_1" {
		t.Fatalf("hits = %+v, want entity_1", hits)
	}
	if hits[0].Title != "Ada Lovelace" || hits[0].ContentType != ContentEntity {
		t.Errorf("hit = %+v", hits[0])
	}
}

func TestSearchRankOrderAndLimit(t *testing.T) {
	db := testDB(t)
	indexDoc(t, db, "a", ContentChat, "once", "golang appears once among many other unrelated words here")
	indexDoc(t, db, "b", ContentChat, "golang golang", "golang golang golang")
	indexDoc(t, db, "c", ContentChat, "other", "nothing relevant")

	hits, err := db.Search(SearchParams{Query: "golang"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}
	if hits[0].ContentID != "b" {
		t.Errorf("top hit = %s, want b", hits[0].ContentID)
	}
	if hits[0].Relevance > hits[1].Relevance {
		t.Errorf("relevance not ascending: %v > %v", hits[0].Relevance, hits[1].Relevance)
	}

	limited, err := db.Search(SearchParams{Query: "golang", Limit: 1})
	if err != nil {
		t.Fatalf("Search limit: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limited = %d, want 1", len(limited))
	}
}

func TestSearchContentTypeFilter(t *testing.T) {
	db := testDB(t)
	indexDoc(t, db, "entity_1", ContentEntity, "Ada", "shared term")
	indexDoc(t, db, "chat-1", ContentChat, "Chat", "shared term")

	hits, err := db.Search(SearchParams{Query: "shared", ContentTypes: []string{ContentChat}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ContentID != "chat-1" {
		t.Errorf("hits = %+v, want only chat-1", hits)
	}
}

func TestSearchOperatorsAreLiteral(t *testing.T) {
	db := testDB(t)
	indexDoc(t, db, "x", ContentChat, "t", "alpha beta")

	for _, q := range []string{`alpha OR`, `"alpha`, `alpha*`, `NEAR(alpha`} {
		if _, err := db.Search(SearchParams{Query: q}); err != nil {
			t.Errorf("Search(%q): %v", q, err)
		}
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	db := testDB(t)

	for _, q := range []string{"", "   ", `""`} {
		_, err := db.Search(SearchParams{Query: q})
		if !errors.Is(err, memerr.ErrValidation) {
			t.Errorf("Search(%q) err = %v, want ErrValidation", q, err)
		}
	}
}

func TestSearchErrorClassification(t *testing.T) {
	if err := searchError("q", errors.New(`fts5: syntax error near "("`)); !errors.Is(err, memerr.ErrValidation) {
		t.Errorf("syntax error = %v, want ErrValidation", err)
	}

	db := testDB(t)
	db.Close()
	_, err := db.Search(SearchParams{Query: "alpha"})
	if err == nil {
		t.Fatal("Search on closed db succeeded")
	}
	if kind := memerr.Kind(err); kind != "internal" {
		t.Errorf("closed db kind = %q, want internal (err %v)", kind, err)
	}
}

func TestIndexReplacesExistingRow(t *testing.T) {
	db := testDB(t)
	indexDoc(t, db, "chat-1", ContentChat, "v1", "original words")
	indexDoc(t, db, "chat-1", ContentChat, "v2", "replacement words")

	n, _ := db.CountSearch()
	if n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
	hits, _ := db.Search(SearchParams{Query: "original"})
	if len(hits) != 0 {
		t.Errorf("stale content still matched: %+v", hits)
	}
}

// A term that only appears past the truncation point is not searchable.
func TestSearchTruncationLimit(t *testing.T) {
	db := testDB(t)

	filler := strings.Repeat("lorem ", MaxIndexedContent/6+10)
	content := filler + "zanzibar"
	if strings.Index(content, "zanzibar") < MaxIndexedContent {
		t.Fatal("test setup: term must start past the limit")
	}
	indexDoc(t, db, "long", ContentChat, "long doc", content)

	hits, err := db.Search(SearchParams{Query: "zanzibar"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("term past truncation point was matched: %+v", hits)
	}
	if !strings.Contains(content, "zanzibar") {
		t.Error("full content should contain the term")
	}

	hits, _ = db.Search(SearchParams{Query: "lorem"})
	if len(hits) != 1 {
		t.Errorf("prefix term hits = %d, want 1", len(hits))
	}
}

func TestTruncateContentRuneBoundary(t *testing.T) {
	s := strings.Repeat("a", MaxIndexedContent-1) + "é" + "tail"
	got := TruncateContent(s)
	if len(got) > MaxIndexedContent {
		t.Errorf("len = %d, want <= %d", len(got), MaxIndexedContent)
	}
	if !utf8.ValidString(got) {
		t.Error("truncation split a rune")
	}
	if got != strings.Repeat("a", MaxIndexedContent-1) {
		t.Errorf("unexpected truncation result of length %d", len(got))
	}

	short := "short"
	if TruncateContent(short) != short {
		t.Error("short content modified")
	}
}

func TestRebuildSearchSwapsIndex(t *testing.T) {
	db := testDB(t)
	indexDoc(t, db, "gone", ContentChat, "old", "obsolete material")

	records := []SearchRecord{
		{ContentID: "e1", ContentType: ContentEntity, Title: "Fresh", Content: "brand new material"},
		{ContentID: "c1", ContentType: ContentChat, Title: "Chat", Content: "more material"},
	}
	if err := db.RebuildSearch(records); err != nil {
		t.Fatalf("RebuildSearch: %v", err)
	}

	n, err := db.CountSearch()
	if err != nil {
		t.Fatalf("CountSearch: %v", err)
	}
	if n != 2 {
		t.Errorf("rows = %d, want 2", n)
	}
	hits, _ := db.Search(SearchParams{Query: "obsolete"})
	if len(hits) != 0 {
		t.Errorf("old rows survived rebuild: %+v", hits)
	}
	hits, _ = db.Search(SearchParams{Query: "material"})
	if len(hits) != 2 {
		t.Errorf("hits = %d, want 2", len(hits))
	}

	var staging int
	db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = ?`, stagingSearchTable).Scan(&staging)
	if staging != 0 {
		t.Error("staging table left behind")
	}

	// A second rebuild must work against the renamed table.
	if err := db.RebuildSearch(nil); err != nil {
		t.Fatalf("second RebuildSearch: %v", err)
	}
	if n, _ := db.CountSearch(); n != 0 {
		t.Errorf("rows after empty rebuild = %d, want 0", n)
	}
}

func TestRemoveFromSearch(t *testing.T) {
	db := testDB(t)
	indexDoc(t, db, "x", ContentChat, "t", "findme")

	if err := db.RemoveFromSearch("x"); err != nil {
		t.Fatalf("RemoveFromSearch: %v", err)
	}
	hits, _ := db.Search(SearchParams{Query: "findme"})
	if len(hits) != 0 {
		t.Errorf("hits = %+v, want none", hits)
	}
}

func TestStageSearchLeavesLiveIndex(t *testing.T) {
	db := testDB(t)
	indexDoc(t, db, "live", ContentChat, "t", "current words")

	if err := db.StageSearch([]SearchRecord{{ContentID: "next", ContentType: ContentChat, Content: "future words"}}); err != nil {
		t.Fatalf("StageSearch: %v", err)
	}
	hits, _ := db.Search(SearchParams{Query: "words"})
	if len(hits) != 1 || hits[0].ContentID != "live" {
		t.Fatalf("hits before swap = %+v, want live only", hits)
	}

	// Staging again replaces the abandoned table.
	if err := db.StageSearch(nil); err != nil {
		t.Fatalf("StageSearch again: %v", err)
	}
	if err := db.SwapSearch(); err != nil {
		t.Fatalf("SwapSearch: %v", err)
	}
	if n, _ := db.CountSearch(); n != 0 {
		t.Errorf("rows = %d, want 0", n)
	}
}
