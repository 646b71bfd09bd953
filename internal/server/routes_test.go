package server

import (
	"encoding/json"
	"net/http"
	"testing"
)

func createEntity(t *testing.T, srv *Server, name string) string {
	t.Helper()
	w := do(t, srv, "POST", "/api/entities",
		`{"name":"`+name+`","entity_type":"person","content":"likes compilers","summary":"friend"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create entity: status = %d; body: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["status"] != "created" {
		t.Fatalf("status = %v, want created", body["status"])
	}
	id, _ := body["entity_id"].(string)
	if id == "" {
		t.Fatal("missing entity_id")
	}
	return id
}

func TestEntityLifecycle(t *testing.T) {
	srv := testServer(t)
	id := createEntity(t, srv, "Ada")

	w := do(t, srv, "GET", "/api/entities/"+id, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: status = %d; body: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["name"] != "Ada" {
		t.Errorf("name = %v, want Ada", body["name"])
	}

	w = do(t, srv, "PATCH", "/api/entities/"+id, `{"content":"also likes tea"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update: status = %d; body: %s", w.Code, w.Body.String())
	}
	if got := decodeBody(t, w)["status"]; got != "updated" {
		t.Errorf("update status = %v, want updated", got)
	}

	w = do(t, srv, "GET", "/api/search?q=tea", "")
	if w.Code != http.StatusOK {
		t.Fatalf("search: status = %d; body: %s", w.Code, w.Body.String())
	}
	if got := decodeBody(t, w)["count"]; got != float64(1) {
		t.Errorf("search count = %v, want 1", got)
	}

	w = do(t, srv, "DELETE", "/api/entities/"+id, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete: status = %d; body: %s", w.Code, w.Body.String())
	}
	w = do(t, srv, "GET", "/api/entities/"+id, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestRelations(t *testing.T) {
	srv := testServer(t)
	a := createEntity(t, srv, "Ada")
	b := createEntity(t, srv, "Grace")

	w := do(t, srv, "POST", "/api/relations",
		`{"from_entity":"`+a+`","to_entity":"`+b+`","relation_type":"knows"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("relate: status = %d; body: %s", w.Code, w.Body.String())
	}

	w = do(t, srv, "POST", "/api/relations",
		`{"from_entity":"`+a+`","to_entity":"entity_missing","relation_type":"knows"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("relate to missing: status = %d, want %d", w.Code, http.StatusNotFound)
	}

	w = do(t, srv, "GET", "/api/entities/"+b+"/relations", "")
	if w.Code != http.StatusOK {
		t.Fatalf("relations: status = %d; body: %s", w.Code, w.Body.String())
	}
	var rels struct {
		Outgoing []map[string]any `json:"outgoing"`
		Incoming []map[string]any `json:"incoming"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &rels); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rels.Incoming) != 1 || len(rels.Outgoing) != 0 {
		t.Fatalf("incoming = %d, outgoing = %d, want 1/0", len(rels.Incoming), len(rels.Outgoing))
	}
	if rels.Incoming[0]["strength"] != 0.5 {
		t.Errorf("strength = %v, want default 0.5", rels.Incoming[0]["strength"])
	}
}

func TestChats(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "POST", "/api/chats",
		`{"chat_id":"c1","title":"Planning","content":"roadmap talk","topics":["work"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("store: status = %d; body: %s", w.Code, w.Body.String())
	}
	if got := decodeBody(t, w)["status"]; got != "stored" {
		t.Errorf("status = %v, want stored", got)
	}

	w = do(t, srv, "GET", "/api/chats/c1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: status = %d; body: %s", w.Code, w.Body.String())
	}
	if got := decodeBody(t, w)["title"]; got != "Planning" {
		t.Errorf("title = %v, want Planning", got)
	}

	w = do(t, srv, "GET", "/api/search?q=roadmap&type=entity", "")
	if got := decodeBody(t, w)["count"]; got != float64(0) {
		t.Errorf("entity-only search count = %v, want 0", got)
	}

	w = do(t, srv, "DELETE", "/api/chats/c1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete: status = %d; body: %s", w.Code, w.Body.String())
	}
}

func TestFactsAndContext(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "POST", "/api/facts/ability", `{"label":"Use MCP Tools","value":"can call tools"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("store ability: status = %d; body: %s", w.Code, w.Body.String())
	}
	if got := decodeBody(t, w)["key"]; got != "ability_use_mcp_tools" {
		t.Errorf("key = %v, want ability_use_mcp_tools", got)
	}

	w = do(t, srv, "POST", "/api/facts/preference", `{"label":"Editor","value":{"name":"vim"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("store preference: status = %d; body: %s", w.Code, w.Body.String())
	}

	w = do(t, srv, "GET", "/api/facts/preference", "")
	var list struct {
		Facts []struct {
			Key   string          `json:"key"`
			Value json.RawMessage `json:"value"`
		} `json:"facts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Facts) != 1 || string(list.Facts[0].Value) != `{"name":"vim"}` {
		t.Fatalf("facts = %+v", list.Facts)
	}

	w = do(t, srv, "GET", "/api/context", "")
	if w.Code != http.StatusOK {
		t.Fatalf("context: status = %d; body: %s", w.Code, w.Body.String())
	}
	var snap struct {
		Abilities []map[string]any `json:"abilities"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.Abilities) != 1 || snap.Abilities[0]["description"] != "can call tools" {
		t.Errorf("abilities = %+v", snap.Abilities)
	}
}

func TestMaintenanceRoutes(t *testing.T) {
	srv := testServer(t)
	createEntity(t, srv, "Ada")

	w := do(t, srv, "POST", "/api/maintenance", "")
	if w.Code != http.StatusOK {
		t.Fatalf("maintain: status = %d; body: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["status"] != "complete" {
		t.Errorf("status = %v, want complete", body["status"])
	}
	if body["processed"] != float64(1) {
		t.Errorf("processed = %v, want 1", body["processed"])
	}

	w = do(t, srv, "GET", "/api/maintenance", "")
	if got := decodeBody(t, w)["count"]; got != float64(1) {
		t.Errorf("log count = %v, want 1", got)
	}
}
