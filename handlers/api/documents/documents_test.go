package documents

import (
	"collab-server/core"
	"collab-server/middleware"
	"collab-server/stores/memory"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

// The in-memory store doubles as the test store; each call returns an
// isolated instance.
func newMemStore() core.DocumentStore {
	return memory.NewStore()
}

type stubValidator struct {
	users map[string]string
}

func (v *stubValidator) Validate(ctx context.Context, token string) (string, error) {
	if userID, ok := v.users[token]; ok {
		return userID, nil
	}
	return "", errors.New("unauthorized")
}

func newTestRouter(store core.DocumentStore) *chi.Mux {
	validator := &stubValidator{users: map[string]string{
		"token-1": "user-1",
		"token-2": "user-2",
	}}
	r := chi.NewRouter()
	r.Route("/api/documents", func(r chi.Router) {
		r.Use(middleware.Auth(validator))
		r.Post("/", HandleCreate(store))
		r.Get("/", HandleList(store))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", HandleGet(store))
			r.Get("/versions", HandleListVersions(store))
			r.Post("/members", HandleAddMember(store))
		})
	})
	return r
}

func doRequest(t *testing.T, r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func createDocument(t *testing.T, r http.Handler, token, content string) string {
	t.Helper()
	rec := doRequest(t, r, http.MethodPost, "/api/documents/", token, content)
	if rec.Code != http.StatusOK {
		t.Fatalf("Create returned %d: %s", rec.Code, rec.Body)
	}
	var resp DocumentCreateResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode create response: %v", err)
	}
	if resp.ID == "" {
		t.Fatal("Create returned empty id")
	}
	return resp.ID
}

func TestCreateRequiresAuth(t *testing.T) {
	r := newTestRouter(newMemStore())

	rec := doRequest(t, r, http.MethodPost, "/api/documents/", "", `{"x":1}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	rec = doRequest(t, r, http.MethodPost, "/api/documents/", "bogus", `{"x":1}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestCreateAndGet(t *testing.T) {
	r := newTestRouter(newMemStore())

	id := createDocument(t, r, "token-1", `{"content":"hello"}`)

	rec := doRequest(t, r, http.MethodGet, "/api/documents/"+id+"/", "token-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Get returned %d: %s", rec.Code, rec.Body)
	}
	var doc core.Document
	if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
		t.Fatalf("Failed to decode document: %v", err)
	}
	if string(doc.Content) != `{"content":"hello"}` {
		t.Errorf("Content mismatch: got %s", doc.Content)
	}
}

func TestGetDeniedForNonMember(t *testing.T) {
	r := newTestRouter(newMemStore())

	id := createDocument(t, r, "token-1", `{}`)

	rec := doRequest(t, r, http.MethodGet, "/api/documents/"+id+"/", "token-2", "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestAddMemberGrantsAccess(t *testing.T) {
	r := newTestRouter(newMemStore())

	id := createDocument(t, r, "token-1", `{}`)

	rec := doRequest(t, r, http.MethodPost, "/api/documents/"+id+"/members", "token-1", `{"userId":"user-2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("AddMember returned %d: %s", rec.Code, rec.Body)
	}

	rec = doRequest(t, r, http.MethodGet, "/api/documents/"+id+"/", "token-2", "")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected member access after grant, got %d", rec.Code)
	}
}

func TestListOnlyOwnDocuments(t *testing.T) {
	r := newTestRouter(newMemStore())

	createDocument(t, r, "token-1", `{}`)
	createDocument(t, r, "token-2", `{}`)

	rec := doRequest(t, r, http.MethodGet, "/api/documents/", "token-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("List returned %d", rec.Code)
	}
	var docs []*core.Document
	if err := json.NewDecoder(rec.Body).Decode(&docs); err != nil {
		t.Fatalf("Failed to decode list: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("Expected 1 document, got %d", len(docs))
	}
}

func TestVersionHistory(t *testing.T) {
	store := newMemStore()
	r := newTestRouter(store)

	id := createDocument(t, r, "token-1", `{"v":0}`)

	if err := store.ApplyUpdate(context.Background(), id, "user-1", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("ApplyUpdate failed: %v", err)
	}
	if err := store.ApplyUpdate(context.Background(), id, "user-1", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("ApplyUpdate failed: %v", err)
	}

	rec := doRequest(t, r, http.MethodGet, "/api/documents/"+id+"/versions", "token-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Versions returned %d: %s", rec.Code, rec.Body)
	}
	var versions []*core.Version
	if err := json.NewDecoder(rec.Body).Decode(&versions); err != nil {
		t.Fatalf("Failed to decode versions: %v", err)
	}
	if len(versions) != 2 {
		t.Errorf("Expected 2 versions, got %d", len(versions))
	}
}

func TestVersionsNotFound(t *testing.T) {
	r := newTestRouter(newMemStore())

	rec := doRequest(t, r, http.MethodGet, "/api/documents/missing/versions", "token-1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}
