package devserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/idilsaglam/posts/internal/model"
)

type mockAuth struct{ user string }

func (m mockAuth) UserIDFromAuthHeader(h string) (string, error) {
	if h == "" {
		return "", errMissingAuthorization
	}
	return m.user, nil
}

func newTestStore() *MemoryStore {
	s := NewMemoryStore()
	n := 0
	s.newID = func() string {
		n++
		return "id-" + string(rune('0'+n))
	}
	s.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func serve(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set(echo.HeaderAuthorization, "Bearer token")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateListUpdateDelete(t *testing.T) {
	store := newTestStore()
	e := New("todos", store, mockAuth{user: "u1"}, log.New())

	rec := serve(t, e, http.MethodPost, "/todos", `{"name":"  first  ","dueDate":"2024-01-09"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var created itemResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if created.Item.ID != "id-1" || created.Item.Name != "first" || created.Item.DueDate != "2024-01-09" {
		t.Fatalf("unexpected item %+v", created.Item)
	}
	if created.Item.CreatedAt == nil {
		t.Fatalf("expected createdAt")
	}

	rec = serve(t, e, http.MethodPatch, "/todos/id-1", `{"name":"first","dueDate":"2024-01-09","done":true,"upvote":2,"downvote":1}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("patch: expected 204 got %d", rec.Code)
	}
	it, ok := store.Get("u1", "id-1")
	if !ok || !it.Done || it.Upvote != 2 || it.Downvote != 1 {
		t.Fatalf("update not stored: %+v", it)
	}

	rec = serve(t, e, http.MethodGet, "/todos", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200 got %d", rec.Code)
	}
	var list listResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].ID != "id-1" {
		t.Fatalf("unexpected list %+v", list.Items)
	}

	rec = serve(t, e, http.MethodDelete, "/todos/id-1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204 got %d", rec.Code)
	}
	if got := store.List("u1"); len(got) != 0 {
		t.Fatalf("expected empty list, got %+v", got)
	}
}

func TestCreateRequiresName(t *testing.T) {
	e := New("todos", newTestStore(), mockAuth{user: "u1"}, log.New())
	rec := serve(t, e, http.MethodPost, "/todos", `{"name":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	rec = serve(t, e, http.MethodPost, "/todos", `{bad`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid json got %d", rec.Code)
	}
}

func TestUpdateAndDeleteUnknown(t *testing.T) {
	e := New("todos", newTestStore(), mockAuth{user: "u1"}, log.New())
	if rec := serve(t, e, http.MethodPatch, "/todos/nope", `{"name":"x"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("patch: expected 404 got %d", rec.Code)
	}
	if rec := serve(t, e, http.MethodDelete, "/todos/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("delete: expected 404 got %d", rec.Code)
	}
}

func TestUpdateRejectsNegativeVotes(t *testing.T) {
	store := newTestStore()
	store.Create("u1", model.CreateRequest{Name: "a"})
	e := New("todos", store, mockAuth{user: "u1"}, log.New())
	if rec := serve(t, e, http.MethodPatch, "/todos/id-1", `{"name":"a","upvote":-1}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestItemsArePartitionedByUser(t *testing.T) {
	store := newTestStore()
	store.Create("u1", model.CreateRequest{Name: "mine"})
	e := New("todos", store, mockAuth{user: "u2"}, log.New())

	rec := serve(t, e, http.MethodGet, "/todos", "")
	var list listResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(list.Items) != 0 {
		t.Fatalf("expected no items for another user, got %+v", list.Items)
	}
	if rec := serve(t, e, http.MethodDelete, "/todos/id-1", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user's item, got %d", rec.Code)
	}
}

func TestUnauthorized(t *testing.T) {
	e := New("todos", newTestStore(), NewSecretAuth([]byte("s"), ""), log.New())
	req := httptest.NewRequest(http.MethodGet, "/todos", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestSetAttachment(t *testing.T) {
	store := newTestStore()
	store.Create("u1", model.CreateRequest{Name: "a"})
	e := New("todos", store, mockAuth{user: "u1"}, log.New())

	rec := serve(t, e, http.MethodPost, "/todos/id-1/attachment", `{"attachmentUrl":"https://img/a.png"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	it, _ := store.Get("u1", "id-1")
	if it.AttachmentURL != "https://img/a.png" {
		t.Fatalf("attachment not stored: %+v", it)
	}
	if rec := serve(t, e, http.MethodPost, "/todos/id-1/attachment", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestDeleteKeepsOrder(t *testing.T) {
	store := newTestStore()
	for _, n := range []string{"a", "b", "c"} {
		store.Create("u1", model.CreateRequest{Name: n})
	}
	if err := store.Delete("u1", "id-2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got := store.List("u1")
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "c" {
		t.Fatalf("unexpected order %+v", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	e := New("todos", newTestStore(), InsecureAuth{}, log.New())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, e, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}
