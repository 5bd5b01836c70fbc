package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"

	"github.com/idilsaglam/posts/internal/listsync"
	"github.com/idilsaglam/posts/internal/model"
)

type stubRemote struct {
	mu      sync.Mutex
	items   []model.Item
	failAll bool
	nextID  int
}

var errDown = errors.New("backend down")

func (r *stubRemote) List(context.Context) ([]model.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return nil, errDown
	}
	return append([]model.Item(nil), r.items...), nil
}

func (r *stubRemote) Create(_ context.Context, req model.CreateRequest) (model.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return model.Item{}, errDown
	}
	r.nextID++
	it := model.Item{ID: fmt.Sprintf("new-%d", r.nextID), Name: req.Name, DueDate: req.DueDate}
	r.items = append(r.items, it)
	return it, nil
}

func (r *stubRemote) Update(context.Context, string, model.UpdateRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errDown
	}
	return nil
}

func (r *stubRemote) Delete(context.Context, string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errDown
	}
	return nil
}

func newModel(t *testing.T, remote *stubRemote) Model {
	t.Helper()
	l := log.New()
	l.SetOutput(io.Discard)
	s := listsync.New(remote, listsync.WithLogger(l))
	m := New(context.Background(), s)
	return m
}

func loadedModel(t *testing.T, remote *stubRemote) Model {
	t.Helper()
	m := newModel(t, remote)
	return step(t, m, m.loadCmd()())
}

func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	nm, _ := m.Update(msg)
	out, ok := nm.(Model)
	if !ok {
		t.Fatalf("unexpected model type %T", nm)
	}
	return out
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// press sends a key and, when it yields a synchronizer command, runs it and
// feeds the result back. Keys that focus the text input return a blink
// command and must go through step instead.
func press(t *testing.T, m Model, k string) Model {
	t.Helper()
	nm, cmd := m.Update(keyMsg(k))
	m = nm.(Model)
	if cmd == nil {
		return m
	}
	switch msg := cmd().(type) {
	case opDoneMsg, loadedMsg:
		return step(t, m, msg)
	}
	return m
}

func TestLoadingViewThenList(t *testing.T) {
	remote := &stubRemote{items: []model.Item{{ID: "a", Name: "first post", DueDate: "2024-01-01", Upvote: 2}}}
	m := newModel(t, remote)
	if !strings.Contains(m.View(), "Loading TODOs") {
		t.Fatalf("expected loading view, got %q", m.View())
	}
	m = step(t, m, m.loadCmd()())
	view := m.View()
	if !strings.Contains(view, "first post") || !strings.Contains(view, "▲2") {
		t.Fatalf("expected item row, got %q", view)
	}
}

func TestToggleSelected(t *testing.T) {
	remote := &stubRemote{items: []model.Item{{ID: "a", Name: "A"}}}
	m := loadedModel(t, remote)

	m = press(t, m, " ")
	if it, _ := m.sync.Item("a"); !it.Done {
		t.Fatalf("expected item toggled")
	}
	if m.inflight != 0 {
		t.Fatalf("expected no inflight ops, got %d", m.inflight)
	}
	m = press(t, m, " ")
	if it, _ := m.sync.Item("a"); it.Done {
		t.Fatalf("expected item toggled back")
	}
}

func TestVotes(t *testing.T) {
	remote := &stubRemote{items: []model.Item{{ID: "a", Name: "A", Upvote: 1}}}
	m := loadedModel(t, remote)
	m = press(t, m, "+")
	m = press(t, m, "-")
	it, _ := m.sync.Item("a")
	if it.Upvote != 2 || it.Downvote != 1 {
		t.Fatalf("unexpected votes %+v", it)
	}
	if !strings.Contains(m.View(), "▲2") {
		t.Fatalf("expected refreshed row")
	}
}

func TestAddPost(t *testing.T) {
	remote := &stubRemote{}
	m := loadedModel(t, remote)

	m = step(t, m, keyMsg("a"))
	if m.mode != modeAdding {
		t.Fatalf("expected adding mode")
	}
	m = press(t, m, "enter")
	if m.inputErr == "" || m.mode != modeAdding {
		t.Fatalf("expected validation error for empty name")
	}
	for _, r := range "hello" {
		m = step(t, m, keyMsg(string(r)))
	}
	m = press(t, m, "enter")
	if m.mode != modeBrowse {
		t.Fatalf("expected browse mode after submit")
	}
	items := m.sync.Items()
	if len(items) != 1 || items[0].Name != "hello" {
		t.Fatalf("unexpected items %+v", items)
	}
}

func TestRenameAndEscape(t *testing.T) {
	remote := &stubRemote{items: []model.Item{{ID: "a", Name: "old"}}}
	m := loadedModel(t, remote)

	m = step(t, m, keyMsg("e"))
	if m.mode != modeRenaming || m.ti.Value() != "old" {
		t.Fatalf("expected rename mode prefilled, got mode %d value %q", m.mode, m.ti.Value())
	}
	m = step(t, m, keyMsg("esc"))
	if m.mode != modeBrowse {
		t.Fatalf("expected esc to cancel")
	}

	m = step(t, m, keyMsg("e"))
	m.ti.SetValue("renamed")
	m = press(t, m, "enter")
	if it, _ := m.sync.Item("a"); it.Name != "renamed" {
		t.Fatalf("expected rename applied, got %+v", it)
	}
}

func TestDeleteSelected(t *testing.T) {
	remote := &stubRemote{items: []model.Item{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}}}
	m := loadedModel(t, remote)
	m = press(t, m, "d")
	if m.sync.Len() != 1 {
		t.Fatalf("expected one item left, got %d", m.sync.Len())
	}
	if _, ok := m.sync.Item("a"); ok {
		t.Fatalf("expected selected item deleted")
	}
}

func TestFailureShowsAlert(t *testing.T) {
	remote := &stubRemote{items: []model.Item{{ID: "a", Name: "A"}}}
	m := loadedModel(t, remote)
	remote.failAll = true

	m = press(t, m, "d")
	if m.mode != modeAlert || m.alert != "Todo deletion failed" {
		t.Fatalf("expected deletion alert, got mode %d alert %q", m.mode, m.alert)
	}
	if !strings.Contains(m.View(), "Todo deletion failed") {
		t.Fatalf("expected alert in view")
	}
	m = step(t, m, keyMsg("x"))
	if m.mode != modeBrowse || m.sync.Len() != 1 {
		t.Fatalf("expected alert dismissed without side effects")
	}
}

func TestLoadFailureAlert(t *testing.T) {
	remote := &stubRemote{failAll: true}
	m := loadedModel(t, remote)
	if m.mode != modeAlert || !strings.HasPrefix(m.alert, "Failed to fetch todos") {
		t.Fatalf("expected fetch alert, got %q", m.alert)
	}
	if m.sync.Loading() {
		t.Fatalf("expected loading cleared")
	}
}

func TestViewPostModal(t *testing.T) {
	remote := &stubRemote{items: []model.Item{{ID: "a", Name: "pic", AttachmentURL: "https://img/a.png"}}}
	m := loadedModel(t, remote)
	m = step(t, m, keyMsg("v"))
	if m.mode != modeViewing {
		t.Fatalf("expected viewing mode")
	}
	view := m.View()
	if !strings.Contains(view, "https://img/a.png") || !strings.Contains(view, "pic") {
		t.Fatalf("expected post modal, got %q", view)
	}
	m = step(t, m, keyMsg("esc"))
	if m.mode != modeBrowse {
		t.Fatalf("expected modal closed")
	}
}

func TestQuit(t *testing.T) {
	m := loadedModel(t, &stubRemote{})
	_, cmd := m.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected QuitMsg")
	}
}

func TestPostLines(t *testing.T) {
	lines := postLines(model.Item{Name: "n", Done: true, Upvote: 1}, fixedTestNow())
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "no attachment") || !strings.Contains(joined, "▲1 ▼0") {
		t.Fatalf("unexpected lines %q", joined)
	}
}

func fixedTestNow() time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func TestDueText(t *testing.T) {
	got := dueText("2024-01-08", time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local))
	if !strings.HasPrefix(got, "2024-01-08 (") || !strings.Contains(got, "from now") {
		t.Fatalf("unexpected due text %q", got)
	}
	if dueText("garbage", time.Now()) != "garbage" {
		t.Fatalf("expected unparsable date returned as is")
	}
	if dueText("", time.Now()) != "" {
		t.Fatalf("expected empty")
	}
}
