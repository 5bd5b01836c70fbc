package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/idilsaglam/posts/internal/model"
)

// listItem adapts model.Item to bubbles/list.Item
type listItem struct {
	model.Item
}

func (i listItem) Title() string       { return i.Name }
func (i listItem) Description() string { return i.DueDate }
func (i listItem) FilterValue() string { return i.Name }

// dueText renders the due date with a relative hint, e.g. "2024-03-17 (6 days from now)".
func dueText(due string, now time.Time) string {
	if due == "" {
		return ""
	}
	d, err := model.ParseDueDate(due)
	if err != nil {
		return due
	}
	return fmt.Sprintf("%s (%s)", due, humanize.RelTime(d, now, "ago", "from now"))
}

// Custom delegate to control how items render (single line)
type itemDelegate struct {
	now func() time.Time
}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}

	box := mutedStyle.Render(boxUnchecked)
	name := it.Name
	if it.Done {
		box = successStyle.Render(boxChecked)
		name = doneStyle.Render(name)
	}

	parts := []string{box, name}
	if due := dueText(it.DueDate, d.now()); due != "" {
		parts = append(parts, mutedStyle.Render(due))
	}
	parts = append(parts, accentStyle.Render(fmt.Sprintf("▲%d", it.Upvote)), pendingStyle.Render(fmt.Sprintf("▼%d", it.Downvote)))
	if it.HasAttachment() {
		parts = append(parts, "📎")
	}

	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprintln(w, prefix+strings.Join(parts, "  "))
}

func toListItems(items []model.Item) []list.Item {
	li := make([]list.Item, 0, len(items))
	for _, it := range items {
		li = append(li, listItem{Item: it})
	}
	return li
}
