// Package tui is the interactive list view. Every user intent becomes one
// synchronizer call run as a tea.Cmd; the list is rebuilt from the
// synchronizer when the call returns.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/idilsaglam/posts/internal/listsync"
	"github.com/idilsaglam/posts/internal/model"
)

type mode int

const (
	modeBrowse mode = iota
	modeAdding
	modeRenaming
	modeViewing
	modeAlert
)

type loadedMsg struct{ err error }

type opDoneMsg struct {
	op  listsync.Op
	err error
}

type Model struct {
	ctx  context.Context
	sync *listsync.Synchronizer
	now  func() time.Time

	list    list.Model
	spinner spinner.Model
	ti      textinput.Model // shared text input model (used for add & rename)

	mode     mode
	editID   string // item being renamed
	viewID   string // item shown in the post modal
	inputErr string // last input validation error (shown briefly)
	alert    string // blocking failure message
	inflight int

	width, height int
}

var (
	addBind    = key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add"))
	editBind   = key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "rename"))
	toggleBind = key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "done"))
	upBind     = key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "upvote"))
	downBind   = key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "downvote"))
	deleteBind = key.NewBinding(key.WithKeys("d", "x"), key.WithHelp("d", "delete"))
	viewBind   = key.NewBinding(key.WithKeys("v", "enter"), key.WithHelp("v", "view post"))
	reloadBind = key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload"))
)

// New builds the view over s. ctx bounds every remote call it issues.
func New(ctx context.Context, s *listsync.Synchronizer) Model {
	m := Model{ctx: ctx, sync: s, now: time.Now, width: 80, height: 24}

	l := list.New(nil, itemDelegate{now: time.Now}, m.width-4, m.height-4)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle
	l.Styles.HelpStyle = helpStyle
	l.Styles.PaginationStyle = helpStyle
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("post", "posts")
	extra := func() []key.Binding {
		return []key.Binding{addBind, editBind, toggleBind, upBind, downBind, deleteBind, viewBind, reloadBind}
	}
	l.AdditionalShortHelpKeys = extra
	l.AdditionalFullHelpKeys = extra
	m.list = l

	m.spinner = spinner.New()
	m.spinner.Spinner = spinner.Dot

	m.ti = textinput.New()
	m.ti.Prompt = "> "
	m.ti.Placeholder = "Post title"
	m.ti.CharLimit = 200

	m.refresh()
	return m
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, s *listsync.Synchronizer) error {
	p := tea.NewProgram(New(ctx, s), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadCmd())
}

func (m Model) loadCmd() tea.Cmd {
	ctx, s := m.ctx, m.sync
	return func() tea.Msg {
		return loadedMsg{err: s.Load(ctx)}
	}
}

func (m Model) opCmd(op listsync.Op, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

// refresh rebuilds list rows and the header from the synchronizer.
func (m *Model) refresh() tea.Cmd {
	done, pending := m.sync.Stats()
	m.list.Title = fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		titleStyle.Render("POSTs"),
		successStyle.Render("✔"), done,
		pendingStyle.Render("•"), pending,
		accentStyle.Render("Total"), done+pending,
	)
	return m.list.SetItems(toListItems(m.sync.Items()))
}

func (m Model) selectedID() (string, bool) {
	it, ok := m.list.SelectedItem().(listItem)
	if !ok {
		return "", false
	}
	return it.ID, true
}

func (m *Model) showError(err error) {
	var opErr *listsync.OpError
	switch {
	case errors.As(err, &opErr):
		m.alert = opErr.Message()
	case errors.Is(err, context.Canceled):
		return
	default:
		m.alert = err.Error()
	}
	m.mode = modeAlert
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case spinner.TickMsg:
		if !m.sync.Loading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loadedMsg:
		cmd := m.refresh()
		if msg.err != nil {
			m.showError(msg.err)
		}
		return m, cmd

	case opDoneMsg:
		if m.inflight > 0 {
			m.inflight--
		}
		cmd := m.refresh()
		if msg.err != nil {
			m.showError(msg.err)
		}
		return m, cmd
	}

	switch m.mode {
	case modeAlert:
		if _, ok := msg.(tea.KeyMsg); ok {
			m.alert = ""
			m.mode = modeBrowse
		}
		return m, nil
	case modeViewing:
		if _, ok := msg.(tea.KeyMsg); ok {
			m.viewID = ""
			m.mode = modeBrowse
		}
		return m, nil
	case modeAdding, modeRenaming:
		return m.updateInput(msg)
	}
	return m.updateBrowse(msg)
}

func (m Model) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "enter":
			name := m.ti.Value()
			if strings.TrimSpace(name) == "" {
				m.inputErr = "Name cannot be empty"
				return m, nil
			}
			var cmd tea.Cmd
			if m.mode == modeAdding {
				cmd = m.opCmd(listsync.OpCreate, func(ctx context.Context) error {
					_, err := m.sync.Create(ctx, name)
					return err
				})
			} else {
				id := m.editID
				cmd = m.opCmd(listsync.OpRename, func(ctx context.Context) error {
					return m.sync.Rename(ctx, id, name)
				})
			}
			m.inflight++
			m.closeInput()
			return m, cmd
		case "esc":
			m.closeInput()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.ti, cmd = m.ti.Update(msg)
	return m, cmd
}

func (m *Model) closeInput() {
	m.ti.SetValue("")
	m.ti.Blur()
	m.inputErr = ""
	m.editID = ""
	m.mode = modeBrowse
	m.resize()
}

func (m Model) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok || m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch km.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		if m.list.FilterState() == list.Unfiltered {
			return m, tea.Quit
		}
	case "a":
		m.mode = modeAdding
		m.ti.SetValue("")
		m.ti.Placeholder = "Post title"
		m.resize()
		return m, m.ti.Focus()
	case "r":
		return m, tea.Batch(m.spinner.Tick, m.loadCmd())
	}

	if m.sync.Loading() {
		return m, nil
	}
	id, ok := m.selectedID()
	switch {
	case key.Matches(km, editBind):
		if ok {
			it, _ := m.sync.Item(id)
			m.mode = modeRenaming
			m.editID = id
			m.ti.SetValue(it.Name)
			m.ti.CursorEnd()
			m.ti.Placeholder = "New title"
			m.resize()
			return m, m.ti.Focus()
		}
		return m, nil
	case key.Matches(km, toggleBind):
		return m.dispatch(ok, listsync.OpToggle, func(ctx context.Context) error { return m.sync.ToggleDone(ctx, id) })
	case key.Matches(km, upBind):
		return m.dispatch(ok, listsync.OpUpvote, func(ctx context.Context) error { return m.sync.Upvote(ctx, id) })
	case key.Matches(km, downBind):
		return m.dispatch(ok, listsync.OpDownvote, func(ctx context.Context) error { return m.sync.Downvote(ctx, id) })
	case key.Matches(km, deleteBind):
		return m.dispatch(ok, listsync.OpDelete, func(ctx context.Context) error { return m.sync.Delete(ctx, id) })
	case key.Matches(km, viewBind):
		if ok {
			m.viewID = id
			m.mode = modeViewing
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) dispatch(ok bool, op listsync.Op, fn func(context.Context) error) (tea.Model, tea.Cmd) {
	if !ok {
		return m, nil
	}
	m.inflight++
	return m, m.opCmd(op, fn)
}

func (m *Model) resize() {
	h := m.height - 4
	if m.mode == modeAdding || m.mode == modeRenaming {
		h = m.height - 8
	}
	if h < 3 {
		h = 3
	}
	m.list.SetSize(m.width-4, h)
}

func (m Model) View() string {
	if m.sync.Loading() && m.sync.Len() == 0 {
		return panelStyle.Render(fmt.Sprintf("%s Loading TODOs", m.spinner.View()))
	}

	content := m.list.View()
	if m.inflight > 0 {
		content += "\n" + mutedStyle.Render(fmt.Sprintf("%s syncing %d…", m.spinner.View(), m.inflight))
	}

	switch m.mode {
	case modeAdding, modeRenaming:
		title := "Upload new post"
		if m.mode == modeRenaming {
			title = "Rename post"
		}
		if m.inputErr != "" {
			title += " " + errorStyle.Render(m.inputErr)
		}
		content += "\n" + panelStyle.Render(title+"\n"+m.ti.View())
	case modeViewing:
		return m.overlay(modalStyle.Render(m.postView()))
	case modeAlert:
		return m.overlay(alertStyle.Render(errorStyle.Render(m.alert) + "\n\n" + helpStyle.Render("press any key")))
	}
	return panelStyle.Render(content)
}

func (m Model) overlay(box string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m Model) postView() string {
	it, ok := m.sync.Item(m.viewID)
	if !ok {
		return mutedStyle.Render("post no longer exists") + "\n\n" + helpStyle.Render("press any key")
	}
	return strings.Join(postLines(it, m.now()), "\n") + "\n\n" + helpStyle.Render("esc to close")
}

func postLines(it model.Item, now time.Time) []string {
	lines := []string{titleStyle.Render(it.Name)}
	if due := dueText(it.DueDate, now); due != "" {
		lines = append(lines, "due      "+due)
	}
	status := pendingStyle.Render("pending")
	if it.Done {
		status = successStyle.Render("done")
	}
	lines = append(lines,
		"status   "+status,
		fmt.Sprintf("votes    ▲%d ▼%d", it.Upvote, it.Downvote),
	)
	if it.HasAttachment() {
		lines = append(lines, "image    "+accentStyle.Render(it.AttachmentURL))
	} else {
		lines = append(lines, mutedStyle.Render("no attachment"))
	}
	if it.CreatedAt != nil {
		lines = append(lines, mutedStyle.Render("created  "+it.CreatedAt.Local().Format(time.RFC822)))
	}
	return lines
}
