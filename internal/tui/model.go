// Package tui is a terminal editor for tribe policies. It renders controller
// snapshots and turns key presses into controller intents; all workflow state
// lives in the controller.
package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cast"

	"github.com/genericsim/tribectl/internal/model"
	"github.com/genericsim/tribectl/internal/policysync"
)

type focus int

const (
	focusTribes focus = iota
	focusForm
)

// snapshotMsg carries a controller snapshot into the update loop.
type snapshotMsg policysync.Snapshot

type tribesLoadedMsg struct{ err error }

type submitDoneMsg struct {
	outcome policysync.Outcome
	err     error
}

// Model is the bubbletea model for the policy editor.
type Model struct {
	ctx  context.Context
	ctrl *policysync.Controller
	snap policysync.Snapshot

	width  int
	height int

	focus       focus
	tribeCursor int
	fieldCursor int

	editing  bool
	input    textinput.Model
	fieldErr string

	styles Styles
}

// New creates an editor bound to ctrl.
func New(ctx context.Context, ctrl *policysync.Controller) Model {
	ti := textinput.New()
	ti.CharLimit = 16
	ti.Width = 12
	ti.Cursor.SetMode(cursor.CursorStatic)

	return Model{
		ctx:    ctx,
		ctrl:   ctrl,
		snap:   ctrl.Snapshot(),
		input:  ti,
		styles: DefaultStyles(),
	}
}

// Run starts the editor and blocks until the user quits.
func Run(ctx context.Context, ctrl *policysync.Controller) error {
	p := tea.NewProgram(New(ctx, ctrl), tea.WithAltScreen(), tea.WithContext(ctx))
	ctrl.OnChange(func(s policysync.Snapshot) { p.Send(snapshotMsg(s)) })
	_, err := p.Run()
	return err
}

// Init loads the tribe list.
func (m Model) Init() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		_, err := ctrl.LoadTribes(ctx)
		return tribesLoadedMsg{err: err}
	}
}

// SetSize records the terminal size.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case snapshotMsg:
		m.apply(policysync.Snapshot(msg))
		return m, nil

	case tribesLoadedMsg, submitDoneMsg:
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

// apply keeps the newest snapshot; listener callbacks can arrive out of order.
func (m *Model) apply(s policysync.Snapshot) {
	if s.Version < m.snap.Version {
		return
	}
	m.snap = s
	if m.tribeCursor >= len(s.Tribes) {
		m.tribeCursor = max(len(s.Tribes)-1, 0)
	}
}

func (m *Model) refresh() {
	m.apply(m.ctrl.Snapshot())
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab":
		if m.focus == focusTribes {
			m.focus = focusForm
		} else {
			m.focus = focusTribes
		}
		return m, nil
	case "s":
		ctrl, ctx := m.ctrl, m.ctx
		return m, func() tea.Msg {
			out, err := ctrl.Submit(ctx)
			return submitDoneMsg{outcome: out, err: err}
		}
	case "r":
		m.fieldErr = ""
		_ = m.ctrl.ResetDraft()
		m.refresh()
		return m, nil
	}

	if m.focus == focusTribes {
		return m.updateTribeList(msg)
	}
	return m.updateForm(msg)
}

func (m Model) updateTribeList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.tribeCursor > 0 {
			m.tribeCursor--
		}
	case "down", "j":
		if m.tribeCursor < len(m.snap.Tribes)-1 {
			m.tribeCursor++
		}
	case "enter":
		if m.tribeCursor < len(m.snap.Tribes) {
			m.fieldErr = ""
			done := m.ctrl.SelectTribe(m.ctx, m.snap.Tribes[m.tribeCursor].ID)
			m.refresh()
			m.focus = focusForm
			return m, func() tea.Msg {
				<-done
				return tribesLoadedMsg{}
			}
		}
	}
	return m, nil
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.snap.Baseline == nil {
		return m, nil
	}
	field := model.PolicyFields[m.fieldCursor]

	switch msg.String() {
	case "up", "k":
		if m.fieldCursor > 0 {
			m.fieldCursor--
		}
	case "down", "j":
		if m.fieldCursor < len(model.PolicyFields)-1 {
			m.fieldCursor++
		}
	case "left", "h":
		if field.Kind == model.KindEnum {
			m.edit(field.Name, m.cyclePriority(-1))
		}
	case "right", "l":
		if field.Kind == model.KindEnum {
			m.edit(field.Name, m.cyclePriority(1))
		}
	case "enter", " ":
		switch {
		case m.disabled(field):
		case field.Kind == model.KindBool:
			m.edit(field.Name, !m.snap.Draft.EnableCentralStorage)
		case field.Kind == model.KindEnum:
			m.edit(field.Name, m.cyclePriority(1))
		default:
			v, _ := m.snap.Draft.Value(field.Name)
			m.input.SetValue(cast.ToString(v))
			m.input.CursorEnd()
			m.editing = true
			m.fieldErr = ""
			return m, m.input.Focus()
		}
	}
	return m, nil
}

func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.editing = false
		m.input.Blur()
		m.edit(model.PolicyFields[m.fieldCursor].Name, m.input.Value())
		return m, nil
	case "esc":
		m.editing = false
		m.input.Blur()
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) edit(name string, value any) {
	if err := m.ctrl.EditField(name, value); err != nil {
		m.fieldErr = err.Error()
	} else {
		m.fieldErr = ""
	}
	m.refresh()
}

func (m Model) cyclePriority(step int) model.SharingPriority {
	all := model.SharingPriorities
	i := slices.Index(all, m.snap.Draft.SharingPriority)
	if i < 0 {
		return all[0]
	}
	return all[(i+step+len(all))%len(all)]
}

// disabled reports whether field is inactive in the current draft.
func (m Model) disabled(f model.Field) bool {
	return f.Name == model.FieldCentralStorageTaxRate && !m.snap.Draft.EnableCentralStorage
}

// View renders the editor.
func (m Model) View() string {
	title := m.styles.Title.Render("Tribe Policy Editor")
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.viewTribes(), " ", m.viewForm())
	return lipgloss.JoinVertical(lipgloss.Left, title, body, m.viewStatus(), m.viewHelp())
}

func (m Model) viewTribes() string {
	var b strings.Builder
	b.WriteString("Tribes\n\n")
	if len(m.snap.Tribes) == 0 {
		b.WriteString(m.styles.Disabled.Render("no tribes loaded"))
	}
	for i, t := range m.snap.Tribes {
		line := fmt.Sprintf("%s (day %d)", t.Name, t.CurrentTick)
		prefix := "  "
		if i == m.tribeCursor && m.focus == focusTribes {
			prefix = m.styles.Cursor.Render("> ")
		}
		if t.ID == m.snap.SelectedID {
			line = m.styles.Info.Render(line)
		}
		b.WriteString(prefix + line + "\n")
	}
	return m.pane(m.focus == focusTribes).Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) viewForm() string {
	var b strings.Builder
	if m.snap.Tribe != nil {
		b.WriteString(fmt.Sprintf("Policy: %s\n\n", m.snap.Tribe.Name))
	} else {
		b.WriteString("Policy\n\n")
	}
	if m.snap.Baseline == nil {
		b.WriteString(m.styles.Disabled.Render("select a tribe to edit its policy"))
		return m.pane(m.focus == focusForm).Render(b.String())
	}

	changed := make(map[string]bool, len(m.snap.ChangedFields))
	for _, name := range m.snap.ChangedFields {
		changed[name] = true
	}

	for i, f := range model.PolicyFields {
		prefix := "  "
		if i == m.fieldCursor && m.focus == focusForm {
			prefix = m.styles.Cursor.Render("> ")
		}

		value := m.formatValue(f)
		switch {
		case i == m.fieldCursor && m.editing:
			value = m.input.View()
		case m.disabled(f):
			value = m.styles.Disabled.Render(value + " (disabled)")
		case changed[f.Name]:
			value = m.styles.Changed.Render(value + " *")
		default:
			value = m.styles.Value.Render(value)
		}
		b.WriteString(prefix + m.styles.Label.Render(f.Label) + value + "\n")
	}
	return m.pane(m.focus == focusForm).Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) formatValue(f model.Field) string {
	v, _ := m.snap.Draft.Value(f.Name)
	switch f.Kind {
	case model.KindBool:
		if cast.ToBool(v) {
			return "on"
		}
		return "off"
	case model.KindEnum:
		return m.snap.Draft.SharingPriority.Label()
	default:
		return cast.ToString(v)
	}
}

func (m Model) viewStatus() string {
	var lines []string
	switch m.snap.Status {
	case policysync.StatusLoading:
		lines = append(lines, m.styles.Info.Render("Loading..."))
	case policysync.StatusSubmitting:
		lines = append(lines, m.styles.Info.Render("Saving..."))
	case policysync.StatusError:
		lines = append(lines, m.styles.Error.Render(m.snap.Message))
	case policysync.StatusSuccess:
		lines = append(lines, m.styles.Success.Render(m.snap.Message))
	}
	if m.fieldErr != "" {
		lines = append(lines, m.styles.Error.Render(m.fieldErr))
	}
	if m.snap.PendingChanges {
		lines = append(lines, m.styles.Changed.Render(fmt.Sprintf("%d unsaved change(s)", len(m.snap.ChangedFields))))
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewHelp() string {
	if m.editing {
		return m.styles.Help.Render("enter: apply  esc: cancel")
	}
	return m.styles.Help.Render("tab: switch pane  ↑/↓: move  enter: select/edit  ←/→: cycle priority  s: save  r: reset  q: quit")
}

func (m Model) pane(focused bool) lipgloss.Style {
	if focused {
		return m.styles.Focused
	}
	return m.styles.Pane
}
