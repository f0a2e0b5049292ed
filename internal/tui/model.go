// Package tui renders the word cloud client in the terminal with bubbletea.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/viewstate"
)

const maxWordLength = 256

// Controller is the part of *viewstate.Controller the TUI drives.
type Controller interface {
	View() viewstate.View
	OnChange(fn func(viewstate.View))
	Connect(ctx context.Context) error
	SubmitWord(ctx context.Context, text string) error
	InitializeOneTime(ctx context.Context) error
	Refresh(ctx context.Context) error
}

// viewMsg carries a new controller snapshot.
type viewMsg viewstate.View

// resultMsg reports the outcome of a user action.
type resultMsg struct {
	action string
	err    error
}

// Model is the bubbletea model.
type Model struct {
	ctx     context.Context
	ctrl    Controller
	addr    models.RecordAddress
	notice  string
	view    viewstate.View
	pending *approveMsg

	viewport  viewport.Model
	textInput textinput.Model
	status    string
	statusErr bool
	help      bool
	ready     bool
}

// New creates the model. notice is shown while disconnected.
func New(ctx context.Context, ctrl Controller, addr models.RecordAddress, notice string) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a word, or /help"
	ti.Focus()
	ti.CharLimit = maxWordLength
	ti.Width = 20

	return Model{
		ctx:       ctx,
		ctrl:      ctrl,
		addr:      addr,
		notice:    notice,
		view:      ctrl.View(),
		textInput: ti,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.pending != nil {
			return m.answer(msg), nil
		}
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyCtrlR:
			return m, m.run("refresh", m.ctrl.Refresh)
		case tea.KeyEnter:
			line := m.textInput.Value()
			m.textInput.SetValue("")
			return m.execute(parser.Parse(line))
		}

	case viewMsg:
		m.view = viewstate.View(msg)
		m.syncContent()
		return m, nil

	case resultMsg:
		m.view = m.ctrl.View()
		m.setStatus(msg)
		m.syncContent()
		return m, nil

	case approveMsg:
		m.pending = &msg
		return m, nil

	case tea.WindowSizeMsg:
		headerHeight := 2
		footerHeight := 3
		verticalMarginHeight := headerHeight + footerHeight

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-verticalMarginHeight)
			m.viewport.YPosition = headerHeight
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - verticalMarginHeight
		}
		m.textInput.Width = msg.Width - 4
		m.syncContent()
	}

	m.textInput, tiCmd = m.textInput.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd)
}

func (m Model) execute(cmd parser.Command) (tea.Model, tea.Cmd) {
	switch cmd.Kind {
	case parser.Submit:
		if cmd.Arg == "" {
			return m, nil
		}
		text := cmd.Arg
		return m, m.run("submit", func(ctx context.Context) error { return m.ctrl.SubmitWord(ctx, text) })
	case parser.Connect:
		m.status, m.statusErr = "waiting for wallet…", false
		return m, m.run("connect", m.ctrl.Connect)
	case parser.Init:
		if !m.view.CanInitialize() {
			m.status, m.statusErr = "initialize is only available while the record is absent", true
			return m, nil
		}
		return m, m.run("init", m.ctrl.InitializeOneTime)
	case parser.Refresh:
		return m, m.run("refresh", m.ctrl.Refresh)
	case parser.Help:
		m.help = !m.help
		m.syncContent()
		return m, nil
	case parser.Quit:
		return m, tea.Quit
	default:
		m.status, m.statusErr = fmt.Sprintf("unknown command /%s (try /help)", cmd.Arg), true
		return m, nil
	}
}

func (m Model) run(action string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return resultMsg{action: action, err: fn(ctx)}
	}
}

func (m Model) answer(msg tea.KeyMsg) Model {
	var ok bool
	switch {
	case msg.String() == "y", msg.String() == "Y":
		ok = true
	case msg.Type == tea.KeyEnter, msg.Type == tea.KeyEsc, msg.Type == tea.KeyCtrlC, msg.String() == "n", msg.String() == "N":
		ok = false
	default:
		return m
	}
	m.pending.reply <- ok
	m.pending = nil
	return m
}

func (m *Model) setStatus(msg resultMsg) {
	if msg.err == nil {
		m.status, m.statusErr = "", false
		if msg.action == "connect" {
			m.status = "connected as " + m.view.Identity.Short()
		}
		return
	}
	m.statusErr = true
	switch {
	case errors.Is(msg.err, apperr.ErrDisconnected):
		m.status = "connect your wallet first (/connect)"
	case errors.Is(msg.err, apperr.ErrInvalidState):
		m.status = msg.action + " is not available right now"
	case errors.Is(msg.err, context.Canceled):
		m.status = ""
		m.statusErr = false
	default:
		m.status = msg.action + ": " + msg.err.Error()
	}
}

func (m *Model) syncContent() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.body(m.viewport.Width))
}

// body renders the main area for the current phase.
func (m Model) body(width int) string {
	if m.help {
		return parser.Usage
	}
	v := m.view
	switch v.Phase {
	case viewstate.Disconnected:
		lines := []string{"Wallet not connected. Type /connect to connect."}
		if m.notice != "" {
			lines = append(lines, "", errorStyle.Render(m.notice))
		}
		return strings.Join(lines, "\n")
	case viewstate.Unknown:
		return dimStyle.Render("Loading record…")
	case viewstate.Absent:
		return "The shared record has not been initialized yet.\nType /init to create it."
	case viewstate.Unavailable:
		msg := "the node could not be reached"
		if v.Err != nil {
			msg = v.Err.Error()
		}
		return errorStyle.Render("Record unavailable: "+msg) + "\nType /refresh or press ctrl+r to retry."
	default:
		return renderCloud(v.Entries, width) + "\n\n" + renderContributors(v.Contributors)
	}
}

func renderCloud(entries []models.WordCloudEntry, width int) string {
	if len(entries) == 0 {
		return dimStyle.Render("No words yet. Type one below.")
	}
	words := make([]string, len(entries))
	for i, e := range entries {
		words[i] = wordStyle(e.Value, e.Weight).Render(e.Value)
	}
	if width < 10 {
		width = 80
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(words, "  "))
}

func renderContributors(list models.ContributorList) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Contributors (%d)", len(list))))
	for _, id := range list {
		b.WriteString("\n  ")
		b.WriteString(id.Short())
	}
	return b.String()
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	header := titleStyle.Render("ansuz") + " " + dimStyle.Render(m.addr.String()) + "  " + phaseStyle.Render(m.view.Phase.String())
	if m.view.Connected() {
		header += "  " + dimStyle.Render(m.view.Identity.Short())
	}
	rule := ruleStyle.Render(strings.Repeat("─", m.viewport.Width))

	if m.pending != nil {
		prompt := promptStyle.Render(fmt.Sprintf("Allow this client to use wallet %s? [y/N]", m.pending.id.Short()))
		return fmt.Sprintf("%s\n%s\n%s\n%s", header, rule, m.viewport.View(), prompt)
	}

	status := m.status
	if m.statusErr {
		status = errorStyle.Render(status)
	} else {
		status = dimStyle.Render(status)
	}
	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s\n%s",
		header,
		rule,
		m.viewport.View(),
		rule,
		m.textInput.View(),
		status,
	)
}
