package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/viewstate"
)

// Options configures Run.
type Options struct {
	Address models.RecordAddress
	// Approver, when set, is attached to the program so wallet approval
	// prompts appear inside the TUI.
	Approver *Approver
	// Notice is shown while disconnected (e.g. "no compatible wallet found").
	Notice string
	// Startup runs in its own goroutine once view changes reach the
	// program, so anything it triggers is rendered.
	Startup func(ctx context.Context)
	// ProgramOptions are appended to the defaults (alt screen, ctx).
	ProgramOptions []tea.ProgramOption
}

// Run starts the TUI and blocks until the user quits or ctx ends.
func Run(ctx context.Context, ctrl Controller, opts Options) error {
	m := New(ctx, ctrl, opts.Address, opts.Notice)
	popts := append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts.ProgramOptions...)
	p := tea.NewProgram(m, popts...)

	ctrl.OnChange(func(v viewstate.View) { p.Send(viewMsg(v)) })
	if opts.Approver != nil {
		opts.Approver.attach(p.Send)
		defer opts.Approver.attach(nil)
	}
	if opts.Startup != nil {
		go opts.Startup(ctx)
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
