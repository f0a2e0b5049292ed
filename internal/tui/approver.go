package tui

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/wallet"
)

// approveMsg asks the user to approve a wallet connection.
type approveMsg struct {
	id    models.Identity
	reply chan bool
}

// Approver asks for connection approval through the running TUI. It can be
// handed to the keystore before the program starts.
type Approver struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

var _ wallet.Approver = (*Approver)(nil)

// NewApprover returns an Approver that is not yet attached to a program.
func NewApprover() *Approver {
	return &Approver{}
}

func (a *Approver) attach(send func(tea.Msg)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.send = send
}

// Approve implements wallet.Approver.
func (a *Approver) Approve(ctx context.Context, id models.Identity) (bool, error) {
	a.mu.Lock()
	send := a.send
	a.mu.Unlock()
	if send == nil {
		return false, errors.New("tui: no terminal attached")
	}

	reply := make(chan bool, 1)
	send(approveMsg{id: id, reply: reply})
	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
