package wallet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/starford/ansuz/internal/models"
)

// Approver asks the user whether this client may use the wallet identity.
type Approver interface {
	Approve(ctx context.Context, id models.Identity) (bool, error)
}

// ApproverFunc adapts a function to Approver.
type ApproverFunc func(ctx context.Context, id models.Identity) (bool, error)

// Approve implements Approver.
func (f ApproverFunc) Approve(ctx context.Context, id models.Identity) (bool, error) {
	return f(ctx, id)
}

// TerminalApprover prompts on a terminal. When In is not a terminal the
// request is rejected without prompting.
type TerminalApprover struct {
	In  *os.File
	Out io.Writer
}

// NewTerminalApprover prompts on stdin/stderr.
func NewTerminalApprover() *TerminalApprover {
	return &TerminalApprover{In: os.Stdin, Out: os.Stderr}
}

// Approve implements Approver.
func (a *TerminalApprover) Approve(ctx context.Context, id models.Identity) (bool, error) {
	if !term.IsTerminal(int(a.In.Fd())) {
		return false, nil
	}
	fmt.Fprintf(a.Out, "Allow ansuz to use wallet %s? [y/N] ", id.Short())

	answer := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(a.In).ReadString('\n')
		answer <- line
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case line := <-answer:
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	}
}
