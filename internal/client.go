package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/recordstore"
	"github.com/starford/ansuz/internal/tui"
	"github.com/starford/ansuz/internal/viewstate"
	"github.com/starford/ansuz/internal/wallet"
)

// Client is a wired word cloud client: wallet session, record store and the
// view controller on top of them.
type Client struct {
	Controller *viewstate.Controller
	Session    *wallet.Session
	// Notice is a user-facing message about the wallet, empty when a
	// keystore was found.
	Notice string

	cfg      *Config
	keystore string
	logger   *slog.Logger
	logOut   io.Closer
}

// NewClientLogger returns a JSON logger writing to path, or a discarding
// logger when path is empty. The terminal belongs to the UI, so client
// logs never go to stdout.
func NewClientLogger(path string, level slog.Level) (*slog.Logger, io.Closer, error) {
	if path == "" {
		return slog.New(slog.NewJSONHandler(io.Discard, nil)), io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})), f, nil
}

// NewClient wires a client from cfg. approver answers the keystore's trust
// prompt and may be nil, in which case untrusted keystores are rejected.
func NewClient(cfg *Config, approver wallet.Approver) (*Client, error) {
	logger, logOut, err := NewClientLogger(cfg.App.LogFile, cfg.App.LogLevel)
	if err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg, logger: logger, logOut: logOut}

	// The provider must stay an untyped nil when no keystore exists.
	var provider wallet.Provider
	ks, err := wallet.OpenKeystore(cfg.Wallet.Keystore, approver)
	switch {
	case err == nil:
		provider = ks
		c.keystore = ks.Path()
	case errors.Is(err, apperr.ErrProviderAbsent):
		c.Notice = apperr.ErrProviderAbsent.Error() + " (run `ansuz wallet new`)"
	default:
		logOut.Close()
		return nil, fmt.Errorf("open keystore: %w", err)
	}

	c.Session = wallet.NewSession(provider, logger)

	var auth recordstore.Authorizer
	if a := c.Session.Authorizer(); a != nil {
		auth = a
	}
	store, err := recordstore.NewHTTP(cfg.Node.URL, auth, recordstore.WithTimeout(cfg.Node.Timeout))
	if err != nil {
		logOut.Close()
		return nil, fmt.Errorf("record store: %w", err)
	}

	c.Controller = viewstate.New(c.Session, store, viewstate.Options{
		Address:             cfg.Record.Address(),
		CollapseFetchErrors: cfg.Record.CollapseFetchErrors,
		MergeRepeats:        cfg.Cloud.MergeRepeats,
		Logger:              logger,
	})

	logger.Info("Client started",
		slog.String("node", cfg.Node.URL),
		slog.String("record", cfg.Record.Address().String()),
		slog.Bool("wallet", c.Session.Available()),
		slog.String("keystore", c.keystore))
	return c, nil
}

// Close stops the controller and closes the log file.
func (c *Client) Close() error {
	c.Controller.Close()
	return c.logOut.Close()
}

// Watch follows the node's change feed and the keystore file until ctx ends.
// Record events re-fetch the view; keystore changes retry the silent connect
// while disconnected.
func (c *Client) Watch(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)
	addr := c.cfg.Record.Address()

	g.Go(func() error {
		return recordstore.Watch(gCtx, c.cfg.Node.URL, addr, c.logger, func(ev recordstore.Event) {
			if !strings.HasPrefix(ev.Type, "record.") {
				return
			}
			if err := c.Controller.Refresh(gCtx); err != nil && !errors.Is(err, apperr.ErrDisconnected) {
				c.logger.Debug("Refresh after change failed", slog.String("error", err.Error()))
			}
		})
	})

	if c.Session.Available() {
		g.Go(func() error {
			err := wallet.Watch(gCtx, c.keystore, c.logger, func() {
				if !c.Controller.View().Connected() {
					c.Controller.TrySilentConnect(gCtx)
				}
			})
			if err != nil {
				// Losing the keystore watcher only disables auto-reconnect.
				c.logger.Warn("Keystore watch failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	return g.Wait()
}

// RunTUI runs the interactive terminal client until the user quits.
func RunTUI(ctx context.Context, cfg *Config) error {
	approver := tui.NewApprover()
	c, err := NewClient(cfg, approver)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := c.Watch(ctx); err != nil {
			c.logger.Error("Watch stopped", slog.String("error", err.Error()))
		}
	}()

	return tui.Run(ctx, c.Controller, tui.Options{
		Address:  cfg.Record.Address(),
		Approver: approver,
		Notice:   c.Notice,
		Startup: func(ctx context.Context) {
			c.Controller.TrySilentConnect(ctx)
		},
	})
}

// RunMCP serves the client as MCP tools over stdio. Stdio carries the
// protocol, so trust prompts go to the controlling terminal when there is
// one.
func RunMCP(ctx context.Context, cfg *Config, version string) error {
	var approver wallet.Approver
	if tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0); err == nil {
		defer tty.Close()
		approver = &wallet.TerminalApprover{In: tty, Out: tty}
	}

	c, err := NewClient(cfg, approver)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.Controller.TrySilentConnect(ctx)
	go func() {
		if err := c.Watch(ctx); err != nil {
			c.logger.Error("Watch stopped", slog.String("error", err.Error()))
		}
	}()

	c.logger.Info("Starting MCP server on stdio")
	return mcpserver.New(c.Controller, version).ServeStdio()
}

// Connect connects silently, falling back to the interactive prompt.
func (c *Client) Connect(ctx context.Context) error {
	if c.Controller.TrySilentConnect(ctx) {
		return nil
	}
	return c.Controller.Connect(ctx)
}
