// Package viewstate owns the client lifecycle: wallet connection, record
// fetches, and the word cloud view derived from them.
package viewstate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/starford/ansuz/internal/aggregate"
	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/recordstore"
)

// Session resolves the wallet identity. *wallet.Session implements it.
type Session interface {
	TrySilentConnect(ctx context.Context) (models.Identity, bool)
	Connect(ctx context.Context) (models.Identity, error)
}

// Options configures a Controller.
type Options struct {
	// Address of the shared record.
	Address models.RecordAddress
	// CollapseFetchErrors maps a failed fetch to Absent instead of
	// Unavailable.
	CollapseFetchErrors bool
	// MergeRepeats accumulates repeated words into one weighted entry.
	MergeRepeats bool
	Logger       *slog.Logger
}

type task struct {
	run  func(ctx context.Context) error
	done chan error
}

// Controller drives the view state machine.
//
// Concurrency model: one internal goroutine owns the fetch sequence and runs
// queued actions one at a time, so a mutation and its re-fetch complete
// before the next action starts. Readers get immutable snapshots through an
// atomic pointer.
type Controller struct {
	session Session
	store   recordstore.Store
	opts    Options
	logger  *slog.Logger

	tasks   chan task
	view    atomic.Pointer[View]
	issued  uint64
	applied uint64

	listenersMu sync.Mutex
	listeners   []func(View)

	cancel  context.CancelFunc
	stopped chan struct{}
	closed  atomic.Bool
}

// New creates a controller in the Disconnected state and starts its loop.
func New(session Session, store recordstore.Store, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		session: session,
		store:   store,
		opts:    opts,
		logger:  logger,
		tasks:   make(chan task, 16),
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
	c.view.Store(&View{Phase: Disconnected})
	go c.run(ctx)
	return c
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-c.tasks:
			t.done <- t.run(ctx)
		}
	}
}

// Close stops the loop. Queued actions that have not started fail with
// context.Canceled.
func (c *Controller) Close() {
	if c.closed.CompareAndSwap(false, true) {
		c.cancel()
	}
	<-c.stopped
}

// View returns the current snapshot.
func (c *Controller) View() View {
	return *c.view.Load()
}

// OnChange registers fn to be called with every new snapshot. fn runs on the
// controller goroutine and must not call back into the controller.
func (c *Controller) OnChange(fn func(View)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// enqueue runs fn on the controller goroutine and waits for it. If ctx ends
// first the caller stops waiting, but a started action still completes.
func (c *Controller) enqueue(ctx context.Context, fn func(ctx context.Context) error) error {
	t := task{run: fn, done: make(chan error, 1)}
	select {
	case c.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return context.Canceled
	}
	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return context.Canceled
	}
}

// TrySilentConnect resolves a pre-authorized identity without prompting and,
// on success, fetches the record. It reports whether the client is
// connected afterwards.
func (c *Controller) TrySilentConnect(ctx context.Context) bool {
	if c.View().Connected() {
		return true
	}
	id, ok := c.session.TrySilentConnect(ctx)
	if !ok {
		return false
	}
	if err := c.enqueue(ctx, func(ctx context.Context) error { return c.onIdentity(ctx, id) }); err != nil {
		c.logger.Warn("viewstate: initial fetch not completed", slog.String("error", err.Error()))
	}
	return true
}

// Connect prompts the wallet and, once approved, fetches the record. On
// rejection the controller stays Disconnected and the error is returned.
func (c *Controller) Connect(ctx context.Context) error {
	if c.View().Connected() {
		return nil
	}
	id, err := c.session.Connect(ctx)
	if err != nil {
		c.logger.Info("viewstate: connect failed", slog.String("error", err.Error()))
		return err
	}
	return c.enqueue(ctx, func(ctx context.Context) error { return c.onIdentity(ctx, id) })
}

// SubmitWord appends text to the record and re-fetches. Empty text is
// rejected with apperr.ErrEmptyInput before anything else happens. A failed
// append is logged and the re-fetch still runs.
func (c *Controller) SubmitWord(ctx context.Context, text string) error {
	if text == "" {
		c.logger.Debug("viewstate: empty word ignored")
		return apperr.ErrEmptyInput
	}
	return c.enqueue(ctx, func(ctx context.Context) error {
		v := c.View()
		if !v.Connected() {
			return apperr.ErrDisconnected
		}
		if err := c.store.AppendContribution(ctx, c.opts.Address, text, v.Identity); err != nil {
			c.logger.Warn("viewstate: append failed",
				slog.String("record", c.opts.Address.String()),
				slog.String("error", err.Error()))
		} else {
			c.logger.Info("viewstate: word submitted", slog.String("word", text))
		}
		c.fetch(ctx)
		return nil
	})
}

// InitializeOneTime creates the shared record. It is only valid while the
// record is Absent; in any other state it does nothing and returns
// apperr.ErrInvalidState.
func (c *Controller) InitializeOneTime(ctx context.Context) error {
	return c.enqueue(ctx, func(ctx context.Context) error {
		v := c.View()
		if v.Phase != Absent {
			return apperr.ErrInvalidState
		}
		if err := c.store.InitializeRecord(ctx, c.opts.Address, v.Identity); err != nil {
			c.logger.Warn("viewstate: initialize failed",
				slog.String("record", c.opts.Address.String()),
				slog.String("error", err.Error()))
		} else {
			c.logger.Info("viewstate: record initialized", slog.String("record", c.opts.Address.String()))
		}
		c.fetch(ctx)
		return nil
	})
}

// Refresh re-fetches the record.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.enqueue(ctx, func(ctx context.Context) error {
		if !c.View().Connected() {
			return apperr.ErrDisconnected
		}
		c.fetch(ctx)
		return nil
	})
}

func (c *Controller) onIdentity(ctx context.Context, id models.Identity) error {
	if c.View().Connected() {
		return nil
	}
	c.publish(&View{Phase: Unknown, Identity: id})
	c.fetch(ctx)
	return nil
}

// fetch reads the record and applies the outcome. Must run on the
// controller goroutine.
func (c *Controller) fetch(ctx context.Context) {
	c.issued++
	seq := c.issued
	res := c.store.FetchRecord(ctx, c.opts.Address)
	c.apply(seq, res)
}

func (c *Controller) apply(seq uint64, res recordstore.FetchResult) {
	if seq < c.applied {
		c.logger.Debug("viewstate: stale fetch dropped", slog.Uint64("seq", seq))
		return
	}
	c.applied = seq

	prev := c.View()
	next := &View{Identity: prev.Identity, Seq: seq}

	switch res.Status {
	case recordstore.FetchFound:
		entries, contributors := aggregate.Derive(res.Record)
		if c.opts.MergeRepeats {
			entries = aggregate.Accumulate(entries)
		}
		next.Phase = Present
		next.Entries = entries
		next.Contributors = contributors
		next.Digest = res.Digest
		c.logger.Debug("viewstate: record fetched",
			slog.Int("contributions", len(res.Record.Contributions)),
			slog.String("digest", res.Digest))

	case recordstore.FetchAbsent:
		next.Phase = Absent
		c.logger.Info("viewstate: record absent", slog.String("record", c.opts.Address.String()))

	default:
		err := res.Err
		if err == nil {
			err = errors.New("fetch failed")
		}
		c.logger.Warn("viewstate: fetch failed",
			slog.String("record", c.opts.Address.String()),
			slog.String("error", err.Error()))
		if c.opts.CollapseFetchErrors {
			next.Phase = Absent
		} else {
			next.Phase = Unavailable
			next.Err = err
		}
	}
	c.publish(next)
}

func (c *Controller) publish(v *View) {
	c.view.Store(v)
	c.listenersMu.Lock()
	listeners := append([]func(View){}, c.listeners...)
	c.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(*v)
	}
}
