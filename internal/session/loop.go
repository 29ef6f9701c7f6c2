// Package session runs the storefront cart on a single goroutine. Display
// gestures and payment outcomes are queued as jobs and applied one at a time.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront/internal/cart"
	"github.com/noah-isme/storefront/internal/checkout"
	"github.com/noah-isme/storefront/internal/obs"
)

// ErrStopped is returned once the loop has exited.
var ErrStopped = errors.New("session: loop stopped")

// Checkouter opens a payment for the cart.
type Checkouter interface {
	Checkout(ctx context.Context, recipient string) (checkout.Attempt, error)
}

// Result is the cart state after a command.
type Result struct {
	Changed  bool
	Snapshot cart.Snapshot
	Attempt  *checkout.Attempt
}

// Config wires a Loop.
type Config struct {
	Manager *cart.Manager
	Logger  zerolog.Logger
	// Buffer is the job queue depth. Defaults to 64.
	Buffer int
}

// Loop owns a cart.Manager and serialises every access to it.
type Loop struct {
	manager  *cart.Manager
	checkout Checkouter
	logger   zerolog.Logger
	jobs     chan func()
	done     chan struct{}
}

// New constructs a Loop. Call Run to start processing.
func New(cfg Config) *Loop {
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	return &Loop{
		manager: cfg.Manager,
		logger:  cfg.Logger,
		jobs:    make(chan func(), buffer),
		done:    make(chan struct{}),
	}
}

// SetCheckout attaches the checkout service. Call it before submitting checkout commands.
func (l *Loop) SetCheckout(c Checkouter) {
	l.checkout = c
}

// Run processes jobs until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-l.jobs:
			l.run(job)
		}
	}
}

func (l *Loop) run(job func()) {
	defer func() {
		if rec := recover(); rec != nil {
			l.logger.Error().Interface("panic", rec).Msg("session_job_panic")
		}
	}()
	job()
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Post queues fn without waiting. It never blocks the caller; jobs posted after
// the loop stops are dropped.
func (l *Loop) Post(fn func()) {
	select {
	case l.jobs <- fn:
		return
	case <-l.done:
		return
	default:
	}
	go func() {
		select {
		case l.jobs <- fn:
		case <-l.done:
		}
	}()
}

// Submit applies cmd on the loop and waits for the result.
func (l *Loop) Submit(ctx context.Context, cmd cart.Command) (Result, error) {
	var (
		res    Result
		cmdErr error
	)
	err := l.do(ctx, func() {
		if cmd.Kind == cart.KindCheckout {
			res, cmdErr = l.applyCheckout(ctx, cmd)
			return
		}
		changed, err := cart.Apply(l.manager, cmd)
		if err != nil {
			obs.IncCartCommand(cmd.Kind.String(), "error")
			cmdErr = err
			return
		}
		result := "noop"
		if changed {
			result = "changed"
		}
		obs.IncCartCommand(cmd.Kind.String(), result)
		res = Result{Changed: changed, Snapshot: l.manager.Snapshot()}
	})
	if err != nil {
		return Result{}, err
	}
	return res, cmdErr
}

func (l *Loop) applyCheckout(ctx context.Context, cmd cart.Command) (Result, error) {
	if l.checkout == nil {
		obs.IncCartCommand(cmd.Kind.String(), "error")
		return Result{}, fmt.Errorf("%w: no checkout service", checkout.ErrPaymentNotConfigured)
	}
	attempt, err := l.checkout.Checkout(ctx, cmd.Recipient)
	if err != nil {
		obs.IncCartCommand(cmd.Kind.String(), "rejected")
		return Result{Snapshot: l.manager.Snapshot()}, err
	}
	obs.IncCartCommand(cmd.Kind.String(), "started")
	return Result{Snapshot: l.manager.Snapshot(), Attempt: &attempt}, nil
}

// Snapshot reads the cart on the loop.
func (l *Loop) Snapshot(ctx context.Context) (cart.Snapshot, error) {
	var snap cart.Snapshot
	if err := l.do(ctx, func() { snap = l.manager.Snapshot() }); err != nil {
		return cart.Snapshot{}, err
	}
	return snap, nil
}

// do runs fn on the loop and waits for it. A job whose ctx ended while it was
// queued is skipped, so an abandoned request never reaches the cart or the provider.
func (l *Loop) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	var skipped error
	job := func() {
		defer close(finished)
		if err := ctx.Err(); err != nil {
			skipped = err
			return
		}
		fn()
	}
	select {
	case l.jobs <- job:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}
	select {
	case <-finished:
		return skipped
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}
}
