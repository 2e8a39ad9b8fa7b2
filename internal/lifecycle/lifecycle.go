package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"vawter.tech/stopper"
)

// stopGracePeriod is how long the signal watcher gets to exit once the
// run body has returned.
const stopGracePeriod = 100 * time.Millisecond

// Hook is a named shutdown action.
type Hook struct {
	Name string
	Fn   func(ctx context.Context) error
}

// NotifyFunc matches signal.Notify. Tests replace it to inject signals.
type NotifyFunc func(c chan<- os.Signal, sig ...os.Signal)

// PanicError is returned by Run when the body panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Lifecycle runs a body under signal supervision and guarantees that the
// registered shutdown hooks run exactly once.
type Lifecycle struct {
	mu    sync.Mutex
	hooks []Hook
	done  atomic.Bool

	signals []os.Signal
	notify  NotifyFunc
	stop    func(c chan<- os.Signal)
}

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithNotify replaces signal.Notify and signal.Stop.
func WithNotify(notify NotifyFunc, stop func(c chan<- os.Signal)) Option {
	return func(l *Lifecycle) {
		l.notify = notify
		l.stop = stop
	}
}

// New creates a Lifecycle watching SIGINT and SIGTERM.
func New(opts ...Option) *Lifecycle {
	l := &Lifecycle{
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
		notify:  signal.Notify,
		stop:    func(c chan<- os.Signal) { signal.Stop(c) },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OnShutdown registers a hook. Hooks run in reverse registration order.
// Hooks registered after Shutdown has run are never called.
func (l *Lifecycle) OnShutdown(name string, fn func(ctx context.Context) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, Hook{Name: name, Fn: fn})
}

// Done reports whether Shutdown has run (or is running).
func (l *Lifecycle) Done() bool {
	return l.done.Load()
}

// Shutdown runs every registered hook once, in reverse order, and joins
// their errors. Only the first call does anything; later and concurrent
// calls return nil immediately.
func (l *Lifecycle) Shutdown(ctx context.Context) error {
	if !l.done.CompareAndSwap(false, true) {
		return nil
	}

	l.mu.Lock()
	hooks := make([]Hook, len(l.hooks))
	copy(hooks, l.hooks)
	l.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		log.WithField("hook", h.Name).Debug("running shutdown hook")
		if err := h.Fn(ctx); err != nil {
			log.WithError(err).WithField("hook", h.Name).Error("shutdown hook failed")
			errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Run calls body with a context that is cancelled when one of the watched
// signals arrives or the parent is cancelled. When body returns or panics,
// Shutdown runs on a context detached from that cancellation.
//
// A panic is logged with its stack and returned as a *PanicError after the
// hooks ran. A shutdown failure is joined to the body's error.
func (l *Lifecycle) Run(parent context.Context, body func(ctx context.Context) error) (err error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	l.notify(sigCh, l.signals...)

	sctx := stopper.WithContext(ctx)
	sctx.Go(func(sctx *stopper.Context) error {
		select {
		case sig := <-sigCh:
			log.WithField("signal", sig.String()).Info("Received signal, shutting down")
			cancel()
		case <-sctx.Stopping():
		}
		return nil
	})

	defer func() {
		if r := recover(); r != nil {
			perr := &PanicError{Value: r, Stack: debug.Stack()}
			if !l.Done() {
				log.WithField("stack", string(perr.Stack)).Errorf("unhandled failure: %v", r)
			}
			err = perr
		}

		if serr := l.Shutdown(context.WithoutCancel(parent)); serr != nil {
			err = errors.Join(err, serr)
		}

		sctx.Stop(stopGracePeriod)
		if werr := sctx.Wait(); werr != nil {
			log.WithError(werr).Debug("signal watcher exited with error")
		}
		l.stop(sigCh)
	}()

	return body(ctx)
}
