package framework

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/golang/glog"
)

// ErrForcedExit is returned by Wait when a second stop signal arrives.
var ErrForcedExit = errors.New("forced exit")

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// NamedRun wraps a Runnable with a name, e.g. "board" or "mqtt".
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type stopped struct {
	name string
	err  error
}

// Runner runs the services of a process side by side: the simulated
// board, the transports, the bridge loop. The first service failing
// stops all the others.
type Runner struct {
	ctx     context.Context
	cancel  context.CancelFunc
	started int
	stopCh  chan stopped
	exitCh  chan struct{}
}

// NewRunner creates a runner with a background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a runner whose services stop with ctx.
func NewRunnerWith(ctx context.Context) *Runner {
	r := &Runner{
		stopCh: make(chan stopped),
		exitCh: make(chan struct{}),
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	return r
}

// Context is done once the runner stops its services.
func (r *Runner) Context() context.Context {
	return r.ctx
}

// Stop asks every service to stop.
func (r *Runner) Stop() {
	r.cancel()
}

// HandleSignals stops the services on CtrlC or SIGTERM. A second signal
// makes Wait return without waiting for them.
func (r *Runner) HandleSignals() *Runner {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		glog.Info("stop requested")
		r.cancel()
		<-sigCh
		glog.Error("stop requested again, force exit")
		close(r.exitCh)
	}()
	return r
}

// Go starts services.
func (r *Runner) Go(services ...Runnable) *Runner {
	for _, svc := range services {
		name := "#" + strconv.Itoa(r.started)
		if named, ok := svc.(Named); ok {
			name = named.Name()
		}
		r.started++
		go func(svc Runnable, name string) {
			glog.V(4).Infof("%s started", name)
			err := svc.Run(r.ctx)
			glog.V(4).Infof("%s stopped: %v", name, err)
			if err != nil && !errors.Is(err, context.Canceled) {
				r.cancel()
			}
			r.stopCh <- stopped{name: name, err: err}
		}(svc, name)
	}
	return r
}

// Wait waits until every service stops and aggregates their failures,
// each prefixed with the service name. Cancellation is not a failure.
func (r *Runner) Wait() error {
	var errs AggregatedError
	for ; r.started > 0; r.started-- {
		select {
		case <-r.exitCh:
			return ErrForcedExit
		case s := <-r.stopCh:
			if s.err != nil && !errors.Is(s.err, context.Canceled) {
				errs.Add(fmt.Errorf("%s: %w", s.name, s.err))
			}
		}
	}
	return errs.Aggregate()
}

// RunWithContextCloser runs fn, which takes no context, until it returns
// or ctx is done. closer is closed exactly once, on cancel to make fn
// return, or after fn returned by itself.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case <-ctx.Done():
		closer.Close()
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		closer.Close()
		return err
	}
}
