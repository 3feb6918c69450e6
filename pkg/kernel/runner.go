package kernel

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
)

type namedRunnable struct {
	Runnable
	name     string
	priority int
}

func (r *namedRunnable) Name() string {
	return r.name
}

func (r *namedRunnable) Priority() int {
	return r.priority
}

// NamedRun wraps a Runnable with a name and the default priority.
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{Runnable: runnable, name: name, priority: DefaultPriority}
}

// TaskRun wraps a Runnable with a name and a priority.
func TaskRun(name string, priority int, runnable Runnable) Runnable {
	return &namedRunnable{Runnable: runnable, name: name, priority: priority}
}

// Runner starts Runnables as tasks of a kernel and collects their errors.
type Runner struct {
	Kernel  *Kernel
	Context context.Context
	Tasks   []*Task

	cancel context.CancelFunc
	errCh  chan error
	exitCh chan struct{}
}

// NewRunner creates a runner with a background context.
func (k *Kernel) NewRunner() *Runner {
	return k.NewRunnerWith(context.Background())
}

// NewRunnerWith creates a runner with a specified context.
// The first task failing cancels the others.
func (k *Kernel) NewRunnerWith(ctx context.Context) *Runner {
	ctx, cancel := context.WithCancel(ctx)
	return &Runner{
		Kernel:  k,
		Context: ctx,
		cancel:  cancel,
		errCh:   make(chan error, 1),
		exitCh:  make(chan struct{}),
	}
}

// HandleSignals cancels the tasks on CtrlC or SIGTERM, and forces Wait
// to return on the second signal.
func (r *Runner) HandleSignals() *Runner {
	ctx, cancel := context.WithCancel(r.Context)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	r.Context = ctx
	go func() {
		<-sigCh
		glog.Info("stop requested")
		cancel()
		<-sigCh
		glog.Error("stop requested again, force exit")
		close(r.exitCh)
	}()
	return r
}

// Go starts Runnables as tasks with the runner context.
func (r *Runner) Go(runners ...Runnable) *Runner {
	return r.GoWith(r.Context, runners...)
}

// GoWith starts Runnables as tasks with a specified context.
func (r *Runner) GoWith(ctx context.Context, runners ...Runnable) *Runner {
	for _, runner := range runners {
		var name string
		if named, ok := runner.(Named); ok {
			name = named.Name()
		}
		priority := DefaultPriority
		if p, ok := runner.(Prioritized); ok {
			priority = p.Priority()
		}
		task := r.Kernel.NewTask(name, priority)
		r.Tasks = append(r.Tasks, task)
		glog.V(4).Infof("start task[%s] prio=%d", task.Name, task.Priority)
		go func(runner Runnable, task *Task) {
			glog.V(4).Infof("task[%s] started", task.Name)
			err := runner.Run(WithTask(ctx, task))
			glog.V(4).Infof("task[%s] stopped: %v", task.Name, err)
			if err != nil && !errors.Is(err, context.Canceled) {
				glog.Errorf("task[%s] failed: %v", task.Name, err)
				r.cancel()
			}
			r.errCh <- err
		}(runner, task)
	}
	return r
}

// Wait waits until all tasks return and aggregates their errors.
// context.Canceled is not treated as an error.
func (r *Runner) Wait() error {
	var errs AggregatedError
	for range r.Tasks {
		select {
		case <-r.exitCh:
			return ErrForcedExit
		case err := <-r.errCh:
			if !errors.Is(err, context.Canceled) {
				errs.Add(err)
			}
		}
	}
	r.cancel()
	return errs.Aggregate()
}

// Stop cancels all tasks.
func (r *Runner) Stop() {
	r.cancel()
}

// RunWithContextCancel runs fn which doesn't accept a context.
// onCancel is called only when ctx is done, and is expected to make fn
// return.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case <-ctx.Done():
		if onCancel != nil {
			onCancel()
		}
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
