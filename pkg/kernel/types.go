package kernel

import "context"

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Prioritized is implemented by Runnables which want a specific task priority.
type Prioritized interface {
	Priority() int
}

// Runnable is the body of a task.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is func type of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}
