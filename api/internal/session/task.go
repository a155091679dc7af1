package session

import "context"

// Task is the settle notification of one controller operation.
type Task struct {
	done    chan struct{}
	err     error
	skipped bool
	stale   bool
}

func newTask() *Task {
	return &Task{done: make(chan struct{})}
}

// skippedTask is returned when an operation's preconditions do not hold.
func skippedTask() *Task {
	t := &Task{done: make(chan struct{}), skipped: true}
	close(t.done)
	return t
}

func (t *Task) finish(err error, stale bool) {
	t.err = err
	t.stale = stale
	close(t.done)
}

// Done is closed once the operation has settled and its effect is applied.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task settles or ctx ends.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err is the operation's failure; only meaningful after Done.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Skipped reports that the operation was a no-op.
func (t *Task) Skipped() bool { return t.skipped }

// Stale reports that a nutrition lookup arrived for a result that had
// already been replaced and was therefore dropped.
func (t *Task) Stale() bool {
	select {
	case <-t.done:
		return t.stale
	default:
		return false
	}
}
