package worker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Task is a handle on one background task. Its completion is never awaited by the request that spawned it.
type Task struct {
	Name string
	done chan struct{}
	err  error
}

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the task's error once Done is closed.
func (t *Task) Err() error {
	<-t.done
	return t.err
}

// Failure is a task error routed to the logging sink.
type Failure struct {
	Task   string
	Err    error
	Fields []zap.Field
}

// Tasks runs detached background work after a request has been answered.
// Failed tasks are sent to an error channel that Run drains into the logger.
type Tasks struct {
	wg       sync.WaitGroup
	failures chan Failure
	logger   *zap.Logger
}

// NewTasks creates a task tracker. Call Run to start draining failures.
func NewTasks(logger *zap.Logger) *Tasks {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tasks{
		failures: make(chan Failure, 64),
		logger:   logger,
	}
}

// Go starts fn on a fresh background context, detached from the caller's request.
func (t *Tasks) Go(name string, fn func(ctx context.Context) error, fields ...zap.Field) *Task {
	task := &Task{Name: name, done: make(chan struct{})}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer close(task.done)
		defer func() {
			if r := recover(); r != nil {
				task.err = fmt.Errorf("panic: %v", r)
				t.report(Failure{Task: name, Err: task.err, Fields: fields})
			}
		}()

		t.logger.Debug("background task started", append(fields, zap.String("task", name))...)
		if err := fn(context.Background()); err != nil {
			task.err = err
			t.report(Failure{Task: name, Err: err, Fields: fields})
			return
		}
		t.logger.Debug("background task finished", append(fields, zap.String("task", name))...)
	}()
	return task
}

// report hands f to Run; if the channel is full the failure is logged inline so it is never lost.
func (t *Tasks) report(f Failure) {
	select {
	case t.failures <- f:
	default:
		t.log(f)
	}
}

// Run drains task failures into the logger until ctx is done.
func (t *Tasks) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case f := <-t.failures:
					t.log(f)
				default:
					return
				}
			}
		case f := <-t.failures:
			t.log(f)
		}
	}
}

func (t *Tasks) log(f Failure) {
	fields := append([]zap.Field{zap.String("task", f.Task), zap.Error(f.Err)}, f.Fields...)
	t.logger.Error("background task failed", fields...)
}

// Wait blocks until every started task has finished or ctx is done.
func (t *Tasks) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
