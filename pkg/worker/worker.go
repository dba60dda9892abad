package worker

import (
	"errors"
	"sync"
	"time"
)

// Errors that may occur when sending tasks to a worker.
var (
	ErrWorkerClosed  = errors.New("worker is closed")
	ErrWorkerTooBusy = errors.New("worker is already overloaded")
)

// Configuration for the worker.
type Config[T any] struct {
	// The size of the bounded channel.
	ChannelSize int
	// Idle time after which `OnTimeout` is called. Zero disables the timeout.
	Timeout time.Duration
	// A closure that is called once `Timeout` is reached without any task.
	OnTimeout func()
	// A closure that is executed upon reception of a task.
	OnTask func(T)
}

// A single goroutine that executes the tasks one by one, so that whatever the
// closures touch is never accessed concurrently.
type Worker[T any] struct {
	channel chan<- T
	done    <-chan struct{}
	mutex   sync.Mutex
	closed  bool
}

// Stop the worker unless already stopped. Tasks that are already queued are still executed.
func (w *Worker[T]) Stop() {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if !w.closed {
		close(w.channel)
		w.closed = true
	}
}

// Closed once the worker goroutine returned.
func (w *Worker[T]) Done() <-chan struct{} {
	return w.done
}

// Send a task to the worker without blocking. Returns `ErrWorkerTooBusy` if the queue
// is full and `ErrWorkerClosed` if the worker has been stopped.
func (w *Worker[T]) Send(task T) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return ErrWorkerClosed
	}

	select {
	case w.channel <- task:
		return nil
	default:
		return ErrWorkerTooBusy
	}
}

// Starts a worker. The worker stops once `Stop` is called and the queue is drained.
func StartWorker[T any](c Config[T]) *Worker[T] {
	incoming := make(chan T, c.ChannelSize)
	done := make(chan struct{})

	go func() {
		defer close(done)

		for {
			var timeout <-chan time.Time
			if c.Timeout > 0 && c.OnTimeout != nil {
				timeout = time.After(c.Timeout)
			}

			select {
			case task, ok := <-incoming:
				if !ok {
					return
				}
				c.OnTask(task)
			case <-timeout:
				c.OnTimeout()
			}
		}
	}()

	return &Worker[T]{channel: incoming, done: done}
}
