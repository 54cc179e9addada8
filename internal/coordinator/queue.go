package coordinator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"

	"omemo/internal/metrics"
)

var errClosed = errors.New("coordinator closed")

// queue runs jobs one at a time on a single goroutine.
type queue struct {
	jobs    chan func()
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func newQueue(size int, log zerolog.Logger, m *metrics.Metrics) *queue {
	q := &queue{
		jobs:    make(chan func(), size),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		log:     log,
		metrics: m,
	}
	go q.run()
	return q
}

func (q *queue) run() {
	defer close(q.done)
	for {
		select {
		case <-q.stop:
			return
		case job := <-q.jobs:
			q.exec(job)
		}
	}
}

// exec runs job, containing any panic to the job itself.
func (q *queue) exec(job func()) {
	defer func() {
		if r := recover(); r != nil {
			q.metrics.Panicked()
			q.log.Error().Str("panic", fmt.Sprint(r)).Bytes("stack", debug.Stack()).Msg("job panicked")
		}
	}()
	job()
}

// dispatch enqueues job without waiting for it to run.
func (q *queue) dispatch(job func()) error {
	select {
	case <-q.stop:
		return errClosed
	default:
	}
	select {
	case q.jobs <- job:
		return nil
	case <-q.stop:
		return errClosed
	}
}

// do runs job on the worker and waits for it. It must not be called from a job.
func (q *queue) do(ctx context.Context, job func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		job()
	}
	if err := q.dispatch(wrapped); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return errClosed
	}
}

// close stops the worker after the job in progress and waits for it to exit.
// Queued jobs that have not started are dropped.
func (q *queue) close() {
	q.once.Do(func() { close(q.stop) })
	<-q.done
}
