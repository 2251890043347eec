package worker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrLimiterConcurrency = errors.New("concurrency limit reached, task not accepted")
	ErrLimiterDrain       = errors.New("limiter draining, task not accepted")
)

// Limiter caps the number of onboarding runs executing concurrently. Each
// run holds an interactive device session, so the cap directly bounds open
// SSH connections.
type Limiter struct {
	wg           *sync.WaitGroup
	doneCh       chan struct{}
	dispatcherCh chan func()
	concurrency  int

	// mu guards drain; dispatched is updated atomically.
	mu         sync.RWMutex
	dispatched int32
	drain      bool
}

// NewLimiter returns a limiter allowing up to concurrency simultaneous runs.
// Call StopWait to drain it before shutdown.
func NewLimiter(concurrency int) *Limiter {
	l := &Limiter{
		concurrency:  concurrency,
		wg:           &sync.WaitGroup{},
		doneCh:       make(chan struct{}),
		dispatcherCh: make(chan func()),
	}

	l.wg.Add(1)

	go l.dispatcher()

	return l
}

// Dispatch runs f on its own goroutine, or refuses when the limiter is at
// capacity or draining. Error handling belongs inside the closure.
func (l *Limiter) Dispatch(f func()) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if int(atomic.LoadInt32(&l.dispatched)) >= l.concurrency {
		return ErrLimiterConcurrency
	}

	if l.drain {
		return ErrLimiterDrain
	}

	l.dispatcherCh <- f

	return nil
}

func (l *Limiter) dispatcher() {
	defer l.wg.Done()

	drainCheck := time.NewTicker(200 * time.Millisecond)
	defer drainCheck.Stop()

	for {
		select {
		case f := <-l.dispatcherCh:
			atomic.AddInt32(&l.dispatched, 1)
			l.wg.Add(1)

			go func() {
				defer l.wg.Done()

				f()
				l.doneCh <- struct{}{}
			}()

		case <-l.doneCh:
			atomic.AddInt32(&l.dispatched, -1)

		case <-drainCheck.C:
			l.mu.RLock()
			done := l.drain && atomic.LoadInt32(&l.dispatched) == 0
			l.mu.RUnlock()

			if done {
				return
			}
		}
	}
}

// ActiveCount returns the number of runs currently executing.
func (l *Limiter) ActiveCount() int {
	return int(atomic.LoadInt32(&l.dispatched))
}

// StopWait refuses further dispatches and blocks until running tasks finish.
func (l *Limiter) StopWait() {
	l.mu.Lock()
	l.drain = true
	l.mu.Unlock()

	l.wg.Wait()
}
