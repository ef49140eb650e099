package swim

import (
	"sync"
	"time"
)

// Scheduler is the named periodic-task timer pool: a small set of timer
// tasks (ping-round, suspect-timeout sweep, dead-gc, anti-entropy-
// broadcast) that post tick signals to the node actor, each independently
// named, started, and stopped.
type Scheduler struct {
	mu      sync.Mutex
	tickers map[string]*time.Ticker
	stop    map[string]chan struct{}
}

// NewScheduler creates an empty pool.
func NewScheduler() *Scheduler {
	return &Scheduler{tickers: make(map[string]*time.Ticker), stop: make(map[string]chan struct{})}
}

// Every starts (or restarts) a named periodic task at period, invoking fn
// on its own goroutine on every tick until Stop(name) or StopAll is called.
func (s *Scheduler) Every(name string, period time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.tickers[name]; ok {
		old.Stop()
		close(s.stop[name])
	}

	ticker := time.NewTicker(period)
	done := make(chan struct{})
	s.tickers[name] = ticker
	s.stop[name] = done

	go func() {
		for {
			select {
			case <-ticker.C:
				// A tick may already be buffered when Stop runs; don't
				// fire it once done is closed.
				select {
				case <-done:
					return
				default:
				}
				fn()
			case <-done:
				return
			}
		}
	}()
}

// Stop halts one named task, if running.
func (s *Scheduler) Stop(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tickers[name]; ok {
		t.Stop()
		close(s.stop[name])
		delete(s.tickers, name)
		delete(s.stop, name)
	}
}

// StopAll halts every task in the pool.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, t := range s.tickers {
		t.Stop()
		close(s.stop[name])
	}
	s.tickers = make(map[string]*time.Ticker)
	s.stop = make(map[string]chan struct{})
}
