package queue

import (
	"sync"
	"time"
)

// RateLimitMiddleware is a token-bucket gate admitting at most
// MaxJobsPerSecond executions per second. Callers block until capacity is
// available. Drivers run ProcessOne calls from different workers
// concurrently, so no admission order among concurrent waiters is
// guaranteed.
type RateLimitMiddleware struct {
	MaxJobsPerSecond int

	once   sync.Once
	tokens chan struct{}
	stop   chan struct{}
}

func (m *RateLimitMiddleware) init() {
	m.once.Do(func() {
		rate := m.MaxJobsPerSecond
		if rate < 1 {
			rate = 1
		}
		m.tokens = make(chan struct{}, rate)
		m.stop = make(chan struct{})
		for i := 0; i < rate; i++ {
			m.tokens <- struct{}{}
		}

		interval := time.Second / time.Duration(rate)
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					select {
					case m.tokens <- struct{}{}:
					default:
					}
				case <-m.stop:
					return
				}
			}
		}()
	})
}

func (m *RateLimitMiddleware) Handle(ctx *Context, next Next) error {
	m.init()
	<-m.tokens
	return next()
}

// Close stops the background token refill goroutine.
func (m *RateLimitMiddleware) Close() {
	m.init()
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
}
