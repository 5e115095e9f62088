package battle

import (
	"sync"
	"time"
)

// Clock drives a battle's turn timer. Start is called once when the battle
// becomes active; Stop is called exactly once when it finishes and must be
// safe to call from inside the tick callback.
type Clock interface {
	Start(tick func())
	Stop()
}

// ClockFactory builds a clock ticking at interval.
type ClockFactory func(interval time.Duration) Clock

// NewTickerClock is the production ClockFactory.
func NewTickerClock(interval time.Duration) Clock {
	return &tickerClock{interval: interval, stop: make(chan struct{})}
}

type tickerClock struct {
	interval time.Duration
	stop     chan struct{}
	once     sync.Once
}

func (c *tickerClock) Start(tick func()) {
	go func() {
		t := time.NewTicker(c.interval)
		defer t.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-t.C:
				// Stop may have raced with the ticker.
				select {
				case <-c.stop:
					return
				default:
				}
				tick()
			}
		}
	}()
}

func (c *tickerClock) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// NopClock never ticks. Offline simulations use it.
func NopClock(time.Duration) Clock {
	return nopClock{}
}

type nopClock struct{}

func (nopClock) Start(func()) {}
func (nopClock) Stop()        {}
