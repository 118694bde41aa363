package progress

import "time"

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// ClockFunc adapts a function to [Clock].
type ClockFunc func(d time.Duration) Ticker

func (f ClockFunc) NewTicker(d time.Duration) Ticker { return f(d) }

type systemTicker struct{ *time.Ticker }

func (s systemTicker) C() <-chan time.Time { return s.Ticker.C }

// SystemClock returns a [Clock] backed by [time.NewTicker].
func SystemClock() Clock {
	return ClockFunc(func(d time.Duration) Ticker {
		return systemTicker{time.NewTicker(d)}
	})
}
