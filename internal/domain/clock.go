package domain

import "github.com/jonboulle/clockwork"

// clock supplies the reference "today" for report dates that omit the year
// or use relative words. Tests freeze it via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the reference time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
