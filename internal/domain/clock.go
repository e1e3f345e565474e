package domain

import (
	"sync"

	"github.com/jonboulle/clockwork"
)

// fallbackDateLayout is the provider's ISO format without a zone, e.g.
// "2024-05-01T08:00:00.000000".
const fallbackDateLayout = "2006-01-02T15:04:05.000000"

var (
	clockMu sync.RWMutex
	clock   = clockwork.NewRealClock()
)

// SetClock replaces the source of the timestamp given to records that carry
// none. Nil restores the wall clock.
func SetClock(c clockwork.Clock) {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	clockMu.Lock()
	clock = c
	clockMu.Unlock()
}

// fallbackDate is the current UTC time rendered in fallbackDateLayout.
func fallbackDate() string {
	clockMu.RLock()
	defer clockMu.RUnlock()
	return clock.Now().UTC().Format(fallbackDateLayout)
}
