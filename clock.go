package profilecache

import "time"

// Clock abstracts wall time so freshness tests can control it without
// real delays.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
