package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts wall time so partition inference and step durations can be
// pinned in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

var Module = fx.Module("clock",
	fx.Provide(func() Clock { return SystemClock{} }),
)
