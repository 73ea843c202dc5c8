// Package clock abstracts wall-clock access so workflow and scheduler
// logic can be driven by a fake clock in tests.
package clock

import (
	"time"

	"go.uber.org/fx"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func NewSystem() Clock { return systemClock{} }

var Module = fx.Module("clock",
	fx.Provide(NewSystem),
)
