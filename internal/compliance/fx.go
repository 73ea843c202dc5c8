package compliance

import (
	"github.com/crownlands/tenure/internal/compliance/service"
	"go.uber.org/fx"
)

var Module = fx.Module("compliance",
	fx.Provide(service.NewService),
)
