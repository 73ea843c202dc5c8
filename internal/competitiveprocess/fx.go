package competitiveprocess

import (
	"github.com/crownlands/tenure/internal/competitiveprocess/service"
	"go.uber.org/fx"
)

var Module = fx.Module("competitiveprocess",
	fx.Provide(service.NewService),
)
