package proposal

import (
	"github.com/crownlands/tenure/internal/proposal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("proposal",
	fx.Provide(service.NewService),
)
