package invoicing

import (
	"github.com/crownlands/tenure/internal/invoicing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoicing",
	fx.Provide(service.NewService),
)
