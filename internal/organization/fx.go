package organization

import (
	"github.com/crownlands/tenure/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization",
	fx.Provide(service.NewService),
)
