package approval

import (
	"github.com/crownlands/tenure/internal/approval/service"
	"go.uber.org/fx"
)

var Module = fx.Module("approval",
	fx.Provide(service.NewService),
)
