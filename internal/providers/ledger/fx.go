package ledger

import (
	"github.com/crownlands/tenure/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.ledger",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Client {
	return NewHTTPClient(Config{
		BaseURL:           cfg.LedgerBaseURL,
		APIKey:            cfg.LedgerAPIKey,
		SystemSenderEmail: cfg.SystemSenderEmail,
	}, log)
}
