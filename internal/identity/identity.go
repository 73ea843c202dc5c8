// Package identity resolves email users against the external ledger
// identity service, with a short-TTL cache in front.
package identity

import (
	"context"
	"time"

	"github.com/crownlands/tenure/internal/cache"
	"github.com/crownlands/tenure/internal/clock"
	"github.com/crownlands/tenure/internal/providers/ledger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const userTTL = 5 * time.Minute

type Service interface {
	RetrieveEmailUser(ctx context.Context, id int64) (ledger.EmailUser, error)
	RetrieveSystemSender(ctx context.Context) (ledger.EmailUser, error)
	Invalidate(id int64)
}

type Params struct {
	fx.In

	Client ledger.Client
	Clock  clock.Clock
	Log    *zap.Logger
}

type service struct {
	client ledger.Client
	log    *zap.Logger
	users  cache.Cache[int64, ledger.EmailUser]
}

func NewService(p Params) Service {
	return &service{
		client: p.Client,
		log:    p.Log.Named("identity.service"),
		users:  cache.NewTTLCache[int64, ledger.EmailUser](p.Clock),
	}
}

func (s *service) RetrieveEmailUser(ctx context.Context, id int64) (ledger.EmailUser, error) {
	if user, ok := s.users.Get(id); ok {
		return user, nil
	}

	user, err := s.client.RetrieveEmailUser(ctx, id)
	if err != nil {
		// A missing identity record is fatal for the record being
		// processed; placeholder users are never fabricated.
		return ledger.EmailUser{}, err
	}

	s.users.Set(id, user, userTTL)
	return user, nil
}

func (s *service) RetrieveSystemSender(ctx context.Context) (ledger.EmailUser, error) {
	return s.client.RetrieveSystemSender(ctx)
}

func (s *service) Invalidate(id int64) {
	s.users.Invalidate(id)
}

var Module = fx.Module("identity.service",
	fx.Provide(NewService),
)
