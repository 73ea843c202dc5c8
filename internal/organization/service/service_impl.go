package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/crownlands/tenure/internal/cache"
	"github.com/crownlands/tenure/internal/clock"
	organizationdomain "github.com/crownlands/tenure/internal/organization/domain"
	"github.com/crownlands/tenure/internal/providers/ledger"
	"github.com/crownlands/tenure/pkg/db"
	"github.com/crownlands/tenure/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Registry lookups change rarely; a day-long cache keeps the ledger
// service off the hot path.
const searchTTL = 24 * time.Hour

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Ledger ledger.Client
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	ledger ledger.Client

	orgrepo      repository.Repository[organizationdomain.Organisation]
	delegaterepo repository.Repository[organizationdomain.Delegate]
	searchCache  cache.Cache[string, []organizationdomain.Organisation]
}

func NewService(p Params) organizationdomain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("organization.service"),
		genID:  p.GenID,
		ledger: p.Ledger,

		orgrepo:      repository.ProvideStore[organizationdomain.Organisation](p.DB),
		delegaterepo: repository.ProvideStore[organizationdomain.Delegate](p.DB),
		searchCache:  cache.NewTTLCache[string, []organizationdomain.Organisation](p.Clock),
	}
}

func (s *Service) Create(ctx context.Context, req organizationdomain.CreateOrganisationRequest) (organizationdomain.Organisation, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return organizationdomain.Organisation{}, organizationdomain.ErrInvalidName
	}
	abn := strings.ReplaceAll(strings.TrimSpace(req.ABN), " ", "")
	if len(abn) != 11 {
		return organizationdomain.Organisation{}, organizationdomain.ErrInvalidABN
	}

	existing, err := s.orgrepo.FindOne(ctx, &organizationdomain.Organisation{Name: name, ABN: abn})
	if err != nil {
		return organizationdomain.Organisation{}, err
	}
	if existing != nil {
		return organizationdomain.Organisation{}, organizationdomain.ErrAlreadyExists
	}

	// The ledger registry is authoritative; the local row mirrors it.
	ledgerOrg, err := s.ledger.CreateOrganisation(ctx, name, abn)
	if err != nil {
		return organizationdomain.Organisation{}, err
	}

	org := organizationdomain.Organisation{
		ID:                   s.genID.Generate(),
		LedgerOrganisationID: ledgerOrg.ID,
		Name:                 name,
		ABN:                  abn,
		Email:                ledgerOrg.Email,
		Phone:                ledgerOrg.Phone,
		Address:              ledgerOrg.Address,
	}
	if err := s.orgrepo.Create(ctx, &org); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return organizationdomain.Organisation{}, organizationdomain.ErrAlreadyExists
		}
		return organizationdomain.Organisation{}, err
	}

	s.searchCache.InvalidateAll()
	return org, nil
}

func (s *Service) Search(ctx context.Context, query string) ([]organizationdomain.Organisation, error) {
	key := strings.ToLower(strings.TrimSpace(query))
	if key == "" {
		return nil, organizationdomain.ErrInvalidName
	}

	if hit, ok := s.searchCache.Get(key); ok {
		return hit, nil
	}

	ledgerOrgs, err := s.ledger.SearchOrganisations(ctx, key)
	if err != nil {
		return nil, err
	}

	results := make([]organizationdomain.Organisation, 0, len(ledgerOrgs))
	for _, lo := range ledgerOrgs {
		local, err := s.orgrepo.FindOne(ctx, &organizationdomain.Organisation{LedgerOrganisationID: lo.ID})
		if err != nil {
			return nil, err
		}
		if local != nil {
			results = append(results, *local)
			continue
		}
		results = append(results, organizationdomain.Organisation{
			LedgerOrganisationID: lo.ID,
			Name:                 lo.Name,
			ABN:                  lo.ABN,
			Email:                lo.Email,
			Phone:                lo.Phone,
			Address:              lo.Address,
		})
	}

	s.searchCache.Set(key, results, searchTTL)
	return results, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (organizationdomain.Organisation, error) {
	org, err := s.orgrepo.FindOne(ctx, &organizationdomain.Organisation{ID: id})
	if err != nil {
		return organizationdomain.Organisation{}, err
	}
	if org == nil {
		return organizationdomain.Organisation{}, organizationdomain.ErrNotFound
	}
	return *org, nil
}

func (s *Service) GetByLedgerID(ctx context.Context, ledgerID int64) (organizationdomain.Organisation, error) {
	org, err := s.orgrepo.FindOne(ctx, &organizationdomain.Organisation{LedgerOrganisationID: ledgerID})
	if err != nil {
		return organizationdomain.Organisation{}, err
	}
	if org == nil {
		return organizationdomain.Organisation{}, organizationdomain.ErrNotFound
	}
	return *org, nil
}

func (s *Service) AddDelegate(ctx context.Context, orgID snowflake.ID, userID int64, role organizationdomain.DelegateRole) error {
	switch role {
	case organizationdomain.DelegateRoleAdmin, organizationdomain.DelegateRoleConsultant:
	default:
		return organizationdomain.ErrInvalidRole
	}
	if _, err := s.GetByID(ctx, orgID); err != nil {
		return err
	}

	delegate := organizationdomain.Delegate{
		ID:             s.genID.Generate(),
		OrganisationID: orgID,
		UserID:         userID,
		Role:           role,
	}
	if err := s.delegaterepo.Create(ctx, &delegate); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil
		}
		return err
	}
	return nil
}

func (s *Service) RemoveDelegate(ctx context.Context, orgID snowflake.ID, userID int64) error {
	existing, err := s.delegaterepo.FindOne(ctx, &organizationdomain.Delegate{OrganisationID: orgID, UserID: userID})
	if err != nil {
		return err
	}
	if existing == nil {
		return organizationdomain.ErrDelegateNotFound
	}
	return s.delegaterepo.Delete(ctx, existing.ID.String())
}

func (s *Service) IsDelegate(ctx context.Context, orgID snowflake.ID, userID int64) (bool, error) {
	existing, err := s.delegaterepo.FindOne(ctx, &organizationdomain.Delegate{OrganisationID: orgID, UserID: userID})
	if err != nil {
		return false, err
	}
	return existing != nil, nil
}
