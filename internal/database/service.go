package database

import (
	"github.com/robalyx/starboard/internal/database/service"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Service provides access to all business logic services.
type Service struct {
	premium *service.PremiumService
}

// NewService creates a new service instance with all services.
func NewService(db *bun.DB, repository *Repository, opts ServiceOptions, logger *zap.Logger) *Service {
	return &Service{
		premium: service.NewPremium(db, repository.Guild(), opts.Limits, opts.MonthCost, logger),
	}
}

// ServiceOptions configures the services.
type ServiceOptions struct {
	Limits    service.PremiumLimits
	MonthCost int64
}

// Premium returns the premium service.
func (s *Service) Premium() *service.PremiumService {
	return s.premium
}
