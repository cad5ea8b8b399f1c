package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brandforge/creditd/internal/models"

	"gorm.io/gorm"
)

// ErrPricingNotFound indicates no active tier matches a provider/operation
// pair. Callers must block the metered operation; there is no default cost.
var ErrPricingNotFound = errors.New("pricing: no active tier for provider/operation")

// Service resolves credit costs and serves the pricing catalog.
type Service struct {
	db *gorm.DB
}

// NewService constructs a Service on an injected database handle.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// GetCost returns the per-unit credit cost for an operation on a provider.
func (s *Service) GetCost(ctx context.Context, provider, operation string) (int64, error) {
	provider = strings.TrimSpace(provider)
	operation = strings.TrimSpace(operation)
	if provider == "" || operation == "" {
		return 0, ErrPricingNotFound
	}

	var tier models.PricingTier
	errFind := s.db.WithContext(ctx).
		Where("provider = ? AND operation = ? AND is_active = ?", provider, operation, true).
		Take(&tier).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return 0, ErrPricingNotFound
		}
		return 0, fmt.Errorf("pricing: lookup tier: %w", errFind)
	}
	return tier.CreditsPerUnit, nil
}

// ListTiers returns pricing tiers, optionally restricted to active ones.
func (s *Service) ListTiers(ctx context.Context, onlyActive bool) ([]models.PricingTier, error) {
	q := s.db.WithContext(ctx).Model(&models.PricingTier{})
	if onlyActive {
		q = q.Where("is_active = ?", true)
	}
	var rows []models.PricingTier
	if errFind := q.Order("provider ASC, operation ASC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("pricing: list tiers: %w", errFind)
	}
	return rows, nil
}

// ListPackages returns purchasable credit packages in display order.
func (s *Service) ListPackages(ctx context.Context, onlyEnabled bool) ([]models.CreditPackage, error) {
	q := s.db.WithContext(ctx).Model(&models.CreditPackage{})
	if onlyEnabled {
		q = q.Where("is_enabled = ?", true)
	}
	var rows []models.CreditPackage
	if errFind := q.Order("sort_order ASC, created_at DESC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("pricing: list packages: %w", errFind)
	}
	return rows, nil
}
