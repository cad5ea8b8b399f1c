package models

import "time"

// PricingTier maps a (provider, operation) pair to its credit cost.
type PricingTier struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Provider  string `gorm:"type:text;not null;uniqueIndex:idx_pricing_tiers_provider_operation"` // AI provider identifier.
	Operation string `gorm:"type:text;not null;uniqueIndex:idx_pricing_tiers_provider_operation"` // Metered operation name.

	CreditsPerUnit int64  `gorm:"not null"`                       // Credit cost per unit.
	UnitName       string `gorm:"type:text;not null;default:''"` // Billing unit, e.g. "image", "second".

	// No column default: gorm skips zero-value fields on insert, so a
	// default of true would silently flip IsActive=false rows to active.
	IsActive bool `gorm:"not null"` // Whether the tier is used for lookups.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
