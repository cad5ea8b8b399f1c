package models

import "time"

// CreditPackage is a purchasable credit bundle shown in the storefront.
type CreditPackage struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name string `gorm:"type:text;not null"` // Display name.

	CreditsAmount int64  `gorm:"not null"`                         // Credits granted on purchase.
	PriceCents    int64  `gorm:"not null"`                         // Price in minor currency units.
	Currency      string `gorm:"type:text;not null;default:'USD'"` // ISO currency code.

	// IsEnabled carries no column default for the same reason as
	// PricingTier.IsActive: gorm drops zero-value fields on insert.
	IsPopular bool `gorm:"not null;default:false"` // Storefront highlight flag.
	IsEnabled bool `gorm:"not null"`               // Whether the package is purchasable.
	SortOrder int  `gorm:"not null;default:0"`     // Display order.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
