package models

import "time"

// CreditAccount tracks a user's current credit balance and lifetime counters.
type CreditAccount struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID string `gorm:"type:text;not null;uniqueIndex"` // Opaque user identifier.

	Balance        int64 `gorm:"not null;default:0"` // Current spendable credits.
	TotalPurchased int64 `gorm:"not null;default:0"` // Lifetime purchased credits, monotonic.
	TotalUsed      int64 `gorm:"not null;default:0"` // Lifetime consumed credits, monotonic.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
