package models

import (
	"time"

	"gorm.io/datatypes"
)

// UsageLog is the audit record for one metered AI operation. Each row is
// paired with exactly one usage-type transaction via TransactionID.
type UsageLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID string `gorm:"type:text;not null;index"` // Opaque user identifier.

	Provider  string `gorm:"type:text;not null"` // AI provider, e.g. "openai".
	Operation string `gorm:"type:text;not null"` // Metered operation, e.g. "image-gen".

	CreditsUsed int64 `gorm:"not null"` // Credits charged for this operation.

	TransactionID uint64 `gorm:"not null;index"` // Paired usage transaction.

	RequestMetadata  datatypes.JSON `gorm:"type:json"` // Request-side context.
	ResponseMetadata datatypes.JSON `gorm:"type:json"` // Response-side context.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
