package models

import (
	"time"

	"gorm.io/datatypes"
)

// TransactionType classifies a ledger entry.
type TransactionType string

// TransactionType values cover every balance-affecting operation.
const (
	// TransactionTypePurchase records credits bought through a package.
	TransactionTypePurchase TransactionType = "purchase"
	// TransactionTypeUsage records credits consumed by a metered operation.
	TransactionTypeUsage TransactionType = "usage"
	// TransactionTypeRefund records credits returned to the user.
	TransactionTypeRefund TransactionType = "refund"
	// TransactionTypeBonus records promotional credits.
	TransactionTypeBonus TransactionType = "bonus"
)

// CreditTransaction is an immutable record of one balance change.
// The sequence of transactions for a user, replayed in creation order,
// reconstructs the account balance.
type CreditTransaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID string `gorm:"type:text;not null;index"` // Opaque user identifier.

	Type         TransactionType `gorm:"type:text;not null"` // Ledger entry type, always explicit.
	Amount       int64           `gorm:"not null"`           // Signed credit delta; negative for usage.
	BalanceAfter int64           `gorm:"not null"`           // Account balance after applying this entry.

	Description string         `gorm:"type:text"` // Free-text description.
	Metadata    datatypes.JSON `gorm:"type:json"` // Caller-supplied structured context.

	Reference string `gorm:"type:text;not null;uniqueIndex"` // Idempotency key; duplicate writes are rejected.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
