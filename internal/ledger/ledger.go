package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brandforge/creditd/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Manager orchestrates all credit accounting against the ledger store.
// Every balance mutation and its audit records are written in a single
// database transaction, so a crash can never leave the balance and the
// transaction log disagreeing.
type Manager struct {
	db *gorm.DB
}

// NewManager constructs a Manager on an injected database handle.
func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// Balance is the account triple returned to callers.
type Balance struct {
	Balance        int64 `json:"balance"`         // Current spendable credits.
	TotalPurchased int64 `json:"total_purchased"` // Lifetime purchased credits.
	TotalUsed      int64 `json:"total_used"`      // Lifetime consumed credits.
}

// ConsumeParams describes one metered consumption request.
type ConsumeParams struct {
	UserID    string         // Account to charge.
	Amount    int64          // Credits to deduct, must be positive.
	Provider  string         // AI provider being metered.
	Operation string         // Operation being metered.
	Metadata  map[string]any // Optional request context stored on the usage log.
	Reference string         // Optional idempotency key; generated when empty.
}

// UsageStats aggregates consumption over a trailing window.
type UsageStats struct {
	TotalCreditsUsed int64            `json:"total_credits_used"` // Sum of all credits in the window.
	ByProvider       map[string]int64 `json:"by_provider"`        // Credits grouped by provider.
	ByOperation      map[string]int64 `json:"by_operation"`       // Credits grouped by operation.
}

// GetBalance returns the account triple, creating a zero-balance account on
// first read. Creation is guarded by the unique user_id index, so concurrent
// first reads never produce two rows.
func (m *Manager) GetBalance(ctx context.Context, userID string) (Balance, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Balance{}, ErrMissingUserID
	}
	if errEnsure := m.ensureAccount(ctx, m.db, userID); errEnsure != nil {
		return Balance{}, errEnsure
	}

	var account models.CreditAccount
	if errFind := m.db.WithContext(ctx).Where("user_id = ?", userID).Take(&account).Error; errFind != nil {
		return Balance{}, fmt.Errorf("ledger: load account: %w", errFind)
	}
	return Balance{
		Balance:        account.Balance,
		TotalPurchased: account.TotalPurchased,
		TotalUsed:      account.TotalUsed,
	}, nil
}

// AddCredits grants purchased credits. The amount must be positive; all
// consumption goes exclusively through ConsumeCredits.
func (m *Manager) AddCredits(ctx context.Context, userID string, amount int64, description string, metadata map[string]any) error {
	return m.credit(ctx, userID, amount, models.TransactionTypePurchase, description, metadata, true)
}

// GiveBonusCredits grants promotional credits with an explicit bonus type.
// Bonus credits do not count toward the purchased total.
func (m *Manager) GiveBonusCredits(ctx context.Context, userID string, amount int64, reason string) error {
	return m.credit(ctx, userID, amount, models.TransactionTypeBonus, "Bonus: "+reason, nil, false)
}

// RefundCredits returns previously consumed credits to the account.
func (m *Manager) RefundCredits(ctx context.Context, userID string, amount int64, description string, metadata map[string]any) error {
	return m.credit(ctx, userID, amount, models.TransactionTypeRefund, description, metadata, false)
}

// credit applies a balance-increasing operation and appends its transaction.
func (m *Manager) credit(ctx context.Context, userID string, amount int64, txType models.TransactionType, description string, metadata map[string]any, countPurchased bool) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrMissingUserID
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}

	meta, errMeta := marshalMetadata(metadata)
	if errMeta != nil {
		return errMeta
	}

	if errTx := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errEnsure := m.ensureAccount(ctx, tx, userID); errEnsure != nil {
			return errEnsure
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"balance":    gorm.Expr("balance + ?", amount),
			"updated_at": now,
		}
		if countPurchased {
			updates["total_purchased"] = gorm.Expr("total_purchased + ?", amount)
		}
		if errUpdate := tx.Model(&models.CreditAccount{}).
			Where("user_id = ?", userID).
			Updates(updates).Error; errUpdate != nil {
			return fmt.Errorf("ledger: apply credit: %w", errUpdate)
		}

		balanceAfter, errBalance := loadBalanceInTx(tx, userID)
		if errBalance != nil {
			return errBalance
		}

		record := models.CreditTransaction{
			UserID:       userID,
			Type:         txType,
			Amount:       amount,
			BalanceAfter: balanceAfter,
			Description:  description,
			Metadata:     meta,
			Reference:    uuid.NewString(),
			CreatedAt:    now,
		}
		if errCreate := tx.Create(&record).Error; errCreate != nil {
			return fmt.Errorf("ledger: record transaction: %w", errCreate)
		}
		return nil
	}); errTx != nil {
		return errTx
	}
	return nil
}

// ConsumeCredits deducts credits for a metered operation. It returns false
// without mutating state when the balance cannot cover the amount; that is an
// expected business outcome, not an error.
//
// The precondition check and decrement are one conditional UPDATE, so two
// concurrent consumes that only one balance can cover yield exactly one
// success. The decrement, usage transaction, and usage log are committed
// atomically.
func (m *Manager) ConsumeCredits(ctx context.Context, p ConsumeParams) (bool, error) {
	p.UserID = strings.TrimSpace(p.UserID)
	if p.UserID == "" {
		return false, ErrMissingUserID
	}
	if p.Amount <= 0 {
		return false, ErrInvalidAmount
	}

	reference := strings.TrimSpace(p.Reference)
	if reference == "" {
		reference = uuid.NewString()
	}

	meta, errMeta := marshalMetadata(p.Metadata)
	if errMeta != nil {
		return false, errMeta
	}

	consumed := false
	if errTx := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// A retried request after an ambiguous failure must not double-charge:
		// the reference column is unique, so a consume that already committed
		// is reported as consumed without touching the balance again.
		if strings.TrimSpace(p.Reference) != "" {
			var count int64
			if errCount := tx.Model(&models.CreditTransaction{}).
				Where("reference = ?", reference).
				Count(&count).Error; errCount != nil {
				return fmt.Errorf("ledger: check reference: %w", errCount)
			}
			if count > 0 {
				consumed = true
				return nil
			}
		}

		if errEnsure := m.ensureAccount(ctx, tx, p.UserID); errEnsure != nil {
			return errEnsure
		}

		now := time.Now().UTC()
		res := tx.Model(&models.CreditAccount{}).
			Where("user_id = ? AND balance >= ?", p.UserID, p.Amount).
			Updates(map[string]any{
				"balance":    gorm.Expr("balance - ?", p.Amount),
				"total_used": gorm.Expr("total_used + ?", p.Amount),
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("ledger: deduct balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		balanceAfter, errBalance := loadBalanceInTx(tx, p.UserID)
		if errBalance != nil {
			return errBalance
		}

		record := models.CreditTransaction{
			UserID:       p.UserID,
			Type:         models.TransactionTypeUsage,
			Amount:       -p.Amount,
			BalanceAfter: balanceAfter,
			Description:  fmt.Sprintf("%s %s", p.Provider, p.Operation),
			Metadata:     meta,
			Reference:    reference,
			CreatedAt:    now,
		}
		if errCreate := tx.Create(&record).Error; errCreate != nil {
			return fmt.Errorf("ledger: record transaction: %w", errCreate)
		}

		usage := models.UsageLog{
			UserID:          p.UserID,
			Provider:        p.Provider,
			Operation:       p.Operation,
			CreditsUsed:     p.Amount,
			TransactionID:   record.ID,
			RequestMetadata: meta,
			CreatedAt:       now,
		}
		if errCreate := tx.Create(&usage).Error; errCreate != nil {
			return fmt.Errorf("ledger: record usage log: %w", errCreate)
		}

		consumed = true
		return nil
	}); errTx != nil {
		// Two in-flight consumes can carry the same reference and both pass
		// the pre-check before either commits. The loser's transaction insert
		// hits the unique reference index and rolls back its deduction; the
		// charge it asked for was committed by the winner.
		if strings.TrimSpace(p.Reference) != "" && errors.Is(errTx, gorm.ErrDuplicatedKey) {
			return true, nil
		}
		return false, errTx
	}
	return consumed, nil
}

// defaultHistoryLimit bounds transaction history reads when unspecified.
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// GetTransactionHistory returns the most recent transactions, newest first.
func (m *Manager) GetTransactionHistory(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var rows []models.CreditTransaction
	if errFind := m.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("ledger: load transactions: %w", errFind)
	}
	return rows, nil
}

// defaultStatsDays is the trailing window when the caller does not pick one.
const defaultStatsDays = 30

// GetUsageStats aggregates usage-log entries over the trailing window. An
// empty window yields zero totals and empty groupings.
func (m *Manager) GetUsageStats(ctx context.Context, userID string, days int) (UsageStats, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return UsageStats{}, ErrMissingUserID
	}
	if days <= 0 {
		days = defaultStatsDays
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	// bucket holds one grouped aggregation row.
	type bucket struct {
		Provider  string
		Operation string
		Credits   int64
	}
	var buckets []bucket
	if errScan := m.db.WithContext(ctx).
		Model(&models.UsageLog{}).
		Select("provider, operation, COALESCE(SUM(credits_used), 0) AS credits").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Group("provider, operation").
		Scan(&buckets).Error; errScan != nil {
		return UsageStats{}, fmt.Errorf("ledger: load usage stats: %w", errScan)
	}

	stats := UsageStats{
		ByProvider:  make(map[string]int64),
		ByOperation: make(map[string]int64),
	}
	for _, b := range buckets {
		stats.TotalCreditsUsed += b.Credits
		stats.ByProvider[b.Provider] += b.Credits
		stats.ByOperation[b.Operation] += b.Credits
	}
	return stats, nil
}

// ensureAccount creates the zero-balance account row when absent. The insert
// is ON CONFLICT DO NOTHING on the unique user_id index, making lazy creation
// idempotent under concurrency.
func (m *Manager) ensureAccount(ctx context.Context, tx *gorm.DB, userID string) error {
	now := time.Now().UTC()
	account := models.CreditAccount{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&account).Error; errCreate != nil {
		return fmt.Errorf("ledger: ensure account: %w", errCreate)
	}
	return nil
}

// loadBalanceInTx reads the post-update balance inside the transaction.
func loadBalanceInTx(tx *gorm.DB, userID string) (int64, error) {
	// row holds the balance lookup result.
	var row struct {
		Balance int64
	}
	if errFind := tx.Model(&models.CreditAccount{}).
		Select("balance").
		Where("user_id = ?", userID).
		Take(&row).Error; errFind != nil {
		return 0, fmt.Errorf("ledger: load balance: %w", errFind)
	}
	return row.Balance, nil
}

// marshalMetadata converts caller metadata into a JSON column value.
func marshalMetadata(metadata map[string]any) (datatypes.JSON, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	payload, errMarshal := json.Marshal(metadata)
	if errMarshal != nil {
		return nil, fmt.Errorf("ledger: marshal metadata: %w", errMarshal)
	}
	return datatypes.JSON(payload), nil
}
