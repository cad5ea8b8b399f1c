package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/brandforge/creditd/internal/db"
	"github.com/brandforge/creditd/internal/models"

	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "creditd-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func TestGetBalance_NewUserIsZero(t *testing.T) {
	m := NewManager(openTestDB(t))
	ctx := context.Background()

	balance, err := m.GetBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.Balance != 0 || balance.TotalPurchased != 0 || balance.TotalUsed != 0 {
		t.Fatalf("expected zero triple, got %+v", balance)
	}
}

func TestGetBalance_ConcurrentFirstReadsCreateOneRow(t *testing.T) {
	conn := openTestDB(t)
	m := NewManager(conn)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.GetBalance(ctx, "fresh-user"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("GetBalance: %v", err)
	}

	var count int64
	if errCount := conn.Model(&models.CreditAccount{}).Where("user_id = ?", "fresh-user").Count(&count).Error; errCount != nil {
		t.Fatalf("count accounts: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected 1 account row, got %d", count)
	}
}

func TestAddCredits_RoundTrip(t *testing.T) {
	conn := openTestDB(t)
	m := NewManager(conn)
	ctx := context.Background()

	if err := m.AddCredits(ctx, "u1", 100, "test", nil); err != nil {
		t.Fatalf("AddCredits: %v", err)
	}

	balance, err := m.GetBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.Balance != 100 {
		t.Fatalf("expected balance=100, got %d", balance.Balance)
	}
	if balance.TotalPurchased != 100 {
		t.Fatalf("expected total_purchased=100, got %d", balance.TotalPurchased)
	}

	var rows []models.CreditTransaction
	if errFind := conn.Where("user_id = ?", "u1").Find(&rows).Error; errFind != nil {
		t.Fatalf("load transactions: %v", errFind)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(rows))
	}
	if rows[0].Type != models.TransactionTypePurchase {
		t.Fatalf("expected purchase transaction, got %s", rows[0].Type)
	}
	if rows[0].Amount != 100 || rows[0].BalanceAfter != 100 {
		t.Fatalf("expected amount=100 balance_after=100, got %d/%d", rows[0].Amount, rows[0].BalanceAfter)
	}
}

func TestAddCredits_RejectsNonPositiveAmounts(t *testing.T) {
	m := NewManager(openTestDB(t))
	ctx := context.Background()

	if err := m.AddCredits(ctx, "u1", 0, "zero", nil); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if err := m.AddCredits(ctx, "u1", -50, "negative", nil); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}
}

func TestGiveBonusCredits_TypedBonus(t *testing.T) {
	conn := openTestDB(t)
	m := NewManager(conn)
	ctx := context.Background()

	if err := m.GiveBonusCredits(ctx, "u1", 25, "welcome"); err != nil {
		t.Fatalf("GiveBonusCredits: %v", err)
	}

	balance, err := m.GetBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.Balance != 25 {
		t.Fatalf("expected balance=25, got %d", balance.Balance)
	}
	if balance.TotalPurchased != 0 {
		t.Fatalf("bonus must not count as purchased, got total_purchased=%d", balance.TotalPurchased)
	}

	var row models.CreditTransaction
	if errFind := conn.Where("user_id = ?", "u1").Take(&row).Error; errFind != nil {
		t.Fatalf("load transaction: %v", errFind)
	}
	if row.Type != models.TransactionTypeBonus {
		t.Fatalf("expected bonus transaction, got %s", row.Type)
	}
	if row.Description != "Bonus: welcome" {
		t.Fatalf("unexpected description %q", row.Description)
	}
}

func TestConsumeCredits_PurchaseThenUse(t *testing.T) {
	conn := openTestDB(t)
	m := NewManager(conn)
	ctx := context.Background()

	if err := m.AddCredits(ctx, "u1", 50, "pack", nil); err != nil {
		t.Fatalf("AddCredits: %v", err)
	}

	consumed, err := m.ConsumeCredits(ctx, ConsumeParams{
		UserID:    "u1",
		Amount:    20,
		Provider:  "openai",
		Operation: "image-gen",
	})
	if err != nil {
		t.Fatalf("ConsumeCredits: %v", err)
	}
	if !consumed {
		t.Fatalf("expected consume to succeed")
	}

	balance, err := m.GetBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.Balance != 30 {
		t.Fatalf("expected balance=30, got %d", balance.Balance)
	}
	if balance.TotalUsed != 20 {
		t.Fatalf("expected total_used=20, got %d", balance.TotalUsed)
	}

	var usage models.UsageLog
	if errFind := conn.Where("user_id = ?", "u1").Take(&usage).Error; errFind != nil {
		t.Fatalf("load usage log: %v", errFind)
	}
	if usage.CreditsUsed != 20 {
		t.Fatalf("expected credits_used=20, got %d", usage.CreditsUsed)
	}
	if usage.Provider != "openai" || usage.Operation != "image-gen" {
		t.Fatalf("unexpected usage log %s/%s", usage.Provider, usage.Operation)
	}
	if usage.TransactionID == 0 {
		t.Fatalf("usage log must reference its transaction")
	}

	var txRow models.CreditTransaction
	if errFind := conn.First(&txRow, usage.TransactionID).Error; errFind != nil {
		t.Fatalf("load paired transaction: %v", errFind)
	}
	if txRow.Type != models.TransactionTypeUsage || txRow.Amount != -20 {
		t.Fatalf("expected usage transaction amount=-20, got %s/%d", txRow.Type, txRow.Amount)
	}
}

func TestConsumeCredits_InsufficientLeavesStateUntouched(t *testing.T) {
	conn := openTestDB(t)
	m := NewManager(conn)
	ctx := context.Background()

	if err := m.AddCredits(ctx, "u1", 10, "small pack", nil); err != nil {
		t.Fatalf("AddCredits: %v", err)
	}

	consumed, err := m.ConsumeCredits(ctx, ConsumeParams{
		UserID:    "u1",
		Amount:    20,
		Provider:  "openai",
		Operation: "image-gen",
	})
	if err != nil {
		t.Fatalf("ConsumeCredits: %v", err)
	}
	if consumed {
		t.Fatalf("expected consume to fail on insufficient balance")
	}

	balance, err := m.GetBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.Balance != 10 || balance.TotalUsed != 0 {
		t.Fatalf("expected untouched state, got %+v", balance)
	}

	var txCount, usageCount int64
	if errCount := conn.Model(&models.CreditTransaction{}).Where("user_id = ? AND type = ?", "u1", models.TransactionTypeUsage).Count(&txCount).Error; errCount != nil {
		t.Fatalf("count transactions: %v", errCount)
	}
	if errCount := conn.Model(&models.UsageLog{}).Where("user_id = ?", "u1").Count(&usageCount).Error; errCount != nil {
		t.Fatalf("count usage logs: %v", errCount)
	}
	if txCount != 0 || usageCount != 0 {
		t.Fatalf("expected no usage records, got tx=%d usage=%d", txCount, usageCount)
	}
}

func TestConsumeCredits_NoDoubleSpend(t *testing.T) {
	conn := openTestDB(t)
	m := NewManager(conn)
	ctx := context.Background()

	if err := m.AddCredits(ctx, "u1", 20, "exact pack", nil); err != nil {
		t.Fatalf("AddCredits: %v", err)
	}

	const racers = 2
	results := make(chan bool, racers)
	errs := make(chan error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumed, err := m.ConsumeCredits(ctx, ConsumeParams{
				UserID:    "u1",
				Amount:    20,
				Provider:  "openai",
				Operation: "image-gen",
			})
			if err != nil {
				errs <- err
				return
			}
			results <- consumed
		}()
	}
	wg.Wait()
	close(results)
	close(errs)
	for err := range errs {
		t.Fatalf("ConsumeCredits: %v", err)
	}

	successes := 0
	for consumed := range results {
		if consumed {
			successes++
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one successful consume, got %d", successes)
	}

	balance, err := m.GetBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.Balance != 0 {
		t.Fatalf("expected balance=0 after single spend, got %d", balance.Balance)
	}
}

func TestConsumeCredits_DuplicateReferenceNotReapplied(t *testing.T) {
	m := NewManager(openTestDB(t))
	ctx := context.Background()

	if err := m.AddCredits(ctx, "u1", 100, "pack", nil); err != nil {
		t.Fatalf("AddCredits: %v", err)
	}

	params := ConsumeParams{
		UserID:    "u1",
		Amount:    40,
		Provider:  "gemini",
		Operation: "video-gen",
		Reference: "req-123",
	}
	for i := 0; i < 2; i++ {
		consumed, err := m.ConsumeCredits(ctx, params)
		if err != nil {
			t.Fatalf("ConsumeCredits attempt %d: %v", i+1, err)
		}
		if !consumed {
			t.Fatalf("attempt %d: expected consumed=true", i+1)
		}
	}

	balance, err := m.GetBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.Balance != 60 {
		t.Fatalf("retried consume must charge once, got balance=%d", balance.Balance)
	}
}

func TestConsumeCredits_ConcurrentSameReferenceChargesOnce(t *testing.T) {
	conn := openTestDB(t)
	m := NewManager(conn)
	ctx := context.Background()

	if err := m.AddCredits(ctx, "u1", 100, "pack", nil); err != nil {
		t.Fatalf("AddCredits: %v", err)
	}

	params := ConsumeParams{
		UserID:    "u1",
		Amount:    10,
		Provider:  "openai",
		Operation: "image-gen",
		Reference: "job-42",
	}
	const racers = 2
	errs := make(chan error, racers)
	results := make(chan bool, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumed, err := m.ConsumeCredits(ctx, params)
			if err != nil {
				errs <- err
				return
			}
			results <- consumed
		}()
	}
	wg.Wait()
	close(errs)
	close(results)
	for err := range errs {
		t.Fatalf("ConsumeCredits: %v", err)
	}
	for consumed := range results {
		if !consumed {
			t.Fatal("both callers must observe the charge as applied")
		}
	}

	balance, err := m.GetBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.Balance != 90 {
		t.Fatalf("same reference must charge once, got balance=%d", balance.Balance)
	}

	var count int64
	if errCount := conn.Model(&models.CreditTransaction{}).
		Where("reference = ?", "job-42").
		Count(&count).Error; errCount != nil {
		t.Fatalf("count transactions: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected one usage transaction for the reference, got %d", count)
	}
}

func TestRefundCredits_TypedRefund(t *testing.T) {
	conn := openTestDB(t)
	m := NewManager(conn)
	ctx := context.Background()

	if err := m.AddCredits(ctx, "u1", 50, "pack", nil); err != nil {
		t.Fatalf("AddCredits: %v", err)
	}
	if _, err := m.ConsumeCredits(ctx, ConsumeParams{UserID: "u1", Amount: 30, Provider: "openai", Operation: "image-gen"}); err != nil {
		t.Fatalf("ConsumeCredits: %v", err)
	}
	if err := m.RefundCredits(ctx, "u1", 30, "failed generation", nil); err != nil {
		t.Fatalf("RefundCredits: %v", err)
	}

	balance, err := m.GetBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.Balance != 50 {
		t.Fatalf("expected balance=50 after refund, got %d", balance.Balance)
	}

	var row models.CreditTransaction
	if errFind := conn.Where("user_id = ? AND type = ?", "u1", models.TransactionTypeRefund).Take(&row).Error; errFind != nil {
		t.Fatalf("load refund transaction: %v", errFind)
	}
	if row.Amount != 30 || row.BalanceAfter != 50 {
		t.Fatalf("expected refund amount=30 balance_after=50, got %d/%d", row.Amount, row.BalanceAfter)
	}
}

func TestTransactionReplay_ReconstructsBalance(t *testing.T) {
	conn := openTestDB(t)
	m := NewManager(conn)
	ctx := context.Background()

	if err := m.AddCredits(ctx, "u1", 100, "pack", nil); err != nil {
		t.Fatalf("AddCredits: %v", err)
	}
	if err := m.GiveBonusCredits(ctx, "u1", 10, "promo"); err != nil {
		t.Fatalf("GiveBonusCredits: %v", err)
	}
	for _, amount := range []int64{15, 25, 5} {
		if _, err := m.ConsumeCredits(ctx, ConsumeParams{UserID: "u1", Amount: amount, Provider: "openai", Operation: "image-gen"}); err != nil {
			t.Fatalf("ConsumeCredits(%d): %v", amount, err)
		}
	}
	if err := m.RefundCredits(ctx, "u1", 5, "retry refund", nil); err != nil {
		t.Fatalf("RefundCredits: %v", err)
	}

	var rows []models.CreditTransaction
	if errFind := conn.Where("user_id = ?", "u1").Order("created_at ASC, id ASC").Find(&rows).Error; errFind != nil {
		t.Fatalf("load transactions: %v", errFind)
	}

	var replayed int64
	for _, row := range rows {
		replayed += row.Amount
		if replayed != row.BalanceAfter {
			t.Fatalf("transaction %d: replayed=%d disagrees with balance_after=%d", row.ID, replayed, row.BalanceAfter)
		}
	}

	balance, err := m.GetBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if replayed != balance.Balance {
		t.Fatalf("replayed balance %d != stored balance %d", replayed, balance.Balance)
	}
}

func TestGetTransactionHistory_NewestFirstWithLimit(t *testing.T) {
	m := NewManager(openTestDB(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := m.AddCredits(ctx, "u1", 10, "pack", nil); err != nil {
			t.Fatalf("AddCredits: %v", err)
		}
	}

	rows, err := m.GetTransactionHistory(ctx, "u1", 3)
	if err != nil {
		t.Fatalf("GetTransactionHistory: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i-1].ID < rows[i].ID {
			t.Fatalf("expected newest-first ordering, got ids %d before %d", rows[i-1].ID, rows[i].ID)
		}
	}
}

func TestGetUsageStats_GroupsByProviderAndOperation(t *testing.T) {
	m := NewManager(openTestDB(t))
	ctx := context.Background()

	if err := m.AddCredits(ctx, "u1", 1000, "pack", nil); err != nil {
		t.Fatalf("AddCredits: %v", err)
	}
	consumes := []ConsumeParams{
		{UserID: "u1", Amount: 10, Provider: "openai", Operation: "image-gen"},
		{UserID: "u1", Amount: 20, Provider: "openai", Operation: "image-edit"},
		{UserID: "u1", Amount: 50, Provider: "gemini", Operation: "video-gen"},
		{UserID: "u1", Amount: 30, Provider: "openai", Operation: "image-gen"},
	}
	for _, p := range consumes {
		if _, err := m.ConsumeCredits(ctx, p); err != nil {
			t.Fatalf("ConsumeCredits: %v", err)
		}
	}

	stats, err := m.GetUsageStats(ctx, "u1", 7)
	if err != nil {
		t.Fatalf("GetUsageStats: %v", err)
	}
	if stats.TotalCreditsUsed != 110 {
		t.Fatalf("expected total=110, got %d", stats.TotalCreditsUsed)
	}
	if stats.ByProvider["openai"] != 60 || stats.ByProvider["gemini"] != 50 {
		t.Fatalf("unexpected provider grouping %+v", stats.ByProvider)
	}
	if stats.ByOperation["image-gen"] != 40 || stats.ByOperation["image-edit"] != 20 || stats.ByOperation["video-gen"] != 50 {
		t.Fatalf("unexpected operation grouping %+v", stats.ByOperation)
	}
}

func TestGetUsageStats_EmptyWindow(t *testing.T) {
	m := NewManager(openTestDB(t))
	ctx := context.Background()

	stats, err := m.GetUsageStats(ctx, "quiet-user", 7)
	if err != nil {
		t.Fatalf("GetUsageStats: %v", err)
	}
	if stats.TotalCreditsUsed != 0 {
		t.Fatalf("expected zero total, got %d", stats.TotalCreditsUsed)
	}
	if len(stats.ByProvider) != 0 || len(stats.ByOperation) != 0 {
		t.Fatalf("expected empty groupings, got %+v / %+v", stats.ByProvider, stats.ByOperation)
	}
}
