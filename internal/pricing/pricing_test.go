package pricing

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/brandforge/creditd/internal/db"
	"github.com/brandforge/creditd/internal/models"

	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "pricing-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	// Start from a clean table so lookups exercise only test fixtures.
	if errClear := conn.Where("1 = 1").Delete(&models.PricingTier{}).Error; errClear != nil {
		t.Fatalf("clear pricing tiers: %v", errClear)
	}
	return conn
}

func TestGetCost_ActiveTier(t *testing.T) {
	conn := openTestDB(t)
	now := time.Now().UTC()
	tier := models.PricingTier{
		Provider:       "openai",
		Operation:      "dalle3",
		CreditsPerUnit: 10,
		UnitName:       "image",
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if errCreate := conn.Create(&tier).Error; errCreate != nil {
		t.Fatalf("create tier: %v", errCreate)
	}

	svc := NewService(conn)
	cost, err := svc.GetCost(context.Background(), "openai", "dalle3")
	if err != nil {
		t.Fatalf("GetCost: %v", err)
	}
	if cost != 10 {
		t.Fatalf("expected cost=10, got %d", cost)
	}
}

func TestGetCost_UnknownOperation(t *testing.T) {
	svc := NewService(openTestDB(t))
	_, err := svc.GetCost(context.Background(), "openai", "unknown")
	if !errors.Is(err, ErrPricingNotFound) {
		t.Fatalf("expected ErrPricingNotFound, got %v", err)
	}
}

func TestGetCost_InactiveTierIsIgnored(t *testing.T) {
	conn := openTestDB(t)
	now := time.Now().UTC()
	tier := models.PricingTier{
		Provider:       "openai",
		Operation:      "dalle3",
		CreditsPerUnit: 10,
		IsActive:       false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if errCreate := conn.Create(&tier).Error; errCreate != nil {
		t.Fatalf("create tier: %v", errCreate)
	}

	svc := NewService(conn)
	_, err := svc.GetCost(context.Background(), "openai", "dalle3")
	if !errors.Is(err, ErrPricingNotFound) {
		t.Fatalf("expected ErrPricingNotFound for inactive tier, got %v", err)
	}
}

func TestListPackages_EnabledOnly(t *testing.T) {
	conn := openTestDB(t)
	now := time.Now().UTC()
	disabled := models.CreditPackage{Name: "Legacy", CreditsAmount: 10, PriceCents: 100, Currency: "USD", IsEnabled: false, CreatedAt: now, UpdatedAt: now}
	if errCreate := conn.Create(&disabled).Error; errCreate != nil {
		t.Fatalf("create package: %v", errCreate)
	}

	svc := NewService(conn)
	rows, err := svc.ListPackages(context.Background(), true)
	if err != nil {
		t.Fatalf("ListPackages: %v", err)
	}
	for _, row := range rows {
		if !row.IsEnabled {
			t.Fatalf("disabled package %q leaked into enabled listing", row.Name)
		}
	}
}
