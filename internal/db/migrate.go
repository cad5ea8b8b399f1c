package db

import (
	"fmt"
	"time"

	"github.com/brandforge/creditd/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.Admin{},
		&models.CreditAccount{},
		&models.CreditTransaction{},
		&models.UsageLog{},
		&models.PricingTier{},
		&models.CreditPackage{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if errSeed := ensureDefaultPricingTiers(conn); errSeed != nil {
		return errSeed
	}
	if errSeed := ensureDefaultCreditPackages(conn); errSeed != nil {
		return errSeed
	}

	// ddl defines an index or DDL statement to apply.
	type ddl struct {
		name string // Human-readable name for error reporting.
		sql  string // SQL to execute.
	}
	ddls := []ddl{
		{
			name: "idx_credit_transactions_user_id_created_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_credit_transactions_user_id_created_at
				ON credit_transactions (user_id, created_at DESC)
			`,
		},
		{
			name: "idx_credit_transactions_user_id_type",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_credit_transactions_user_id_type
				ON credit_transactions (user_id, type)
			`,
		},
		{
			name: "idx_usage_logs_user_id_created_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_usage_logs_user_id_created_at
				ON usage_logs (user_id, created_at DESC)
			`,
		},
		{
			name: "idx_usage_logs_user_id_provider_operation",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_usage_logs_user_id_provider_operation
				ON usage_logs (user_id, provider, operation)
			`,
		},
		{
			name: "idx_pricing_tiers_active",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_pricing_tiers_active
				ON pricing_tiers (provider, operation)
				WHERE is_active = true
			`,
		},
		{
			name: "idx_credit_packages_enabled_sort_order",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_credit_packages_enabled_sort_order
				ON credit_packages (is_enabled, sort_order ASC, created_at DESC)
			`,
		},
	}
	for _, item := range ddls {
		if errDDL := conn.Exec(item.sql).Error; errDDL != nil {
			return fmt.Errorf("db: create index %s: %w", item.name, errDDL)
		}
	}

	return nil
}

// ensureDefaultPricingTiers seeds the pricing table on first boot.
func ensureDefaultPricingTiers(conn *gorm.DB) error {
	var count int64
	if errCount := conn.Model(&models.PricingTier{}).Count(&count).Error; errCount != nil {
		return fmt.Errorf("db: check pricing tiers: %w", errCount)
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	tiers := []models.PricingTier{
		{Provider: "openai", Operation: "image-gen", CreditsPerUnit: 10, UnitName: "image", IsActive: true, CreatedAt: now, UpdatedAt: now},
		{Provider: "openai", Operation: "image-edit", CreditsPerUnit: 8, UnitName: "image", IsActive: true, CreatedAt: now, UpdatedAt: now},
		{Provider: "gemini", Operation: "image-gen", CreditsPerUnit: 8, UnitName: "image", IsActive: true, CreatedAt: now, UpdatedAt: now},
		{Provider: "gemini", Operation: "video-gen", CreditsPerUnit: 50, UnitName: "second", IsActive: true, CreatedAt: now, UpdatedAt: now},
	}
	if errCreate := conn.Create(&tiers).Error; errCreate != nil {
		return fmt.Errorf("db: seed pricing tiers: %w", errCreate)
	}
	return nil
}

// ensureDefaultCreditPackages seeds the storefront packages on first boot.
func ensureDefaultCreditPackages(conn *gorm.DB) error {
	var count int64
	if errCount := conn.Model(&models.CreditPackage{}).Count(&count).Error; errCount != nil {
		return fmt.Errorf("db: check credit packages: %w", errCount)
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	packages := []models.CreditPackage{
		{Name: "Starter", CreditsAmount: 100, PriceCents: 999, Currency: "USD", SortOrder: 1, IsEnabled: true, CreatedAt: now, UpdatedAt: now},
		{Name: "Creator", CreditsAmount: 500, PriceCents: 3999, Currency: "USD", SortOrder: 2, IsPopular: true, IsEnabled: true, CreatedAt: now, UpdatedAt: now},
		{Name: "Studio", CreditsAmount: 2000, PriceCents: 12999, Currency: "USD", SortOrder: 3, IsEnabled: true, CreatedAt: now, UpdatedAt: now},
	}
	if errCreate := conn.Create(&packages).Error; errCreate != nil {
		return fmt.Errorf("db: seed credit packages: %w", errCreate)
	}
	return nil
}
