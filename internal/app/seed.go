package app

import (
	"fmt"
	"time"

	"github.com/brandforge/creditd/internal/config"
	"github.com/brandforge/creditd/internal/models"
	"github.com/brandforge/creditd/internal/security"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// HasAdminInitialized reports whether the system has at least one admin account.
func HasAdminInitialized(conn *gorm.DB) (bool, error) {
	if conn == nil {
		return false, fmt.Errorf("nil db")
	}
	if !conn.Migrator().HasTable(&models.Admin{}) {
		return false, nil
	}
	var count int64
	if errCount := conn.Model(&models.Admin{}).Count(&count).Error; errCount != nil {
		return false, errCount
	}
	return count > 0, nil
}

// SeedAdminFromEnv creates the bootstrap admin from ADMIN_USERNAME and
// ADMIN_PASSWORD when no admin exists yet. An already-initialized system is
// never touched, so rotating the env vars does not rewrite credentials.
func SeedAdminFromEnv(conn *gorm.DB) error {
	initialized, errInit := HasAdminInitialized(conn)
	if errInit != nil {
		return errInit
	}
	if initialized {
		return nil
	}

	bootstrap, ok := config.LoadAdminBootstrap()
	if !ok {
		log.Warn("no admin account and no bootstrap credentials; admin API is unusable")
		return nil
	}

	hash, errHash := security.HashPassword(bootstrap.Password)
	if errHash != nil {
		return fmt.Errorf("hash bootstrap password: %w", errHash)
	}
	now := time.Now().UTC()
	admin := models.Admin{
		Username:  bootstrap.Username,
		Password:  hash,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := conn.Create(&admin).Error; errCreate != nil {
		return fmt.Errorf("seed admin: %w", errCreate)
	}
	log.WithField("username", bootstrap.Username).Info("seeded bootstrap admin")
	return nil
}
