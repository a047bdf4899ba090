package db

import (
	"fmt"
	"os"
	"path/filepath"

	"backtomatic/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Init(dbPath string) error {
	conn, err := Open(dbPath)
	if err != nil {
		return err
	}

	DB = conn
	return nil
}

func Open(dbPath string) (*gorm.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db dir: %w", err)
		}
	}

	conn, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := conn.AutoMigrate(&model.BackupRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return conn, nil
}
