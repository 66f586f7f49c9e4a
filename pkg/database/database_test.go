package database

import (
	"path/filepath"
	"testing"

	"gorm.io/gorm/logger"
)

func TestNewSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")
	db, err := New(&Config{Driver: "sqlite", FilePath: path, LogLevel: "silent", MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer Close(db)

	var one int
	if err := db.Raw("SELECT 1").Scan(&one).Error; err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if one != 1 {
		t.Errorf("SELECT 1 = %d", one)
	}
}

func TestNewUnsupportedDriver(t *testing.T) {
	if _, err := New(&Config{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestGormLogLevel(t *testing.T) {
	if gormLogLevel("silent") != logger.Silent {
		t.Error("silent not mapped")
	}
	if gormLogLevel("INFO") != logger.Info {
		t.Error("info not mapped")
	}
	if gormLogLevel("") != logger.Warn {
		t.Error("default should be warn")
	}
}
