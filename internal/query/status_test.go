package query

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/Developersbbs/Embedd-Mailer/internal/model"
	"github.com/Developersbbs/Embedd-Mailer/internal/store"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", url.QueryEscape(t.Name()))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("gorm.Open(sqlite): %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("gdb.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := gdb.AutoMigrate(&model.User{}); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return gdb
}

func TestSystemStatus(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()

	got := systemStatus(ctx, db, true, true)
	if got.Status != SystemStatusMaintenance || !got.Initialized || got.Message != "maintenance" {
		t.Fatalf("maintenance: %+v", got)
	}

	got = systemStatus(ctx, nil, false, true)
	if got.Status != SystemStatusException || got.Initialized || got.Message != "database not configured" {
		t.Fatalf("no db: %+v", got)
	}

	got = systemStatus(ctx, db, false, false)
	if got.Status != SystemStatusException || got.AuthEnabled {
		t.Fatalf("no auth: %+v", got)
	}

	got = systemStatus(ctx, db, false, true)
	if got.Status != SystemStatusUninitialized || got.Initialized {
		t.Fatalf("empty db: %+v", got)
	}

	if _, err := store.CreateUser(ctx, db, "owner@example.com", "hash"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	got = systemStatus(ctx, db, false, true)
	if got.Status != SystemStatusRunning || !got.Initialized || !got.AuthEnabled {
		t.Fatalf("running: %+v", got)
	}
}
