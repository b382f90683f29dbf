package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/levelup/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Open(filepath.Join(t.TempDir(), "test.db"), logger.Silent)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func fixedClock(year int, month time.Month, day int) func() time.Time {
	return func() time.Time {
		return time.Date(year, month, day, 9, 30, 0, 0, time.UTC)
	}
}

func mustCreateUser(t *testing.T, gdb *gorm.DB, name string) *db.User {
	t.Helper()
	user, err := NewUserService(gdb).Create(name)
	if err != nil {
		t.Fatalf("Create user returned error: %v", err)
	}
	return user
}

func mustCreateTask(t *testing.T, gdb *gorm.DB, input TaskInput) *db.Task {
	t.Helper()
	task, err := NewTaskService(gdb).Create(input)
	if err != nil {
		t.Fatalf("Create task returned error: %v", err)
	}
	return task
}

func mustUpdateUser(t *testing.T, gdb *gorm.DB, id uint, fields map[string]any) {
	t.Helper()
	if err := gdb.Model(&db.User{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		t.Fatalf("failed to update user: %v", err)
	}
}

func dayPtr(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}
