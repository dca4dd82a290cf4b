// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fatflowers/paygate/internal/platform/db"
)

var seq atomic.Int64

// New returns a fresh database per call. A single connection serializes
// concurrent callers the way row locks do on postgres.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:paygate_%d?mode=memory&cache=shared&_busy_timeout=5000", seq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, gdb.AutoMigrate(db.Models()...))
	return gdb
}
