package gormlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestShortCaller(t *testing.T) {
	require.Equal(t, "internal/platform/db/postgres.go:38", shortCaller("/Users/alex/repo/internal/platform/db/postgres.go:38"))
	require.Equal(t, "pkg/x/y.go:12", shortCaller(`C:\repo\project\pkg\x\y.go:12`))
	require.Equal(t, "a/b/c.go:1", shortCaller("/opt/a/b/c.go:1"))
	require.Equal(t, "", shortCaller(""))
}

func TestTrace_Levels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := New(zap.New(core).Sugar(), WithSlowThreshold(10*time.Millisecond))
	fc := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(context.Background(), time.Now(), fc, nil)
	require.Equal(t, 0, logs.Len())

	l.Trace(context.Background(), time.Now(), fc, gorm.ErrRecordNotFound)
	require.Equal(t, 0, logs.Len())

	l.Trace(context.Background(), time.Now(), fc, errors.New("boom"))
	require.Equal(t, 1, logs.FilterMessage("gorm_trace").Len())

	l.Trace(context.Background(), time.Now().Add(-time.Second), fc, nil)
	require.Equal(t, 1, logs.FilterMessage("gorm_slow").Len())

	l.LogMode(gormlogger.Info).Trace(context.Background(), time.Now(), fc, nil)
	require.Equal(t, 1, logs.FilterMessage("gorm").Len())
}
