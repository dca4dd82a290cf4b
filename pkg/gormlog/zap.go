package gormlog

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"

	"github.com/fatflowers/paygate/pkg/logctx"
)

// ZapLogger implements gorm.io/gorm/logger.Interface and enriches logs with
// trace_id and payer_id from context via logctx.FromCtx.
type ZapLogger struct {
	base   *zap.SugaredLogger
	config gormlogger.Config
}

type Option func(*gormlogger.Config)

func WithSlowThreshold(d time.Duration) Option {
	return func(c *gormlogger.Config) { c.SlowThreshold = d }
}

func WithLevel(level gormlogger.LogLevel) Option {
	return func(c *gormlogger.Config) { c.LogLevel = level }
}

func New(base *zap.SugaredLogger, opts ...Option) *ZapLogger {
	cfg := gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &ZapLogger{base: base, config: cfg}
}

func (z *ZapLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cfg := z.config
	cfg.LogLevel = level
	return &ZapLogger{base: z.base, config: cfg}
}

func (z *ZapLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if z.config.LogLevel >= gormlogger.Info {
		logctx.FromCtx(ctx, z.base).Infow(msg, "args", data)
	}
}

func (z *ZapLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if z.config.LogLevel >= gormlogger.Warn {
		logctx.FromCtx(ctx, z.base).Warnw(msg, "args", data)
	}
}

func (z *ZapLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if z.config.LogLevel >= gormlogger.Error {
		logctx.FromCtx(ctx, z.base).Errorw(msg, "args", data)
	}
}

func (z *ZapLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if z.config.LogLevel == gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	lg := logctx.FromCtx(ctx, z.base)
	fields := []interface{}{
		"rows", rows,
		"elapsed_ms", elapsed.Milliseconds(),
		"caller", shortCaller(utils.FileWithLineNum()),
	}
	switch {
	case err != nil && !(z.config.IgnoreRecordNotFoundError && errors.Is(err, gorm.ErrRecordNotFound)):
		lg.Errorw("gorm_trace", append(fields, "err", err, "sql", sql)...)
	case z.config.SlowThreshold > 0 && elapsed > z.config.SlowThreshold:
		lg.Warnw("gorm_slow", append(fields, "sql", sql)...)
	case z.config.LogLevel >= gormlogger.Info:
		lg.Infow("gorm", append(fields, "sql", sql)...)
	}
}

// shortCaller trims absolute build paths to the repo-relative part, e.g.
// /home/ci/paygate/internal/app/service/ledger/ledger.go:88 becomes
// internal/app/service/ledger/ledger.go:88.
func shortCaller(s string) string {
	if s == "" {
		return s
	}
	path, line := s, ""
	if idx := strings.LastIndex(s, ":"); idx >= 0 {
		path, line = s[:idx], s[idx:]
	}
	p := strings.ReplaceAll(path, `\`, "/")
	for _, marker := range []string{"/internal/", "/pkg/", "/cmd/"} {
		if i := strings.Index(p, marker); i >= 0 {
			return p[i+1:] + line
		}
	}
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	if n := len(parts); n > 3 {
		parts = parts[n-3:]
	}
	return strings.Join(parts, "/") + line
}
