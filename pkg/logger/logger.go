package logger

import (
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fatflowers/paygate/pkg/config"
)

func New(cfg *config.Config) (*zap.SugaredLogger, error) {
	zc := zap.NewProductionConfig()
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.TimeKey = "time"
	if cfg != nil && cfg.Log.Level != "" {
		lvl, err := zapcore.ParseLevel(cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	if cfg != nil && cfg.Env == config.EnvDev {
		zc.Development = true
	}
	l, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar().With("service", "paygate"), nil
}

var Module = fx.Options(
	fx.Provide(New),
)
