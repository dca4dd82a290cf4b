package db

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/fatflowers/paygate/internal/models"
	cfgpkg "github.com/fatflowers/paygate/pkg/config"
	gormzap "github.com/fatflowers/paygate/pkg/gormlog"
)

func NewDB(l *zap.SugaredLogger, cfg *cfgpkg.Config) (*gorm.DB, error) {
	if cfg.Database.DSN == "" {
		l.Error("database DSN is empty")
		return nil, gorm.ErrInvalidDB
	}
	gl := gormzap.New(l, gormzap.WithSlowThreshold(cfg.Database.SlowThreshold))
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{Logger: gl, NowFunc: func() time.Time { return time.Now().UTC() }})
	if err != nil {
		l.Errorf("failed to connect database: %v", err)
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if n := cfg.Database.MaxOpenConns; n > 0 {
		sqlDB.SetMaxOpenConns(n)
	}
	if n := cfg.Database.MaxIdleConns; n > 0 {
		sqlDB.SetMaxIdleConns(n)
	}
	if d := cfg.Database.ConnMaxLifetime; d > 0 {
		sqlDB.SetConnMaxLifetime(d)
	}
	l.Infow("connected to postgres", "max_open_conns", cfg.Database.MaxOpenConns)
	return db, nil
}

var Module = fx.Options(
	fx.Provide(NewDB),
	fx.Invoke(AutoMigrate),
	fx.Invoke(registerDBClose),
)

// Models lists every table owned by the service.
func Models() []any {
	return []any{
		&models.PaymentToken{},
		&models.Transaction{},
		&models.TransactionLog{},
		&models.PaymentNotificationLog{},
	}
}

// AutoMigrate runs GORM migrations on startup
func AutoMigrate(l *zap.SugaredLogger, db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		l.Errorf("automigrate failed: %v", err)
		return err
	}
	l.Infow("automigrate completed")
	return nil
}

// registerDBClose ensures the underlying *sql.DB is closed on shutdown
func registerDBClose(lc fx.Lifecycle, l *zap.SugaredLogger, gdb *gorm.DB) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				l.Warnw("gorm: get sql.DB failed", "err", err)
				return nil
			}
			l.Infow("closing postgres connection pool")
			return sqlDB.Close()
		},
	})
}
