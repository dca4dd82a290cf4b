package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/paygate/docs"
	"github.com/fatflowers/paygate/internal/app/api/handlers"
	mw "github.com/fatflowers/paygate/internal/app/api/middleware"
	"github.com/fatflowers/paygate/internal/app/service/billing"
	"github.com/fatflowers/paygate/internal/app/service/ledger"
	nh "github.com/fatflowers/paygate/internal/app/service/notification_handler"
	"github.com/fatflowers/paygate/internal/app/service/payment"
	"github.com/fatflowers/paygate/internal/app/service/statistics"
	"github.com/fatflowers/paygate/internal/app/service/token"
	cfgpkg "github.com/fatflowers/paygate/pkg/config"
	metrics "github.com/fatflowers/paygate/pkg/metrics"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

type routeParams struct {
	fx.In

	LC       fx.Lifecycle
	Engine   *gin.Engine
	Log      *zap.SugaredLogger
	Cfg      *cfgpkg.Config
	Payments *payment.Service
	Ledger   *ledger.Ledger
	Tokens   *token.Service
	Billing  *billing.Scheduler
	Webhooks *nh.NotificationHandler
	Stats    *statistics.Service
	DB       *gorm.DB
}

func registerRoutes(p routeParams) error {
	r, log, cfg := p.Engine, p.Log, p.Cfg

	if cfg.MetricsAddr != "" {
		prom := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return "unmatched"
			},
			Logger: log,
		})
		prom.SetListenAddress(cfg.MetricsAddr)
		prom.Use(r)
		p.LC.Append(fx.Hook{OnStop: prom.Shutdown})

		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}

	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	sqlDB, err := p.DB.DB()
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	handlers.RegisterHealthRoutes(pub, sqlDB)
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))

	// gateway callbacks authenticate by signature, not payer identity
	handlers.RegisterPaymentWebhookRoutes(apiV1.Group("/webhooks"), p.Webhooks, cfg, log)
	// admin sits behind the internal network boundary
	handlers.RegisterAdminRoutes(apiV1.Group("/admin"), p.Ledger, p.Stats, p.Billing, p.Tokens, log)

	payer := apiV1.Group("")
	payer.Use(mw.PayerIdentityMiddleware(log))
	handlers.RegisterPaymentRoutes(payer.Group("/payments"), p.Payments, p.Ledger, log)
	handlers.RegisterTokenRoutes(payer.Group("/tokens"), p.Tokens, log)
	handlers.RegisterSubscriptionRoutes(payer.Group("/subscriptions"), p.Billing, log)
	return nil
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
