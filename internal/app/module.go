package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/paygate/internal/app/api/server"
	"github.com/fatflowers/paygate/internal/app/service/billing"
	"github.com/fatflowers/paygate/internal/app/service/events"
	"github.com/fatflowers/paygate/internal/app/service/ledger"
	notificationhandler "github.com/fatflowers/paygate/internal/app/service/notification_handler"
	notificationlog "github.com/fatflowers/paygate/internal/app/service/notification_log"
	"github.com/fatflowers/paygate/internal/app/service/payment"
	"github.com/fatflowers/paygate/internal/app/service/statistics"
	"github.com/fatflowers/paygate/internal/app/service/token"
	"github.com/fatflowers/paygate/internal/platform/db"
	"github.com/fatflowers/paygate/internal/platform/gateway"
	"github.com/fatflowers/paygate/pkg/config"
	"github.com/fatflowers/paygate/pkg/logger"
	"github.com/fatflowers/paygate/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

// CoreModule is everything except the HTTP server; the billing CLI runs on
// it.
var CoreModule = fx.Options(
	logger.Module,
	config.Module,
	metrics.Module,
	db.Module,
	gateway.Module,
	events.Module,
	ledger.Module,
	token.Module,
	payment.Module,
	notificationlog.Module,
	notificationhandler.Module,
	billing.Module,
	statistics.Module,
)

var Module = fx.Options(
	CoreModule,
	server.Module,
)
