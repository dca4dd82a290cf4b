package main

// @title           Paygate API
// @version         1.0
// @description     Card payment gateway integration: payments, saved cards, subscriptions and gateway webhooks.

// @host      localhost:8888
// @BasePath  /

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/fatflowers/paygate/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	a := fx.New(
		app.Module,
		fx.WithLogger(func(l *zap.SugaredLogger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Desugar().Named("fx")}
		}),
	)
	startCtx, cancel := context.WithTimeout(context.Background(), app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		// the app logger may not exist if the graph failed to build
		zap.NewExample().Sugar().Errorw("failed to start app", "error", err)
		return 1
	}

	// fx closes Done on SIGINT/SIGTERM
	sig := <-a.Done()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
	defer cancelStop()
	if err := a.Stop(stopCtx); err != nil {
		zap.NewExample().Sugar().Errorw("failed to stop app", "signal", sig.String(), "error", err)
		return 1
	}
	return 0
}
