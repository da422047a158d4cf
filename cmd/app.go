package cmd

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stockwise/internal/alert"
	"stockwise/internal/config"
	"stockwise/internal/infrastructure/logger"
	"stockwise/internal/infrastructure/mysql"
	"stockwise/internal/ledger"
	"stockwise/internal/order"
	"stockwise/internal/replenishment"
	rulerepo "stockwise/internal/rule/repository"
	"stockwise/internal/server"
	"stockwise/internal/sweep"
)

// app holds everything a command needs once configuration, logging and
// the database are up.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sql.DB

	ledger        *ledger.Module
	orders        *order.Module
	alerts        *alert.Module
	replenishment *replenishment.Module
	sweeper       *sweep.Runner
}

func loadBase(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	configFile, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	zapLogger, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, zapLogger, nil
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, zapLogger, err := loadBase(cmd)
	if err != nil {
		return nil, err
	}

	db, err := mysql.NewConnection(cfg.Database)
	if err != nil {
		zapLogger.Sync()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	zapLogger.Info("database connected")

	dbx := mysql.Sqlx(db)
	rules := rulerepo.NewRuleRepository(dbx)

	ledgerModule := ledger.NewModule(db, order.NewLineRepository(db), cfg, zapLogger)
	alertModule := alert.NewModule(dbx, rules, cfg, zapLogger)
	replenishmentModule := replenishment.NewModule(dbx, rules, cfg, zapLogger)

	return &app{
		cfg:           cfg,
		logger:        zapLogger,
		db:            db,
		ledger:        ledgerModule,
		orders:        order.NewModule(db, ledgerModule.Service, zapLogger),
		alerts:        alertModule,
		replenishment: replenishmentModule,
		sweeper:       sweep.NewRunner(alertModule.Service, replenishmentModule.Service, cfg.Sweep.Interval, zapLogger),
	}, nil
}

func (a *app) httpServer() *server.Server {
	handler := server.NewRouter(server.Controllers{
		Stock:         a.ledger.Controller,
		SalesOrders:   a.orders.Controller,
		Alerts:        a.alerts.Controller,
		Replenishment: a.replenishment.Controller,
	}, a.db, a.logger)
	return server.New(a.cfg.Server, handler, a.logger)
}

func (a *app) Close() {
	a.db.Close()
	a.logger.Sync()
}
