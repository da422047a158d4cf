package mysql

import (
	"errors"
	"fmt"

	driver "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"stockwise/internal/config"
)

// Migrate applies every pending migration found under migrationsURL
// (e.g. file://migrations).
func Migrate(cfg config.DatabaseConfig, migrationsURL string, logger *zap.Logger) error {
	logger.Info("running database migrations", zap.String("source", migrationsURL))

	dc, err := driver.ParseDSN(DSN(cfg))
	if err != nil {
		return fmt.Errorf("parsing dsn: %w", err)
	}
	dc.MultiStatements = true

	m, err := migrate.New(migrationsURL, "mysql://"+dc.FormatDSN())
	if err != nil {
		return fmt.Errorf("initialising migrations: %w", err)
	}
	defer m.Close()
	m.Log = &migrationLogger{logger: logger}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("database migration: no change needed")
			return nil
		}
		return fmt.Errorf("applying migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err == nil {
		logger.Info("database migrated", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}
	return nil
}

type migrationLogger struct {
	logger *zap.Logger
}

func (l *migrationLogger) Printf(format string, v ...any) {
	l.logger.Sugar().Infof("migrate: "+format, v...)
}

func (l *migrationLogger) Verbose() bool {
	return false
}
