package mysql

import (
	"database/sql"
	"fmt"

	driver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"stockwise/internal/config"
)

// DSN renders the go-sql-driver connection string for cfg.
func DSN(cfg config.DatabaseConfig) string {
	dc := driver.NewConfig()
	dc.User = cfg.User
	dc.Passwd = cfg.Password
	dc.Net = "tcp"
	dc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	dc.DBName = cfg.Name
	dc.ParseTime = true
	return dc.FormatDSN()
}

func NewConnection(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

// Sqlx shares the pool of db with the sqlx-based repositories.
func Sqlx(db *sql.DB) *sqlx.DB {
	return sqlx.NewDb(db, "mysql")
}
