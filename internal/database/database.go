package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Dialect identifies the SQL flavor behind a handle.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// New opens and pings a Postgres database through the pgx driver.
func New(connStr string) (*sql.DB, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// Open picks the driver from the DSN scheme: postgres:// and postgresql://
// go to pgx, mysql:// and mariadb:// to the MySQL driver.
func Open(dsn string) (*sql.DB, Dialect, error) {
	dialect, err := DialectOf(dsn)
	if err != nil {
		return nil, "", err
	}

	if dialect == Postgres {
		db, err := New(dsn)
		return db, Postgres, err
	}

	mysqlDSN, err := toMySQLDSN(dsn)
	if err != nil {
		return nil, "", err
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("pinging database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	return db, MySQL, nil
}

// DialectOf reports which dialect a DSN targets.
func DialectOf(dsn string) (Dialect, error) {
	scheme, _, ok := strings.Cut(dsn, "://")
	if !ok {
		return "", fmt.Errorf("dsn has no scheme")
	}

	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	}

	return "", fmt.Errorf("unsupported dsn scheme %q", scheme)
}

// toMySQLDSN converts a mysql:// or mariadb:// URL to the driver's native
// DSN format.
func toMySQLDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.InterpolateParams = true

	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}

	if cfg.User == "" || cfg.Addr == "" || cfg.DBName == "" {
		return "", fmt.Errorf("incomplete dsn: user, host and database are required")
	}

	return cfg.FormatDSN(), nil
}
