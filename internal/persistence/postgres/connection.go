package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/force23airr/NexusX-sub001/internal/persistence"
)

// Config holds database connection configuration for the pricing
// core's persistence layer.
type Config struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

// DefaultConfig returns reasonable pool defaults.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		QueryTimeout:    5 * time.Second,
	}
}

// Repositories bundles every repository the Price Updater depends on,
// all backed by the same connection pool.
type Repositories struct {
	Listings       persistence.ListingsRepo
	Snapshots      persistence.SnapshotsRepo
	AuctionResults persistence.AuctionResultsRepo
	QualityRollups persistence.QualityRollupsRepo
	Supply         persistence.SupplyRepo
}

// Open connects to Postgres, configures the pool, and wires every
// repository off the same *sqlx.DB.
func Open(cfg Config) (*sqlx.DB, *Repositories, error) {
	if cfg.DSN == "" {
		return nil, nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repos := &Repositories{
		Listings:       NewListingsRepo(db, cfg.QueryTimeout),
		Snapshots:      NewSnapshotsRepo(db, cfg.QueryTimeout),
		AuctionResults: NewAuctionResultsRepo(db, cfg.QueryTimeout),
		QualityRollups: NewQualityRollupsRepo(db, cfg.QueryTimeout),
		Supply:         NewSupplyRepo(db, cfg.QueryTimeout),
	}

	return db, repos, nil
}
