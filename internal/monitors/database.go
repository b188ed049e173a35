package monitors

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/spyglass-dev/spyglass/internal/models"
	"github.com/spyglass-dev/spyglass/internal/types"

	// Database drivers
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

type DatabaseAdapter struct{}

func (a *DatabaseAdapter) Execute(ctx context.Context, monitor *models.Monitor) (types.CheckOutcome, error) {
	var cfg types.DatabaseConfig
	if err := decodeConfig(monitor, &cfg); err != nil {
		return types.CheckOutcome{}, err
	}

	var dsn string

	switch cfg.Type {
	case "postgres", "postgresql":
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database, sslMode)
	case "mysql":
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	default:
		return types.CheckOutcome{}, fmt.Errorf("%w: unsupported database type %q", ErrInvalidConfig, cfg.Type)
	}

	driverName := cfg.Type
	if cfg.Type == "postgresql" {
		driverName = "postgres"
	}

	start := time.Now()

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return types.CheckOutcome{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return down(start, "failed to ping database: %v", err), nil
	}

	return up(start), nil
}
