package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ent0n29/fundora/internal/reliability"
)

// Options selects and configures a Substrate backend.
type Options struct {
	Backend        string // auto|memory|sqlite|postgres|redis
	SQLitePath     string
	DatabaseURL    string
	Redis          RedisOptions
	ConnectTries   int
	ConnectBackoff time.Duration
}

// NewSubstrate opens the configured backend. In auto mode DATABASE_URL wins,
// then REDIS_ADDR, then the local SQLite file.
func NewSubstrate(ctx context.Context, opts Options) (Substrate, string, error) {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	if backend == "" || backend == "auto" {
		switch {
		case strings.TrimSpace(opts.DatabaseURL) != "":
			backend = "postgres"
		case strings.TrimSpace(opts.Redis.Addr) != "":
			backend = "redis"
		default:
			backend = "sqlite"
		}
	}

	var sub Substrate
	connect := func(ctx context.Context) error {
		var err error
		switch backend {
		case "memory":
			sub = NewInMemorySubstrate()
		case "sqlite":
			path := strings.TrimSpace(opts.SQLitePath)
			if path == "" {
				path = ".data/fundora.db"
			}
			sub, err = NewSQLiteSubstrate(ctx, path)
		case "postgres":
			if strings.TrimSpace(opts.DatabaseURL) == "" {
				return fmt.Errorf("postgres backend requires DATABASE_URL")
			}
			sub, err = NewPostgresSubstrate(ctx, opts.DatabaseURL)
		case "redis":
			if strings.TrimSpace(opts.Redis.Addr) == "" {
				return fmt.Errorf("redis backend requires REDIS_ADDR")
			}
			sub, err = NewRedisSubstrate(ctx, opts.Redis)
		default:
			return fmt.Errorf("unknown store backend %q", backend)
		}
		return err
	}

	backoff := opts.ConnectBackoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	if err := reliability.Retry(ctx, opts.ConnectTries, backoff, 8*backoff, connect); err != nil {
		return nil, backend, fmt.Errorf("open %s store: %w", backend, err)
	}
	return sub, backend, nil
}
