package storage

import (
	"log/slog"
	"strings"
	"time"
)

// Option configures either datastore driver. Options that only make sense for
// one driver are silently ignored by the other, mirroring how both drivers
// are constructed from the same flag set.
type Option interface {
	applyJSON(*Storage)
	applyPostgres(*PostgresConfig)
}

type optionAdapter struct {
	json func(*Storage)
	pg   func(*PostgresConfig)
}

func (o optionAdapter) applyJSON(store *Storage) {
	if o.json != nil && store != nil {
		o.json(store)
	}
}

func (o optionAdapter) applyPostgres(cfg *PostgresConfig) {
	if o.pg != nil && cfg != nil {
		o.pg(cfg)
	}
}

func composeOption(json func(*Storage), pg func(*PostgresConfig)) Option {
	return optionAdapter{json: json, pg: pg}
}

func postgresOnlyOption(pg func(*PostgresConfig)) Option {
	return optionAdapter{pg: pg}
}

// WithRetentionTTL sets the maximum clip age enforced by PurgeExpired.
func WithRetentionTTL(ttl time.Duration) Option {
	return composeOption(
		func(s *Storage) {
			if ttl > 0 {
				s.retentionTTL = ttl
			}
		},
		func(cfg *PostgresConfig) {
			if ttl > 0 {
				cfg.RetentionTTL = ttl
			}
		},
	)
}

// WithLockTimeout bounds resource token acquisition before ErrResourceBusy.
func WithLockTimeout(timeout time.Duration) Option {
	return composeOption(
		func(s *Storage) {
			if timeout > 0 {
				s.locks = newResourceLocks(timeout)
			}
		},
		func(cfg *PostgresConfig) {
			if timeout > 0 {
				cfg.LockTimeout = timeout
			}
		},
	)
}

// WithLogger installs the structured logger used for sweep and corruption
// reporting.
func WithLogger(logger *slog.Logger) Option {
	return composeOption(
		func(s *Storage) {
			if logger != nil {
				s.logger = logger
			}
		},
		func(cfg *PostgresConfig) {
			if logger != nil {
				cfg.Logger = logger
			}
		},
	)
}

// WithClock overrides the time source, used by retention tests to cross the
// TTL boundary without sleeping.
func WithClock(now func() time.Time) Option {
	return composeOption(
		func(s *Storage) {
			if now != nil {
				s.now = now
			}
		},
		func(cfg *PostgresConfig) {
			if now != nil {
				cfg.Now = now
			}
		},
	)
}

func WithPostgresPoolLimits(maxConns, minConns int32) Option {
	return postgresOnlyOption(func(cfg *PostgresConfig) {
		if maxConns > 0 {
			cfg.MaxConnections = maxConns
		}
		if minConns >= 0 {
			cfg.MinConnections = minConns
		}
	})
}

// WithPostgresAcquireTimeout configures how long the repository waits to
// obtain a connection from the pool before surfacing ErrResourceBusy.
func WithPostgresAcquireTimeout(timeout time.Duration) Option {
	return postgresOnlyOption(func(cfg *PostgresConfig) {
		if timeout > 0 {
			cfg.AcquireTimeout = timeout
		}
	})
}

func WithPostgresApplicationName(name string) Option {
	return postgresOnlyOption(func(cfg *PostgresConfig) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			cfg.ApplicationName = trimmed
		}
	})
}
