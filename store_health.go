package crewkit

import (
	"context"
	"errors"

	"github.com/fernandezvara/dbkit"
)

// Health performs a health check of the database connection, with latency
// and pool detail when the store runs on a *dbkit.DBKit.
func (s *PostgresStore) Health(ctx context.Context) dbkit.HealthStatus {
	if db, ok := s.db.(*dbkit.DBKit); ok {
		return db.Health(ctx)
	}

	// Inside a transaction or another IDB: a plain query is all we can do.
	status := dbkit.HealthStatus{Healthy: true}
	if err := s.selectOne(ctx); err != nil {
		status.Healthy = false
		status.Error = err.Error()
	}
	return status
}

// Ping returns an error when the database is not reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	status := s.Health(ctx)
	if !status.Healthy {
		if status.Error == "" {
			return storageError(errors.New("database unhealthy"))
		}
		return storageError(errors.New(status.Error))
	}
	return nil
}

func (s *PostgresStore) selectOne(ctx context.Context) error {
	var result int
	return s.db.NewSelect().Model((*struct{})(nil)).ColumnExpr("1").Limit(1).Scan(ctx, &result)
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
