package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PingTimeout bounds Check.
const PingTimeout = 5 * time.Second

// PoolStats is a snapshot of the connection pool, loggable as a zerolog
// object.
type PoolStats struct {
	TotalConns    int32
	IdleConns     int32
	AcquiredConns int32
	MaxConns      int32
	AcquireCount  int64
	AcquireWait   time.Duration
	Healthy       bool
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (s PoolStats) MarshalZerologObject(e *zerolog.Event) {
	e.Int32("total", s.TotalConns).
		Int32("idle", s.IdleConns).
		Int32("acquired", s.AcquiredConns).
		Int32("max", s.MaxConns).
		Int64("acquire_count", s.AcquireCount).
		Dur("acquire_wait", s.AcquireWait).
		Bool("healthy", s.Healthy)
}

func statsOf(stat *pgxpool.Stat) PoolStats {
	return PoolStats{
		TotalConns:    stat.TotalConns(),
		IdleConns:     stat.IdleConns(),
		AcquiredConns: stat.AcquiredConns(),
		MaxConns:      stat.MaxConns(),
		AcquireCount:  stat.AcquireCount(),
		AcquireWait:   stat.AcquireDuration(),
	}
}

// Check pings the database and snapshots the pool. Healthy reports whether
// the ping succeeded.
func Check(ctx context.Context, pool *pgxpool.Pool) (PoolStats, error) {
	ctx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()

	err := pool.Ping(ctx)
	stats := statsOf(pool.Stat())
	stats.Healthy = err == nil
	return stats, err
}
