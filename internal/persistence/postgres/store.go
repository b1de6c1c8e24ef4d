package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements domain.Store on top of a pooled PostgreSQL connection.
// Its methods are split across files by concern (instruments, strategy and
// position-manager instances, candles/availability, execution state),
// mirroring the teacher's one-file-per-table convention.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}
