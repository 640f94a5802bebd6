package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoDatabase is returned by NewDB when no connection URL is configured.
var ErrNoDatabase = errors.New("database url not set")

// DB holds the connection pool and the quiz archive built on it.
type DB struct {
	Pool    *pgxpool.Pool
	Quizzes *QuizStore
}

// NewDB connects to Postgres and makes sure the archive table exists.
func NewDB(ctx context.Context, url string) (*DB, error) {
	if url == "" {
		return nil, ErrNoDatabase
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}

	store := NewQuizStore(pool)
	if err := store.CreateTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &DB{Pool: pool, Quizzes: store}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	db.Pool.Close()
}
