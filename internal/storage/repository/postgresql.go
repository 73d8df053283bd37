// Package repository реализует хранилище подписок на основе PostgreSQL (pgx/v5).
// Каждая операция может выполняться как на пуле, так и внутри транзакции.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/premium-entitlement/internal/entitlement"
)

// Querier общая часть пула и транзакции.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB пул соединений: *pgxpool.Pool или pgxmock в тестах.
type DB interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repo реализует entitlement.Repository поверх Querier.
type Repo struct {
	q Querier
}

// Storage владеет пулом и запускает транзакции.
type Storage struct {
	*Repo
	db   DB
	pool *pgxpool.Pool
}

var _ entitlement.Store = (*Storage)(nil)

// New создаёт пул подключений к PostgreSQL и проверяет соединение.
func New(ctx context.Context, storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	pool, err := pgxpool.New(ctx, storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s := NewWithDB(pool)
	s.pool = pool
	return s, nil
}

// NewWithDB оборачивает готовый DB (используется в тестах).
func NewWithDB(db DB) *Storage {
	return &Storage{
		Repo: &Repo{q: db},
		db:   db,
	}
}

// SQLDB возвращает *sql.DB поверх пула для инструментов, работающих с database/sql (миграции).
func (s *Storage) SQLDB() (*sql.DB, error) {
	if s.pool == nil {
		return nil, errors.New("storage.SQLDB: storage is not backed by a pool")
	}
	return stdlib.OpenDBFromPool(s.pool), nil
}

// Ping проверяет доступность базы.
func (s *Storage) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

// Close закрывает пул.
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// RunInTx выполняет fn в транзакции. Транзакция фиксируется, если fn вернула nil.
func (s *Storage) RunInTx(ctx context.Context, fn func(repo entitlement.Repository) error) (err error) {
	const op = "storage.RunInTx"

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return repoErr(op, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, repoErr(op, rbErr))
			}
		}
	}()

	if err = fn(&Repo{q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return repoErr(op, err)
	}
	return nil
}

// Ready сообщает, что схема создана и хранилищем можно пользоваться.
func (s *Storage) Ready(ctx context.Context) error {
	return CheckDatabaseReady(ctx, s.db)
}

// CheckDatabaseReady проверяет, что миграции применены.
func CheckDatabaseReady(ctx context.Context, q Querier) error {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'subscriptions'
    )`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("required table subscriptions missing or query error: %w", err)
	}
	if !exists {
		return errors.New("required table subscriptions missing")
	}
	return nil
}

func repoErr(op string, err error) error {
	return &entitlement.RepositoryError{Op: op, Err: err}
}

func notFound(op string) error {
	return fmt.Errorf("%s: %w", op, entitlement.ErrNotFound)
}

func ctxErr(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
		return nil
	}
}
