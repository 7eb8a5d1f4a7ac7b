package base

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
)

// Querier — общий интерфейс запросов, которому удовлетворяют и *pgxpool.Pool,
// и pgx.Tx. Репозитории работают через него и не знают, выполняются ли они
// внутри транзакции.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxManager выдаёт транзакционный Querier колбэку и гарантирует
// rollback на любом пути выхода. Сериализационные сбои и дедлоки
// повторяются с экспоненциальной паузой.
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager создаёт новый менеджер транзакций
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// Pool возвращает пул соединений
func (m *TxManager) Pool() *pgxpool.Pool {
	return m.pool
}

// WithinTx выполняет fn внутри одной транзакции. Ошибка fn откатывает всё.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(50*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := pgx.BeginTxFunc(ctx, m.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
			return fn(ctx, tx)
		})
		if isRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// isRetryable проверяет сериализационный сбой или дедлок
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// IsNotFound проверяет является ли ошибка "строка не найдена"
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
