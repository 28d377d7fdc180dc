package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/sakatrade/saka/internal/models"
)

// ErrDuplicateReceipt is returned when an order_id is inserted twice.
// Receipts are append-only; a duplicate insert is always a caller bug.
var ErrDuplicateReceipt = errors.New("receipt with this order_id already exists")

// pgUniqueViolation is the PostgreSQL error code for unique constraint breaks
const pgUniqueViolation = "23505"

// Querier is the subset of pgxpool.Pool used by the receipt store.
// pgxmock satisfies it, so the store is testable without Postgres.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ReceiptStore persists executed-order receipts. Writes are one transaction
// each; rows are never updated after insert.
type ReceiptStore struct {
	q Querier
}

// NewReceiptStore creates a receipt store over a pool or mock
func NewReceiptStore(q Querier) *ReceiptStore {
	return &ReceiptStore{q: q}
}

// Insert appends a receipt. Duplicate order ids return ErrDuplicateReceipt.
func (s *ReceiptStore) Insert(ctx context.Context, r *models.Receipt) error {
	query := `
		INSERT INTO trades (
			order_id, status, asset, side, executed_price,
			executed_quantity, amount_usd, timestamp, raw_response
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.q.Exec(ctx, query,
		r.OrderID,
		string(r.Status),
		r.Asset,
		string(r.Side),
		r.ExecutedPrice,
		r.ExecutedQuantity,
		r.AmountUSD,
		r.Timestamp.UTC(),
		r.RawResponse,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateReceipt, r.OrderID)
		}
		return fmt.Errorf("failed to insert receipt: %w", err)
	}

	log.Debug().
		Str("order_id", r.OrderID).
		Str("asset", r.Asset).
		Str("status", string(r.Status)).
		Msg("Receipt persisted")

	return nil
}

// GetByOrderID fetches a single receipt by its primary key
func (s *ReceiptStore) GetByOrderID(ctx context.Context, orderID string) (*models.Receipt, error) {
	query := `
		SELECT order_id, status, asset, side, executed_price,
		       executed_quantity, amount_usd, timestamp, raw_response
		FROM trades
		WHERE order_id = $1
	`
	return scanReceipt(s.q.QueryRow(ctx, query, orderID))
}

// ListByAsset returns the most recent receipts for an asset
func (s *ReceiptStore) ListByAsset(ctx context.Context, asset string, limit int) ([]*models.Receipt, error) {
	query := `
		SELECT order_id, status, asset, side, executed_price,
		       executed_quantity, amount_usd, timestamp, raw_response
		FROM trades
		WHERE asset = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`
	rows, err := s.q.Query(ctx, query, asset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipts by asset: %w", err)
	}
	defer rows.Close()
	return scanReceipts(rows)
}

// ListRecent returns the most recent receipts across all assets
func (s *ReceiptStore) ListRecent(ctx context.Context, limit int) ([]*models.Receipt, error) {
	query := `
		SELECT order_id, status, asset, side, executed_price,
		       executed_quantity, amount_usd, timestamp, raw_response
		FROM trades
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := s.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent receipts: %w", err)
	}
	defer rows.Close()
	return scanReceipts(rows)
}

func scanReceipt(row pgx.Row) (*models.Receipt, error) {
	var (
		r         models.Receipt
		status    string
		side      string
		price     decimal.Decimal
		qty       decimal.Decimal
		amountUSD decimal.Decimal
		ts        time.Time
	)
	err := row.Scan(
		&r.OrderID, &status, &r.Asset, &side,
		&price, &qty, &amountUSD, &ts, &r.RawResponse,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan receipt: %w", err)
	}
	r.Status = models.ReceiptStatus(status)
	r.Side = models.TradeSignal(side)
	r.ExecutedPrice = price
	r.ExecutedQuantity = qty
	r.AmountUSD = amountUSD
	r.Timestamp = ts.UTC()
	return &r, nil
}

func scanReceipts(rows pgx.Rows) ([]*models.Receipt, error) {
	var receipts []*models.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating receipts: %w", err)
	}
	return receipts, nil
}
