package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"orderflow/internal/domain"
)

type Orders interface {
	CreateOrder(ctx context.Context, itemName string) (int64, error)
	GetOrder(ctx context.Context, id int64) (domain.Order, error)
	UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) error
}

type ordersPG struct {
	db *sql.DB
}

func NewOrdersPG(db *sql.DB) Orders { return &ordersPG{db: db} }

// withTx runs fn in a transaction that is committed on success and rolled
// back on every other exit path.
func (o *ordersPG) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", domain.ErrPersistence, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", domain.ErrPersistence, err)
	}
	return nil
}

func (o *ordersPG) CreateOrder(ctx context.Context, itemName string) (int64, error) {
	if itemName == "" {
		return 0, fmt.Errorf("%w: item_name is required", domain.ErrValidation)
	}
	var id int64
	err := o.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO orders (item_name, status) VALUES ($1, $2) RETURNING id`,
			itemName, string(domain.StatusCreated),
		).Scan(&id); err != nil {
			return fmt.Errorf("%w: insert order: %w", domain.ErrPersistence, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (o *ordersPG) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	var ord domain.Order
	err := o.withTx(ctx, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT id, item_name, status FROM orders WHERE id = $1`, id,
		).Scan(&ord.ID, &ord.ItemName, &status)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("%w: id %d", domain.ErrNotFound, id)
		case err != nil:
			return fmt.Errorf("%w: select order %d: %w", domain.ErrPersistence, id, err)
		}
		ord.Status = domain.OrderStatus(status)
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return ord, nil
}

// UpdateStatus sets the status unconditionally; the prior status is not checked.
func (o *ordersPG) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) error {
	return o.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE orders SET status = $1 WHERE id = $2`, string(status), id)
		if err != nil {
			return fmt.Errorf("%w: update order %d: %w", domain.ErrPersistence, id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: update order %d: %w", domain.ErrPersistence, id, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: id %d", domain.ErrNotFound, id)
		}
		return nil
	})
}
