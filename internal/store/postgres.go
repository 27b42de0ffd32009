package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/punchamoorthee/bankguard/internal/domain"
)

// Postgres backs the store port with a pgx connection pool. It exists
// so the business logic can run unchanged against a real database; the
// demo defaults to the memory backend.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.Store = (*Postgres)(nil)

// NewPostgres connects and pings the database.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Account retrieves a single account with its coupon set.
func (p *Postgres) Account(ctx context.Context, username string) (*domain.Account, error) {
	var a domain.Account
	err := p.pool.QueryRow(ctx,
		"SELECT username, password_hash, balance FROM accounts WHERE username = $1",
		username).Scan(&a.Username, &a.PasswordHash, &a.Balance)
	if err == pgx.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	coupons, err := p.Coupons(ctx, username)
	if err != nil {
		return nil, err
	}
	a.Coupons = coupons
	return &a, nil
}

// Coupons retrieves the coupon set of the named account.
func (p *Postgres) Coupons(ctx context.Context, username string) ([]domain.Coupon, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT code, discount, label FROM coupons WHERE username = $1 ORDER BY code",
		username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var coupons []domain.Coupon
	for rows.Next() {
		var c domain.Coupon
		if err := rows.Scan(&c.Code, &c.Discount, &c.Label); err != nil {
			return nil, err
		}
		coupons = append(coupons, c)
	}
	return coupons, rows.Err()
}

// RemoveCoupon deletes the coupon; deleting a missing coupon is a
// no-op by design.
func (p *Postgres) RemoveCoupon(ctx context.Context, username, code string) error {
	_, err := p.pool.Exec(ctx,
		"DELETE FROM coupons WHERE username = $1 AND code = $2", username, code)
	return err
}

// Update runs fn inside a RepeatableRead transaction. The named
// account rows are locked FOR UPDATE in sorted order so two transfers
// touching the same pair of accounts cannot deadlock.
func (p *Postgres) Update(ctx context.Context, usernames []string, fn func(domain.Tx) error) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	ordered := append([]string(nil), usernames...)
	sort.Strings(ordered)
	seen := map[string]bool{}
	for _, name := range ordered {
		if seen[name] {
			continue
		}
		seen[name] = true
		var balance int64
		err := tx.QueryRow(ctx,
			"SELECT balance FROM accounts WHERE username = $1 FOR UPDATE", name).Scan(&balance)
		if err == pgx.ErrNoRows {
			return ErrAccountNotFound
		}
		if err != nil {
			return fmt.Errorf("lock acquisition failed: %w", err)
		}
	}

	if err := fn(&pgTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

type pgTx struct {
	ctx context.Context
	tx  pgx.Tx
}

func (t *pgTx) Account(username string) (*domain.Account, error) {
	var a domain.Account
	err := t.tx.QueryRow(t.ctx,
		"SELECT username, password_hash, balance FROM accounts WHERE username = $1",
		username).Scan(&a.Username, &a.PasswordHash, &a.Balance)
	if err == pgx.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (t *pgTx) SetBalance(username string, balance int64) error {
	tag, err := t.tx.Exec(t.ctx,
		"UPDATE accounts SET balance = $1 WHERE username = $2", balance, username)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (t *pgTx) Coupon(username, code string) (*domain.Coupon, error) {
	var c domain.Coupon
	err := t.tx.QueryRow(t.ctx,
		"SELECT code, discount, label FROM coupons WHERE username = $1 AND code = $2",
		username, code).Scan(&c.Code, &c.Discount, &c.Label)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (t *pgTx) RemoveCoupon(username, code string) error {
	_, err := t.tx.Exec(t.ctx,
		"DELETE FROM coupons WHERE username = $1 AND code = $2", username, code)
	return err
}
