// Package domain contains the core entities and the storage ports.
package domain

import (
	"context"
	"time"
)

// Account is a user of the demo bank. Balance is held in whole dollars
// to match the reference fixtures.
type Account struct {
	Username     string   `json:"username"`
	PasswordHash string   `json:"-"`
	Balance      int64    `json:"balance"`
	Coupons      []Coupon `json:"coupons,omitempty"`
}

// Coupon is a one-time discount owned by a single account. Discount is
// a fraction in [0, 1); it is fixed at creation and never updated.
type Coupon struct {
	Code     string  `json:"code"`
	Discount float64 `json:"discount"`
	Label    string  `json:"label"`
}

// Session binds an opaque identifier to an authenticated username. It
// has no expiry; logout is the only teardown.
type Session struct {
	ID        string
	Username  string
	CreatedAt time.Time
}

// TransferResult reports a committed transfer.
type TransferResult struct {
	Sender     string `json:"sender"`
	Recipient  string `json:"recipient"`
	Amount     int64  `json:"amount"`
	NewBalance int64  `json:"new_balance"`
	CouponUsed string `json:"coupon_used,omitempty"`
}

// Tx is the view of the store inside one atomic unit. Every mutation
// performed through a Tx commits or rolls back as a whole.
type Tx interface {
	Account(username string) (*Account, error)
	SetBalance(username string, balance int64) error
	Coupon(username, code string) (*Coupon, error)
	RemoveCoupon(username, code string) error
}

// Store is the port for account and coupon persistence. Update runs fn
// as one critical section over the named accounts, so a
// validate-then-mutate sequence observes no interleaving writes.
type Store interface {
	Account(ctx context.Context, username string) (*Account, error)
	Coupons(ctx context.Context, username string) ([]Coupon, error)
	RemoveCoupon(ctx context.Context, username, code string) error
	Update(ctx context.Context, usernames []string, fn func(Tx) error) error
}
