// Package service holds the transfer engine.
package service

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/punchamoorthee/bankguard/internal/domain"
	"github.com/punchamoorthee/bankguard/internal/store"
)

var (
	// ErrInvalidRecipient indicates the recipient account does not exist.
	ErrInvalidRecipient = errors.New("invalid recipient")
	// ErrInvalidAmount indicates the amount was not a positive integer.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientFunds indicates the sender cannot cover the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidCoupon indicates the sender does not hold the coupon.
	ErrInvalidCoupon = errors.New("invalid coupon")
)

// Engine validates and executes funds transfers against the store.
type Engine struct {
	store domain.Store
}

// NewEngine creates a transfer engine.
func NewEngine(s domain.Store) *Engine {
	return &Engine{store: s}
}

// Execute moves funds from sender to recipient, optionally applying a
// one-time coupon discount. The sender is always the session subject,
// never client input. The whole validate-debit-credit-consume sequence
// runs inside one store update, so a failed transfer never consumes a
// coupon and a coupon can never fund two transfers.
func (e *Engine) Execute(ctx context.Context, sender, recipient, rawAmount, couponCode string) (*domain.TransferResult, error) {
	var result *domain.TransferResult
	err := e.store.Update(ctx, []string{sender, recipient}, func(tx domain.Tx) error {
		senderAcc, err := tx.Account(sender)
		if err != nil {
			return err
		}

		// Coupon validity is reported ahead of amount problems, like
		// the reference behavior.
		var coupon *domain.Coupon
		if couponCode != "" {
			coupon, err = tx.Coupon(sender, couponCode)
			if err != nil {
				return err
			}
			if coupon == nil {
				return ErrInvalidCoupon
			}
		}

		amount, err := parseAmount(rawAmount)
		if err != nil {
			return err
		}
		effective := amount
		var used string
		if coupon != nil {
			effective = discounted(amount, coupon.Discount)
			used = coupon.Code
		}

		if _, err := tx.Account(recipient); err != nil {
			if errors.Is(err, store.ErrAccountNotFound) {
				return ErrInvalidRecipient
			}
			return err
		}

		if senderAcc.Balance < effective {
			return ErrInsufficientFunds
		}

		if err := tx.SetBalance(sender, senderAcc.Balance-effective); err != nil {
			return err
		}
		// Re-read so a self-transfer credits the already-debited balance.
		recipAcc, err := tx.Account(recipient)
		if err != nil {
			return err
		}
		if err := tx.SetBalance(recipient, recipAcc.Balance+effective); err != nil {
			return err
		}

		if used != "" {
			if err := tx.RemoveCoupon(sender, used); err != nil {
				return err
			}
		}

		final, err := tx.Account(sender)
		if err != nil {
			return err
		}
		result = &domain.TransferResult{
			Sender:     sender,
			Recipient:  recipient,
			Amount:     effective,
			NewBalance: final.Balance,
			CouponUsed: used,
		}
		return nil
	})
	if err != nil {
		// The Postgres backend reports a missing account while locking
		// rows, before the closure even runs. The sender comes from the
		// session, so a not-found at this level can only mean the
		// recipient.
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrInvalidRecipient
		}
		return nil, err
	}
	return result, nil
}

// parseAmount accepts only a plain positive integer. Garbage, zero,
// and negative values are all rejected up front instead of leaking
// NaN-style behavior into the balance math.
func parseAmount(raw string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrInvalidAmount
	}
	return n, nil
}

// discounted rounds the reduced amount up, matching the reference
// ceil(amount * (1 - discount)) behavior. A positive amount and a
// discount below 1 always leave at least one dollar owed.
func discounted(amount int64, discount float64) int64 {
	return int64(math.Ceil(float64(amount) * (1 - discount)))
}
