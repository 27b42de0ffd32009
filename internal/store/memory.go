// Package store implements the account/coupon persistence port with an
// in-memory backend for the single-process demo and a Postgres backend
// for running against a real database.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/punchamoorthee/bankguard/internal/domain"
)

var (
	// ErrAccountNotFound indicates the named account does not exist.
	ErrAccountNotFound = errors.New("account not found")
)

// Memory is a mutex-guarded map store. The single lock makes every
// Update a critical section across all accounts, which is what the
// balance-conservation and coupon-at-most-once invariants require on a
// multi-threaded runtime.
type Memory struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
}

var _ domain.Store = (*Memory)(nil)

// NewMemory builds a store from the given seed accounts. It rejects
// seed data violating the coupon discount range invariant.
func NewMemory(seed []domain.Account) (*Memory, error) {
	if err := validateSeed(seed); err != nil {
		return nil, err
	}
	m := &Memory{accounts: make(map[string]*domain.Account, len(seed))}
	for _, a := range seed {
		cp := a
		cp.Coupons = append([]domain.Coupon(nil), a.Coupons...)
		m.accounts[a.Username] = &cp
	}
	return m, nil
}

// Account returns a copy of the named account.
func (m *Memory) Account(ctx context.Context, username string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[username]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := cloneAccount(a)
	return cp, nil
}

// Coupons returns the coupon set of the named account.
func (m *Memory) Coupons(ctx context.Context, username string) ([]domain.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[username]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return append([]domain.Coupon(nil), a.Coupons...), nil
}

// RemoveCoupon deletes the coupon from the owner's set. Removing a
// coupon that is already gone is not an error.
func (m *Memory) RemoveCoupon(ctx context.Context, username, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[username]
	if !ok {
		return ErrAccountNotFound
	}
	a.Coupons = dropCoupon(a.Coupons, code)
	return nil
}

// Update runs fn under the store lock against lazily-cloned accounts.
// Clones are written back only when fn succeeds, so a failed update
// leaves no partial mutation behind. The usernames argument exists for
// backends that lock per row; the memory store locks globally.
func (m *Memory) Update(ctx context.Context, usernames []string, fn func(domain.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{store: m, staged: make(map[string]*domain.Account)}
	if err := fn(tx); err != nil {
		return err
	}
	for name, a := range tx.staged {
		m.accounts[name] = a
	}
	return nil
}

// memTx stages copies of touched accounts; the caller holds the store
// lock for the whole transaction.
type memTx struct {
	store  *Memory
	staged map[string]*domain.Account
}

func (t *memTx) account(username string) (*domain.Account, error) {
	if a, ok := t.staged[username]; ok {
		return a, nil
	}
	a, ok := t.store.accounts[username]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := cloneAccount(a)
	t.staged[username] = cp
	return cp, nil
}

func (t *memTx) Account(username string) (*domain.Account, error) {
	a, err := t.account(username)
	if err != nil {
		return nil, err
	}
	return cloneAccount(a), nil
}

func (t *memTx) SetBalance(username string, balance int64) error {
	a, err := t.account(username)
	if err != nil {
		return err
	}
	a.Balance = balance
	return nil
}

func (t *memTx) Coupon(username, code string) (*domain.Coupon, error) {
	a, err := t.account(username)
	if err != nil {
		return nil, err
	}
	for _, c := range a.Coupons {
		if c.Code == code {
			cp := c
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *memTx) RemoveCoupon(username, code string) error {
	a, err := t.account(username)
	if err != nil {
		return err
	}
	a.Coupons = dropCoupon(a.Coupons, code)
	return nil
}

func cloneAccount(a *domain.Account) *domain.Account {
	cp := *a
	cp.Coupons = append([]domain.Coupon(nil), a.Coupons...)
	return &cp
}

func dropCoupon(coupons []domain.Coupon, code string) []domain.Coupon {
	out := coupons[:0]
	for _, c := range coupons {
		if c.Code != code {
			out = append(out, c)
		}
	}
	return out
}
