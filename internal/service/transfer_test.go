package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/punchamoorthee/bankguard/internal/domain"
	"github.com/punchamoorthee/bankguard/internal/store"
)

func testStore(t *testing.T) *store.Memory {
	t.Helper()
	m, err := store.NewMemory([]domain.Account{
		{Username: "alice", Balance: 1000, Coupons: []domain.Coupon{
			{Code: "ALICE50", Discount: 0.5, Label: "50% off"},
			{Code: "ALICEFREE", Discount: 0.9, Label: "90% off"},
		}},
		{Username: "bob", Balance: 1000},
		{Username: "attacker", Balance: 0},
	})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return m
}

func balance(t *testing.T, s *store.Memory, username string) int64 {
	t.Helper()
	a, err := s.Account(context.Background(), username)
	if err != nil {
		t.Fatalf("account %s: %v", username, err)
	}
	return a.Balance
}

func TestExecute_Conservation(t *testing.T) {
	s := testStore(t)
	e := NewEngine(s)

	result, err := e.Execute(context.Background(), "alice", "bob", "100", "")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if got := balance(t, s, "alice"); got != 900 {
		t.Errorf("alice balance = %d, want 900", got)
	}
	if got := balance(t, s, "bob"); got != 1100 {
		t.Errorf("bob balance = %d, want 1100", got)
	}
	if result.NewBalance != 900 {
		t.Errorf("result balance = %d, want 900", result.NewBalance)
	}
	if result.Amount != 100 {
		t.Errorf("result amount = %d, want 100", result.Amount)
	}
}

func TestExecute_CouponDiscountAndConsumption(t *testing.T) {
	s := testStore(t)
	e := NewEngine(s)
	ctx := context.Background()

	result, err := e.Execute(ctx, "alice", "bob", "100", "ALICE50")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Amount != 50 {
		t.Errorf("effective amount = %d, want ceil(100*0.5) = 50", result.Amount)
	}
	if result.CouponUsed != "ALICE50" {
		t.Errorf("coupon used = %q, want ALICE50", result.CouponUsed)
	}
	if got := balance(t, s, "alice"); got != 950 {
		t.Errorf("alice balance = %d, want 950", got)
	}
	if got := balance(t, s, "bob"); got != 1050 {
		t.Errorf("bob balance = %d, want 1050", got)
	}

	coupons, _ := s.Coupons(ctx, "alice")
	for _, c := range coupons {
		if c.Code == "ALICE50" {
			t.Error("ALICE50 still present after consumption")
		}
	}

	// Reuse must fail and mutate nothing.
	_, err = e.Execute(ctx, "alice", "bob", "100", "ALICE50")
	if !errors.Is(err, ErrInvalidCoupon) {
		t.Fatalf("expected ErrInvalidCoupon on reuse, got %v", err)
	}
	if got := balance(t, s, "alice"); got != 950 {
		t.Errorf("alice balance changed on rejected reuse: %d", got)
	}
}

func TestExecute_DiscountRoundsUp(t *testing.T) {
	s := testStore(t)
	e := NewEngine(s)
	ctx := context.Background()

	// ceil(5 * 0.1) = 1 with the 90% coupon.
	result, err := e.Execute(ctx, "alice", "bob", "5", "ALICEFREE")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Amount != 1 {
		t.Errorf("effective amount = %d, want ceil(5*0.1) = 1", result.Amount)
	}
}

func TestExecute_InsufficientFunds(t *testing.T) {
	s := testStore(t)
	e := NewEngine(s)

	_, err := e.Execute(context.Background(), "attacker", "bob", "500", "")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := balance(t, s, "attacker"); got != 0 {
		t.Errorf("attacker balance = %d, want 0", got)
	}
	if got := balance(t, s, "bob"); got != 1000 {
		t.Errorf("bob balance = %d, want 1000", got)
	}
}

func TestExecute_InvalidAmount(t *testing.T) {
	s := testStore(t)
	e := NewEngine(s)

	for _, raw := range []string{"", "abc", "0", "-5", "100abc", "1.5", "NaN"} {
		_, err := e.Execute(context.Background(), "alice", "bob", raw, "")
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("amount %q: expected ErrInvalidAmount, got %v", raw, err)
		}
	}
	if got := balance(t, s, "alice"); got != 1000 {
		t.Errorf("alice balance changed on rejected amounts: %d", got)
	}
}

func TestExecute_InvalidRecipient(t *testing.T) {
	s := testStore(t)
	e := NewEngine(s)

	_, err := e.Execute(context.Background(), "alice", "mallory", "100", "")
	if !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("expected ErrInvalidRecipient, got %v", err)
	}
	if got := balance(t, s, "alice"); got != 1000 {
		t.Errorf("alice balance changed on rejected transfer: %d", got)
	}
}

// rowLockStore mimics the Postgres backend, which reports a missing
// account while locking rows, before the update closure ever runs.
type rowLockStore struct {
	accounts map[string]bool
}

func (s *rowLockStore) Account(ctx context.Context, username string) (*domain.Account, error) {
	if !s.accounts[username] {
		return nil, store.ErrAccountNotFound
	}
	return &domain.Account{Username: username, Balance: 1000}, nil
}

func (s *rowLockStore) Coupons(ctx context.Context, username string) ([]domain.Coupon, error) {
	return nil, nil
}

func (s *rowLockStore) RemoveCoupon(ctx context.Context, username, code string) error {
	return nil
}

func (s *rowLockStore) Update(ctx context.Context, usernames []string, fn func(domain.Tx) error) error {
	for _, name := range usernames {
		if !s.accounts[name] {
			return store.ErrAccountNotFound
		}
	}
	return errors.New("update closure not under test")
}

func TestExecute_RecipientMissingAtRowLock(t *testing.T) {
	s := &rowLockStore{accounts: map[string]bool{"alice": true}}
	e := NewEngine(s)

	_, err := e.Execute(context.Background(), "alice", "mallory", "100", "")
	if !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("expected ErrInvalidRecipient, got %v", err)
	}
}

func TestExecute_CouponCheckedBeforeAmount(t *testing.T) {
	s := testStore(t)
	e := NewEngine(s)
	ctx := context.Background()

	// A bogus coupon wins over a bogus amount.
	_, err := e.Execute(ctx, "alice", "bob", "abc", "NOSUCH")
	if !errors.Is(err, ErrInvalidCoupon) {
		t.Fatalf("expected ErrInvalidCoupon, got %v", err)
	}

	// With a valid coupon the amount check takes over, and the coupon
	// survives the rejected transfer.
	_, err = e.Execute(ctx, "alice", "bob", "abc", "ALICE50")
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	coupons, _ := s.Coupons(ctx, "alice")
	found := false
	for _, c := range coupons {
		if c.Code == "ALICE50" {
			found = true
		}
	}
	if !found {
		t.Error("coupon consumed by a rejected amount")
	}
}

func TestExecute_FailedTransferKeepsCoupon(t *testing.T) {
	s := testStore(t)
	e := NewEngine(s)
	ctx := context.Background()

	_, err := e.Execute(ctx, "alice", "mallory", "100", "ALICE50")
	if !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("expected ErrInvalidRecipient, got %v", err)
	}

	coupons, _ := s.Coupons(ctx, "alice")
	found := false
	for _, c := range coupons {
		if c.Code == "ALICE50" {
			found = true
		}
	}
	if !found {
		t.Error("coupon consumed by a failed transfer")
	}
}

func TestExecute_SelfTransfer(t *testing.T) {
	s := testStore(t)
	e := NewEngine(s)

	result, err := e.Execute(context.Background(), "alice", "alice", "100", "")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := balance(t, s, "alice"); got != 1000 {
		t.Errorf("self-transfer must be net zero, balance = %d", got)
	}
	if result.NewBalance != 1000 {
		t.Errorf("result balance = %d, want 1000", result.NewBalance)
	}
}

func TestExecute_ConcurrentConservation(t *testing.T) {
	s := testStore(t)
	e := NewEngine(s)
	ctx := context.Background()

	const workers = 8
	const transfersEach = 25

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		from, to := "alice", "bob"
		if i%2 == 1 {
			from, to = "bob", "alice"
		}
		go func(from, to string) {
			defer wg.Done()
			for j := 0; j < transfersEach; j++ {
				// Insufficient funds is acceptable under contention;
				// partial mutation is not.
				_, _ = e.Execute(ctx, from, to, "3", "")
			}
		}(from, to)
	}
	wg.Wait()

	total := balance(t, s, "alice") + balance(t, s, "bob")
	if total != 2000 {
		t.Errorf("total balance = %d, want 2000 (conservation violated)", total)
	}
}
