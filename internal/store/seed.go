package store

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/punchamoorthee/bankguard/internal/domain"
)

// Seed fixture matching the reference demo: two funded users and a
// broke attacker. Passwords equal the usernames; they are hashed here
// so nothing downstream ever sees a plaintext credential.
func SeedAccounts() ([]domain.Account, error) {
	seed := []struct {
		username string
		balance  int64
		coupons  []domain.Coupon
	}{
		{"alice", 1000, []domain.Coupon{
			{Code: "ALICE50", Discount: 0.5, Label: "50% off"},
			{Code: "ALICEFREE", Discount: 0.9, Label: "90% off"},
		}},
		{"bob", 1000, []domain.Coupon{
			{Code: "BOB10", Discount: 0.1, Label: "10% off"},
		}},
		{"attacker", 0, nil},
	}

	accounts := make([]domain.Account, 0, len(seed))
	for _, s := range seed {
		hash, err := bcrypt.GenerateFromPassword([]byte(s.username), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", s.username, err)
		}
		accounts = append(accounts, domain.Account{
			Username:     s.username,
			PasswordHash: string(hash),
			Balance:      s.balance,
			Coupons:      s.coupons,
		})
	}
	return accounts, nil
}

// validateSeed enforces the hard coupon invariant 0 <= discount < 1
// and non-negative starting balances.
func validateSeed(accounts []domain.Account) error {
	for _, a := range accounts {
		if a.Username == "" {
			return fmt.Errorf("seed account with empty username")
		}
		if a.Balance < 0 {
			return fmt.Errorf("account %s: negative balance %d", a.Username, a.Balance)
		}
		for _, c := range a.Coupons {
			if c.Discount < 0 || c.Discount >= 1 {
				return fmt.Errorf("account %s: coupon %s discount %v out of range [0, 1)", a.Username, c.Code, c.Discount)
			}
		}
	}
	return nil
}
