package types

import "math/big"

// Account tracks the settlement-currency balance for an address. Balances are
// denominated in the smallest unit of the currency and only mutated by the
// settlement engine within a single atomic operation.
type Account struct {
	Nonce        uint64   `json:"nonce"`
	BalanceMinor *big.Int `json:"balanceMinor"`
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.BalanceMinor != nil {
		clone.BalanceMinor = new(big.Int).Set(a.BalanceMinor)
	}
	return &clone
}
