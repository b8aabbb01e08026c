package ledger

import "github.com/shopspring/decimal"

// Account is the running state of one client's funds. Available and
// Held always sum to the account's total; Locked marks an account that
// received a chargeback and no longer accepts deposits or withdrawals.
type Account struct {
	Client    uint16
	Available decimal.Decimal
	Held      decimal.Decimal
	Locked    bool
}

// Total returns available plus held funds.
func (a Account) Total() decimal.Decimal {
	return a.Available.Add(a.Held)
}
