package record

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind identifies the type of a transaction record.
type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
	KindDispute    Kind = "dispute"
	KindResolve    Kind = "resolve"
	KindChargeback Kind = "chargeback"
)

// MovesFunds reports whether records of this kind carry an amount and
// consume a transaction id. Dispute lifecycle records reference an
// earlier transaction instead.
func (k Kind) MovesFunds() bool {
	return k == KindDeposit || k == KindWithdrawal
}

// UnknownKindError reports a record type outside the accepted set.
type UnknownKindError struct {
	Value string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown record kind %q", e.Value)
}

// ParseKind validates a raw record type. Kinds are case-insensitive
// and surrounding whitespace is tolerated.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindDeposit, KindWithdrawal, KindDispute, KindResolve, KindChargeback:
		return k, nil
	default:
		return "", &UnknownKindError{Value: s}
	}
}

// Record is one row of the transaction log. Amount is set only for
// kinds that move funds; dispute, resolve and chargeback rows carry a
// transaction reference and nothing else.
type Record struct {
	Kind   Kind
	Client uint16
	TxID   uint32
	Amount decimal.Decimal
}

// ParseClientID parses a client id from its decimal text form.
func ParseClientID(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid client id %q", s)
	}
	return uint16(v), nil
}

// ParseTxID parses a transaction id from its decimal text form.
func ParseTxID(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid transaction id %q", s)
	}
	return uint32(v), nil
}
