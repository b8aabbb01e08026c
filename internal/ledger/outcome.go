package ledger

// Outcome classifies the effect of folding a single record. Rejections
// are ordinary outcomes, not errors: the record is dropped, the ledger
// is untouched and the fold continues.
type Outcome string

const (
	OutcomeApplied              Outcome = "applied"
	OutcomeDuplicateTransaction Outcome = "duplicate_transaction"
	OutcomeAccountLocked        Outcome = "account_locked"
	OutcomeInsufficientFunds    Outcome = "insufficient_funds"
	OutcomeUnknownTransaction   Outcome = "unknown_transaction"
	OutcomeInvalidTransition    Outcome = "invalid_transition"
)

// Outcomes lists every outcome a fold can produce, in reporting order.
func Outcomes() []Outcome {
	return []Outcome{
		OutcomeApplied,
		OutcomeDuplicateTransaction,
		OutcomeAccountLocked,
		OutcomeInsufficientFunds,
		OutcomeUnknownTransaction,
		OutcomeInvalidTransition,
	}
}
