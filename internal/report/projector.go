// Package report renders final account states for output.
package report

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/example/txnfold/internal/ledger"
	"github.com/example/txnfold/internal/record"
)

// WriteStatement renders accounts as CSV: a header row followed by one
// row per account, ordered by ascending client id. Amounts carry
// exactly four fractional digits and locked renders as true or false.
func WriteStatement(w io.Writer, accounts []ledger.Account) error {
	ordered := make([]ledger.Account, len(accounts))
	copy(ordered, accounts)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Client < ordered[j].Client })

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("client,available,held,total,locked\n"); err != nil {
		return fmt.Errorf("failed to write statement header: %w", err)
	}
	for _, acct := range ordered {
		_, err := fmt.Fprintf(bw, "%d,%s,%s,%s,%t\n",
			acct.Client,
			record.FormatAmount(acct.Available),
			record.FormatAmount(acct.Held),
			record.FormatAmount(acct.Total()),
			acct.Locked,
		)
		if err != nil {
			return fmt.Errorf("failed to write statement row for client %d: %w", acct.Client, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush statement: %w", err)
	}
	return nil
}
