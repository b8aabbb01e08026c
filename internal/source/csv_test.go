package source

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/txnfold/internal/record"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// drain collects every record a source yields.
func drain(t *testing.T, src Source) []record.Record {
	t.Helper()
	var out []record.Record
	for {
		rec, err := src.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func TestCSVSourceReadsTransactionLog(t *testing.T) {
	input := `type,client,tx,amount
deposit,1,1,1.0
deposit,2,2,2.0
deposit,1,3,2.0
withdrawal,1,4,1.5
dispute,1,1
chargeback,1,1,
deposit,1,5,10.0
`
	src := NewCSVSource(strings.NewReader(input), testLogger())
	records := drain(t, src)

	require.Len(t, records, 7)
	assert.Equal(t, 0, src.Malformed())

	assert.Equal(t, record.KindDeposit, records[0].Kind)
	assert.Equal(t, uint16(1), records[0].Client)
	assert.Equal(t, uint32(1), records[0].TxID)
	assert.Equal(t, "1.0000", record.FormatAmount(records[0].Amount))

	assert.Equal(t, record.KindWithdrawal, records[3].Kind)
	assert.Equal(t, "1.5000", record.FormatAmount(records[3].Amount))

	// Dispute rows reference a transaction; with or without a trailing
	// amount column the reference is what counts.
	assert.Equal(t, record.KindDispute, records[4].Kind)
	assert.Equal(t, uint32(1), records[4].TxID)
	assert.Equal(t, record.KindChargeback, records[5].Kind)
	assert.Equal(t, uint32(1), records[5].TxID)
}

func TestCSVSourceWithoutHeader(t *testing.T) {
	input := "deposit,1,1,1.0\nwithdrawal,1,2,0.5\n"

	src := NewCSVSource(strings.NewReader(input), testLogger())
	records := drain(t, src)

	require.Len(t, records, 2)
	assert.Equal(t, 0, src.Malformed())
	assert.Equal(t, record.KindDeposit, records[0].Kind)
}

func TestCSVSourceToleratesWhitespaceAndCase(t *testing.T) {
	input := "DEPOSIT, 1, 1, 2.0\n withdrawal ,1,2, 0.5 \n"

	src := NewCSVSource(strings.NewReader(input), testLogger())
	records := drain(t, src)

	require.Len(t, records, 2)
	assert.Equal(t, 0, src.Malformed())
	assert.Equal(t, record.KindDeposit, records[0].Kind)
	assert.Equal(t, "2.0000", record.FormatAmount(records[0].Amount))
	assert.Equal(t, record.KindWithdrawal, records[1].Kind)
	assert.Equal(t, "0.5000", record.FormatAmount(records[1].Amount))
}

func TestCSVSourceSkipsMalformedRows(t *testing.T) {
	input := `deposit,1,1,1.0
transfer,1,2,1.0
deposit,abc,3,1.0
deposit,70000,4,1.0
deposit,1,5
deposit,1,6,
deposit,1,7,-2.0
withdrawal,1
deposit,1,8,1.0
`
	src := NewCSVSource(strings.NewReader(input), testLogger())
	records := drain(t, src)

	require.Len(t, records, 2, "only the first and last rows are well-formed")
	assert.Equal(t, 7, src.Malformed())
	assert.Equal(t, uint32(1), records[0].TxID)
	assert.Equal(t, uint32(8), records[1].TxID)
}

func TestCSVSourceMalformedRowsDoNotStopTheStream(t *testing.T) {
	input := "garbage\ndeposit,1,1,3.0\n"

	src := NewCSVSource(strings.NewReader(input), testLogger())
	records := drain(t, src)

	require.Len(t, records, 1)
	assert.Equal(t, 1, src.Malformed())
	assert.Equal(t, "3.0000", record.FormatAmount(records[0].Amount))
}

func TestCSVSourceToleratesExtraColumns(t *testing.T) {
	input := "deposit,1,1,1.0,annotation\ndispute,1,1,0.0\n"

	src := NewCSVSource(strings.NewReader(input), testLogger())
	records := drain(t, src)

	require.Len(t, records, 2)
	assert.Equal(t, 0, src.Malformed())
	// Amounts on dispute rows are ignored, not errors.
	assert.True(t, records[1].Amount.IsZero())
}

func TestCSVSourceEmptyInput(t *testing.T) {
	src := NewCSVSource(strings.NewReader(""), testLogger())

	_, err := src.Next()
	assert.Equal(t, io.EOF, err)

	// EOF is sticky.
	_, err = src.Next()
	assert.Equal(t, io.EOF, err)
}

func TestCSVSourceHeaderOnly(t *testing.T) {
	src := NewCSVSource(strings.NewReader("type,client,tx,amount\n"), testLogger())

	_, err := src.Next()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 0, src.Malformed())
}
