package models

import (
	"context"
	"testing"

	"github.com/aretw0/switchlink/internal/testutils"
	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bulkQuoteInput() domain.BulkQuoteInput {
	return domain.BulkQuoteInput{
		HomeTransactionID: "home-b",
		From:              domain.TransferParty{IDType: "MSISDN", IDValue: "987"},
		PayeeFsp:          "PEER1",
		IndividualQuotes: []domain.IndividualQuoteInput{
			{To: domain.TransferParty{IDType: "MSISDN", IDValue: "1"}, AmountType: domain.AmountTypeSend, Currency: "USD", Amount: "10"},
			{To: domain.TransferParty{IDType: "MSISDN", IDValue: "2"}, AmountType: domain.AmountTypeSend, Currency: "USD", Amount: "20"},
		},
	}
}

func TestBulkQuoteThenBulkTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bq, err := NewBulkQuote(f.env, bulkQuoteInput())
	require.NoError(t, err)
	quoted, err := bq.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, quoted.CurrentState)
	require.Len(t, quoted.Response.IndividualQuoteResults, 2)
	assert.Equal(t, "payeefsp", quoted.ResponseSource)

	in := domain.BulkTransferInput{
		BulkQuoteID:       quoted.BulkQuoteID,
		HomeTransactionID: "home-b",
		From:              quoted.From,
		PayeeFsp:          "PEER1",
	}
	for _, r := range quoted.Response.IndividualQuoteResults {
		in.IndividualTransfers = append(in.IndividualTransfers, domain.IndividualTransferInput{
			Currency:  r.TransferAmount.Currency,
			Amount:    r.TransferAmount.Amount,
			IlpPacket: r.IlpPacket,
			Condition: r.Condition,
		})
	}

	bt, err := NewBulkTransfer(f.env, in)
	require.NoError(t, err)
	done, err := bt.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.CurrentState)
	assert.Equal(t, "COMPLETED", done.Response.BulkTransferState)
	assert.Len(t, done.Response.IndividualTransferResults, 2)

	loaded, err := LoadBulkTransfer(ctx, f.env, bt.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, loaded.Response().CurrentState)

	// A completed model does not send again.
	_, err = loaded.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{testutils.CallPostBulkQuotes, testutils.CallPostBulkTransfers}, f.sw.CallNames())
}

func TestBulkQuote_Error(t *testing.T) {
	f := newFixture(t)
	f.sw.Fail[testutils.CallPostBulkQuotes] = domain.ErrorInformation{ErrorCode: "3200", ErrorDescription: "Generic payee error"}
	ctx := context.Background()

	bq, err := NewBulkQuote(f.env, bulkQuoteInput())
	require.NoError(t, err)
	resp, err := bq.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, domain.StatusErrorOccurred, resp.CurrentState)

	loaded, err := LoadBulkQuote(ctx, f.env, bq.ID())
	require.NoError(t, err)
	assert.Equal(t, "3200", loaded.Response().LastError.MojaloopError.ErrorInformation.ErrorCode)
}

func TestBulkTransfer_BadFulfilment(t *testing.T) {
	f := newFixture(t)
	f.sw.BadFulfilment = true

	in := domain.BulkTransferInput{
		BulkQuoteID: "bq-1",
		PayeeFsp:    "PEER1",
		IndividualTransfers: []domain.IndividualTransferInput{
			{Currency: "USD", Amount: "10", IlpPacket: "AYIB", Condition: "GRzLaTP7DJ9t4P-a_BA0WA9wzzlsugf00-Tn6kESAfM"},
		},
	}
	bt, err := NewBulkTransfer(f.env, in)
	require.NoError(t, err)
	resp, err := bt.Run(context.Background())

	var vErr *domain.ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Equal(t, domain.StatusErrorOccurred, resp.CurrentState)
	require.NotNil(t, resp.LastError)
	assert.Equal(t, 400, resp.LastError.StatusCode)
}

func TestNewBulkQuote_Validates(t *testing.T) {
	f := newFixture(t)
	in := bulkQuoteInput()
	in.IndividualQuotes = nil
	_, err := NewBulkQuote(f.env, in)
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "individualQuotes", vErr.Field)
}
