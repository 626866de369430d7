package models

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/switchlink/internal/testutils"
	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartiesLookup(t *testing.T) {
	f := newFixture(t)

	res, err := NewPartiesLookup(f.env).Run(context.Background(), PartyArgs{IDType: "MSISDN", IDValue: "123"})
	require.NoError(t, err)
	assert.Equal(t, stateSucceeded, res.CurrentState)
	assert.Equal(t, "PEER1", res.Response.PartyIDInfo.FspID)
	assert.Equal(t, "payeefsp", res.Headers[domain.HeaderSource])
	require.NotNil(t, res.Ack)
	assert.Equal(t, 202, res.Ack.StatusCode)
}

func TestPartiesLookup_RejectsMismatchedParty(t *testing.T) {
	f := newFixture(t)
	f.sw.Parties["555"] = []domain.Party{testutils.Payee("ACCOUNT_ID", "555", "PEER1")}

	res, err := NewPartiesLookup(f.env).Run(context.Background(), PartyArgs{IDType: "MSISDN", IDValue: "555"})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "party.partyIdInfo.partyIdType", vErr.Field)
	assert.Equal(t, stateErrored, res.CurrentState)
	assert.Equal(t, 400, res.LastError.StatusCode)
	require.NotNil(t, res.Ack, "the sent lookup stays acknowledged")
	assert.Equal(t, 202, res.Ack.StatusCode)
}

func TestPartiesLookup_Validates(t *testing.T) {
	f := newFixture(t)

	res, err := NewPartiesLookup(f.env).Run(context.Background(), PartyArgs{IDType: "MSISDN"})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Nil(t, res)
	assert.Empty(t, f.sw.Calls())
}

func TestPartiesFetch_AwaitsInFlightLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	args := PartyArgs{IDType: "MSISDN", IDValue: "123"}

	done := make(chan *AsyncResult[domain.Party], 1)
	go func() {
		res, err := NewPartiesFetch(f.env).Run(ctx, args)
		assert.NoError(t, err)
		done <- res
	}()

	channel := domain.PartyChannel("MSISDN", "123", "")
	require.Eventually(t, func() bool { return f.cache.Subscribers(channel) == 1 }, time.Second, 5*time.Millisecond)
	_, err := f.sw.GetParties(ctx, "MSISDN", "123", "", "")
	require.NoError(t, err)

	res := <-done
	require.NotNil(t, res)
	assert.Equal(t, "PEER1", res.Response.PartyIDInfo.FspID)
}

func TestQuoteSubmit(t *testing.T) {
	f := newFixture(t)

	req := domain.QuoteRequest{QuoteID: "q-1", TransactionID: "tx-1", Amount: domain.Money{Currency: "USD", Amount: "10"}}
	res, err := NewQuoteSubmit(f.env).Run(context.Background(), QuoteArgs{Request: req, DestFspID: "PEER1"})
	require.NoError(t, err)
	assert.Equal(t, "10", res.Response.TransferAmount.Amount)
	assert.NotEmpty(t, res.Response.Condition)
}

func TestQuoteSubmit_Error(t *testing.T) {
	f := newFixture(t)
	f.sw.Fail[testutils.CallPostQuotes] = domain.ErrorInformation{ErrorCode: "3100", ErrorDescription: "bad"}

	req := domain.QuoteRequest{QuoteID: "q-1", Amount: domain.Money{Currency: "USD", Amount: "10"}}
	res, err := NewQuoteSubmit(f.env).Run(context.Background(), QuoteArgs{Request: req})
	var pErr *domain.ProtocolError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, stateErrored, res.CurrentState)
	assert.Equal(t, "3100", res.LastError.MojaloopError.ErrorInformation.ErrorCode)
}

func TestTransferSubmitAndFetch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	quote, err := NewQuoteSubmit(f.env).Run(ctx, QuoteArgs{Request: domain.QuoteRequest{
		QuoteID: "q-1",
		Amount:  domain.Money{Currency: "USD", Amount: "10"},
	}})
	require.NoError(t, err)

	prepare := domain.TransferPrepare{
		TransferID: "t-1",
		Amount:     quote.Response.TransferAmount,
		IlpPacket:  quote.Response.IlpPacket,
		Condition:  quote.Response.Condition,
	}
	sub, err := NewTransferSubmit(f.env).Run(ctx, TransferArgs{Request: prepare, DestFspID: "PEER1"})
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStateCommitted, sub.Response.TransferState)

	fetched, err := NewTransferFetch(f.env).Run(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, sub.Response, fetched.Response)
}
