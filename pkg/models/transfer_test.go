package models

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/switchlink/internal/testutils"
	"github.com/aretw0/switchlink/pkg/adapters/memory"
	"github.com/aretw0/switchlink/pkg/correlation"
	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	cache *memory.Cache
	sw    *testutils.Switch
	env   *Env
}

func autoAccept(cfg *Config) {
	cfg.AutoAcceptParty = true
	cfg.AutoAcceptQuotes = true
	cfg.AutoAcceptConversion = true
}

func newFixture(t *testing.T, tweaks ...func(*Config)) *fixture {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DFSPID = "payerfsp"
	cfg.RequestTimeout = time.Second
	cfg.ValidateFulfilment = true
	for _, tweak := range tweaks {
		tweak(&cfg)
	}
	cache := memory.NewCache()
	sw := testutils.NewSwitch(cache)
	sw.AddParty(testutils.Payee("MSISDN", "123", "PEER1"))
	return &fixture{cache: cache, sw: sw, env: NewEnv(cache, sw, cfg)}
}

func transferRequest() domain.TransferRequest {
	return domain.TransferRequest{
		HomeTransactionID: "home-1",
		From:              domain.TransferParty{IDType: "MSISDN", IDValue: "987"},
		To:                domain.TransferParty{IDType: "MSISDN", IDValue: "123"},
		AmountType:        domain.AmountTypeSend,
		Currency:          "USD",
		Amount:            "100",
	}
}

func TestTransfer_HappyPath(t *testing.T) {
	f := newFixture(t, autoAccept)
	ctx := context.Background()

	m, err := NewTransfer(f.env, transferRequest())
	require.NoError(t, err)
	require.NotEmpty(t, m.ID())

	resp, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, resp.CurrentState)
	assert.Equal(t, "PEER1", resp.To.FspID)
	assert.Equal(t, "Test", resp.To.FirstName)
	assert.Equal(t, domain.Money{Currency: "USD", Amount: "100"}, resp.QuoteResponse.TransferAmount)
	assert.Equal(t, domain.TransferStateCommitted, resp.Fulfil.TransferState)
	assert.False(t, resp.NeedFx)
	assert.Equal(t, []string{testutils.CallGetParties, testutils.CallPostQuotes, testutils.CallPostTransfers}, f.sw.CallNames())
	assert.Contains(t, resp.Requests, stepQuote)

	prepare, ok := f.sw.Last(testutils.CallPostTransfers)
	require.True(t, ok)
	assert.Equal(t, "PEER1", prepare.Dest)
	assert.Equal(t, resp.QuoteResponse.Condition, prepare.Body.(domain.TransferPrepare).Condition)

	rec, err := TransferStore(f.env).Load(ctx, m.ID())
	require.NoError(t, err)
	assert.Equal(t, stateSucceeded, rec.CurrentState)
	assert.Equal(t, 3, rec.Version)

	ui, err := TransferStore(f.env).LoadUI(ctx, m.ID())
	require.NoError(t, err)
	assert.Nil(t, ui["requests"])
}

func TestTransfer_ManualAcceptance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := NewTransfer(f.env, transferRequest())
	require.NoError(t, err)
	resp, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaitingForPartyAcceptance, resp.CurrentState)

	m, err = LoadTransfer(ctx, f.env, m.ID())
	require.NoError(t, err)
	require.Equal(t, StatePayeeResolved, m.State())
	require.NoError(t, m.Merge(map[string]any{"acceptParty": true}))
	resp, err = m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaitingForQuoteAcceptance, resp.CurrentState)

	m, err = LoadTransfer(ctx, f.env, m.ID())
	require.NoError(t, err)
	require.NoError(t, m.Merge(map[string]any{"acceptQuote": "true"}))
	resp, err = m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, resp.CurrentState)

	// Resuming never repeats a completed step.
	assert.Equal(t, []string{testutils.CallGetParties, testutils.CallPostQuotes, testutils.CallPostTransfers}, f.sw.CallNames())
}

func TestTransfer_AcceptShorthand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := NewTransfer(f.env, transferRequest())
	require.NoError(t, err)
	_, err = m.Run(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Merge(map[string]any{"accept": true}))
	assert.True(t, *m.Data().AcceptParty)
	assert.Nil(t, m.Data().AcceptQuote)

	resp, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaitingForQuoteAcceptance, resp.CurrentState)

	// A type-specific field wins over the shorthand.
	require.NoError(t, m.Merge(map[string]any{"accept": true, "acceptQuote": false}))
	resp, err = m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAborted, resp.CurrentState)
	assert.Equal(t, "Quote rejected by payer", resp.AbortedReason)
}

func TestTransfer_MergeRejectsUnknownFields(t *testing.T) {
	f := newFixture(t)
	m, err := NewTransfer(f.env, transferRequest())
	require.NoError(t, err)

	err = m.Merge(map[string]any{"amount": "5"})
	var vErr *domain.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestTransfer_PayeeRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := transferRequest()
	reject := false
	req.AcceptParty = &reject
	m, err := NewTransfer(f.env, req)
	require.NoError(t, err)

	resp, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAborted, resp.CurrentState)
	assert.Equal(t, "Payee rejected by payer", resp.AbortedReason)
	assert.Equal(t, []string{testutils.CallGetParties}, f.sw.CallNames())
}

func TestTransfer_QuoteErrorCarriesProtocolError(t *testing.T) {
	f := newFixture(t, autoAccept)
	f.sw.Fail[testutils.CallPostQuotes] = domain.ErrorInformation{ErrorCode: "3100", ErrorDescription: "Generic validation error"}
	ctx := context.Background()

	m, err := NewTransfer(f.env, transferRequest())
	require.NoError(t, err)
	resp, err := m.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, domain.StatusErrorOccurred, resp.CurrentState)
	require.NotNil(t, resp.LastError)
	assert.Equal(t, "3100", resp.LastError.MojaloopError.ErrorInformation.ErrorCode)

	var txErr *TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, m.ID(), txErr.ID)
	require.NotNil(t, txErr.LastError)
	assert.Equal(t, 500, txErr.LastError.StatusCode)
	assert.Equal(t, "3100", txErr.LastError.MojaloopError.ErrorInformation.ErrorCode)

	lastError, ok := txErr.Snapshot["lastError"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, lastError, "mojaloopError")

	var pErr *domain.ProtocolError
	assert.ErrorAs(t, err, &pErr)

	rec, err := TransferStore(f.env).Load(ctx, m.ID())
	require.NoError(t, err)
	assert.Equal(t, stateErrored, rec.CurrentState)
	assert.Equal(t, "3100", rec.LastError.MojaloopError.ErrorInformation.ErrorCode)
}

func TestTransfer_PartyNotFound(t *testing.T) {
	f := newFixture(t, autoAccept)
	req := transferRequest()
	req.To.IDValue = "404"

	m, err := NewTransfer(f.env, req)
	require.NoError(t, err)
	_, err = m.Run(context.Background())

	var pErr *domain.ProtocolError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "3204", pErr.MojaloopError.ErrorInformation.ErrorCode)
}

func TestTransfer_Timeout(t *testing.T) {
	f := newFixture(t, autoAccept, func(cfg *Config) { cfg.RequestTimeout = 50 * time.Millisecond })
	f.sw.Silent[testutils.CallPostQuotes] = true

	m, err := NewTransfer(f.env, transferRequest())
	require.NoError(t, err)
	resp, err := m.Run(context.Background())
	require.Error(t, err)
	assert.True(t, correlation.IsTimeout(err))
	assert.Equal(t, 504, resp.LastError.StatusCode)
	assert.Empty(t, resp.QuoteID)

	quote, ok := f.sw.Last(testutils.CallPostQuotes)
	require.True(t, ok)
	assert.Zero(t, f.cache.Subscribers(domain.QuoteChannel(quote.Body.(domain.QuoteRequest).QuoteID)))
}

func TestTransfer_SendErrorIsRecorded(t *testing.T) {
	f := newFixture(t, autoAccept)
	f.sw.Refuse[testutils.CallPostTransfers] = &domain.ProtocolError{Message: "switch refused", StatusCode: 503}

	m, err := NewTransfer(f.env, transferRequest())
	require.NoError(t, err)
	resp, err := m.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 503, resp.LastError.StatusCode)
}

func TestTransfer_FailIsIdempotent(t *testing.T) {
	f := newFixture(t, autoAccept)
	f.sw.Fail[testutils.CallPostQuotes] = domain.ErrorInformation{ErrorCode: "3100", ErrorDescription: "bad"}
	ctx := context.Background()

	m, err := NewTransfer(f.env, transferRequest())
	require.NoError(t, err)
	_, err = m.Run(ctx)
	require.Error(t, err)
	version := m.Data().Version

	err = m.Fail(ctx, errors.New("again"))
	var txErr *TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, stateErrored, m.State())
	assert.Equal(t, version, m.Data().Version)
	assert.Equal(t, "3100", m.Data().LastError.MojaloopError.ErrorInformation.ErrorCode)

	// An already wrapped error is passed through unchanged.
	assert.Same(t, txErr, m.Fail(ctx, txErr))
}

func TestTransfer_FailWhileWaiting(t *testing.T) {
	f := newFixture(t, autoAccept, func(cfg *Config) { cfg.RequestTimeout = 300 * time.Millisecond })
	f.sw.Silent[testutils.CallPostQuotes] = true
	ctx := context.Background()

	m, err := NewTransfer(f.env, transferRequest())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := m.Run(ctx)
		done <- err
	}()

	assert.Eventually(t, func() bool {
		_, ok := f.sw.Last(testutils.CallPostQuotes)
		return ok
	}, time.Second, 5*time.Millisecond)

	require.Error(t, m.Fail(ctx, errors.New("cancelled by operator")))
	assert.Equal(t, stateErrored, m.State())

	err = <-done
	require.Error(t, err)
	assert.Equal(t, stateErrored, m.State())
	assert.Equal(t, "cancelled by operator", m.Data().LastError.Message)
	assert.Nil(t, m.Data().QuoteResponse)
}

func TestTransfer_SkipPartyLookup(t *testing.T) {
	f := newFixture(t, autoAccept)
	req := transferRequest()
	req.SkipPartyLookup = true
	req.To.FspID = "PEER9"

	m, err := NewTransfer(f.env, req)
	require.NoError(t, err)
	resp, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, resp.CurrentState)
	assert.Equal(t, []string{testutils.CallPostQuotes, testutils.CallPostTransfers}, f.sw.CallNames())

	quote, _ := f.sw.Last(testutils.CallPostQuotes)
	assert.Equal(t, "PEER9", quote.Dest)
}

func TestTransfer_MultiplePartiesResponse(t *testing.T) {
	f := newFixture(t, autoAccept, func(cfg *Config) {
		cfg.MultiplePartiesResponse = true
		cfg.MultiplePartiesResponseWindow = 50 * time.Millisecond
	})
	f.sw.Parties["123"] = nil
	f.sw.AddParty(testutils.Payee("MSISDN", "123", ""))
	f.sw.AddParty(testutils.Payee("MSISDN", "123", "PEER2"))

	m, err := NewTransfer(f.env, transferRequest())
	require.NoError(t, err)
	resp, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, resp.GetPartiesResponses, 2)
	assert.Equal(t, "PEER2", resp.To.FspID)
}

func TestTransfer_FulfilmentMismatch(t *testing.T) {
	f := newFixture(t, autoAccept)
	f.sw.BadFulfilment = true

	m, err := NewTransfer(f.env, transferRequest())
	require.NoError(t, err)
	_, err = m.Run(context.Background())

	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "fulfilment", vErr.Field)
}

func TestTransfer_ReservedSendsFinalNotification(t *testing.T) {
	f := newFixture(t, autoAccept, func(cfg *Config) { cfg.SendFinalNotificationIfRequested = true })
	f.sw.TransferState = domain.TransferStateReserved

	m, err := NewTransfer(f.env, transferRequest())
	require.NoError(t, err)
	resp, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, resp.CurrentState)

	patch, ok := f.sw.Last(testutils.CallPatchTransfers)
	require.True(t, ok)
	assert.Equal(t, domain.TransferStateCommitted, patch.Body.(domain.TransferPatch).TransferState)
}

func TestTransfer_AbortedTransferState(t *testing.T) {
	f := newFixture(t, autoAccept)
	f.sw.TransferState = domain.TransferStateAborted

	m, err := NewTransfer(f.env, transferRequest())
	require.NoError(t, err)
	_, err = m.Run(context.Background())

	var pErr *domain.ProtocolError
	assert.ErrorAs(t, err, &pErr)
}

func TestTransfer_QuoteSourceAsDestination(t *testing.T) {
	f := newFixture(t, autoAccept, func(cfg *Config) { cfg.UseQuoteSourceAsTransferDestination = true })
	f.sw.Source = "PEER2"

	m, err := NewTransfer(f.env, transferRequest())
	require.NoError(t, err)
	_, err = m.Run(context.Background())
	require.NoError(t, err)

	prepare, _ := f.sw.Last(testutils.CallPostTransfers)
	assert.Equal(t, "PEER2", prepare.Dest)
}

func TestTransfer_RejectsExpiredQuote(t *testing.T) {
	f := newFixture(t, autoAccept, func(cfg *Config) { cfg.RejectExpiredQuoteResponses = true })
	f.sw.QuoteExpiration = "2000-01-01T00:00:00.000Z"

	m, err := NewTransfer(f.env, transferRequest())
	require.NoError(t, err)
	resp, err := m.Run(context.Background())

	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, 400, resp.LastError.StatusCode)
	assert.Nil(t, resp.QuoteResponse)
}

func TestTransfer_FxSend(t *testing.T) {
	f := newFixture(t, autoAccept, func(cfg *Config) { cfg.SupportedCurrencies = []string{"USD"} })
	f.sw.Parties["123"] = []domain.Party{testutils.Payee("MSISDN", "123", "PEER1", "EUR")}
	f.sw.FxProviders = []string{"FXP1", "FXP2"}
	f.sw.FxRate = decimal.RequireFromString("0.9")

	m, err := NewTransfer(f.env, transferRequest())
	require.NoError(t, err)
	resp, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, resp.CurrentState)
	assert.True(t, resp.NeedFx)
	assert.Equal(t, "USD", resp.FxSourceCurrency)
	assert.Equal(t, "EUR", resp.FxTargetCurrency)
	assert.Equal(t, "FXP1", resp.FxProvider)
	assert.Equal(t, []string{
		testutils.CallGetParties,
		testutils.CallGetServicesFXP,
		testutils.CallPostFxQuotes,
		testutils.CallPostQuotes,
		testutils.CallPostFxTransfers,
		testutils.CallPostTransfers,
	}, f.sw.CallNames())

	assert.Equal(t, domain.Money{Currency: "EUR", Amount: "90"}, resp.QuoteRequest.Amount)
	fxQuote, _ := f.sw.Last(testutils.CallPostFxQuotes)
	assert.Equal(t, "FXP1", fxQuote.Dest)
	assert.Equal(t, domain.TransferStateCommitted, resp.FxTransferResponse.ConversionState)
}

func TestTransfer_FxReceive(t *testing.T) {
	f := newFixture(t, autoAccept, func(cfg *Config) { cfg.SupportedCurrencies = []string{"USD"} })
	f.sw.Parties["123"] = []domain.Party{testutils.Payee("MSISDN", "123", "PEER1", "EUR")}
	f.sw.FxProviders = []string{"FXP1"}
	f.sw.FxRate = decimal.RequireFromString("0.5")

	req := transferRequest()
	req.AmountType = domain.AmountTypeReceive
	req.Currency = "EUR"
	m, err := NewTransfer(f.env, req)
	require.NoError(t, err)
	resp, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, resp.CurrentState)
	assert.Equal(t, []string{
		testutils.CallGetParties,
		testutils.CallGetServicesFXP,
		testutils.CallPostQuotes,
		testutils.CallPostFxQuotes,
		testutils.CallPostFxTransfers,
		testutils.CallPostTransfers,
	}, f.sw.CallNames())
	assert.Equal(t, "200", resp.FxQuoteResponse.ConversionTerms.SourceAmount.Amount)
}

func TestTransfer_FxHaltsForConversionAcceptance(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.AutoAcceptParty = true
		cfg.SupportedCurrencies = []string{"USD"}
	})
	f.sw.Parties["123"] = []domain.Party{testutils.Payee("MSISDN", "123", "PEER1", "EUR")}
	f.sw.FxProviders = []string{"FXP1"}

	m, err := NewTransfer(f.env, transferRequest())
	require.NoError(t, err)
	resp, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaitingForConversionAcceptance, resp.CurrentState)

	require.NoError(t, m.Merge(map[string]any{"acceptConversion": false}))
	resp, err = m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAborted, resp.CurrentState)
	assert.Equal(t, "Conversion rejected by payer", resp.AbortedReason)
}

func TestTransfer_NoFxProvider(t *testing.T) {
	f := newFixture(t, autoAccept, func(cfg *Config) { cfg.SupportedCurrencies = []string{"USD"} })
	f.sw.Parties["123"] = []domain.Party{testutils.Payee("MSISDN", "123", "PEER1", "EUR")}

	m, err := NewTransfer(f.env, transferRequest())
	require.NoError(t, err)
	_, err = m.Run(context.Background())

	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "providers", vErr.Field)
}

func TestLoadTransfer_Missing(t *testing.T) {
	f := newFixture(t)
	_, err := LoadTransfer(context.Background(), f.env, "nope")
	assert.ErrorIs(t, err, domain.ErrNoCachedData)
}

func TestNewTransfer_Validates(t *testing.T) {
	f := newFixture(t)
	req := transferRequest()
	req.Amount = "-1"
	_, err := NewTransfer(f.env, req)
	var vErr *domain.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestDecideConversion(t *testing.T) {
	tests := []struct {
		name       string
		payer      []string
		payee      []string
		currency   string
		amountType domain.AmountType
		want       conversion
	}{
		{"send direct", []string{"USD"}, []string{"USD", "EUR"}, "USD", domain.AmountTypeSend, conversion{}},
		{"send fx", []string{"USD"}, []string{"EUR"}, "USD", domain.AmountTypeSend, conversion{needed: true, source: "USD", target: "EUR"}},
		{"receive direct", []string{"USD", "EUR"}, []string{"EUR"}, "EUR", domain.AmountTypeReceive, conversion{}},
		{"receive fx", []string{"USD"}, []string{"EUR"}, "EUR", domain.AmountTypeReceive, conversion{needed: true, source: "USD", target: "EUR"}},
		{"unknown payee", []string{"USD"}, nil, "USD", domain.AmountTypeSend, conversion{}},
		{"unknown payer", nil, []string{"EUR"}, "USD", domain.AmountTypeSend, conversion{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decideConversion(tt.payer, tt.payee, tt.currency, tt.amountType))
		})
	}
}
