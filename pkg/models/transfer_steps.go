package models

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/switchlink/pkg/correlation"
	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/aretw0/switchlink/pkg/fsm"
)

// Keys of TransferState.Requests.
const (
	stepGetParties    = "getParties"
	stepServicesFxp   = "servicesFxp"
	stepFxQuote       = "fxQuote"
	stepQuote         = "quote"
	stepFxTransfer    = "fxTransfer"
	stepTransfer      = "transfer"
	stepTransferPatch = "transferPatch"
)

func (m *TransferModel) resolvePayee(ctx context.Context, _ fsm.Lifecycle, d domain.TransferState, _ ...any) (domain.TransferState, error) {
	switch {
	case d.SkipPartyLookup:
		m.t.logger.Debug("skipping party lookup", "fsp_id", d.To.FspID)
	case m.env.cfg.MultiplePartiesResponse:
		if err := m.collectPayees(ctx, &d); err != nil {
			return d, err
		}
	default:
		res, err := m.parties.Run(ctx, PartyArgs{
			IDType:     d.To.IDType,
			IDValue:    d.To.IDValue,
			IDSubValue: d.To.IDSubValue,
			FspID:      d.To.FspID,
		})
		if err != nil {
			return d, err
		}
		d.Requests = recordAck(d.Requests, stepGetParties, res.Ack)
		d.To = d.To.WithResolved(res.Response)
	}

	conv := decideConversion(m.env.cfg.SupportedCurrencies, d.To.SupportedCurrencies, d.Currency, d.AmountType)
	d.NeedFx = conv.needed
	d.FxSourceCurrency = conv.source
	d.FxTargetCurrency = conv.target
	if conv.needed {
		m.t.logger.Info("currency conversion required", "source", conv.source, "target", conv.target)
	}
	return d, nil
}

// collectPayees broadcasts one lookup and keeps every distinct responder seen
// during the window, then resolves the payee to the first valid candidate.
func (m *TransferModel) collectPayees(ctx context.Context, d *domain.TransferState) error {
	to := d.To
	var ack *domain.Ack
	msgs, collectErr := m.env.deferred.Collect(ctx, correlation.Job{
		Step:    "partiesLookup",
		Channel: domain.PartyChannel(to.IDType, to.IDValue, to.IDSubValue),
		Timeout: m.env.cfg.MultiplePartiesResponseWindow,
		Expect:  partyExpect,
		Send: func(ctx context.Context) error {
			a, err := m.env.client.GetParties(ctx, to.IDType, to.IDValue, to.IDSubValue, to.FspID)
			ack = a
			return err
		},
	})
	d.Requests = recordAck(d.Requests, stepGetParties, ack)

	members, err := m.env.cache.Members(ctx, domain.PartyRespondersKey(to.IDType, to.IDValue, to.IDSubValue))
	if err != nil {
		m.t.logger.Warn("failed to read party responders", "error", err)
	}
	if collectErr != nil && len(members) == 0 {
		return collectErr
	}

	seen := make(map[string]bool)
	var candidates []domain.Party
	add := func(p domain.Party) {
		key := p.PartyIDInfo.FspID + "|" + p.PartyIDInfo.PartyIdentifier
		if seen[key] {
			return
		}
		seen[key] = true
		candidates = append(candidates, p)
	}
	for _, msg := range msgs {
		var body domain.PartiesResponse
		if err := msg.Decode(&body); err != nil {
			m.t.logger.Debug("ignoring undecodable party response", "error", err)
			continue
		}
		add(body.Party)
	}
	for _, raw := range members {
		var body domain.PartiesResponse
		if err := json.Unmarshal([]byte(raw), &body); err != nil {
			m.t.logger.Debug("ignoring undecodable party responder", "error", err)
			continue
		}
		add(body.Party)
	}
	d.GetPartiesResponses = candidates

	for _, p := range candidates {
		if err := domain.ValidateResolvedParty(to, p); err != nil {
			m.t.logger.Debug("rejecting party candidate", "fsp_id", p.PartyIDInfo.FspID, "error", err)
			continue
		}
		d.To = to.WithResolved(p)
		return nil
	}
	return &domain.ValidationError{Field: "party", Reason: fmt.Sprintf("none of %d responders matched the requested party", len(candidates))}
}

func (m *TransferModel) requestServicesFxp(ctx context.Context, _ fsm.Lifecycle, d domain.TransferState, _ ...any) (domain.TransferState, error) {
	msg, ack, err := m.env.call(ctx, TransitionRequestServicesFx,
		domain.FxpServicesChannel(d.FxSourceCurrency, d.FxTargetCurrency),
		correlation.Expect{Success: domain.MessageFxpServicesResponse, Failure: domain.MessageFxpServicesResponseError},
		func(ctx context.Context) (*domain.Ack, error) {
			return m.env.client.GetServicesFXP(ctx, d.FxSourceCurrency, d.FxTargetCurrency)
		})
	d.Requests = recordAck(d.Requests, stepServicesFxp, ack)
	if err != nil {
		return d, err
	}

	var body domain.FxpServicesResponse
	if err := msg.Decode(&body); err != nil {
		return d, err
	}
	if len(body.Providers) == 0 {
		return d, &domain.ValidationError{Field: "providers", Reason: "no FX provider converts " + d.FxSourceCurrency + " to " + d.FxTargetCurrency}
	}
	d.FxProviders = body.Providers
	d.FxProvider = body.Providers[0]
	return d, nil
}

func (m *TransferModel) requestFxQuote(ctx context.Context, _ fsm.Lifecycle, d domain.TransferState, _ ...any) (domain.TransferState, error) {
	terms := domain.ConversionTerms{
		ConversionID:          m.env.newID(),
		DeterminingTransferID: d.TransferID,
		InitiatingFsp:         m.env.cfg.DFSPID,
		CounterPartyFsp:       d.FxProvider,
		AmountType:            d.AmountType,
		SourceAmount:          domain.Money{Currency: d.FxSourceCurrency},
		TargetAmount:          domain.Money{Currency: d.FxTargetCurrency},
		Expiration:            m.env.expiration(),
	}
	if d.AmountType == domain.AmountTypeReceive {
		if d.QuoteResponse == nil {
			return d, &domain.ValidationError{Field: "quoteResponse", Reason: "is required to price a RECEIVE conversion"}
		}
		terms.TargetAmount.Amount = d.QuoteResponse.TransferAmount.Amount
	} else {
		terms.SourceAmount.Amount = d.Amount
	}

	req := domain.FxQuoteRequest{ConversionRequestID: m.env.newID(), ConversionTerms: terms}
	d.ConversionRequestID = req.ConversionRequestID
	d.FxQuoteRequest = &req

	msg, ack, err := m.env.call(ctx, TransitionRequestFxQuote,
		domain.FxQuoteChannel(req.ConversionRequestID),
		correlation.Expect{Success: domain.MessageFxQuoteResponse, Failure: domain.MessageFxQuoteResponseError},
		func(ctx context.Context) (*domain.Ack, error) {
			return m.env.client.PostFxQuotes(ctx, req, d.FxProvider)
		})
	d.Requests = recordAck(d.Requests, stepFxQuote, ack)
	if err != nil {
		return d, err
	}

	var resp domain.FxQuoteResponse
	if err := msg.Decode(&resp); err != nil {
		return d, err
	}
	if m.env.cfg.RejectExpiredFxQuoteResponses && m.env.expired(resp.ConversionTerms.Expiration) {
		return d, &domain.ValidationError{Field: "conversionTerms.expiration", Reason: "fx quote response expired at " + resp.ConversionTerms.Expiration}
	}
	d.FxQuoteResponse = &resp
	d.FxQuoteResponseSource = msg.Header(domain.HeaderSource)
	return d, nil
}

func (m *TransferModel) requestQuote(ctx context.Context, _ fsm.Lifecycle, d domain.TransferState, _ ...any) (domain.TransferState, error) {
	amount := domain.Money{Currency: d.Currency, Amount: d.Amount}
	if d.NeedFx && d.AmountType == domain.AmountTypeSend && d.FxQuoteResponse != nil {
		amount = d.FxQuoteResponse.ConversionTerms.TargetAmount
	}

	payer := d.From
	if payer.FspID == "" {
		payer.FspID = m.env.cfg.DFSPID
	}
	if len(payer.SupportedCurrencies) == 0 {
		payer.SupportedCurrencies = m.env.cfg.SupportedCurrencies
	}

	req := domain.QuoteRequest{
		QuoteID:       m.env.newID(),
		TransactionID: d.TransferID,
		Payee:         d.To.ToProtocol(),
		Payer:         payer.ToProtocol(),
		AmountType:    d.AmountType,
		Amount:        amount,
		TransactionType: domain.TransactionType{
			Scenario:      d.TransactionType,
			SubScenario:   d.SubScenario,
			Initiator:     "PAYER",
			InitiatorType: "CONSUMER",
		},
		Note:       d.Note,
		Expiration: m.env.expiration(),
	}
	req.Payer.SupportedCurrencies = payer.SupportedCurrencies
	d.QuoteID = req.QuoteID
	d.QuoteRequest = &req

	msg, ack, err := m.env.call(ctx, TransitionRequestQuote,
		domain.QuoteChannel(req.QuoteID),
		correlation.Expect{Success: domain.MessageQuoteResponse, Failure: domain.MessageQuoteResponseError},
		func(ctx context.Context) (*domain.Ack, error) {
			return m.env.client.PostQuotes(ctx, req, d.To.FspID)
		})
	d.Requests = recordAck(d.Requests, stepQuote, ack)
	if err != nil {
		return d, err
	}

	var resp domain.QuoteResponse
	if err := msg.Decode(&resp); err != nil {
		return d, err
	}
	if m.env.cfg.RejectExpiredQuoteResponses && m.env.expired(resp.Expiration) {
		return d, &domain.ValidationError{Field: "expiration", Reason: "quote response expired at " + resp.Expiration}
	}
	d.QuoteResponse = &resp
	d.QuoteResponseSource = msg.Header(domain.HeaderSource)
	return d, nil
}

func (m *TransferModel) executeFxTransfer(ctx context.Context, _ fsm.Lifecycle, d domain.TransferState, _ ...any) (domain.TransferState, error) {
	if d.FxQuoteResponse == nil {
		return d, &domain.ValidationError{Field: "fxQuoteResponse", Reason: "is required to execute a conversion"}
	}
	terms := d.FxQuoteResponse.ConversionTerms
	req := domain.FxTransferPrepare{
		CommitRequestID:       m.env.newID(),
		DeterminingTransferID: d.TransferID,
		InitiatingFsp:         m.env.cfg.DFSPID,
		CounterPartyFsp:       d.FxProvider,
		AmountType:            terms.AmountType,
		SourceAmount:          terms.SourceAmount,
		TargetAmount:          terms.TargetAmount,
		Condition:             d.FxQuoteResponse.Condition,
		Expiration:            m.env.expiration(),
	}
	if d.FxQuoteResponseSource != "" {
		req.CounterPartyFsp = d.FxQuoteResponseSource
	}
	d.FxTransferRequest = &req

	msg, ack, err := m.env.call(ctx, TransitionExecuteFxTransfer,
		domain.FxTransferChannel(req.CommitRequestID),
		correlation.Expect{Success: domain.MessageFxTransferFulfil, Failure: domain.MessageFxTransferError},
		func(ctx context.Context) (*domain.Ack, error) {
			return m.env.client.PostFxTransfers(ctx, req, req.CounterPartyFsp)
		})
	d.Requests = recordAck(d.Requests, stepFxTransfer, ack)
	if err != nil {
		return d, err
	}

	var resp domain.FxTransferResponse
	if err := msg.Decode(&resp); err != nil {
		return d, err
	}
	d.FxTransferResponse = &resp
	switch resp.ConversionState {
	case domain.TransferStateCommitted, domain.TransferStateReserved:
	default:
		return d, &domain.ProtocolError{Message: "fx transfer ended in state " + resp.ConversionState, StatusCode: 500}
	}
	if err := m.env.checkFulfilment(resp.Fulfilment, req.Condition); err != nil {
		return d, err
	}
	return d, nil
}

func (m *TransferModel) executeTransfer(ctx context.Context, _ fsm.Lifecycle, d domain.TransferState, _ ...any) (domain.TransferState, error) {
	if d.QuoteResponse == nil {
		return d, &domain.ValidationError{Field: "quoteResponse", Reason: "is required to execute a transfer"}
	}
	dest := d.To.FspID
	if m.env.cfg.UseQuoteSourceAsTransferDestination && d.QuoteResponseSource != "" {
		dest = d.QuoteResponseSource
	}

	// Amount and proof come from the quote response, never the caller request.
	prepare := domain.TransferPrepare{
		TransferID: d.TransferID,
		PayeeFsp:   dest,
		PayerFsp:   m.env.cfg.DFSPID,
		Amount:     d.QuoteResponse.TransferAmount,
		IlpPacket:  d.QuoteResponse.IlpPacket,
		Condition:  d.QuoteResponse.Condition,
		Expiration: m.env.expiration(),
	}
	d.Prepare = &prepare

	msg, ack, err := m.env.call(ctx, TransitionExecuteTransfer,
		domain.TransferChannel(prepare.TransferID),
		transferExpect,
		func(ctx context.Context) (*domain.Ack, error) {
			return m.env.client.PostTransfers(ctx, prepare, dest)
		})
	d.Requests = recordAck(d.Requests, stepTransfer, ack)
	if err != nil {
		return d, err
	}

	var fulfil domain.TransferFulfil
	if err := msg.Decode(&fulfil); err != nil {
		return d, err
	}
	d.Fulfil = &fulfil
	d.TransferState = fulfil.TransferState

	switch fulfil.TransferState {
	case domain.TransferStateCommitted:
	case domain.TransferStateReserved:
		if m.env.cfg.SendFinalNotificationIfRequested {
			patch := domain.TransferPatch{CompletedTimestamp: m.env.timestamp(), TransferState: domain.TransferStateCommitted}
			ack, err := m.env.client.PatchTransfers(ctx, prepare.TransferID, patch, dest)
			if err != nil {
				m.t.logger.Warn("failed to send final transfer notification", "error", err)
			}
			d.Requests = recordAck(d.Requests, stepTransferPatch, ack)
		}
	default:
		return d, &domain.ProtocolError{Message: "transfer ended in state " + fulfil.TransferState, StatusCode: 500}
	}

	if err := m.env.checkFulfilment(fulfil.Fulfilment, prepare.Condition); err != nil {
		return d, err
	}
	return d, nil
}
