package testutils

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/aretw0/switchlink/pkg/ilp"
	"github.com/aretw0/switchlink/pkg/ports"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Call families recorded by Switch and accepted by its Fail, Silent and Refuse maps.
const (
	CallGetParties              = "getParties"
	CallGetServicesFXP          = "getServicesFxp"
	CallPostQuotes              = "postQuotes"
	CallPostFxQuotes            = "postFxQuotes"
	CallPostTransfers           = "postTransfers"
	CallPostFxTransfers         = "postFxTransfers"
	CallPatchTransfers          = "patchTransfers"
	CallGetTransfers            = "getTransfers"
	CallPostBulkQuotes          = "postBulkQuotes"
	CallPostBulkTransfers       = "postBulkTransfers"
	CallPostTransactionRequests = "postTransactionRequests"
)

var _ ports.RequestClient = (*Switch)(nil)

// Call is one outbound request seen by the Switch.
type Call struct {
	Name string
	Dest string
	Body any
}

// Switch simulates the payment switch and its counterparties. It implements
// ports.RequestClient and answers every request by publishing the matching
// notification on the cache, the way the callback server would.
type Switch struct {
	cache ports.Cache

	// Parties answers lookups, keyed by identifier value.
	// Several entries model several responders.
	Parties map[string][]domain.Party

	FxProviders []string

	// FxRate converts one unit of source currency into target currency.
	FxRate decimal.Decimal

	TransferState           string
	ConversionState         string
	TransactionRequestState string

	// QuoteExpiration overrides the expiration of quote and fx quote responses.
	QuoteExpiration string

	// Source is the fspiop-source header of every notification.
	Source string

	// Fail answers the named call family with an error notification.
	Fail map[string]domain.ErrorInformation

	// Silent call families are accepted but never answered.
	Silent map[string]bool

	// Refuse call families fail synchronously with the given error.
	Refuse map[string]error

	// BadFulfilment answers transfers with a fulfilment that does not match.
	BadFulfilment bool

	mu          sync.Mutex
	calls       []Call
	fulfilments map[string]string
	transfers   map[string]domain.TransferFulfil
}

// NewSwitch creates a simulator publishing on cache.
func NewSwitch(cache ports.Cache) *Switch {
	return &Switch{
		cache:                   cache,
		Parties:                 make(map[string][]domain.Party),
		FxRate:                  decimal.NewFromInt(1),
		TransferState:           domain.TransferStateCommitted,
		ConversionState:         domain.TransferStateCommitted,
		TransactionRequestState: domain.TransactionRequestAccepted,
		Source:                  "payeefsp",
		Fail:                    make(map[string]domain.ErrorInformation),
		Silent:                  make(map[string]bool),
		Refuse:                  make(map[string]error),
		fulfilments:             make(map[string]string),
		transfers:               make(map[string]domain.TransferFulfil),
	}
}

// AddParty registers a party answering lookups of its identifier.
func (s *Switch) AddParty(p domain.Party) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := p.PartyIDInfo.PartyIdentifier
	s.Parties[id] = append(s.Parties[id], p)
}

// Calls returns every request seen so far.
func (s *Switch) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallNames returns the call families seen so far, in order.
func (s *Switch) CallNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.calls))
	for i, c := range s.calls {
		names[i] = c.Name
	}
	return names
}

// Last returns the most recent call of name.
func (s *Switch) Last(name string) (Call, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.calls) - 1; i >= 0; i-- {
		if s.calls[i].Name == name {
			return s.calls[i], true
		}
	}
	return Call{}, false
}

// record logs the call and reports whether it should be answered.
func (s *Switch) record(name, dest string, body any) (*domain.Ack, bool, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Name: name, Dest: dest, Body: body})
	refuse := s.Refuse[name]
	silent := s.Silent[name]
	s.mu.Unlock()

	if refuse != nil {
		return nil, false, refuse
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, false, err
	}
	ack := &domain.Ack{
		Method:     "POST",
		URL:        "/" + name,
		Headers:    map[string]string{domain.HeaderDestination: dest},
		Body:       raw,
		StatusCode: 202,
	}
	return ack, !silent, nil
}

// answer publishes the error notification when name is configured to fail,
// otherwise the success notification built by data.
func (s *Switch) answer(ctx context.Context, name, channel, success, failure string, data func() (any, error)) error {
	s.mu.Lock()
	info, fail := s.Fail[name]
	s.mu.Unlock()
	if fail {
		return s.publish(ctx, channel, failure, domain.ErrorInformationObject{ErrorInformation: info})
	}
	body, err := data()
	if err != nil {
		return err
	}
	return s.publish(ctx, channel, success, body)
}

func (s *Switch) publish(ctx context.Context, channel, typ string, body any) error {
	msg, err := domain.NewMessage(typ, body, map[string]string{domain.HeaderSource: s.Source})
	if err != nil {
		return err
	}
	payload, err := msg.Encode()
	if err != nil {
		return err
	}
	return s.cache.Publish(ctx, channel, payload)
}

// condition returns a fresh condition and remembers its fulfilment.
func (s *Switch) condition() (string, error) {
	fulfilment, condition, err := ilp.Generate()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.fulfilments[condition] = fulfilment
	s.mu.Unlock()
	return condition, nil
}

func (s *Switch) fulfilment(condition string) string {
	s.mu.Lock()
	f, ok := s.fulfilments[condition]
	bad := s.BadFulfilment
	s.mu.Unlock()
	if ok && !bad {
		return f
	}
	other, _, _ := ilp.Generate()
	return other
}

func (s *Switch) GetParties(ctx context.Context, idType, idValue, idSubValue, destFspID string) (*domain.Ack, error) {
	ack, ok, err := s.record(CallGetParties, destFspID, map[string]string{"idType": idType, "idValue": idValue, "idSubValue": idSubValue})
	if err != nil || !ok {
		return ack, err
	}

	channel := domain.PartyChannel(idType, idValue, idSubValue)
	s.mu.Lock()
	parties := append([]domain.Party(nil), s.Parties[idValue]...)
	info, fail := s.Fail[CallGetParties]
	s.mu.Unlock()

	if len(parties) == 0 || fail {
		if info.ErrorCode == "" {
			info = domain.ErrorInformation{ErrorCode: "3204", ErrorDescription: "Party not found"}
		}
		return ack, s.publish(ctx, channel, domain.MessagePartyError, domain.ErrorInformationObject{ErrorInformation: info})
	}
	for _, p := range parties {
		if err := s.publish(ctx, channel, domain.MessagePartyResolved, domain.PartiesResponse{Party: p}); err != nil {
			return ack, err
		}
	}
	return ack, nil
}

func (s *Switch) GetServicesFXP(ctx context.Context, sourceCurrency, targetCurrency string) (*domain.Ack, error) {
	ack, ok, err := s.record(CallGetServicesFXP, "", map[string]string{"sourceCurrency": sourceCurrency, "targetCurrency": targetCurrency})
	if err != nil || !ok {
		return ack, err
	}
	return ack, s.answer(ctx, CallGetServicesFXP, domain.FxpServicesChannel(sourceCurrency, targetCurrency),
		domain.MessageFxpServicesResponse, domain.MessageFxpServicesResponseError,
		func() (any, error) {
			return domain.FxpServicesResponse{Providers: s.FxProviders}, nil
		})
}

func (s *Switch) PostQuotes(ctx context.Context, req domain.QuoteRequest, destFspID string) (*domain.Ack, error) {
	ack, ok, err := s.record(CallPostQuotes, destFspID, req)
	if err != nil || !ok {
		return ack, err
	}
	return ack, s.answer(ctx, CallPostQuotes, domain.QuoteChannel(req.QuoteID),
		domain.MessageQuoteResponse, domain.MessageQuoteResponseError,
		func() (any, error) {
			condition, err := s.condition()
			if err != nil {
				return nil, err
			}
			received := req.Amount
			return domain.QuoteResponse{
				TransferAmount:     req.Amount,
				PayeeReceiveAmount: &received,
				Expiration:         s.expiration(req.Expiration),
				IlpPacket:          "AYIBgQAAAAAAAASwNGxldmVsb25lLmRmc3AxLm1lci45T2RTOF81MDdqUUZERmZlakgyOVc4bXFmNEpLMHlGTFGCAUBQU0svMS4wCk5vbmNlOiB1SXlweUYzY3pYSXBFdzVVc05TYWh3",
				Condition:          condition,
			}, nil
		})
}

func (s *Switch) PostFxQuotes(ctx context.Context, req domain.FxQuoteRequest, destFspID string) (*domain.Ack, error) {
	ack, ok, err := s.record(CallPostFxQuotes, destFspID, req)
	if err != nil || !ok {
		return ack, err
	}
	return ack, s.answer(ctx, CallPostFxQuotes, domain.FxQuoteChannel(req.ConversionRequestID),
		domain.MessageFxQuoteResponse, domain.MessageFxQuoteResponseError,
		func() (any, error) {
			terms, err := s.price(req.ConversionTerms)
			if err != nil {
				return nil, err
			}
			condition, err := s.condition()
			if err != nil {
				return nil, err
			}
			return domain.FxQuoteResponse{Condition: condition, ConversionTerms: terms}, nil
		})
}

// price fills whichever side of the conversion the requester left empty.
func (s *Switch) price(terms domain.ConversionTerms) (domain.ConversionTerms, error) {
	s.mu.Lock()
	rate := s.FxRate
	s.mu.Unlock()

	switch {
	case terms.SourceAmount.Amount != "" && terms.TargetAmount.Amount == "":
		src, err := terms.SourceAmount.Decimal()
		if err != nil {
			return terms, err
		}
		terms.TargetAmount.Amount = src.Mul(rate).Round(2).String()
	case terms.TargetAmount.Amount != "" && terms.SourceAmount.Amount == "":
		tgt, err := terms.TargetAmount.Decimal()
		if err != nil {
			return terms, err
		}
		terms.SourceAmount.Amount = tgt.DivRound(rate, 2).String()
	}
	terms.Expiration = s.expiration(terms.Expiration)
	return terms, nil
}

func (s *Switch) expiration(requested string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QuoteExpiration != "" {
		return s.QuoteExpiration
	}
	return requested
}

func (s *Switch) PostTransfers(ctx context.Context, req domain.TransferPrepare, destFspID string) (*domain.Ack, error) {
	ack, ok, err := s.record(CallPostTransfers, destFspID, req)
	if err != nil || !ok {
		return ack, err
	}
	return ack, s.answer(ctx, CallPostTransfers, domain.TransferChannel(req.TransferID),
		domain.MessageTransferFulfil, domain.MessageTransferError,
		func() (any, error) {
			s.mu.Lock()
			state := s.TransferState
			s.mu.Unlock()
			fulfil := domain.TransferFulfil{
				Fulfilment:         s.fulfilment(req.Condition),
				CompletedTimestamp: "2026-01-01T00:00:00.000Z",
				TransferState:      state,
			}
			s.mu.Lock()
			s.transfers[req.TransferID] = fulfil
			s.mu.Unlock()
			return fulfil, nil
		})
}

func (s *Switch) PostFxTransfers(ctx context.Context, req domain.FxTransferPrepare, destFspID string) (*domain.Ack, error) {
	ack, ok, err := s.record(CallPostFxTransfers, destFspID, req)
	if err != nil || !ok {
		return ack, err
	}
	return ack, s.answer(ctx, CallPostFxTransfers, domain.FxTransferChannel(req.CommitRequestID),
		domain.MessageFxTransferFulfil, domain.MessageFxTransferError,
		func() (any, error) {
			s.mu.Lock()
			state := s.ConversionState
			s.mu.Unlock()
			return domain.FxTransferResponse{
				Fulfilment:         s.fulfilment(req.Condition),
				CompletedTimestamp: "2026-01-01T00:00:00.000Z",
				ConversionState:    state,
			}, nil
		})
}

func (s *Switch) PatchTransfers(ctx context.Context, transferID string, patch domain.TransferPatch, destFspID string) (*domain.Ack, error) {
	ack, _, err := s.record(CallPatchTransfers, destFspID, patch)
	return ack, err
}

func (s *Switch) GetTransfers(ctx context.Context, transferID string) (*domain.Ack, error) {
	ack, ok, err := s.record(CallGetTransfers, "", map[string]string{"transferId": transferID})
	if err != nil || !ok {
		return ack, err
	}
	return ack, s.answer(ctx, CallGetTransfers, domain.TransferChannel(transferID),
		domain.MessageTransferFulfil, domain.MessageTransferError,
		func() (any, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			fulfil, ok := s.transfers[transferID]
			if !ok {
				return nil, fmt.Errorf("unknown transfer %s", transferID)
			}
			return fulfil, nil
		})
}

func (s *Switch) PostBulkQuotes(ctx context.Context, req domain.BulkQuoteRequest, destFspID string) (*domain.Ack, error) {
	ack, ok, err := s.record(CallPostBulkQuotes, destFspID, req)
	if err != nil || !ok {
		return ack, err
	}
	return ack, s.answer(ctx, CallPostBulkQuotes, domain.BulkQuoteChannel(req.BulkQuoteID),
		domain.MessageBulkQuoteResponse, domain.MessageBulkQuoteResponseError,
		func() (any, error) {
			resp := domain.BulkQuoteResponse{Expiration: s.expiration(req.Expiration)}
			for _, q := range req.IndividualQuotes {
				condition, err := s.condition()
				if err != nil {
					return nil, err
				}
				amount := q.Amount
				payee := q.Payee
				resp.IndividualQuoteResults = append(resp.IndividualQuoteResults, domain.IndividualQuoteResult{
					QuoteID:        q.QuoteID,
					Payee:          &payee,
					TransferAmount: &amount,
					IlpPacket:      "AYIBgQAAAAAAAASw",
					Condition:      condition,
				})
			}
			return resp, nil
		})
}

func (s *Switch) PostBulkTransfers(ctx context.Context, req domain.BulkTransferRequest, destFspID string) (*domain.Ack, error) {
	ack, ok, err := s.record(CallPostBulkTransfers, destFspID, req)
	if err != nil || !ok {
		return ack, err
	}
	return ack, s.answer(ctx, CallPostBulkTransfers, domain.BulkTransferChannel(req.BulkTransferID),
		domain.MessageBulkTransferFulfil, domain.MessageBulkTransferError,
		func() (any, error) {
			resp := domain.BulkTransferResponse{
				CompletedTimestamp: "2026-01-01T00:00:00.000Z",
				BulkTransferState:  "COMPLETED",
			}
			for _, it := range req.IndividualTransfers {
				resp.IndividualTransferResults = append(resp.IndividualTransferResults, domain.IndividualTransferResult{
					TransferID: it.TransferID,
					Fulfilment: s.fulfilment(it.Condition),
				})
			}
			return resp, nil
		})
}

func (s *Switch) PostTransactionRequests(ctx context.Context, req domain.TransactionRequest, destFspID string) (*domain.Ack, error) {
	ack, ok, err := s.record(CallPostTransactionRequests, destFspID, req)
	if err != nil || !ok {
		return ack, err
	}
	return ack, s.answer(ctx, CallPostTransactionRequests, domain.TransactionRequestChannel(req.TransactionRequestID),
		domain.MessageTransactionRequestResponse, domain.MessageTransactionRequestResponseError,
		func() (any, error) {
			s.mu.Lock()
			state := s.TransactionRequestState
			s.mu.Unlock()
			return domain.TransactionRequestResponse{TransactionID: uuid.NewString(), TransactionRequestState: state}, nil
		})
}

// Payee builds a resolvable party hosted by fspID.
func Payee(idType, idValue, fspID string, currencies ...string) domain.Party {
	return domain.Party{
		PartyIDInfo: domain.PartyIDInfo{
			PartyIDType:     idType,
			PartyIdentifier: idValue,
			FspID:           fspID,
		},
		Name: "Test Payee",
		PersonalInfo: &domain.PartyPersonalInfo{
			ComplexName: &domain.PartyComplexName{FirstName: "Test", LastName: "Payee"},
			DateOfBirth: "1984-01-01",
		},
		SupportedCurrencies: currencies,
	}
}
