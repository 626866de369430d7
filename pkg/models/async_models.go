package models

import (
	"context"

	"github.com/aretw0/switchlink/pkg/correlation"
	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/aretw0/switchlink/pkg/ports"
)

// PartyArgs identifies a party to look up.
type PartyArgs struct {
	IDType     string
	IDValue    string
	IDSubValue string

	// FspID routes the lookup directly when known.
	FspID string
}

func (a PartyArgs) channel() string {
	return domain.PartyChannel(a.IDType, a.IDValue, a.IDSubValue)
}

func (a PartyArgs) validate() error {
	if a.IDType == "" {
		return &domain.ValidationError{Field: "idType", Reason: "is required"}
	}
	if a.IDValue == "" {
		return &domain.ValidationError{Field: "idValue", Reason: "is required"}
	}
	return nil
}

var partyExpect = correlation.Expect{Success: domain.MessagePartyResolved, Failure: domain.MessagePartyError}

func reshapeParty(args PartyArgs, msg domain.Message) (domain.Party, error) {
	var body domain.PartiesResponse
	if err := msg.Decode(&body); err != nil {
		return domain.Party{}, err
	}
	requested := domain.TransferParty{IDType: args.IDType, IDValue: args.IDValue, IDSubValue: args.IDSubValue}
	if err := domain.ValidateResolvedParty(requested, body.Party); err != nil {
		return domain.Party{}, err
	}
	return body.Party, nil
}

// NewPartiesLookup sends a party lookup and waits for the answer.
func NewPartiesLookup(env *Env) *AsyncModel[PartyArgs, domain.Party] {
	return NewAsyncModel(env, AsyncSpec[PartyArgs, domain.Party]{
		Name:    "partiesLookup",
		Channel: PartyArgs.channel,
		Send: func(ctx context.Context, client ports.RequestClient, a PartyArgs) (*domain.Ack, error) {
			return client.GetParties(ctx, a.IDType, a.IDValue, a.IDSubValue, a.FspID)
		},
		Validate: PartyArgs.validate,
		Reshape:  reshapeParty,
		Expect:   partyExpect,
	})
}

// NewPartiesFetch only waits for the answer of a lookup already in flight.
func NewPartiesFetch(env *Env) *AsyncModel[PartyArgs, domain.Party] {
	return NewAsyncModel(env, AsyncSpec[PartyArgs, domain.Party]{
		Name:     "partiesFetch",
		Channel:  PartyArgs.channel,
		Validate: PartyArgs.validate,
		Reshape:  reshapeParty,
		Expect:   partyExpect,
	})
}

// QuoteArgs is a quote to submit.
type QuoteArgs struct {
	Request   domain.QuoteRequest
	DestFspID string
}

// NewQuoteSubmit posts a quote and waits for the response.
func NewQuoteSubmit(env *Env) *AsyncModel[QuoteArgs, domain.QuoteResponse] {
	return NewAsyncModel(env, AsyncSpec[QuoteArgs, domain.QuoteResponse]{
		Name:    "quoteSubmit",
		Channel: func(a QuoteArgs) string { return domain.QuoteChannel(a.Request.QuoteID) },
		Send: func(ctx context.Context, client ports.RequestClient, a QuoteArgs) (*domain.Ack, error) {
			return client.PostQuotes(ctx, a.Request, a.DestFspID)
		},
		Validate: func(a QuoteArgs) error {
			if a.Request.QuoteID == "" {
				return &domain.ValidationError{Field: "quoteId", Reason: "is required"}
			}
			return domain.ValidateAmount("amount.amount", a.Request.Amount.Amount)
		},
		Expect: correlation.Expect{Success: domain.MessageQuoteResponse, Failure: domain.MessageQuoteResponseError},
	})
}

// TransferArgs is a transfer to submit.
type TransferArgs struct {
	Request   domain.TransferPrepare
	DestFspID string
}

var transferExpect = correlation.Expect{Success: domain.MessageTransferFulfil, Failure: domain.MessageTransferError}

// NewTransferSubmit posts a transfer and waits for its fulfilment.
func NewTransferSubmit(env *Env) *AsyncModel[TransferArgs, domain.TransferFulfil] {
	return NewAsyncModel(env, AsyncSpec[TransferArgs, domain.TransferFulfil]{
		Name:    "transferSubmit",
		Channel: func(a TransferArgs) string { return domain.TransferChannel(a.Request.TransferID) },
		Send: func(ctx context.Context, client ports.RequestClient, a TransferArgs) (*domain.Ack, error) {
			return client.PostTransfers(ctx, a.Request, a.DestFspID)
		},
		Validate: func(a TransferArgs) error {
			if a.Request.TransferID == "" {
				return &domain.ValidationError{Field: "transferId", Reason: "is required"}
			}
			if a.Request.Condition == "" || a.Request.IlpPacket == "" {
				return &domain.ValidationError{Field: "transfer", Reason: "condition and ilpPacket are required"}
			}
			return nil
		},
		Expect: transferExpect,
	})
}

// NewTransferFetch re-queries a transfer by id.
func NewTransferFetch(env *Env) *AsyncModel[string, domain.TransferFulfil] {
	return NewAsyncModel(env, AsyncSpec[string, domain.TransferFulfil]{
		Name:    "transferFetch",
		Channel: domain.TransferChannel,
		Send: func(ctx context.Context, client ports.RequestClient, id string) (*domain.Ack, error) {
			return client.GetTransfers(ctx, id)
		},
		Validate: func(id string) error {
			if id == "" {
				return &domain.ValidationError{Field: "transferId", Reason: "is required"}
			}
			return nil
		},
		Expect: transferExpect,
	})
}
