package models

import (
	"context"
	"fmt"

	"github.com/aretw0/switchlink/pkg/correlation"
	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/aretw0/switchlink/pkg/fsm"
	"github.com/aretw0/switchlink/pkg/persistence"
)

// Persisted record types of the bulk models.
const (
	BulkQuoteRecordType    = "bulkQuoteModel"
	BulkTransferRecordType = "bulkTransferModel"
)

const (
	TransitionRequestBulkQuote    = "requestBulkQuote"
	TransitionExecuteBulkTransfer = "executeBulkTransfer"
)

const bulkTransferStateRejected = "REJECTED"

var bulkStatuses = domain.StatusMap{
	stateSucceeded: domain.StatusCompleted,
	stateAborted:   domain.StatusAborted,
	stateErrored:   domain.StatusErrorOccurred,
}

// BulkQuoteResponse is the caller-facing projection of a bulk quote.
type BulkQuoteResponse struct {
	domain.BulkQuoteState
	CurrentState domain.Status `json:"currentState"`
}

// BulkQuoteModel requests quotes for several payees hosted by one participant.
type BulkQuoteModel struct {
	env *Env
	t   *tracker[domain.BulkQuoteState, *domain.BulkQuoteState]
}

// NewBulkQuote initialises a bulk quote.
func NewBulkQuote(env *Env, in domain.BulkQuoteInput) (*BulkQuoteModel, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.BulkQuoteID == "" {
		in.BulkQuoteID = env.newID()
	}
	data := domain.BulkQuoteState{BulkQuoteInput: in}
	data.InitiatedAt = env.now()
	data.UpdatedAt = data.InitiatedAt
	return newBulkQuoteModel(env, data)
}

// BulkQuoteStore opens the persisted bulk quote records.
func BulkQuoteStore(env *Env) *persistence.Store[domain.BulkQuoteState] {
	return recordStore[domain.BulkQuoteState](env, BulkQuoteRecordType)
}

// LoadBulkQuote restores a persisted bulk quote.
func LoadBulkQuote(ctx context.Context, env *Env, id string) (*BulkQuoteModel, error) {
	rec, err := BulkQuoteStore(env).Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return newBulkQuoteModel(env, *rec)
}

func newBulkQuoteModel(env *Env, data domain.BulkQuoteState) (*BulkQuoteModel, error) {
	m := &BulkQuoteModel{env: env}
	t, err := newTracker[domain.BulkQuoteState, *domain.BulkQuoteState](env, BulkQuoteRecordType, data.BulkQuoteID, data,
		[]fsm.Event{{Name: TransitionRequestBulkQuote, From: []string{stateStart}, To: stateSucceeded}},
		bulkStatuses,
		map[string]fsm.Handler[domain.BulkQuoteState]{TransitionRequestBulkQuote: m.requestBulkQuote})
	if err != nil {
		return nil, err
	}
	m.t = t
	return m, nil
}

// ID returns the bulk quote id.
func (m *BulkQuoteModel) ID() string { return m.t.id }

// Response projects the record for callers.
func (m *BulkQuoteModel) Response() *BulkQuoteResponse {
	return &BulkQuoteResponse{BulkQuoteState: m.t.data(), CurrentState: m.t.status()}
}

// Run sends the bulk quote and waits for the result.
func (m *BulkQuoteModel) Run(ctx context.Context) (*BulkQuoteResponse, error) {
	if m.t.state() == stateStart {
		if err := m.t.fire(ctx, TransitionRequestBulkQuote); err != nil {
			err = m.t.fail(ctx, err)
			return m.Response(), err
		}
	}
	if err := m.t.save(ctx); err != nil {
		return m.Response(), err
	}
	return m.Response(), nil
}

func (m *BulkQuoteModel) requestBulkQuote(ctx context.Context, _ fsm.Lifecycle, d domain.BulkQuoteState, _ ...any) (domain.BulkQuoteState, error) {
	payer := d.From
	if payer.FspID == "" {
		payer.FspID = m.env.cfg.DFSPID
	}
	expiration := d.Expiration
	if expiration == "" {
		expiration = m.env.expiration()
	}

	req := domain.BulkQuoteRequest{
		BulkQuoteID: d.BulkQuoteID,
		Payer:       payer.ToProtocol(),
		Expiration:  expiration,
	}
	for _, q := range d.IndividualQuotes {
		if q.QuoteID == "" {
			q.QuoteID = m.env.newID()
		}
		if q.TransactionID == "" {
			q.TransactionID = m.env.newID()
		}
		scenario := q.TransactionType
		if scenario == "" {
			scenario = "TRANSFER"
		}
		req.IndividualQuotes = append(req.IndividualQuotes, domain.IndividualQuote{
			QuoteID:         q.QuoteID,
			TransactionID:   q.TransactionID,
			Payee:           q.To.ToProtocol(),
			AmountType:      q.AmountType,
			Amount:          domain.Money{Currency: q.Currency, Amount: q.Amount},
			TransactionType: domain.TransactionType{Scenario: scenario, Initiator: "PAYER", InitiatorType: "CONSUMER"},
			Note:            q.Note,
		})
	}
	d.Request = &req

	msg, ack, err := m.env.call(ctx, TransitionRequestBulkQuote,
		domain.BulkQuoteChannel(req.BulkQuoteID),
		correlation.Expect{Success: domain.MessageBulkQuoteResponse, Failure: domain.MessageBulkQuoteResponseError},
		func(ctx context.Context) (*domain.Ack, error) {
			return m.env.client.PostBulkQuotes(ctx, req, d.PayeeFsp)
		})
	d.Ack = ack
	if err != nil {
		return d, err
	}

	var resp domain.BulkQuoteResponse
	if err := msg.Decode(&resp); err != nil {
		return d, err
	}
	if m.env.cfg.RejectExpiredQuoteResponses && m.env.expired(resp.Expiration) {
		return d, &domain.ValidationError{Field: "expiration", Reason: "bulk quote response expired at " + resp.Expiration}
	}
	d.Response = &resp
	d.ResponseSource = msg.Header(domain.HeaderSource)
	return d, nil
}

// BulkTransferResponse is the caller-facing projection of a bulk transfer.
type BulkTransferResponse struct {
	domain.BulkTransferState
	CurrentState domain.Status `json:"currentState"`
}

// BulkTransferModel executes the transfers of an accepted bulk quote.
type BulkTransferModel struct {
	env *Env
	t   *tracker[domain.BulkTransferState, *domain.BulkTransferState]
}

// NewBulkTransfer initialises a bulk transfer.
func NewBulkTransfer(env *Env, in domain.BulkTransferInput) (*BulkTransferModel, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.BulkTransferID == "" {
		in.BulkTransferID = env.newID()
	}
	data := domain.BulkTransferState{BulkTransferInput: in}
	data.InitiatedAt = env.now()
	data.UpdatedAt = data.InitiatedAt
	return newBulkTransferModel(env, data)
}

// BulkTransferStore opens the persisted bulk transfer records.
func BulkTransferStore(env *Env) *persistence.Store[domain.BulkTransferState] {
	return recordStore[domain.BulkTransferState](env, BulkTransferRecordType)
}

// LoadBulkTransfer restores a persisted bulk transfer.
func LoadBulkTransfer(ctx context.Context, env *Env, id string) (*BulkTransferModel, error) {
	rec, err := BulkTransferStore(env).Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return newBulkTransferModel(env, *rec)
}

func newBulkTransferModel(env *Env, data domain.BulkTransferState) (*BulkTransferModel, error) {
	m := &BulkTransferModel{env: env}
	t, err := newTracker[domain.BulkTransferState, *domain.BulkTransferState](env, BulkTransferRecordType, data.BulkTransferID, data,
		[]fsm.Event{{Name: TransitionExecuteBulkTransfer, From: []string{stateStart}, To: stateSucceeded}},
		bulkStatuses,
		map[string]fsm.Handler[domain.BulkTransferState]{TransitionExecuteBulkTransfer: m.executeBulkTransfer})
	if err != nil {
		return nil, err
	}
	m.t = t
	return m, nil
}

// ID returns the bulk transfer id.
func (m *BulkTransferModel) ID() string { return m.t.id }

// Response projects the record for callers.
func (m *BulkTransferModel) Response() *BulkTransferResponse {
	return &BulkTransferResponse{BulkTransferState: m.t.data(), CurrentState: m.t.status()}
}

// Run sends the bulk transfer and waits for the result.
func (m *BulkTransferModel) Run(ctx context.Context) (*BulkTransferResponse, error) {
	if m.t.state() == stateStart {
		if err := m.t.fire(ctx, TransitionExecuteBulkTransfer); err != nil {
			err = m.t.fail(ctx, err)
			return m.Response(), err
		}
	}
	if err := m.t.save(ctx); err != nil {
		return m.Response(), err
	}
	return m.Response(), nil
}

func (m *BulkTransferModel) executeBulkTransfer(ctx context.Context, _ fsm.Lifecycle, d domain.BulkTransferState, _ ...any) (domain.BulkTransferState, error) {
	expiration := d.Expiration
	if expiration == "" {
		expiration = m.env.expiration()
	}
	req := domain.BulkTransferRequest{
		BulkTransferID: d.BulkTransferID,
		BulkQuoteID:    d.BulkQuoteID,
		PayerFsp:       m.env.cfg.DFSPID,
		PayeeFsp:       d.PayeeFsp,
		Expiration:     expiration,
	}
	conditions := make(map[string]string, len(d.IndividualTransfers))
	for _, it := range d.IndividualTransfers {
		if it.TransferID == "" {
			it.TransferID = m.env.newID()
		}
		conditions[it.TransferID] = it.Condition
		req.IndividualTransfers = append(req.IndividualTransfers, domain.IndividualTransfer{
			TransferID:     it.TransferID,
			TransferAmount: domain.Money{Currency: it.Currency, Amount: it.Amount},
			IlpPacket:      it.IlpPacket,
			Condition:      it.Condition,
		})
	}
	d.Request = &req

	msg, ack, err := m.env.call(ctx, TransitionExecuteBulkTransfer,
		domain.BulkTransferChannel(req.BulkTransferID),
		correlation.Expect{Success: domain.MessageBulkTransferFulfil, Failure: domain.MessageBulkTransferError},
		func(ctx context.Context) (*domain.Ack, error) {
			return m.env.client.PostBulkTransfers(ctx, req, d.PayeeFsp)
		})
	d.Ack = ack
	if err != nil {
		return d, err
	}

	var resp domain.BulkTransferResponse
	if err := msg.Decode(&resp); err != nil {
		return d, err
	}
	d.Response = &resp
	if resp.BulkTransferState == bulkTransferStateRejected {
		return d, &domain.ProtocolError{Message: "bulk transfer rejected", StatusCode: 500}
	}

	// Failed individual results carry errorInformation and no fulfilment.
	for _, r := range resp.IndividualTransferResults {
		if r.ErrorInformation != nil {
			continue
		}
		condition, ok := conditions[r.TransferID]
		if !ok {
			return d, &domain.ValidationError{Field: "individualTransferResults.transferId", Reason: fmt.Sprintf("unknown transfer %s", r.TransferID)}
		}
		if err := m.env.checkFulfilment(r.Fulfilment, condition); err != nil {
			return d, err
		}
	}
	return d, nil
}
