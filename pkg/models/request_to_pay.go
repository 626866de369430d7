package models

import (
	"context"

	"github.com/aretw0/switchlink/pkg/correlation"
	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/aretw0/switchlink/pkg/fsm"
	"github.com/aretw0/switchlink/pkg/persistence"
)

// RequestToPayRecordType prefixes persisted request-to-pay records.
const RequestToPayRecordType = "requestToPayModel"

const (
	StatePayerResolved = "payerResolved"

	TransitionResolvePayer              = "resolvePayer"
	TransitionExecuteTransactionRequest = "executeTransactionRequest"
)

var requestToPayEvents = []fsm.Event{
	{Name: TransitionResolvePayer, From: []string{stateStart}, To: StatePayerResolved},
	{Name: TransitionExecuteTransactionRequest, From: []string{StatePayerResolved}, To: stateSucceeded},
}

var requestToPayStatuses = domain.StatusMap{
	StatePayerResolved: domain.StatusWaitingForPartyAcceptance,
	stateSucceeded:     domain.StatusCompleted,
	stateAborted:       domain.StatusAborted,
	stateErrored:       domain.StatusErrorOccurred,
}

// RequestToPayResponse is the caller-facing projection of a request to pay.
type RequestToPayResponse struct {
	domain.RequestToPayState
	CurrentState domain.Status `json:"currentState"`
}

// RequestToPayModel asks a payer to send funds to one of our payees.
// From is the payer to look up, To our payee.
type RequestToPayModel struct {
	env     *Env
	t       *tracker[domain.RequestToPayState, *domain.RequestToPayState]
	parties *AsyncModel[PartyArgs, domain.Party]
}

// NewRequestToPay initialises a request to pay.
func NewRequestToPay(env *Env, in domain.RequestToPayInput) (*RequestToPayModel, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.TransactionRequestID == "" {
		in.TransactionRequestID = env.newID()
	}
	data := domain.RequestToPayState{RequestToPayInput: in}
	data.InitiatedAt = env.now()
	data.UpdatedAt = data.InitiatedAt
	return newRequestToPayModel(env, data)
}

// RequestToPayStore opens the persisted request to pay records.
func RequestToPayStore(env *Env) *persistence.Store[domain.RequestToPayState] {
	return recordStore[domain.RequestToPayState](env, RequestToPayRecordType)
}

// LoadRequestToPay restores a persisted request to pay.
func LoadRequestToPay(ctx context.Context, env *Env, id string) (*RequestToPayModel, error) {
	rec, err := RequestToPayStore(env).Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return newRequestToPayModel(env, *rec)
}

func newRequestToPayModel(env *Env, data domain.RequestToPayState) (*RequestToPayModel, error) {
	m := &RequestToPayModel{env: env, parties: NewPartiesLookup(env)}
	t, err := newTracker[domain.RequestToPayState, *domain.RequestToPayState](env, RequestToPayRecordType, data.TransactionRequestID, data,
		requestToPayEvents, requestToPayStatuses,
		map[string]fsm.Handler[domain.RequestToPayState]{
			TransitionResolvePayer:              m.resolvePayer,
			TransitionExecuteTransactionRequest: m.executeTransactionRequest,
		})
	if err != nil {
		return nil, err
	}
	m.t = t
	return m, nil
}

// ID returns the transaction request id.
func (m *RequestToPayModel) ID() string { return m.t.id }

// State returns the internal state name.
func (m *RequestToPayModel) State() string { return m.t.state() }

// Response projects the record for callers.
func (m *RequestToPayModel) Response() *RequestToPayResponse {
	return &RequestToPayResponse{RequestToPayState: m.t.data(), CurrentState: m.t.status()}
}

// Merge applies a caller decision before resuming. Only party acceptance applies.
func (m *RequestToPayModel) Merge(body map[string]any) error {
	d, err := decodeDecision(body)
	if err != nil {
		return err
	}
	accept := d.AcceptParty
	if accept == nil {
		accept = d.AcceptEither
	}
	if accept == nil {
		return nil
	}
	return m.t.machine.Update(func(data *domain.RequestToPayState) {
		data.AcceptParty = accept
	})
}

// Abort stops the request with reason.
func (m *RequestToPayModel) Abort(ctx context.Context, reason string) error {
	return m.t.abort(ctx, reason)
}

// Run advances the request until it completes, fails or halts for party acceptance.
func (m *RequestToPayModel) Run(ctx context.Context) (*RequestToPayResponse, error) {
	for !m.t.terminal() {
		var next string
		switch m.t.state() {
		case stateStart:
			next = TransitionResolvePayer
		case StatePayerResolved:
			decided, accepted := decide(m.t.data().AcceptParty, m.env.cfg.AutoAcceptParty)
			if !decided {
				m.t.logger.Info("halting for acceptance", "state", m.t.state())
				return m.Response(), m.t.save(ctx)
			}
			if !accepted {
				if err := m.t.abort(ctx, "Payer rejected by payee"); err != nil {
					return m.Response(), err
				}
				continue
			}
			next = TransitionExecuteTransactionRequest
		}

		if err := m.t.fire(ctx, next); err != nil {
			err = m.t.fail(ctx, err)
			return m.Response(), err
		}
		if err := m.t.save(ctx); err != nil {
			return m.Response(), err
		}
	}
	return m.Response(), m.t.save(ctx)
}

func (m *RequestToPayModel) resolvePayer(ctx context.Context, _ fsm.Lifecycle, d domain.RequestToPayState, _ ...any) (domain.RequestToPayState, error) {
	if d.SkipPartyLookup {
		return d, nil
	}
	res, err := m.parties.Run(ctx, PartyArgs{
		IDType:     d.From.IDType,
		IDValue:    d.From.IDValue,
		IDSubValue: d.From.IDSubValue,
		FspID:      d.From.FspID,
	})
	if err != nil {
		return d, err
	}
	d.Requests = recordAck(d.Requests, stepGetParties, res.Ack)
	d.From = d.From.WithResolved(res.Response)
	return d, nil
}

func (m *RequestToPayModel) executeTransactionRequest(ctx context.Context, _ fsm.Lifecycle, d domain.RequestToPayState, _ ...any) (domain.RequestToPayState, error) {
	payee := d.To
	if payee.FspID == "" {
		payee.FspID = m.env.cfg.DFSPID
	}
	scenario := d.Scenario
	if scenario == "" {
		scenario = "TRANSFER"
	}
	initiatorType := d.InitiatorType
	if initiatorType == "" {
		initiatorType = "CONSUMER"
	}
	payer := d.From.ToProtocol().PartyIDInfo
	payer.ExtensionList = nil

	req := domain.TransactionRequest{
		TransactionRequestID: d.TransactionRequestID,
		Payee:                payee.ToProtocol(),
		Payer:                payer,
		Amount:               domain.Money{Currency: d.Currency, Amount: d.Amount},
		TransactionType:      domain.TransactionType{Scenario: scenario, Initiator: "PAYEE", InitiatorType: initiatorType},
		Note:                 d.Note,
		Expiration:           m.env.expiration(),
	}
	d.Request = &req

	msg, ack, err := m.env.call(ctx, TransitionExecuteTransactionRequest,
		domain.TransactionRequestChannel(req.TransactionRequestID),
		correlation.Expect{Success: domain.MessageTransactionRequestResponse, Failure: domain.MessageTransactionRequestResponseError},
		func(ctx context.Context) (*domain.Ack, error) {
			return m.env.client.PostTransactionRequests(ctx, req, d.From.FspID)
		})
	d.Requests = recordAck(d.Requests, "transactionRequest", ack)
	if err != nil {
		return d, err
	}

	var resp domain.TransactionRequestResponse
	if err := msg.Decode(&resp); err != nil {
		return d, err
	}
	d.Response = &resp
	d.TransactionRequestState = resp.TransactionRequestState
	if resp.TransactionRequestState == domain.TransactionRequestRejected {
		return d, &domain.ProtocolError{Message: "transaction request rejected by payer", StatusCode: 500}
	}
	return d, nil
}
