package models

import (
	"context"

	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/aretw0/switchlink/pkg/fsm"
	"github.com/aretw0/switchlink/pkg/persistence"
)

// TransferRecordType prefixes persisted transfer records.
const TransferRecordType = "transferModel"

// Transfer model states.
const (
	StatePayeeResolved       = "payeeResolved"
	StateServicesFxpReceived = "servicesFxpReceived"
	StateFxQuoteReceived     = "fxQuoteReceived"
	StateQuoteReceived       = "quoteReceived"
	StateFxTransferSucceeded = "fxTransferSucceeded"
)

// Transfer model transitions.
const (
	TransitionResolvePayee      = "resolvePayee"
	TransitionRequestServicesFx = "requestServicesFxp"
	TransitionRequestFxQuote    = "requestFxQuote"
	TransitionRequestQuote      = "requestQuote"
	TransitionExecuteFxTransfer = "executeFxTransfer"
	TransitionExecuteTransfer   = "executeTransfer"
)

var transferEvents = []fsm.Event{
	{Name: TransitionResolvePayee, From: []string{stateStart}, To: StatePayeeResolved},
	{Name: TransitionRequestServicesFx, From: []string{StatePayeeResolved}, To: StateServicesFxpReceived},
	{Name: TransitionRequestFxQuote, From: []string{StateServicesFxpReceived, StateQuoteReceived}, To: StateFxQuoteReceived},
	{Name: TransitionRequestQuote, From: []string{StatePayeeResolved, StateServicesFxpReceived, StateFxQuoteReceived}, To: StateQuoteReceived},
	{Name: TransitionExecuteFxTransfer, From: []string{StateQuoteReceived, StateFxQuoteReceived}, To: StateFxTransferSucceeded},
	{Name: TransitionExecuteTransfer, From: []string{StateQuoteReceived, StateFxTransferSucceeded}, To: stateSucceeded},
}

var transferStatuses = domain.StatusMap{
	StatePayeeResolved:   domain.StatusWaitingForPartyAcceptance,
	StateFxQuoteReceived: domain.StatusWaitingForConversionAcceptance,
	StateQuoteReceived:   domain.StatusWaitingForQuoteAcceptance,
	stateSucceeded:       domain.StatusCompleted,
	stateAborted:         domain.StatusAborted,
	stateErrored:         domain.StatusErrorOccurred,
}

// TransferResponse is the caller-facing projection of a transfer.
type TransferResponse struct {
	domain.TransferState
	CurrentState domain.Status `json:"currentState"`
}

// TransferModel drives an outbound transfer.
type TransferModel struct {
	env     *Env
	t       *tracker[domain.TransferState, *domain.TransferState]
	parties *AsyncModel[PartyArgs, domain.Party]
}

// NewTransfer initialises a transfer from a caller request.
func NewTransfer(env *Env, req domain.TransferRequest) (*TransferModel, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.TransferID == "" {
		req.TransferID = env.newID()
	}
	if req.TransactionType == "" {
		req.TransactionType = "TRANSFER"
	}
	data := domain.TransferState{TransferRequest: req}
	data.InitiatedAt = env.now()
	data.UpdatedAt = data.InitiatedAt
	return newTransferModel(env, data)
}

// LoadTransfer restores a persisted transfer at its saved state.
func LoadTransfer(ctx context.Context, env *Env, id string) (*TransferModel, error) {
	rec, err := TransferStore(env).Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return newTransferModel(env, *rec)
}

// TransferStore opens the persisted transfer records.
func TransferStore(env *Env) *persistence.Store[domain.TransferState] {
	return recordStore[domain.TransferState](env, TransferRecordType)
}

func newTransferModel(env *Env, data domain.TransferState) (*TransferModel, error) {
	m := &TransferModel{env: env, parties: NewPartiesLookup(env)}
	t, err := newTracker[domain.TransferState, *domain.TransferState](env, TransferRecordType, data.TransferID, data, transferEvents, transferStatuses,
		map[string]fsm.Handler[domain.TransferState]{
			TransitionResolvePayee:      m.resolvePayee,
			TransitionRequestServicesFx: m.requestServicesFxp,
			TransitionRequestFxQuote:    m.requestFxQuote,
			TransitionRequestQuote:      m.requestQuote,
			TransitionExecuteFxTransfer: m.executeFxTransfer,
			TransitionExecuteTransfer:   m.executeTransfer,
		})
	if err != nil {
		return nil, err
	}
	m.t = t
	return m, nil
}

// ID returns the transfer id.
func (m *TransferModel) ID() string {
	return m.t.id
}

// State returns the internal state name.
func (m *TransferModel) State() string {
	return m.t.state()
}

// Data returns a copy of the current record.
func (m *TransferModel) Data() domain.TransferState {
	return m.t.data()
}

// Response projects the record for callers.
func (m *TransferModel) Response() *TransferResponse {
	return &TransferResponse{TransferState: m.t.data(), CurrentState: m.t.status()}
}

// Merge applies a caller decision before resuming.
// The "accept" shorthand answers whichever acceptance point the transfer is halted at;
// a type-specific field in the same body takes precedence.
func (m *TransferModel) Merge(body map[string]any) error {
	d, err := decodeDecision(body)
	if err != nil {
		return err
	}
	state := m.t.state()
	return m.t.machine.Update(func(data *domain.TransferState) {
		if d.AcceptEither != nil {
			switch state {
			case StatePayeeResolved:
				data.AcceptParty = d.AcceptEither
			case StateFxQuoteReceived:
				data.AcceptConversion = d.AcceptEither
			case StateQuoteReceived:
				data.AcceptQuote = d.AcceptEither
			}
		}
		if d.AcceptParty != nil {
			data.AcceptParty = d.AcceptParty
		}
		if d.AcceptConversion != nil {
			data.AcceptConversion = d.AcceptConversion
		}
		if d.AcceptQuote != nil {
			data.AcceptQuote = d.AcceptQuote
		}
	})
}

// Save persists the current record.
func (m *TransferModel) Save(ctx context.Context) error {
	return m.t.save(ctx)
}

// Abort stops the transfer with reason.
func (m *TransferModel) Abort(ctx context.Context, reason string) error {
	return m.t.abort(ctx, reason)
}

// Fail moves the transfer to the error state. It may be called while Run is
// waiting on a step; the step's completion is then discarded.
func (m *TransferModel) Fail(ctx context.Context, cause error) error {
	return m.t.fail(ctx, cause)
}

// Run advances the transfer until it completes, fails or halts at an
// acceptance point. The record is persisted after every transition.
func (m *TransferModel) Run(ctx context.Context) (*TransferResponse, error) {
	for {
		if m.t.terminal() {
			if err := m.t.save(ctx); err != nil {
				return m.Response(), err
			}
			return m.Response(), nil
		}

		next, halted, err := m.plan(ctx)
		if err != nil {
			return m.Response(), err
		}
		if halted {
			m.t.logger.Info("halting for acceptance", "state", m.t.state())
			if err := m.t.save(ctx); err != nil {
				return m.Response(), err
			}
			return m.Response(), nil
		}
		if next == "" {
			continue
		}

		// A superseded fire lands here too; fail then only wraps.
		if err := m.t.fire(ctx, next); err != nil {
			err = m.t.fail(ctx, err)
			return m.Response(), err
		}
		if err := m.t.save(ctx); err != nil {
			return m.Response(), err
		}
	}
}

// plan picks the next transition for the current state. It returns halted when
// an acceptance point has no decision yet, and fires abort itself on a rejection
// (next is empty in that case and the loop sees the terminal state).
func (m *TransferModel) plan(ctx context.Context) (next string, halted bool, err error) {
	data := m.t.data()
	cfg := m.env.cfg
	receive := data.AmountType == domain.AmountTypeReceive

	switch m.t.state() {
	case stateStart:
		return TransitionResolvePayee, false, nil

	case StatePayeeResolved:
		if halted, err := m.accept(ctx, data.AcceptParty, cfg.AutoAcceptParty, "Payee rejected by payer"); halted || err != nil || m.t.terminal() {
			return "", halted, err
		}
		if data.NeedFx {
			return TransitionRequestServicesFx, false, nil
		}
		return TransitionRequestQuote, false, nil

	case StateServicesFxpReceived:
		if receive {
			return TransitionRequestQuote, false, nil
		}
		return TransitionRequestFxQuote, false, nil

	case StateFxQuoteReceived:
		if halted, err := m.accept(ctx, data.AcceptConversion, cfg.AutoAcceptConversion, "Conversion rejected by payer"); halted || err != nil || m.t.terminal() {
			return "", halted, err
		}
		if receive {
			return TransitionExecuteFxTransfer, false, nil
		}
		return TransitionRequestQuote, false, nil

	case StateQuoteReceived:
		if halted, err := m.accept(ctx, data.AcceptQuote, cfg.AutoAcceptQuotes, "Quote rejected by payer"); halted || err != nil || m.t.terminal() {
			return "", halted, err
		}
		// A RECEIVE conversion is priced from the quoted transfer amount.
		if data.NeedFx && receive && data.FxQuoteResponse == nil {
			return TransitionRequestFxQuote, false, nil
		}
		if data.NeedFx {
			return TransitionExecuteFxTransfer, false, nil
		}
		return TransitionExecuteTransfer, false, nil

	case StateFxTransferSucceeded:
		return TransitionExecuteTransfer, false, nil
	}

	return "", false, m.t.fail(ctx, &domain.TransitionError{Transition: "run", From: m.t.state(), Err: domain.ErrInvalidTransition})
}

// accept resolves an acceptance point, aborting on rejection.
func (m *TransferModel) accept(ctx context.Context, explicit *bool, auto bool, reason string) (halted bool, err error) {
	decided, accepted := decide(explicit, auto)
	if !decided {
		return true, nil
	}
	if !accepted {
		m.t.logger.Info("transfer rejected", "state", m.t.state(), "reason", reason)
		return false, m.t.abort(ctx, reason)
	}
	return false, nil
}
