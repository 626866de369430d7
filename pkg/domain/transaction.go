package domain

import (
	"strconv"
	"time"
)

// Meta is the bookkeeping shared by every persisted transaction record.
type Meta struct {
	// CurrentState mirrors the live state of the owning state machine.
	CurrentState string `json:"currentState"`

	// Version is bumped on every committed transition.
	Version int `json:"version"`

	LastError     *ErrorDetail `json:"lastError,omitempty"`
	AbortedReason string       `json:"abortedReason,omitempty"`
	InitiatedAt   time.Time    `json:"initiatedAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// Base returns the bookkeeping block. Embedding types inherit it.
func (m *Meta) Base() *Meta { return m }

// TransferRequest is the caller's description of a transfer.
type TransferRequest struct {
	TransferID        string        `json:"transferId,omitempty"`
	HomeTransactionID string        `json:"homeTransactionId"`
	From              TransferParty `json:"from"`
	To                TransferParty `json:"to"`
	AmountType        AmountType    `json:"amountType"`
	Currency          string        `json:"currency"`
	Amount            string        `json:"amount"`
	TransactionType   string        `json:"transactionType,omitempty"`
	SubScenario       string        `json:"subScenario,omitempty"`
	Note              string        `json:"note,omitempty"`
	SkipPartyLookup   bool          `json:"skipPartyLookup,omitempty"`

	// Acceptance decisions. Nil means undecided.
	AcceptParty      *bool `json:"acceptParty,omitempty"`
	AcceptConversion *bool `json:"acceptConversion,omitempty"`
	AcceptQuote      *bool `json:"acceptQuote,omitempty"`
}

// Validate checks the caller supplied fields.
func (r TransferRequest) Validate() error {
	if err := r.From.Validate("from"); err != nil {
		return err
	}
	if err := r.To.Validate("to"); err != nil {
		return err
	}
	if !r.AmountType.Valid() {
		return &ValidationError{Field: "amountType", Reason: "must be SEND or RECEIVE"}
	}
	if len(r.Currency) != 3 {
		return &ValidationError{Field: "currency", Reason: "must be an ISO 4217 code"}
	}
	if err := ValidateAmount("amount", r.Amount); err != nil {
		return err
	}
	if r.SkipPartyLookup && r.To.FspID == "" {
		return &ValidationError{Field: "to.fspId", Reason: "is required when skipPartyLookup is set"}
	}
	return nil
}

// TransferState is the persisted record of an outbound transfer.
type TransferState struct {
	Meta
	TransferRequest

	NeedFx           bool     `json:"needFx"`
	FxSourceCurrency string   `json:"fxSourceCurrency,omitempty"`
	FxTargetCurrency string   `json:"fxTargetCurrency,omitempty"`
	FxProviders      []string `json:"fxProviders,omitempty"`
	FxProvider       string   `json:"fxProvider,omitempty"`

	// GetPartiesResponses holds every candidate seen during a batch lookup.
	GetPartiesResponses []Party `json:"getPartiesResponses,omitempty"`

	QuoteID             string         `json:"quoteId,omitempty"`
	QuoteRequest        *QuoteRequest  `json:"quoteRequest,omitempty"`
	QuoteResponse       *QuoteResponse `json:"quoteResponse,omitempty"`
	QuoteResponseSource string         `json:"quoteResponseSource,omitempty"`

	ConversionRequestID   string           `json:"conversionRequestId,omitempty"`
	FxQuoteRequest        *FxQuoteRequest  `json:"fxQuoteRequest,omitempty"`
	FxQuoteResponse       *FxQuoteResponse `json:"fxQuoteResponse,omitempty"`
	FxQuoteResponseSource string           `json:"fxQuoteResponseSource,omitempty"`

	FxTransferRequest  *FxTransferPrepare  `json:"fxTransferRequest,omitempty"`
	FxTransferResponse *FxTransferResponse `json:"fxTransferResponse,omitempty"`

	Prepare       *TransferPrepare `json:"prepare,omitempty"`
	Fulfil        *TransferFulfil  `json:"fulfil,omitempty"`
	TransferState string           `json:"transferState,omitempty"`

	// Requests keeps the acknowledgement of every outbound call, keyed by step.
	Requests map[string]*Ack `json:"requests,omitempty"`
}

// Decision is the subset of a transfer a caller may merge before resuming.
type Decision struct {
	AcceptParty      *bool `json:"acceptParty" mapstructure:"acceptParty"`
	AcceptConversion *bool `json:"acceptConversion" mapstructure:"acceptConversion"`
	AcceptQuote      *bool `json:"acceptQuote" mapstructure:"acceptQuote"`

	// AcceptEither is a shorthand that applies to whichever decision is pending.
	AcceptEither *bool `json:"accept" mapstructure:"accept"`
}

// IndividualQuoteInput is one payee of a bulk quote.
type IndividualQuoteInput struct {
	QuoteID         string        `json:"quoteId,omitempty"`
	TransactionID   string        `json:"transactionId,omitempty"`
	To              TransferParty `json:"to"`
	AmountType      AmountType    `json:"amountType"`
	Currency        string        `json:"currency"`
	Amount          string        `json:"amount"`
	TransactionType string        `json:"transactionType,omitempty"`
	Note            string        `json:"note,omitempty"`
}

// BulkQuoteInput is the caller's description of a bulk quote.
type BulkQuoteInput struct {
	BulkQuoteID       string                 `json:"bulkQuoteId,omitempty"`
	HomeTransactionID string                 `json:"homeTransactionId"`
	From              TransferParty          `json:"from"`
	PayeeFsp          string                 `json:"payeeFsp"`
	Expiration        string                 `json:"expiration,omitempty"`
	IndividualQuotes  []IndividualQuoteInput `json:"individualQuotes"`
}

// Validate checks the caller supplied fields.
func (in BulkQuoteInput) Validate() error {
	if err := in.From.Validate("from"); err != nil {
		return err
	}
	if in.PayeeFsp == "" {
		return &ValidationError{Field: "payeeFsp", Reason: "is required"}
	}
	if len(in.IndividualQuotes) == 0 {
		return &ValidationError{Field: "individualQuotes", Reason: "must not be empty"}
	}
	for i, q := range in.IndividualQuotes {
		field := "individualQuotes[" + strconv.Itoa(i) + "]"
		if err := q.To.Validate(field + ".to"); err != nil {
			return err
		}
		if !q.AmountType.Valid() {
			return &ValidationError{Field: field + ".amountType", Reason: "must be SEND or RECEIVE"}
		}
		if err := ValidateAmount(field+".amount", q.Amount); err != nil {
			return err
		}
	}
	return nil
}

// BulkQuoteState is the persisted record of a bulk quote.
type BulkQuoteState struct {
	Meta
	BulkQuoteInput

	Request        *BulkQuoteRequest  `json:"bulkQuoteRequest,omitempty"`
	Response       *BulkQuoteResponse `json:"bulkQuoteResponse,omitempty"`
	ResponseSource string             `json:"bulkQuoteResponseSource,omitempty"`
	Ack            *Ack               `json:"ack,omitempty"`
}

// IndividualTransferInput is one leg of a bulk transfer.
type IndividualTransferInput struct {
	TransferID string `json:"transferId,omitempty"`
	Currency   string `json:"currency"`
	Amount     string `json:"amount"`
	IlpPacket  string `json:"ilpPacket"`
	Condition  string `json:"condition"`
}

// BulkTransferInput is the caller's description of a bulk transfer.
type BulkTransferInput struct {
	BulkTransferID      string                    `json:"bulkTransferId,omitempty"`
	BulkQuoteID         string                    `json:"bulkQuoteId"`
	HomeTransactionID   string                    `json:"homeTransactionId"`
	From                TransferParty             `json:"from"`
	PayeeFsp            string                    `json:"payeeFsp"`
	Expiration          string                    `json:"expiration,omitempty"`
	IndividualTransfers []IndividualTransferInput `json:"individualTransfers"`
}

// Validate checks the caller supplied fields.
func (in BulkTransferInput) Validate() error {
	if in.BulkQuoteID == "" {
		return &ValidationError{Field: "bulkQuoteId", Reason: "is required"}
	}
	if in.PayeeFsp == "" {
		return &ValidationError{Field: "payeeFsp", Reason: "is required"}
	}
	if len(in.IndividualTransfers) == 0 {
		return &ValidationError{Field: "individualTransfers", Reason: "must not be empty"}
	}
	for i, t := range in.IndividualTransfers {
		field := "individualTransfers[" + strconv.Itoa(i) + "]"
		if err := ValidateAmount(field+".amount", t.Amount); err != nil {
			return err
		}
		if t.Condition == "" || t.IlpPacket == "" {
			return &ValidationError{Field: field, Reason: "condition and ilpPacket are required"}
		}
	}
	return nil
}

// BulkTransferState is the persisted record of a bulk transfer.
type BulkTransferState struct {
	Meta
	BulkTransferInput

	Request  *BulkTransferRequest  `json:"bulkTransferRequest,omitempty"`
	Response *BulkTransferResponse `json:"bulkTransferResponse,omitempty"`
	Ack      *Ack                  `json:"ack,omitempty"`
}

// RequestToPayInput is a payee-initiated request for funds.
type RequestToPayInput struct {
	TransactionRequestID string        `json:"transactionRequestId,omitempty"`
	HomeTransactionID    string        `json:"homeTransactionId"`
	From                 TransferParty `json:"from"`
	To                   TransferParty `json:"to"`
	Currency             string        `json:"currency"`
	Amount               string        `json:"amount"`
	Scenario             string        `json:"scenario,omitempty"`
	InitiatorType        string        `json:"initiatorType,omitempty"`
	Note                 string        `json:"note,omitempty"`
	SkipPartyLookup      bool          `json:"skipPartyLookup,omitempty"`
	AcceptParty          *bool         `json:"acceptParty,omitempty"`
}

// Validate checks the caller supplied fields.
func (in RequestToPayInput) Validate() error {
	if err := in.From.Validate("from"); err != nil {
		return err
	}
	if err := in.To.Validate("to"); err != nil {
		return err
	}
	if len(in.Currency) != 3 {
		return &ValidationError{Field: "currency", Reason: "must be an ISO 4217 code"}
	}
	if in.SkipPartyLookup && in.From.FspID == "" {
		return &ValidationError{Field: "from.fspId", Reason: "is required when skipPartyLookup is set"}
	}
	return ValidateAmount("amount", in.Amount)
}

// RequestToPayState is the persisted record of a request to pay.
type RequestToPayState struct {
	Meta
	RequestToPayInput

	Request                 *TransactionRequest         `json:"transactionRequest,omitempty"`
	Response                *TransactionRequestResponse `json:"transactionRequestResponse,omitempty"`
	TransactionRequestState string                      `json:"transactionRequestState,omitempty"`
	Requests                map[string]*Ack             `json:"requests,omitempty"`
}
