package domain

import (
	"github.com/shopspring/decimal"
)

// AmountType defines which side of the transfer the amount is fixed on.
type AmountType string

const (
	AmountTypeSend    AmountType = "SEND"
	AmountTypeReceive AmountType = "RECEIVE"
)

// Valid reports whether t is a known amount type.
func (t AmountType) Valid() bool {
	return t == AmountTypeSend || t == AmountTypeReceive
}

// Money is an amount in a given ISO 4217 currency.
// Amounts travel as strings to avoid floating point drift.
type Money struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount,omitempty"`
}

// Decimal parses the amount.
func (m Money) Decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(m.Amount)
}

// ValidateAmount checks that amount is a strictly positive decimal.
func ValidateAmount(field, amount string) error {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return &ValidationError{Field: field, Reason: "not a decimal amount"}
	}
	if !d.IsPositive() {
		return &ValidationError{Field: field, Reason: "must be greater than zero"}
	}
	return nil
}

// Extension is a key/value pair carried in protocol extension lists.
type Extension struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ExtensionList is the protocol wrapper around extensions.
type ExtensionList struct {
	Extension []Extension `json:"extension"`
}

// NewExtensionList returns nil for an empty slice so it is omitted on the wire.
func NewExtensionList(ext []Extension) *ExtensionList {
	if len(ext) == 0 {
		return nil
	}
	return &ExtensionList{Extension: ext}
}

// TransactionType describes the business scenario of a quote or transaction request.
type TransactionType struct {
	Scenario      string `json:"scenario"`
	SubScenario   string `json:"subScenario,omitempty"`
	Initiator     string `json:"initiator"`
	InitiatorType string `json:"initiatorType"`
}

// ErrorInformation is the protocol error body.
type ErrorInformation struct {
	ErrorCode        string         `json:"errorCode"`
	ErrorDescription string         `json:"errorDescription"`
	ExtensionList    *ExtensionList `json:"extensionList,omitempty"`
}

// ErrorInformationObject wraps ErrorInformation as sent in PUT .../error callbacks.
type ErrorInformationObject struct {
	ErrorInformation ErrorInformation `json:"errorInformation"`
}
