package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Notification types published on correlation channels.
const (
	MessagePartyResolved = "partyResolved"
	MessagePartyError    = "partyError"

	MessageFxpServicesResponse      = "fxpServicesResponse"
	MessageFxpServicesResponseError = "fxpServicesResponseError"

	MessageQuoteResponse      = "quoteResponse"
	MessageQuoteResponseError = "quoteResponseError"

	MessageFxQuoteResponse      = "fxQuoteResponse"
	MessageFxQuoteResponseError = "fxQuoteResponseError"

	MessageTransferFulfil = "transferFulfil"
	MessageTransferError  = "transferError"

	MessageFxTransferFulfil = "fxTransferFulfil"
	MessageFxTransferError  = "fxTransferError"

	MessageBulkQuoteResponse      = "bulkQuoteResponse"
	MessageBulkQuoteResponseError = "bulkQuoteResponseError"

	MessageBulkTransferFulfil = "bulkTransferFulfil"
	MessageBulkTransferError  = "bulkTransferError"

	MessageTransactionRequestResponse      = "transactionRequestResponse"
	MessageTransactionRequestResponseError = "transactionRequestResponseError"
)

// Protocol headers copied into notification envelopes.
const (
	HeaderSource      = "fspiop-source"
	HeaderDestination = "fspiop-destination"
)

// Message is the envelope published on a correlation channel.
// Type discriminates success, error and messages the waiter does not care about.
type Message struct {
	Type    string            `json:"type"`
	Data    json.RawMessage   `json:"data,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// NewMessage builds an envelope around data.
func NewMessage(typ string, data any, headers map[string]string) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	return Message{Type: typ, Data: raw, Headers: headers}, nil
}

// DecodeMessage parses an envelope off the wire.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, fmt.Errorf("malformed message envelope: %w", err)
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("malformed message envelope: missing type")
	}
	return msg, nil
}

// Encode serialises the envelope for publishing.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("message %s has no data", m.Type)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", m.Type, err)
	}
	return nil
}

// Header returns a header value, matching the name case-insensitively.
func (m Message) Header(name string) string {
	if v, ok := m.Headers[name]; ok {
		return v
	}
	for k, v := range m.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Ack is the acknowledgement of an outbound protocol call.
// It only states that the switch accepted the request for asynchronous processing.
type Ack struct {
	Method     string            `json:"method"`
	URL        string            `json:"url"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       json.RawMessage   `json:"body,omitempty"`
	StatusCode int               `json:"statusCode"`
}
