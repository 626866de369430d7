package domain

// Transaction request states reported by the payer side.
const (
	TransactionRequestReceived = "RECEIVED"
	TransactionRequestPending  = "PENDING"
	TransactionRequestAccepted = "ACCEPTED"
	TransactionRequestRejected = "REJECTED"
)

// TransactionRequest is the body of POST /transactionRequests (payee-initiated request to pay).
type TransactionRequest struct {
	TransactionRequestID string          `json:"transactionRequestId"`
	Payee                Party           `json:"payee"`
	Payer                PartyIDInfo     `json:"payer"`
	Amount               Money           `json:"amount"`
	TransactionType      TransactionType `json:"transactionType"`
	Note                 string          `json:"note,omitempty"`
	Expiration           string          `json:"expiration,omitempty"`
	ExtensionList        *ExtensionList  `json:"extensionList,omitempty"`
}

// TransactionRequestResponse is the body of a PUT /transactionRequests/{id} callback.
type TransactionRequestResponse struct {
	TransactionID           string         `json:"transactionId,omitempty"`
	TransactionRequestState string         `json:"transactionRequestState"`
	ExtensionList           *ExtensionList `json:"extensionList,omitempty"`
}
