package domain

// IndividualQuote is one entry of a bulk quote request.
type IndividualQuote struct {
	QuoteID         string          `json:"quoteId"`
	TransactionID   string          `json:"transactionId"`
	Payee           Party           `json:"payee"`
	AmountType      AmountType      `json:"amountType"`
	Amount          Money           `json:"amount"`
	TransactionType TransactionType `json:"transactionType"`
	Note            string          `json:"note,omitempty"`
	ExtensionList   *ExtensionList  `json:"extensionList,omitempty"`
}

// BulkQuoteRequest is the body of POST /bulkQuotes.
type BulkQuoteRequest struct {
	BulkQuoteID      string            `json:"bulkQuoteId"`
	Payer            Party             `json:"payer"`
	Expiration       string            `json:"expiration,omitempty"`
	IndividualQuotes []IndividualQuote `json:"individualQuotes"`
	ExtensionList    *ExtensionList    `json:"extensionList,omitempty"`
}

// IndividualQuoteResult is one entry of a bulk quote response.
type IndividualQuoteResult struct {
	QuoteID            string            `json:"quoteId"`
	Payee              *Party            `json:"payee,omitempty"`
	TransferAmount     *Money            `json:"transferAmount,omitempty"`
	PayeeReceiveAmount *Money            `json:"payeeReceiveAmount,omitempty"`
	PayeeFspFee        *Money            `json:"payeeFspFee,omitempty"`
	IlpPacket          string            `json:"ilpPacket,omitempty"`
	Condition          string            `json:"condition,omitempty"`
	ErrorInformation   *ErrorInformation `json:"errorInformation,omitempty"`
}

// BulkQuoteResponse is the body of a PUT /bulkQuotes/{id} callback.
type BulkQuoteResponse struct {
	IndividualQuoteResults []IndividualQuoteResult `json:"individualQuoteResults"`
	Expiration             string                  `json:"expiration"`
	ExtensionList          *ExtensionList          `json:"extensionList,omitempty"`
}

// IndividualTransfer is one entry of a bulk transfer request.
type IndividualTransfer struct {
	TransferID     string         `json:"transferId"`
	TransferAmount Money          `json:"transferAmount"`
	IlpPacket      string         `json:"ilpPacket"`
	Condition      string         `json:"condition"`
	ExtensionList  *ExtensionList `json:"extensionList,omitempty"`
}

// BulkTransferRequest is the body of POST /bulkTransfers.
type BulkTransferRequest struct {
	BulkTransferID      string               `json:"bulkTransferId"`
	BulkQuoteID         string               `json:"bulkQuoteId"`
	PayerFsp            string               `json:"payerFsp"`
	PayeeFsp            string               `json:"payeeFsp"`
	IndividualTransfers []IndividualTransfer `json:"individualTransfers"`
	Expiration          string               `json:"expiration"`
	ExtensionList       *ExtensionList       `json:"extensionList,omitempty"`
}

// IndividualTransferResult is one entry of a bulk transfer response.
type IndividualTransferResult struct {
	TransferID       string            `json:"transferId"`
	Fulfilment       string            `json:"fulfilment,omitempty"`
	ErrorInformation *ErrorInformation `json:"errorInformation,omitempty"`
}

// BulkTransferResponse is the body of a PUT /bulkTransfers/{id} callback.
type BulkTransferResponse struct {
	CompletedTimestamp        string                     `json:"completedTimestamp,omitempty"`
	BulkTransferState         string                     `json:"bulkTransferState"`
	IndividualTransferResults []IndividualTransferResult `json:"individualTransferResults,omitempty"`
	ExtensionList             *ExtensionList             `json:"extensionList,omitempty"`
}
