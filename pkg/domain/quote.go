package domain

// QuoteRequest is the body of POST /quotes.
type QuoteRequest struct {
	QuoteID              string          `json:"quoteId"`
	TransactionID        string          `json:"transactionId"`
	TransactionRequestID string          `json:"transactionRequestId,omitempty"`
	Payee                Party           `json:"payee"`
	Payer                Party           `json:"payer"`
	AmountType           AmountType      `json:"amountType"`
	Amount               Money           `json:"amount"`
	Fees                 *Money          `json:"fees,omitempty"`
	TransactionType      TransactionType `json:"transactionType"`
	Note                 string          `json:"note,omitempty"`
	Expiration           string          `json:"expiration,omitempty"`
	ExtensionList        *ExtensionList  `json:"extensionList,omitempty"`
}

// QuoteResponse is the body of a PUT /quotes/{id} callback.
type QuoteResponse struct {
	TransferAmount     Money          `json:"transferAmount"`
	PayeeReceiveAmount *Money         `json:"payeeReceiveAmount,omitempty"`
	PayeeFspFee        *Money         `json:"payeeFspFee,omitempty"`
	PayeeFspCommission *Money         `json:"payeeFspCommission,omitempty"`
	Expiration         string         `json:"expiration"`
	IlpPacket          string         `json:"ilpPacket"`
	Condition          string         `json:"condition"`
	ExtensionList      *ExtensionList `json:"extensionList,omitempty"`
}
