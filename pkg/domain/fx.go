package domain

// FxCharge is a fee levied by a foreign exchange provider.
type FxCharge struct {
	ChargeType   string `json:"chargeType"`
	SourceAmount *Money `json:"sourceAmount,omitempty"`
	TargetAmount *Money `json:"targetAmount,omitempty"`
}

// ConversionTerms are the priced terms of a currency conversion.
type ConversionTerms struct {
	ConversionID          string         `json:"conversionId"`
	DeterminingTransferID string         `json:"determiningTransferId,omitempty"`
	InitiatingFsp         string         `json:"initiatingFsp"`
	CounterPartyFsp       string         `json:"counterPartyFsp"`
	AmountType            AmountType     `json:"amountType"`
	SourceAmount          Money          `json:"sourceAmount"`
	TargetAmount          Money          `json:"targetAmount"`
	Expiration            string         `json:"expiration"`
	Charges               []FxCharge     `json:"charges,omitempty"`
	ExtensionList         *ExtensionList `json:"extensionList,omitempty"`
}

// FxQuoteRequest is the body of POST /fxQuotes.
type FxQuoteRequest struct {
	ConversionRequestID string          `json:"conversionRequestId"`
	ConversionTerms     ConversionTerms `json:"conversionTerms"`
}

// FxQuoteResponse is the body of a PUT /fxQuotes/{id} callback.
type FxQuoteResponse struct {
	Condition       string          `json:"condition"`
	ConversionTerms ConversionTerms `json:"conversionTerms"`
}

// FxTransferPrepare is the body of POST /fxTransfers.
type FxTransferPrepare struct {
	CommitRequestID       string     `json:"commitRequestId"`
	DeterminingTransferID string     `json:"determiningTransferId"`
	InitiatingFsp         string     `json:"initiatingFsp"`
	CounterPartyFsp       string     `json:"counterPartyFsp"`
	AmountType            AmountType `json:"amountType"`
	SourceAmount          Money      `json:"sourceAmount"`
	TargetAmount          Money      `json:"targetAmount"`
	Condition             string     `json:"condition"`
	Expiration            string     `json:"expiration"`
}

// FxTransferResponse is the body of a PUT /fxTransfers/{id} callback.
type FxTransferResponse struct {
	Fulfilment         string         `json:"fulfilment,omitempty"`
	CompletedTimestamp string         `json:"completedTimestamp,omitempty"`
	ConversionState    string         `json:"conversionState"`
	ExtensionList      *ExtensionList `json:"extensionList,omitempty"`
}

// FxpServicesResponse lists the providers able to convert between two currencies.
type FxpServicesResponse struct {
	Providers []string `json:"providers"`
}
