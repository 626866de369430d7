package domain

// Transfer states reported by the switch.
const (
	TransferStateReceived  = "RECEIVED"
	TransferStateReserved  = "RESERVED"
	TransferStateCommitted = "COMMITTED"
	TransferStateAborted   = "ABORTED"
)

// TransferPrepare is the body of POST /transfers.
type TransferPrepare struct {
	TransferID    string         `json:"transferId"`
	PayeeFsp      string         `json:"payeeFsp"`
	PayerFsp      string         `json:"payerFsp"`
	Amount        Money          `json:"amount"`
	IlpPacket     string         `json:"ilpPacket"`
	Condition     string         `json:"condition"`
	Expiration    string         `json:"expiration"`
	ExtensionList *ExtensionList `json:"extensionList,omitempty"`
}

// TransferFulfil is the body of a PUT /transfers/{id} callback.
type TransferFulfil struct {
	Fulfilment         string         `json:"fulfilment,omitempty"`
	CompletedTimestamp string         `json:"completedTimestamp,omitempty"`
	TransferState      string         `json:"transferState"`
	ExtensionList      *ExtensionList `json:"extensionList,omitempty"`
}

// TransferPatch is the body of PATCH /transfers/{id}, confirming final settlement.
type TransferPatch struct {
	CompletedTimestamp string `json:"completedTimestamp"`
	TransferState      string `json:"transferState"`
}
