package ports

import (
	"context"

	"github.com/aretw0/switchlink/pkg/domain"
)

// RequestClient sends outbound protocol calls to the switch.
// Every method returns as soon as the switch accepted the request for
// asynchronous processing; the result arrives later as a notification.
type RequestClient interface {
	GetParties(ctx context.Context, idType, idValue, idSubValue, destFspID string) (*domain.Ack, error)
	GetServicesFXP(ctx context.Context, sourceCurrency, targetCurrency string) (*domain.Ack, error)
	PostQuotes(ctx context.Context, req domain.QuoteRequest, destFspID string) (*domain.Ack, error)
	PostFxQuotes(ctx context.Context, req domain.FxQuoteRequest, destFspID string) (*domain.Ack, error)
	PostTransfers(ctx context.Context, req domain.TransferPrepare, destFspID string) (*domain.Ack, error)
	PostFxTransfers(ctx context.Context, req domain.FxTransferPrepare, destFspID string) (*domain.Ack, error)
	PatchTransfers(ctx context.Context, transferID string, patch domain.TransferPatch, destFspID string) (*domain.Ack, error)
	GetTransfers(ctx context.Context, transferID string) (*domain.Ack, error)
	PostBulkQuotes(ctx context.Context, req domain.BulkQuoteRequest, destFspID string) (*domain.Ack, error)
	PostBulkTransfers(ctx context.Context, req domain.BulkTransferRequest, destFspID string) (*domain.Ack, error)
	PostTransactionRequests(ctx context.Context, req domain.TransactionRequest, destFspID string) (*domain.Ack, error)
}

// PaymentPacket verifies the cryptographic proof binding a transfer to its quote.
type PaymentPacket interface {
	ValidateFulfilment(fulfilment, condition string) bool
}
