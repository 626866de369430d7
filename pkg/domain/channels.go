package domain

import "strings"

// PartyChannel is the correlation channel of a party lookup.
func PartyChannel(idType, idValue, idSubValue string) string {
	parts := []string{idType, idValue}
	if idSubValue != "" {
		parts = append(parts, idSubValue)
	}
	return strings.Join(parts, "_")
}

// PartyRespondersKey is the set holding every participant that answered a lookup.
func PartyRespondersKey(idType, idValue, idSubValue string) string {
	return "responders_" + PartyChannel(idType, idValue, idSubValue)
}

func FxpServicesChannel(source, target string) string {
	return "fxpSvc_" + source + "_" + target
}

func QuoteChannel(quoteID string) string {
	return "qt_" + quoteID
}

func FxQuoteChannel(conversionRequestID string) string {
	return "fxqt_" + conversionRequestID
}

func TransferChannel(transferID string) string {
	return "tf_" + transferID
}

func FxTransferChannel(commitRequestID string) string {
	return "fxtf_" + commitRequestID
}

func BulkQuoteChannel(bulkQuoteID string) string {
	return "bq_" + bulkQuoteID
}

func BulkTransferChannel(bulkTransferID string) string {
	return "bt_" + bulkTransferID
}

func TransactionRequestChannel(transactionRequestID string) string {
	return "txnreq_" + transactionRequestID
}

// RecordKey is the cache key of the primary record.
func RecordKey(recordType, id string) string {
	return recordType + "_" + id
}

// UIRecordKey is the cache key of the redacted display copy.
func UIRecordKey(recordType, id string) string {
	return recordType + "UI_" + id
}
