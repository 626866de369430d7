package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	switchhttp "github.com/aretw0/switchlink/pkg/adapters/http"
	"github.com/aretw0/switchlink/pkg/adapters/memory"
	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	mu   sync.Mutex
	msgs []domain.Message
}

func (r *received) handler(t *testing.T) func([]byte) {
	return func(payload []byte) {
		msg, err := domain.DecodeMessage(payload)
		assert.NoError(t, err)
		r.mu.Lock()
		r.msgs = append(r.msgs, msg)
		r.mu.Unlock()
	}
}

func (r *received) all() []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Message(nil), r.msgs...)
}

func put(h http.Handler, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPut, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCallbacks_RelayToChannels(t *testing.T) {
	tests := []struct {
		path    string
		channel string
		typ     string
	}{
		{"/quotes/q1", domain.QuoteChannel("q1"), domain.MessageQuoteResponse},
		{"/quotes/q1/error", domain.QuoteChannel("q1"), domain.MessageQuoteResponseError},
		{"/fxQuotes/c1", domain.FxQuoteChannel("c1"), domain.MessageFxQuoteResponse},
		{"/transfers/t1", domain.TransferChannel("t1"), domain.MessageTransferFulfil},
		{"/transfers/t1/error", domain.TransferChannel("t1"), domain.MessageTransferError},
		{"/fxTransfers/x1", domain.FxTransferChannel("x1"), domain.MessageFxTransferFulfil},
		{"/bulkQuotes/b1", domain.BulkQuoteChannel("b1"), domain.MessageBulkQuoteResponse},
		{"/bulkTransfers/b2/error", domain.BulkTransferChannel("b2"), domain.MessageBulkTransferError},
		{"/transactionRequests/r1", domain.TransactionRequestChannel("r1"), domain.MessageTransactionRequestResponse},
		{"/services/FXP/USD/EUR", domain.FxpServicesChannel("USD", "EUR"), domain.MessageFxpServicesResponse},
		{"/parties/MSISDN/123/error", domain.PartyChannel("MSISDN", "123", ""), domain.MessagePartyError},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			cache := memory.NewCache()
			h := switchhttp.NewCallbackHandler(cache)
			got := &received{}
			_, err := cache.Subscribe(context.Background(), tt.channel, got.handler(t))
			require.NoError(t, err)

			w := put(h, tt.path, `{"ok":true}`, map[string]string{"FSPIOP-Source": "PEER1"})
			require.Equal(t, http.StatusOK, w.Code)

			msgs := got.all()
			require.Len(t, msgs, 1)
			assert.Equal(t, tt.typ, msgs[0].Type)
			assert.Equal(t, "PEER1", msgs[0].Header(domain.HeaderSource))
			assert.JSONEq(t, `{"ok":true}`, string(msgs[0].Data))
		})
	}
}

func TestCallbacks_PartiesRecordsResponder(t *testing.T) {
	cache := memory.NewCache()
	h := switchhttp.NewCallbackHandler(cache)
	got := &received{}
	_, err := cache.Subscribe(context.Background(), domain.PartyChannel("MSISDN", "123", "sub"), got.handler(t))
	require.NoError(t, err)

	body := `{"party":{"partyIdInfo":{"partyIdType":"MSISDN","partyIdentifier":"123","partySubIdOrType":"sub","fspId":"PEER1"}}}`
	w := put(h, "/parties/MSISDN/123/sub", body, nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, got.all(), 1)
	assert.Equal(t, domain.MessagePartyResolved, got.all()[0].Type)

	members, err := cache.Members(context.Background(), domain.PartyRespondersKey("MSISDN", "123", "sub"))
	require.NoError(t, err)
	assert.Equal(t, []string{body}, members)
}

func TestCallbacks_RejectsInvalidJSON(t *testing.T) {
	h := switchhttp.NewCallbackHandler(memory.NewCache())
	w := put(h, "/quotes/q1", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
