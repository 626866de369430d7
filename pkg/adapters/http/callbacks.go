package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/aretw0/switchlink/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxCallbackBody bounds notification bodies read from the switch.
const maxCallbackBody = 1 << 20

// Callbacks relays asynchronous notifications from the switch onto the
// correlation channels the models wait on.
type Callbacks struct {
	cache  ports.Cache
	logger *slog.Logger
}

// channelFunc derives the correlation channel from the request path.
type channelFunc func(r *http.Request) string

// NewCallbackHandler creates the switch callback router.
func NewCallbackHandler(cache ports.Cache, opts ...Option) http.Handler {
	o := buildOptions(opts)
	c := &Callbacks{cache: cache, logger: o.logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	party := func(r *http.Request) string {
		return domain.PartyChannel(chi.URLParam(r, "type"), chi.URLParam(r, "id"), chi.URLParam(r, "subId"))
	}
	r.Put("/parties/{type}/{id}", c.parties(party))
	r.Put("/parties/{type}/{id}/error", c.relay(party, domain.MessagePartyError))
	r.Put("/parties/{type}/{id}/{subId}", c.parties(party))
	r.Put("/parties/{type}/{id}/{subId}/error", c.relay(party, domain.MessagePartyError))

	fxp := func(r *http.Request) string {
		return domain.FxpServicesChannel(chi.URLParam(r, "source"), chi.URLParam(r, "target"))
	}
	r.Put("/services/FXP/{source}/{target}", c.relay(fxp, domain.MessageFxpServicesResponse))
	r.Put("/services/FXP/{source}/{target}/error", c.relay(fxp, domain.MessageFxpServicesResponseError))

	c.pair(r, "/quotes", domain.QuoteChannel, domain.MessageQuoteResponse, domain.MessageQuoteResponseError)
	c.pair(r, "/fxQuotes", domain.FxQuoteChannel, domain.MessageFxQuoteResponse, domain.MessageFxQuoteResponseError)
	c.pair(r, "/transfers", domain.TransferChannel, domain.MessageTransferFulfil, domain.MessageTransferError)
	c.pair(r, "/fxTransfers", domain.FxTransferChannel, domain.MessageFxTransferFulfil, domain.MessageFxTransferError)
	c.pair(r, "/bulkQuotes", domain.BulkQuoteChannel, domain.MessageBulkQuoteResponse, domain.MessageBulkQuoteResponseError)
	c.pair(r, "/bulkTransfers", domain.BulkTransferChannel, domain.MessageBulkTransferFulfil, domain.MessageBulkTransferError)
	c.pair(r, "/transactionRequests", domain.TransactionRequestChannel, domain.MessageTransactionRequestResponse, domain.MessageTransactionRequestResponseError)
	return r
}

// pair registers PUT prefix/{id} and PUT prefix/{id}/error.
func (c *Callbacks) pair(r chi.Router, prefix string, channel func(id string) string, success, failure string) {
	byID := func(r *http.Request) string { return channel(chi.URLParam(r, "id")) }
	r.Put(prefix+"/{id}", c.relay(byID, success))
	r.Put(prefix+"/{id}/error", c.relay(byID, failure))
}

// parties relays a lookup answer and records the responder for batch lookups.
func (c *Callbacks) parties(channel channelFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := c.read(w, r)
		if !ok {
			return
		}
		key := domain.PartyRespondersKey(chi.URLParam(r, "type"), chi.URLParam(r, "id"), chi.URLParam(r, "subId"))
		if err := c.cache.AddMember(r.Context(), key, string(body)); err != nil {
			c.logger.Warn("failed to record party responder", "key", key, "error", err)
		}
		c.publish(w, r, channel(r), domain.MessagePartyResolved, body)
	}
}

func (c *Callbacks) relay(channel channelFunc, typ string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := c.read(w, r)
		if !ok {
			return
		}
		c.publish(w, r, channel(r), typ, body)
	}
}

func (c *Callbacks) read(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		writeError(c.logger, w, &domain.ValidationError{Field: "body", Reason: err.Error()}, nil)
		return nil, false
	}
	if !json.Valid(body) {
		writeError(c.logger, w, &domain.ValidationError{Field: "body", Reason: "is not valid JSON"}, nil)
		return nil, false
	}
	return body, true
}

func (c *Callbacks) publish(w http.ResponseWriter, r *http.Request, channel, typ string, body []byte) {
	msg := domain.Message{
		Type: typ,
		Data: body,
		Headers: map[string]string{
			domain.HeaderSource:      r.Header.Get(domain.HeaderSource),
			domain.HeaderDestination: r.Header.Get(domain.HeaderDestination),
		},
	}
	payload, err := msg.Encode()
	if err != nil {
		writeError(c.logger, w, err, nil)
		return
	}
	if err := c.cache.Publish(r.Context(), channel, payload); err != nil {
		writeError(c.logger, w, err, nil)
		return
	}
	c.logger.Debug("relayed notification", "channel", channel, "type", typ, "source", msg.Headers[domain.HeaderSource])
	w.WriteHeader(http.StatusOK)
}
