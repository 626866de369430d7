package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aretw0/switchlink/internal/logging"
	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/aretw0/switchlink/pkg/models"
	"github.com/aretw0/switchlink/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// API serves the caller-facing endpoints that start and resume transactions.
type API struct {
	env     *models.Env
	guard   *session.Guard
	logger  *slog.Logger
	version string
}

// Option configures the API and callback handlers.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	version string
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithVersion is reported by GET /health.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

func buildOptions(opts []Option) options {
	o := options{logger: logging.NewNop(), version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewAPIHandler creates the caller API router.
// Resumes of one transaction are serialised through guard.
func NewAPIHandler(env *models.Env, guard *session.Guard, opts ...Option) http.Handler {
	o := buildOptions(opts)
	if guard == nil {
		guard = session.NewGuard(session.WithLogger(o.logger))
	}
	a := &API{env: env, guard: guard, logger: o.logger, version: o.version}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", a.health)
	r.Post("/transfers", a.postTransfer)
	r.Get("/transfers/{id}", a.getTransfer)
	r.Put("/transfers/{id}", a.putTransfer)
	r.Post("/bulkQuotes", a.postBulkQuote)
	r.Get("/bulkQuotes/{id}", a.getBulkQuote)
	r.Post("/bulkTransfers", a.postBulkTransfer)
	r.Get("/bulkTransfers/{id}", a.getBulkTransfer)
	r.Post("/requestToPay", a.postRequestToPay)
	r.Put("/requestToPay/{id}", a.putRequestToPay)
	r.Get("/parties/{type}/{id}", a.getParties)
	r.Get("/parties/{type}/{id}/{subId}", a.getParties)
	return r
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(a.logger, w, http.StatusOK, map[string]string{"status": "ok", "version": a.version})
}

func (a *API) postTransfer(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(a.logger, w, err, nil)
		return
	}
	m, err := models.NewTransfer(a.env, req)
	if err != nil {
		writeError(a.logger, w, err, nil)
		return
	}

	var resp *models.TransferResponse
	err = a.guard.WithLock(r.Context(), m.ID(), func(ctx context.Context) error {
		resp, err = m.Run(ctx)
		return err
	})
	respond(a, w, err, resp)
}

func (a *API) getTransfer(w http.ResponseWriter, r *http.Request) {
	m, err := models.LoadTransfer(r.Context(), a.env, chi.URLParam(r, "id"))
	if err != nil {
		writeError(a.logger, w, err, nil)
		return
	}
	writeJSON(a.logger, w, http.StatusOK, m.Response())
}

// putTransfer merges the caller decision and resumes the transfer.
func (a *API) putTransfer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body map[string]any
	if err := decodeBody(r, &body); err != nil {
		writeError(a.logger, w, err, nil)
		return
	}

	var resp *models.TransferResponse
	err := a.guard.WithLock(r.Context(), id, func(ctx context.Context) error {
		m, err := models.LoadTransfer(ctx, a.env, id)
		if err != nil {
			return err
		}
		if err := m.Merge(body); err != nil {
			return err
		}
		resp, err = m.Run(ctx)
		return err
	})
	respond(a, w, err, resp)
}

func (a *API) postBulkQuote(w http.ResponseWriter, r *http.Request) {
	var in domain.BulkQuoteInput
	if err := decodeBody(r, &in); err != nil {
		writeError(a.logger, w, err, nil)
		return
	}
	m, err := models.NewBulkQuote(a.env, in)
	if err != nil {
		writeError(a.logger, w, err, nil)
		return
	}
	resp, err := m.Run(r.Context())
	respond(a, w, err, resp)
}

func (a *API) getBulkQuote(w http.ResponseWriter, r *http.Request) {
	m, err := models.LoadBulkQuote(r.Context(), a.env, chi.URLParam(r, "id"))
	if err != nil {
		writeError(a.logger, w, err, nil)
		return
	}
	writeJSON(a.logger, w, http.StatusOK, m.Response())
}

func (a *API) postBulkTransfer(w http.ResponseWriter, r *http.Request) {
	var in domain.BulkTransferInput
	if err := decodeBody(r, &in); err != nil {
		writeError(a.logger, w, err, nil)
		return
	}
	m, err := models.NewBulkTransfer(a.env, in)
	if err != nil {
		writeError(a.logger, w, err, nil)
		return
	}
	resp, err := m.Run(r.Context())
	respond(a, w, err, resp)
}

func (a *API) getBulkTransfer(w http.ResponseWriter, r *http.Request) {
	m, err := models.LoadBulkTransfer(r.Context(), a.env, chi.URLParam(r, "id"))
	if err != nil {
		writeError(a.logger, w, err, nil)
		return
	}
	writeJSON(a.logger, w, http.StatusOK, m.Response())
}

func (a *API) postRequestToPay(w http.ResponseWriter, r *http.Request) {
	var in domain.RequestToPayInput
	if err := decodeBody(r, &in); err != nil {
		writeError(a.logger, w, err, nil)
		return
	}
	m, err := models.NewRequestToPay(a.env, in)
	if err != nil {
		writeError(a.logger, w, err, nil)
		return
	}

	var resp *models.RequestToPayResponse
	err = a.guard.WithLock(r.Context(), m.ID(), func(ctx context.Context) error {
		resp, err = m.Run(ctx)
		return err
	})
	respond(a, w, err, resp)
}

func (a *API) putRequestToPay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body map[string]any
	if err := decodeBody(r, &body); err != nil {
		writeError(a.logger, w, err, nil)
		return
	}

	var resp *models.RequestToPayResponse
	err := a.guard.WithLock(r.Context(), id, func(ctx context.Context) error {
		m, err := models.LoadRequestToPay(ctx, a.env, id)
		if err != nil {
			return err
		}
		if err := m.Merge(body); err != nil {
			return err
		}
		resp, err = m.Run(ctx)
		return err
	})
	respond(a, w, err, resp)
}

func (a *API) getParties(w http.ResponseWriter, r *http.Request) {
	args := models.PartyArgs{
		IDType:     chi.URLParam(r, "type"),
		IDValue:    chi.URLParam(r, "id"),
		IDSubValue: chi.URLParam(r, "subId"),
	}
	res, err := models.NewPartiesLookup(a.env).Run(r.Context(), args)
	respond(a, w, err, res)
}

// respond writes a model response, projected on failure too when the model produced one.
func respond[T any](a *API, w http.ResponseWriter, err error, resp *T) {
	if err != nil {
		var projected any
		if resp != nil {
			projected = resp
		}
		writeError(a.logger, w, err, projected)
		return
	}
	writeJSON(a.logger, w, http.StatusOK, resp)
}
