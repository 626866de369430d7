package models

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/switchlink/internal/logging"
	"github.com/aretw0/switchlink/pkg/correlation"
	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/aretw0/switchlink/pkg/ilp"
	"github.com/aretw0/switchlink/pkg/observability"
	"github.com/aretw0/switchlink/pkg/ports"
	"github.com/google/uuid"
)

// Config holds the behaviour switches shared by every model.
type Config struct {
	// DFSPID is our participant id on the switch.
	DFSPID string

	// SupportedCurrencies are the currencies we can settle in. The first one is
	// the conversion source when a RECEIVE amount needs conversion.
	SupportedCurrencies []string

	AutoAcceptParty      bool
	AutoAcceptQuotes     bool
	AutoAcceptConversion bool

	UseQuoteSourceAsTransferDestination bool
	RejectExpiredQuoteResponses         bool
	RejectExpiredFxQuoteResponses       bool
	ValidateFulfilment                  bool
	SendFinalNotificationIfRequested    bool

	// MultiplePartiesResponse collects every lookup answer for
	// MultiplePartiesResponseWindow instead of taking the first one.
	MultiplePartiesResponse       bool
	MultiplePartiesResponseWindow time.Duration

	// ExpiryDuration is added to now to build outbound expirations.
	ExpiryDuration time.Duration

	// RequestTimeout bounds every correlated wait.
	RequestTimeout time.Duration

	// RecordTTL is the expiry of persisted records. Zero keeps them forever.
	RecordTTL time.Duration
}

// DefaultConfig returns a configuration with every optional behaviour disabled.
func DefaultConfig() Config {
	return Config{
		MultiplePartiesResponseWindow: 5 * time.Second,
		ExpiryDuration:                60 * time.Second,
		RequestTimeout:                correlation.DefaultTimeout,
	}
}

// maxCorrelatedWaits is the longest chain of correlated waits in one Run:
// payee lookup, FXP services, FX quote, quote, FX transfer and transfer.
const maxCorrelatedWaits = 6

// RunBudget bounds how long a single Run can block on the switch. Locks held
// across a Run must outlive it.
func (c Config) RunBudget() time.Duration {
	timeout := c.RequestTimeout
	if timeout <= 0 {
		timeout = correlation.DefaultTimeout
	}
	budget := maxCorrelatedWaits * timeout
	if c.MultiplePartiesResponse {
		budget += c.MultiplePartiesResponseWindow
	}
	return budget
}

// Env bundles the collaborators shared by every model instance.
type Env struct {
	cache    ports.Cache
	client   ports.RequestClient
	packet   ports.PaymentPacket
	cfg      Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	deferred *correlation.Deferred
	now      func() time.Time
	newID    func() string
}

// Option configures an Env.
type Option func(*Env)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Env) { e.logger = logger }
}

// WithPaymentPacket replaces the default ilp.Packet.
func WithPaymentPacket(p ports.PaymentPacket) Option {
	return func(e *Env) { e.packet = p }
}

// WithMetrics records transitions and correlations.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Env) { e.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Env) { e.now = now }
}

// WithIDGenerator replaces uuid.NewString for generated ids.
func WithIDGenerator(fn func() string) Option {
	return func(e *Env) { e.newID = fn }
}

// NewEnv creates the shared model environment.
func NewEnv(cache ports.Cache, client ports.RequestClient, cfg Config, opts ...Option) *Env {
	e := &Env{
		cache:  cache,
		client: client,
		packet: ilp.Packet{},
		cfg:    cfg,
		logger: logging.NewNop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}

	dopts := []correlation.Option{correlation.WithLogger(e.logger)}
	if cfg.RequestTimeout > 0 {
		dopts = append(dopts, correlation.WithDefaultTimeout(cfg.RequestTimeout))
	}
	if e.metrics != nil {
		dopts = append(dopts, correlation.WithObserver(e.metrics))
	}
	e.deferred = correlation.New(cache, dopts...)
	return e
}

// Config returns the model configuration.
func (e *Env) Config() Config {
	return e.cfg
}

// Cache returns the shared cache.
func (e *Env) Cache() ports.Cache {
	return e.cache
}

func (e *Env) expiration() string {
	return e.now().UTC().Add(e.cfg.ExpiryDuration).Format(timestampLayout)
}

func (e *Env) timestamp() string {
	return e.now().UTC().Format(timestampLayout)
}

// expired reports whether an ISO 8601 expiration lies in the past.
// Unparseable values are treated as not expired.
func (e *Env) expired(expiration string) bool {
	if expiration == "" {
		return false
	}
	t, err := time.Parse(time.RFC3339Nano, expiration)
	if err != nil {
		return false
	}
	return !e.now().Before(t)
}

const timestampLayout = "2006-01-02T15:04:05.000Z"

// call sends one outbound request and waits for its correlated notification.
// The acknowledgement is returned even when the wait fails.
func (e *Env) call(ctx context.Context, step, channel string, expect correlation.Expect, send func(ctx context.Context) (*domain.Ack, error)) (domain.Message, *domain.Ack, error) {
	var ack *domain.Ack
	msg, err := e.deferred.Run(ctx, correlation.Job{
		Step:    step,
		Channel: channel,
		Timeout: e.cfg.RequestTimeout,
		Expect:  expect,
		Send: func(ctx context.Context) error {
			a, err := send(ctx)
			ack = a
			return err
		},
	})
	return msg, ack, err
}

// checkFulfilment verifies a fulfilment against its condition when enabled.
func (e *Env) checkFulfilment(fulfilment, condition string) error {
	if !e.cfg.ValidateFulfilment {
		return nil
	}
	if !e.packet.ValidateFulfilment(fulfilment, condition) {
		return &domain.ValidationError{Field: "fulfilment", Reason: "does not match the condition"}
	}
	return nil
}
