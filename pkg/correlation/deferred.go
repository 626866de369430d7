// Package correlation pairs an outbound protocol call with the asynchronous
// notification that answers it.
package correlation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/switchlink/internal/logging"
	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/aretw0/switchlink/pkg/ports"
)

// DefaultTimeout applies to jobs that do not set one.
const DefaultTimeout = 60 * time.Second

// Outcomes reported to the Observer.
const (
	OutcomeSuccess       = "success"
	OutcomeProtocolError = "protocol_error"
	OutcomeTimeout       = "timeout"
	OutcomeSendError     = "send_error"
	OutcomeCanceled      = "canceled"
)

// unsubscribeTimeout bounds cleanup once the outcome is known.
const unsubscribeTimeout = 5 * time.Second

// Expect names the message types that complete a job.
// Messages of any other type are logged and ignored.
type Expect struct {
	Success string
	Failure string
}

// Job describes one correlated wait.
type Job struct {
	// Step labels the job in logs and metrics.
	Step    string
	Channel string
	Timeout time.Duration
	Expect  Expect

	// Send performs the outbound call. Nil means only wait.
	Send func(ctx context.Context) error
}

// Observer is notified once per job with its outcome.
type Observer interface {
	ObserveCorrelation(step, outcome string, elapsed time.Duration)
}

// Option configures a Deferred.
type Option func(*Deferred)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Deferred) { d.logger = logger }
}

// WithObserver attaches an observer.
func WithObserver(o Observer) Option {
	return func(d *Deferred) { d.observer = o }
}

// WithDefaultTimeout overrides DefaultTimeout.
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(d *Deferred) { d.timeout = timeout }
}

// Deferred runs correlated jobs against a cache.
type Deferred struct {
	cache    ports.Cache
	logger   *slog.Logger
	observer Observer
	timeout  time.Duration
}

// New creates a Deferred bound to cache.
func New(cache ports.Cache, opts ...Option) *Deferred {
	d := &Deferred{
		cache:   cache,
		logger:  logging.NewNop(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run subscribes to the job channel, sends, then waits for the first matching
// notification. A failure notification resolves to a *domain.ProtocolError, no
// notification before the deadline to a *domain.TimeoutError. The subscription
// is always removed before Run returns.
func (d *Deferred) Run(ctx context.Context, job Job) (domain.Message, error) {
	var once sync.Once
	result := make(chan domain.Message, 1)
	logger := d.logger.With("step", job.Step, "channel", job.Channel)

	id, err := d.cache.Subscribe(ctx, job.Channel, func(payload []byte) {
		msg, ok := d.match(logger, job.Expect, payload)
		if !ok {
			return
		}
		delivered := false
		once.Do(func() {
			result <- msg
			delivered = true
		})
		if !delivered {
			logger.Debug("dropping late notification", "type", msg.Type)
		}
	})
	if err != nil {
		d.observe(job.Step, OutcomeSendError, 0)
		return domain.Message{}, fmt.Errorf("failed to subscribe to %s: %w", job.Channel, err)
	}
	defer d.unsubscribe(ctx, logger, job.Channel, id)

	if job.Send != nil {
		if err := job.Send(ctx); err != nil {
			d.observe(job.Step, OutcomeSendError, 0)
			return domain.Message{}, err
		}
	}

	timeout := d.timeoutOf(job)
	start := time.Now()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-result:
		return d.resolve(job, msg, start)
	case <-timer.C:
		once.Do(func() {})
		// A message delivered before the window closed still wins.
		select {
		case msg := <-result:
			return d.resolve(job, msg, start)
		default:
		}
		elapsed := time.Since(start)
		d.observe(job.Step, OutcomeTimeout, elapsed)
		return domain.Message{}, &domain.TimeoutError{Channel: job.Channel, Elapsed: elapsed}
	case <-ctx.Done():
		once.Do(func() {})
		d.observe(job.Step, OutcomeCanceled, time.Since(start))
		return domain.Message{}, ctx.Err()
	}
}

func (d *Deferred) resolve(job Job, msg domain.Message, start time.Time) (domain.Message, error) {
	if msg.Type == job.Expect.Failure {
		d.observe(job.Step, OutcomeProtocolError, time.Since(start))
		return msg, protocolError(job.Step, msg)
	}
	d.observe(job.Step, OutcomeSuccess, time.Since(start))
	return msg, nil
}

// Await waits for a notification that an earlier, already in-flight request
// will produce. Job.Send is ignored.
func (d *Deferred) Await(ctx context.Context, job Job) (domain.Message, error) {
	job.Send = nil
	return d.Run(ctx, job)
}

// Collect sends once and gathers every success notification published on the
// channel until the job timeout elapses. It fails only when nothing succeeded:
// with the first failure notification if one arrived, otherwise with a timeout.
func (d *Deferred) Collect(ctx context.Context, job Job) ([]domain.Message, error) {
	var (
		mu        sync.Mutex
		closed    bool
		successes []domain.Message
		failure   *domain.Message
	)
	logger := d.logger.With("step", job.Step, "channel", job.Channel)

	id, err := d.cache.Subscribe(ctx, job.Channel, func(payload []byte) {
		msg, ok := d.match(logger, job.Expect, payload)
		if !ok {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		switch {
		case closed:
			logger.Debug("dropping late notification", "type", msg.Type)
		case msg.Type == job.Expect.Failure:
			if failure == nil {
				failure = &msg
			}
		default:
			successes = append(successes, msg)
		}
	})
	if err != nil {
		d.observe(job.Step, OutcomeSendError, 0)
		return nil, fmt.Errorf("failed to subscribe to %s: %w", job.Channel, err)
	}
	defer d.unsubscribe(ctx, logger, job.Channel, id)

	if job.Send != nil {
		if err := job.Send(ctx); err != nil {
			d.observe(job.Step, OutcomeSendError, 0)
			return nil, err
		}
	}

	window := d.timeoutOf(job)
	start := time.Now()
	timer := time.NewTimer(window)
	defer timer.Stop()

	var ctxErr error
	select {
	case <-timer.C:
	case <-ctx.Done():
		ctxErr = ctx.Err()
	}

	mu.Lock()
	closed = true
	got := successes
	failed := failure
	mu.Unlock()

	elapsed := time.Since(start)
	switch {
	case len(got) > 0:
		d.observe(job.Step, OutcomeSuccess, elapsed)
		return got, nil
	case ctxErr != nil:
		d.observe(job.Step, OutcomeCanceled, elapsed)
		return nil, ctxErr
	case failed != nil:
		d.observe(job.Step, OutcomeProtocolError, elapsed)
		return nil, protocolError(job.Step, *failed)
	default:
		d.observe(job.Step, OutcomeTimeout, elapsed)
		return nil, &domain.TimeoutError{Channel: job.Channel, Elapsed: elapsed}
	}
}

func (d *Deferred) match(logger *slog.Logger, expect Expect, payload []byte) (domain.Message, bool) {
	msg, err := domain.DecodeMessage(payload)
	if err != nil {
		logger.Warn("ignoring undecodable notification", "error", err)
		return domain.Message{}, false
	}
	if msg.Type != expect.Success && msg.Type != expect.Failure {
		logger.Debug("ignoring notification of unexpected type", "type", msg.Type)
		return domain.Message{}, false
	}
	return msg, true
}

func (d *Deferred) unsubscribe(ctx context.Context, logger *slog.Logger, channel string, id ports.SubscriptionID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unsubscribeTimeout)
	defer cancel()
	if err := d.cache.Unsubscribe(ctx, channel, id); err != nil {
		logger.Warn("failed to unsubscribe", "error", err)
	}
}

func (d *Deferred) timeoutOf(job Job) time.Duration {
	if job.Timeout > 0 {
		return job.Timeout
	}
	return d.timeout
}

func (d *Deferred) observe(step, outcome string, elapsed time.Duration) {
	if d.observer != nil {
		d.observer.ObserveCorrelation(step, outcome, elapsed)
	}
}

func protocolError(step string, msg domain.Message) error {
	pErr := &domain.ProtocolError{
		Message:    fmt.Sprintf("%s failed", step),
		StatusCode: 500,
	}
	var info domain.ErrorInformationObject
	if err := msg.Decode(&info); err == nil && info.ErrorInformation.ErrorCode != "" {
		pErr.MojaloopError = &info
	}
	return pErr
}

// IsTimeout reports whether err is a correlation timeout.
func IsTimeout(err error) bool {
	var tErr *domain.TimeoutError
	return errors.As(err, &tErr)
}
