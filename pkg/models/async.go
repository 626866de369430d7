package models

import (
	"context"
	"fmt"

	"github.com/aretw0/switchlink/pkg/correlation"
	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/aretw0/switchlink/pkg/fsm"
	"github.com/aretw0/switchlink/pkg/ports"
)

const transitionRequest = "request"

var asyncEvents = []fsm.Event{
	{Name: transitionRequest, From: []string{stateStart}, To: stateSucceeded},
	{Name: transitionError, From: []string{fsm.Wildcard}, To: stateErrored},
}

// AsyncSpec parameterises a single request/notification model.
type AsyncSpec[A, R any] struct {
	// Name labels the model in logs and metrics.
	Name string

	// Channel derives the correlation channel from the call arguments.
	Channel func(args A) string

	// Send performs the outbound call. Nil builds an await-only model that
	// waits for a notification some earlier request will produce.
	Send func(ctx context.Context, client ports.RequestClient, args A) (*domain.Ack, error)

	// Validate checks the arguments before anything is sent. Optional.
	Validate func(args A) error

	// Reshape turns the notification into the result. Optional: the default
	// decodes the notification data into R.
	Reshape func(args A, msg domain.Message) (R, error)

	Expect correlation.Expect
}

// AsyncResult is the outcome of an AsyncModel run.
type AsyncResult[R any] struct {
	CurrentState string              `json:"currentState"`
	Response     R                   `json:"response"`
	Headers      map[string]string   `json:"headers,omitempty"`
	Ack          *domain.Ack         `json:"ack,omitempty"`
	LastError    *domain.ErrorDetail `json:"lastError,omitempty"`
}

// AsyncModel runs one correlated request/notification pair on a two-state machine.
type AsyncModel[A, R any] struct {
	env  *Env
	spec AsyncSpec[A, R]
}

// NewAsyncModel builds a model from spec.
func NewAsyncModel[A, R any](env *Env, spec AsyncSpec[A, R]) *AsyncModel[A, R] {
	return &AsyncModel[A, R]{env: env, spec: spec}
}

// Run validates args, sends, waits and returns the reshaped notification.
// On failure the returned result carries the errored state and last error.
func (m *AsyncModel[A, R]) Run(ctx context.Context, args A) (*AsyncResult[R], error) {
	if m.spec.Validate != nil {
		if err := m.spec.Validate(args); err != nil {
			return nil, err
		}
	}

	// The machine drops the output of a failed handler; the acknowledgement
	// of a sent request is kept regardless.
	var ack *domain.Ack
	opts := []fsm.Option[AsyncResult[R]]{
		fsm.WithName[AsyncResult[R]](m.spec.Name),
		fsm.WithInterrupts[AsyncResult[R]](transitionError),
		fsm.WithAfterTransition[AsyncResult[R]](func(lc fsm.Lifecycle, data *AsyncResult[R]) {
			data.CurrentState = lc.To
		}),
		fsm.WithHandler[AsyncResult[R]](transitionRequest, func(ctx context.Context, lc fsm.Lifecycle, data AsyncResult[R], _ ...any) (AsyncResult[R], error) {
			out, err := m.request(ctx, args, data)
			ack = out.Ack
			return out, err
		}),
		fsm.WithHandler[AsyncResult[R]](transitionError, func(ctx context.Context, lc fsm.Lifecycle, data AsyncResult[R], fargs ...any) (AsyncResult[R], error) {
			if len(fargs) > 0 {
				if err, ok := fargs[0].(error); ok {
					data.LastError = domain.NewErrorDetail(err)
				}
			}
			return data, nil
		}),
	}
	if m.env.metrics != nil {
		opts = append(opts, fsm.WithObserver[AsyncResult[R]](m.env.metrics))
	}

	machine, err := fsm.New(stateStart, AsyncResult[R]{CurrentState: stateStart}, asyncEvents, opts...)
	if err != nil {
		return nil, err
	}

	if err := machine.Fire(ctx, transitionRequest); err != nil {
		if ferr := machine.Fire(ctx, transitionError, err); ferr != nil {
			m.env.logger.Error("failed to fire error transition", "model", m.spec.Name, "error", ferr)
		}
		result := machine.Data()
		result.Ack = ack
		return &result, err
	}
	result := machine.Data()
	return &result, nil
}

func (m *AsyncModel[A, R]) request(ctx context.Context, args A, data AsyncResult[R]) (AsyncResult[R], error) {
	channel := m.spec.Channel(args)
	job := correlation.Job{
		Step:    m.spec.Name,
		Channel: channel,
		Timeout: m.env.cfg.RequestTimeout,
		Expect:  m.spec.Expect,
	}

	var msg domain.Message
	var err error
	if m.spec.Send == nil {
		msg, err = m.env.deferred.Await(ctx, job)
	} else {
		job.Send = func(ctx context.Context) error {
			ack, err := m.spec.Send(ctx, m.env.client, args)
			data.Ack = ack
			return err
		}
		msg, err = m.env.deferred.Run(ctx, job)
	}
	if err != nil {
		return data, err
	}

	data.Headers = msg.Headers
	if m.spec.Reshape != nil {
		data.Response, err = m.spec.Reshape(args, msg)
	} else {
		err = msg.Decode(&data.Response)
	}
	if err != nil {
		return data, fmt.Errorf("%s: %w", m.spec.Name, err)
	}
	return data, nil
}
