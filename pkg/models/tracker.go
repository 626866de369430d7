package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/aretw0/switchlink/pkg/fsm"
	"github.com/aretw0/switchlink/pkg/persistence"
	"github.com/mitchellh/mapstructure"
)

// States and transitions shared by every persisted model.
const (
	stateStart     = "start"
	stateSucceeded = "succeeded"
	stateErrored   = "errored"
	stateAborted   = "aborted"

	transitionError = "error"
	transitionAbort = "abort"
)

var interruptEvents = []fsm.Event{
	{Name: transitionError, From: []string{fsm.Wildcard}, To: stateErrored},
	{Name: transitionAbort, From: []string{fsm.Wildcard}, To: stateAborted},
}

// record is implemented by pointers to the persisted domain records.
type record[D any] interface {
	*D
	Base() *domain.Meta
}

// tracker owns the state machine and persistence of one transaction.
type tracker[D any, P record[D]] struct {
	env        *Env
	recordType string
	id         string
	machine    *fsm.Machine[D]
	store      *persistence.Store[D]
	statuses   domain.StatusMap
	logger     *slog.Logger
}

func newTracker[D any, P record[D]](env *Env, recordType, id string, data D, events []fsm.Event, statuses domain.StatusMap, handlers map[string]fsm.Handler[D]) (*tracker[D, P], error) {
	t := &tracker[D, P]{
		env:        env,
		recordType: recordType,
		id:         id,
		store:      recordStore[D](env, recordType),
		statuses:   statuses,
		logger:     env.logger.With("model", recordType, "transaction_id", id),
	}

	meta := P(&data).Base()
	if meta.CurrentState == "" {
		meta.CurrentState = stateStart
	}

	opts := []fsm.Option[D]{
		fsm.WithName[D](recordType),
		fsm.WithInterrupts[D](transitionError, transitionAbort),
		fsm.WithAfterTransition[D](t.commit),
		fsm.WithHandler[D](transitionError, t.onError),
		fsm.WithHandler[D](transitionAbort, t.onAbort),
	}
	if env.metrics != nil {
		opts = append(opts, fsm.WithObserver[D](env.metrics))
	}
	for name, h := range handlers {
		opts = append(opts, fsm.WithHandler[D](name, h))
	}

	machine, err := fsm.New(meta.CurrentState, data, append(append(make([]fsm.Event, 0, len(events)+len(interruptEvents)), events...), interruptEvents...), opts...)
	if err != nil {
		return nil, fmt.Errorf("cannot restore %s %s: %w", recordType, id, err)
	}
	t.machine = machine
	return t, nil
}

// commit runs under the machine lock after every successful handler.
func (t *tracker[D, P]) commit(lc fsm.Lifecycle, data *D) {
	meta := P(data).Base()
	meta.CurrentState = lc.To
	meta.Version++
	meta.UpdatedAt = t.env.now()
}

func (t *tracker[D, P]) onError(ctx context.Context, lc fsm.Lifecycle, data D, args ...any) (D, error) {
	if len(args) > 0 {
		if err, ok := args[0].(error); ok {
			P(&data).Base().LastError = domain.NewErrorDetail(err)
		}
	}
	return data, nil
}

func (t *tracker[D, P]) onAbort(ctx context.Context, lc fsm.Lifecycle, data D, args ...any) (D, error) {
	if len(args) > 0 {
		if reason, ok := args[0].(string); ok {
			P(&data).Base().AbortedReason = reason
		}
	}
	return data, nil
}

func (t *tracker[D, P]) state() string {
	return t.machine.State()
}

func (t *tracker[D, P]) data() D {
	return t.machine.Data()
}

func (t *tracker[D, P]) status() domain.Status {
	return t.statuses.Project(t.machine.State())
}

func (t *tracker[D, P]) fire(ctx context.Context, name string, args ...any) error {
	t.logger.Debug("firing transition", "transition", name, "state", t.machine.State())
	return t.machine.Fire(ctx, name, args...)
}

// save persists the committed data.
func (t *tracker[D, P]) save(ctx context.Context) error {
	data := t.machine.Data()
	if err := t.store.Save(ctx, t.id, &data); err != nil {
		return fmt.Errorf("failed to persist %s %s: %w", t.recordType, t.id, err)
	}
	return nil
}

// terminal reports whether the model reached succeeded, errored or aborted.
func (t *tracker[D, P]) terminal() bool {
	switch t.machine.State() {
	case stateSucceeded, stateErrored, stateAborted:
		return true
	}
	return false
}

// fail moves the model to the error state, persists it and wraps cause once.
// A model already errored or aborted is neither fired nor saved again.
func (t *tracker[D, P]) fail(ctx context.Context, cause error) error {
	var txErr *TransactionError
	if errors.As(cause, &txErr) {
		return cause
	}

	switch t.machine.State() {
	case stateErrored, stateAborted:
		t.logger.Debug("suppressing error transition", "state", t.machine.State(), "error", cause)
	default:
		t.logger.Warn("transaction failed", "state", t.machine.State(), "error", cause)
		if err := t.fire(ctx, transitionError, cause); err != nil {
			t.logger.Error("failed to fire error transition", "error", err)
		}
		if err := t.save(ctx); err != nil {
			t.logger.Error("failed to persist errored transaction", "error", err)
		}
	}

	data := t.machine.Data()
	return &TransactionError{
		ID:         t.id,
		RecordType: t.recordType,
		Err:        cause,
		LastError:  P(&data).Base().LastError,
		Snapshot:   t.store.Snapshot(&data),
	}
}

// abort moves the model to the aborted state and persists it.
func (t *tracker[D, P]) abort(ctx context.Context, reason string) error {
	if err := t.fire(ctx, transitionAbort, reason); err != nil {
		return err
	}
	return t.save(ctx)
}

// decide resolves an acceptance point: an explicit decision wins over the
// auto-accept flag; with neither the model halts.
func decide(explicit *bool, auto bool) (decided, accepted bool) {
	if explicit != nil {
		return true, *explicit
	}
	if auto {
		return true, true
	}
	return false, false
}

// decodeDecision loosely decodes a caller body into a Decision.
func decodeDecision(body map[string]any) (domain.Decision, error) {
	var d domain.Decision
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &d,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return d, err
	}
	if err := decoder.Decode(body); err != nil {
		return d, &domain.ValidationError{Reason: err.Error()}
	}
	return d, nil
}

func recordAck(requests map[string]*domain.Ack, step string, ack *domain.Ack) map[string]*domain.Ack {
	if ack == nil {
		return requests
	}
	out := make(map[string]*domain.Ack, len(requests)+1)
	for k, v := range requests {
		out[k] = v
	}
	out[step] = ack
	return out
}

// recordStore opens the records of one model type with the configured TTL.
func recordStore[T any](env *Env, recordType string) *persistence.Store[T] {
	return persistence.NewStore[T](env.cache, recordType, persistence.WithTTL(env.cfg.RecordTTL))
}
