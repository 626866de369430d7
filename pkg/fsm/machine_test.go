package fsm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Steps []string
	State string
	Err   string
}

var table = []Event{
	{Name: "resolve", From: []string{"start"}, To: "resolved"},
	{Name: "quote", From: []string{"resolved"}, To: "quoted"},
	{Name: "transfer", From: []string{"quoted"}, To: "done"},
	{Name: "error", From: []string{Wildcard}, To: "errored"},
}

func step(name string) Handler[record] {
	return func(ctx context.Context, lc Lifecycle, data record, args ...any) (record, error) {
		data.Steps = append(append([]string(nil), data.Steps...), name)
		return data, nil
	}
}

func newMachine(t *testing.T, opts ...Option[record]) *Machine[record] {
	t.Helper()
	base := []Option[record]{
		WithHandler("resolve", step("resolve")),
		WithHandler("quote", step("quote")),
		WithHandler("transfer", step("transfer")),
		WithHandler("error", func(ctx context.Context, lc Lifecycle, data record, args ...any) (record, error) {
			if len(args) > 0 {
				if err, ok := args[0].(error); ok {
					data.Err = err.Error()
				}
			}
			return data, nil
		}),
		WithInterrupts[record]("error"),
		WithAfterTransition(func(lc Lifecycle, data *record) { data.State = lc.To }),
	}
	m, err := New("start", record{}, table, append(base, opts...)...)
	require.NoError(t, err)
	return m
}

func TestMachine_FiresInOrder(t *testing.T) {
	ctx := context.Background()
	m := newMachine(t)

	assert.Equal(t, []string{"resolve", "error"}, m.Available())
	assert.False(t, m.Terminal())

	require.NoError(t, m.Fire(ctx, "resolve"))
	require.NoError(t, m.Fire(ctx, "quote"))
	require.NoError(t, m.Fire(ctx, "transfer"))

	assert.Equal(t, "done", m.State())
	assert.Equal(t, []string{"resolve", "quote", "transfer"}, m.Data().Steps)
	assert.Equal(t, "done", m.Data().State, "hook commits the target state into data")
	assert.True(t, m.Terminal())
	assert.True(t, m.Can("error"))
}

func TestMachine_RejectsMisuse(t *testing.T) {
	ctx := context.Background()
	m := newMachine(t)

	err := m.Fire(ctx, "quote")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	var tErr *domain.TransitionError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "start", tErr.From)

	assert.ErrorIs(t, m.Fire(ctx, "teleport"), domain.ErrUnknownTransition)
	assert.Equal(t, "start", m.State(), "failed fires never move the machine")
}

func TestMachine_NoHandler(t *testing.T) {
	m, err := New("start", record{}, table)
	require.NoError(t, err)
	assert.ErrorIs(t, m.Fire(context.Background(), "resolve"), domain.ErrNoHandler)

	m.Handle("resolve", step("resolve"))
	assert.NoError(t, m.Fire(context.Background(), "resolve"))
}

func TestMachine_UnknownInitialState(t *testing.T) {
	_, err := New("nowhere", record{}, table)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestMachine_HandlerErrorKeepsState(t *testing.T) {
	boom := errors.New("boom")
	m := newMachine(t, WithHandler("resolve", func(ctx context.Context, lc Lifecycle, data record, args ...any) (record, error) {
		data.Steps = []string{"partial"}
		return data, boom
	}))

	assert.ErrorIs(t, m.Fire(context.Background(), "resolve"), boom)
	assert.Equal(t, "start", m.State())
	assert.Empty(t, m.Data().Steps, "data of a failed handler is discarded")
	assert.False(t, m.InFlight())
}

func TestMachine_OverlapPolicy(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	m := newMachine(t, WithHandler("resolve", func(ctx context.Context, lc Lifecycle, data record, args ...any) (record, error) {
		<-release
		data.Steps = []string{"resolve"}
		return data, nil
	}))

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		firstErr = m.Fire(ctx, "resolve")
	}()

	require.Eventually(t, m.InFlight, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, m.Fire(ctx, "resolve"), domain.ErrTransitionInProgress)
	assert.ErrorIs(t, m.Fire(ctx, "quote"), domain.ErrTransitionInProgress)

	require.NoError(t, m.Fire(ctx, "error", errors.New("stuck")))
	assert.Equal(t, "errored", m.State())

	close(release)
	wg.Wait()

	assert.ErrorIs(t, firstErr, domain.ErrTransitionSuperseded)
	assert.Equal(t, "errored", m.State(), "superseded transition must not move the state")
	assert.Equal(t, "stuck", m.Data().Err)
	assert.Empty(t, m.Data().Steps)
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
	errs  []error
}

func (o *recordingObserver) ObserveTransition(machine string, lc Lifecycle, elapsed time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, machine+":"+lc.Transition)
	o.errs = append(o.errs, err)
}

func TestMachine_Observer(t *testing.T) {
	obs := &recordingObserver{}
	m := newMachine(t, WithName[record]("transfer"), WithObserver[record](obs))

	require.NoError(t, m.Fire(context.Background(), "resolve"))
	require.Error(t, m.Fire(context.Background(), "transfer"))

	assert.Equal(t, []string{"transfer:resolve"}, obs.calls, "rejected fires are not observed")
	assert.Nil(t, obs.errs[0])
}

func TestMachine_Update(t *testing.T) {
	release := make(chan struct{})
	m := newMachine(t, WithHandler("resolve", func(ctx context.Context, lc Lifecycle, data record, args ...any) (record, error) {
		<-release
		return data, nil
	}))

	require.NoError(t, m.Update(func(d *record) { d.Err = "merged" }))
	assert.Equal(t, "merged", m.Data().Err)

	done := make(chan error, 1)
	go func() { done <- m.Fire(context.Background(), "resolve") }()
	require.Eventually(t, m.InFlight, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, m.Update(func(d *record) {}), domain.ErrTransitionInProgress)
	close(release)
	require.NoError(t, <-done)
}
