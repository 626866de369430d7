package fsm

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/switchlink/pkg/domain"
)

// Wildcard matches any source state.
const Wildcard = "*"

// Event is one row of the transition table.
type Event struct {
	Name string
	From []string
	To   string
}

// Lifecycle describes the transition being executed.
type Lifecycle struct {
	Transition string
	From       string
	To         string
}

// Handler executes a transition. It receives a copy of the machine data and
// returns the data to commit.
type Handler[D any] func(ctx context.Context, lc Lifecycle, data D, args ...any) (D, error)

// Hook runs after a successful handler, under the machine lock, before the state moves.
// It must not call back into the machine.
type Hook[D any] func(lc Lifecycle, data *D)

// Observer is notified of every completed transition.
type Observer interface {
	ObserveTransition(machine string, lc Lifecycle, elapsed time.Duration, err error)
}

// Option configures a Machine.
type Option[D any] func(*Machine[D])

// WithName labels the machine for observers.
func WithName[D any](name string) Option[D] {
	return func(m *Machine[D]) { m.name = name }
}

// WithHandler registers the handler of a transition.
func WithHandler[D any](name string, h Handler[D]) Option[D] {
	return func(m *Machine[D]) { m.handlers[name] = h }
}

// WithInterrupts declares transitions that may fire while another is in flight.
func WithInterrupts[D any](names ...string) Option[D] {
	return func(m *Machine[D]) {
		for _, n := range names {
			m.interrupts[n] = true
		}
	}
}

// WithAfterTransition sets the hook run before every state change.
func WithAfterTransition[D any](hook Hook[D]) Option[D] {
	return func(m *Machine[D]) { m.after = hook }
}

// WithObserver attaches an observer.
func WithObserver[D any](o Observer) Option[D] {
	return func(m *Machine[D]) { m.observer = o }
}

// Machine is a transition-table driven state machine holding data of type D.
type Machine[D any] struct {
	name       string
	events     []Event
	byName     map[string]Event
	states     map[string]bool
	handlers   map[string]Handler[D]
	interrupts map[string]bool
	after      Hook[D]
	observer   Observer

	mu         sync.Mutex
	state      string
	data       D
	inFlight   bool
	generation uint64
}

// New builds a machine resting at initial with the given data.
// It fails if initial is not a state named by the table.
func New[D any](initial string, data D, events []Event, opts ...Option[D]) (*Machine[D], error) {
	m := &Machine[D]{
		events:     events,
		byName:     make(map[string]Event, len(events)),
		states:     make(map[string]bool),
		handlers:   make(map[string]Handler[D]),
		interrupts: make(map[string]bool),
		state:      initial,
		data:       data,
	}
	for _, e := range events {
		m.byName[e.Name] = e
		m.states[e.To] = true
		for _, f := range e.From {
			if f != Wildcard {
				m.states[f] = true
			}
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	if !m.states[initial] {
		return nil, &domain.TransitionError{Transition: "init", From: initial, Err: domain.ErrInvalidTransition}
	}
	return m, nil
}

// Handle registers or replaces the handler of a transition.
func (m *Machine[D]) Handle(name string, h Handler[D]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[name] = h
}

// State returns the current state.
func (m *Machine[D]) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Data returns the committed data.
func (m *Machine[D]) Data() D {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}

// InFlight reports whether a transition is currently executing.
func (m *Machine[D]) InFlight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight
}

// Update mutates the committed data outside of a transition.
// It fails with domain.ErrTransitionInProgress while a transition is running.
func (m *Machine[D]) Update(fn func(data *D)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		return &domain.TransitionError{Transition: "update", From: m.state, Err: domain.ErrTransitionInProgress}
	}
	fn(&m.data)
	return nil
}

// Known reports whether state appears in the transition table.
func (m *Machine[D]) Known(state string) bool {
	return m.states[state]
}

// Can reports whether the transition may be fired from the current state.
func (m *Machine[D]) Can(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byName[name]
	return ok && allows(e, m.state)
}

// Available lists the transitions that may be fired from the current state, in table order.
func (m *Machine[D]) Available() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		if allows(e, m.state) {
			out = append(out, e.Name)
		}
	}
	return out
}

// Terminal reports whether only interrupt transitions leave the current state.
func (m *Machine[D]) Terminal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if !m.interrupts[e.Name] && allows(e, m.state) {
			return false
		}
	}
	return true
}

// Fire executes a transition.
//
// A non-interrupt transition fired while another one is running fails with
// domain.ErrTransitionInProgress. An interrupt always runs; a transition it
// interrupted returns domain.ErrTransitionSuperseded when it later completes and
// neither its data nor its target state are committed.
func (m *Machine[D]) Fire(ctx context.Context, name string, args ...any) error {
	m.mu.Lock()
	e, ok := m.byName[name]
	if !ok {
		from := m.state
		m.mu.Unlock()
		return &domain.TransitionError{Transition: name, From: from, Err: domain.ErrUnknownTransition}
	}
	if m.inFlight && !m.interrupts[name] {
		from := m.state
		m.mu.Unlock()
		return &domain.TransitionError{Transition: name, From: from, Err: domain.ErrTransitionInProgress}
	}
	if !allows(e, m.state) {
		from := m.state
		m.mu.Unlock()
		return &domain.TransitionError{Transition: name, From: from, Err: domain.ErrInvalidTransition}
	}
	h, ok := m.handlers[name]
	if !ok {
		from := m.state
		m.mu.Unlock()
		return &domain.TransitionError{Transition: name, From: from, Err: domain.ErrNoHandler}
	}

	m.generation++
	gen := m.generation
	m.inFlight = true
	lc := Lifecycle{Transition: name, From: m.state, To: e.To}
	data := m.data
	m.mu.Unlock()

	start := time.Now()
	next, err := h(ctx, lc, data, args...)

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		m.observe(lc, start, domain.ErrTransitionSuperseded)
		return &domain.TransitionError{Transition: name, From: lc.From, Err: domain.ErrTransitionSuperseded}
	}
	m.inFlight = false
	if err != nil {
		m.mu.Unlock()
		m.observe(lc, start, err)
		return err
	}
	if m.after != nil {
		m.after(lc, &next)
	}
	m.data = next
	m.state = e.To
	m.mu.Unlock()

	m.observe(lc, start, nil)
	return nil
}

func (m *Machine[D]) observe(lc Lifecycle, start time.Time, err error) {
	if m.observer != nil {
		m.observer.ObserveTransition(m.name, lc, time.Since(start), err)
	}
}

func allows(e Event, state string) bool {
	return slices.Contains(e.From, Wildcard) || slices.Contains(e.From, state)
}
