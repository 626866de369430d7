/*
Package observability exposes Prometheus metrics for the orchestration engine.

Metrics implements both fsm.Observer and correlation.Observer, so a single value
can be handed to the state machines and the correlation primitive of every model.
*/
package observability
