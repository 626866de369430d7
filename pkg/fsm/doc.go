/*
Package fsm is a small finite-state-machine runtime used by the transaction models.

A Machine is built from an explicit transition table. Firing a transition validates it
against the current state, runs the registered handler outside the machine lock, then
commits the handler's data through the after-transition hook and moves to the target
state. Only one transition may be in flight at a time, except for the transitions
declared as interrupts (error, abort) which are always accepted and supersede whatever
is running.
*/
package fsm
