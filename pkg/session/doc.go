/*
Package session serialises concurrent access to a single transaction.

Two callers resuming the same transaction (for instance an accept request racing a
status poll that triggers a resume) would otherwise load the same persisted record
and fire the same transition twice. Guard queues them on a per-transaction lock, held
locally and, when a DistributedLocker is configured, across replicas.
*/
package session
