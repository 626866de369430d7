/*
Package ports defines the driven ports (interfaces) of the switchlink engine.

These interfaces decouple the orchestration logic from the cache backend, the
outbound protocol transport and the payment packet implementation, so models can
be exercised against in-memory fakes and run in production against Redis and HTTP.

# Key Interfaces

  - Cache: key/value storage with TTL, sets and publish/subscribe channels.
  - RequestClient: outbound protocol calls that only acknowledge acceptance.
  - PaymentPacket: fulfilment/condition verification.
  - DistributedLocker: cross-replica locking used to serialise resumes.
*/
package ports
