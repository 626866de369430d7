/*
Package domain contains the core value types shared by every switchlink component.

It defines the protocol entities exchanged with a payment switch (parties, quotes,
currency-conversion terms, transfers, bulk operations and transaction requests), the
notification envelope delivered over the shared cache, and the error taxonomy used by
the orchestration engine. This package is kept free of I/O and persistence concerns,
following Hexagonal Architecture principles.

# Key Entities

  - Party / TransferParty: the protocol and caller-facing views of a counterparty.
  - Money, AmountType: amounts and the side (SEND/RECEIVE) they are fixed on.
  - Message: the JSON envelope published on a correlation channel.
  - ProtocolError, TimeoutError, ValidationError, TransitionError: failure kinds.
  - Status: the external vocabulary projected to callers.
*/
package domain
