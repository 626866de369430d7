/*
Package models implements the transaction models that drive a conversation with the switch.

Each model wires its business steps onto an fsm.Machine and a correlation.Deferred,
persists its record after every transition, and exposes a Run method that advances
the machine until it reaches a terminal state or an acceptance point. A halted model
is resumed by loading it again, merging the caller's decision and calling Run.

# Models

  - TransferModel: payee lookup, optional currency conversion, quote and transfer.
  - BulkQuoteModel, BulkTransferModel: single step bulk operations.
  - RequestToPayModel: payee initiated transaction request.
  - AsyncModel: generic single request/notification pair (party, quote, transfer lookups).
*/
package models
