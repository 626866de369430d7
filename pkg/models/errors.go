package models

import (
	"fmt"

	"github.com/aretw0/switchlink/pkg/domain"
)

// TransactionError is returned by a model whose run moved it to the error state.
// Snapshot is the redacted record at the time of failure; it never references
// the error itself.
type TransactionError struct {
	ID         string
	RecordType string
	Err        error
	LastError  *domain.ErrorDetail
	Snapshot   map[string]any
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.RecordType, e.ID, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}
