package domain

// Status is the externally meaningful projection of a model's internal state.
type Status string

const (
	StatusWaitingForPartyAcceptance      Status = "WAITING_FOR_PARTY_ACCEPTANCE"
	StatusWaitingForConversionAcceptance Status = "WAITING_FOR_CONVERSION_ACCEPTANCE"
	StatusWaitingForQuoteAcceptance      Status = "WAITING_FOR_QUOTE_ACCEPTANCE"
	StatusCompleted                      Status = "COMPLETED"
	StatusAborted                        Status = "ABORTED"
	StatusErrorOccurred                  Status = "ERROR_OCCURRED"
)

// StatusMap projects internal state names onto the external vocabulary.
type StatusMap map[string]Status

// Project returns the external status of state.
// Anything not in the map is reported as an error.
func (m StatusMap) Project(state string) Status {
	if s, ok := m[state]; ok {
		return s
	}
	return StatusErrorOccurred
}
