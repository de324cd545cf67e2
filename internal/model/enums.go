package model

// RequestStatus is the lifecycle state of a ledger entry.
// A request transitions pending -> completed or pending -> failed exactly once.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusCompleted RequestStatus = "completed"
	RequestStatusFailed    RequestStatus = "failed"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusCompleted, RequestStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the status ends the entry's lifecycle.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusCompleted || s == RequestStatusFailed
}
