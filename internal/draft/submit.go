package draft

import "fmt"

// MaxRejectedDetails caps the individually reported rejections in a
// SubmitError; beyond the cap only the reason counts grow.
const MaxRejectedDetails = 25

// RejectedEntry identifies one update refused by validation.
type RejectedEntry struct {
	EntityID string `json:"entity_id"`
	Reason   string `json:"reason"`
}

// SubmitError is the structured validation/conflict outcome of a changeset
// submission. The whole changeset is refused; drafts stay editable so the
// user can correct and retry. Reason strings are surfaced verbatim; callers
// render them, they never reinterpret them.
type SubmitError struct {
	Message      string          `json:"message"`
	ReasonCounts map[string]int  `json:"reason_counts,omitempty"`
	Rejected     []RejectedEntry `json:"rejected,omitempty"`
}

// Error implements error.
func (e *SubmitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("changeset rejected (%d reasons)", len(e.ReasonCounts))
}

// Reject records one refused update, bumping its reason count and retaining
// the individual entry while under the detail cap.
func (e *SubmitError) Reject(entityID, reason string) {
	if e.ReasonCounts == nil {
		e.ReasonCounts = make(map[string]int)
	}
	e.ReasonCounts[reason]++
	if len(e.Rejected) < MaxRejectedDetails {
		e.Rejected = append(e.Rejected, RejectedEntry{EntityID: entityID, Reason: reason})
	}
}

// Empty reports whether no rejection was recorded.
func (e *SubmitError) Empty() bool {
	return len(e.ReasonCounts) == 0
}

// OfflineError marks a connectivity failure, distinct from validation: the
// draft state is preserved and the user retries manually.
type OfflineError struct {
	Cause error
}

// Error implements error.
func (e *OfflineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("offline: %v", e.Cause)
	}
	return "offline"
}

// Unwrap exposes the transport cause.
func (e *OfflineError) Unwrap() error { return e.Cause }
