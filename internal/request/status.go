package request

import "fmt"

type Status string

const (
	StatusNew               Status = "NEW"
	StatusWaitingApproval   Status = "WAITING_APPROVAL"
	StatusWaitingParts      Status = "WAITING_PARTS"
	StatusReadyToSchedule   Status = "READY_TO_SCHEDULE"
	StatusScheduled         Status = "SCHEDULED"
	StatusInProgress        Status = "IN_PROGRESS"
	StatusCompleted         Status = "COMPLETED"
	StatusBilled            Status = "BILLED"
	StatusDeclined          Status = "DECLINED"
	StatusCancelled         Status = "CANCELLED"
	StatusAttentionRequired Status = "ATTENTION_REQUIRED"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusNew, StatusWaitingApproval, StatusWaitingParts, StatusReadyToSchedule,
		StatusScheduled, StatusInProgress, StatusCompleted, StatusBilled,
		StatusDeclined, StatusCancelled, StatusAttentionRequired:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown status: %s", s)
	}
}

// Terminal statuses accept no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusBilled, StatusDeclined, StatusCancelled:
		return true
	}
	return false
}

// Active statuses are the ones a request can be flagged ATTENTION_REQUIRED
// from. Work has not finished and the record has not been aborted.
func (s Status) Active() bool {
	switch s {
	case StatusNew, StatusWaitingApproval, StatusWaitingParts,
		StatusReadyToSchedule, StatusScheduled, StatusInProgress:
		return true
	}
	return false
}

// abortable reports whether the request can still be declined or cancelled.
// Once a technician has started the job, the only way out is completion and
// billing.
func (s Status) abortable() bool {
	switch s {
	case StatusNew, StatusWaitingApproval, StatusWaitingParts,
		StatusReadyToSchedule, StatusScheduled, StatusAttentionRequired:
		return true
	}
	return false
}
