package correlation

// Status is the lifecycle stage of a request, independent of any exchange status code.
type Status int32

const (
	StatusCreated Status = iota
	StatusSent
	StatusInProgress
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusSent:
		return "sent"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}
