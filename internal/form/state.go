package form

// Status is the tri-state feedback value renderers observe.
type Status int

const (
	StatusIdle Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// UIState is the user-facing result of the last submit.
type UIState struct {
	Status  Status
	Message string
}

const (
	MsgValidationEmpty = "Please fill at least one valid record."
	MsgSubmitFailed    = "Error submitting entries. Please try again."
	MsgSubmitted       = "Entries submitted successfully."
)

// Outcome is where a single submit attempt ended.
type Outcome int

const (
	// OutcomeBlocked means no row passed the presence filter; nothing was sent.
	OutcomeBlocked Outcome = iota
	// OutcomeSucceeded means the backend accepted the batch and rows were reset.
	OutcomeSucceeded
	// OutcomeFailed means the batch was rejected or never reached the backend;
	// rows were kept.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	default:
		return "blocked"
	}
}
