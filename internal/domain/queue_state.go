package domain

// QueueStatus represents the load status of a queue cache
type QueueStatus int

const (
	StatusIdle QueueStatus = iota
	StatusLoading
	StatusReady
	StatusError
)

// String returns a human-readable representation of the status
func (s QueueStatus) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusLoading:
		return "Loading"
	case StatusReady:
		return "Ready"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// PageMode selects how the visible card list is derived from loaded pages.
type PageMode int

const (
	// ModePaged shows only the active page
	ModePaged PageMode = iota
	// ModeAccumulating shows every page from 0 through the active page
	ModeAccumulating
)

// String returns a human-readable representation of the mode
func (m PageMode) String() string {
	if m == ModeAccumulating {
		return "Accumulating"
	}
	return "Paged"
}

// QueueSnapshot is a consistent, caller-owned view of one queue cache.
type QueueSnapshot struct {
	Kind        Kind
	CurrentPage []Card
	Count       int
	ActiveIndex int
	IsFirst     bool
	IsLast      bool
	IsLoading   bool
	Status      QueueStatus
	Mode        PageMode
	Err         error // Last fetch failure, cleared by the next success
}

// Empty reports whether the server confirmed the queue holds no cards.
func (s QueueSnapshot) Empty() bool {
	return s.Status == StatusReady && s.Count == 0
}
