package domain

// EventType names a backend event.
type EventType string

const (
	EventStatus          EventType = "status"
	EventProgress        EventType = "progress"
	EventComplete        EventType = "complete"
	EventLaunched        EventType = "launched"
	EventReady           EventType = "ready"
	EventError           EventType = "error"
	EventUpdateAvailable EventType = "update_available"
)

// ParseEventType accepts canonical names and the colon form used by the
// desktop bridge ("update:available").
func ParseEventType(raw string) (EventType, error) {
	switch raw {
	case "status":
		return EventStatus, nil
	case "progress":
		return EventProgress, nil
	case "complete":
		return EventComplete, nil
	case "launched", "process_started":
		return EventLaunched, nil
	case "ready":
		return EventReady, nil
	case "error":
		return EventError, nil
	case "update_available", "update-available", "update:available":
		return EventUpdateAvailable, nil
	default:
		return "", ErrUnknownEvent
	}
}

// SystemScoped reports whether the event is not tied to an operation.
func (t EventType) SystemScoped() bool {
	return t == EventUpdateAvailable || t == EventReady
}

// Progress is one progress report from the backend.
type Progress struct {
	Stage           Stage   `json:"stage,omitempty"`
	Percent         float64 `json:"percent"`
	DownloadedBytes int64   `json:"downloadedBytes"`
	TotalBytes      int64   `json:"totalBytes"`
	SpeedLabel      string  `json:"speedLabel,omitempty"`
	CurrentFile     string  `json:"currentFile,omitempty"`
}

// Event is a backend event tagged with the operation it originated from.
type Event struct {
	Type        EventType    `json:"type"`
	OperationID OperationID  `json:"operationId"`
	Status      string       `json:"status,omitempty"`
	Progress    *Progress    `json:"progress,omitempty"`
	Error       *ErrorInfo   `json:"error,omitempty"`
	Asset       *UpdateAsset `json:"asset,omitempty"`
}
