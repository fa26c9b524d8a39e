package domain

import (
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("not found")
var ErrUnknownEvent = errors.New("unknown event type")

// ErrorKind classifies a backend failure. The orchestrator stores it and
// never branches on it.
type ErrorKind string

const (
	ErrorKindNetwork     ErrorKind = "NetworkError"
	ErrorKindFilesystem  ErrorKind = "FilesystemError"
	ErrorKindValidation  ErrorKind = "ValidationError"
	ErrorKindGameProcess ErrorKind = "GameProcessError"
	ErrorKindUnknown     ErrorKind = "Unknown"
)

// ErrorKinds lists every error kind.
var ErrorKinds = []ErrorKind{
	ErrorKindNetwork,
	ErrorKindFilesystem,
	ErrorKindValidation,
	ErrorKindGameProcess,
	ErrorKindUnknown,
}

// ParseErrorKind accepts canonical kind names as well as the short names
// emitted by the backend. Anything else is Unknown.
func ParseErrorKind(raw string) ErrorKind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "networkerror", "network":
		return ErrorKindNetwork
	case "filesystemerror", "filesystem", "fs":
		return ErrorKindFilesystem
	case "validationerror", "validation":
		return ErrorKindValidation
	case "gameprocesserror", "game", "game_process", "gameprocess":
		return ErrorKindGameProcess
	case "update":
		// Raised when the update helper process cannot be started.
		return ErrorKindGameProcess
	default:
		return ErrorKindUnknown
	}
}

// ErrorInfo is the failure record shown while the session is Failed.
type ErrorInfo struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	Technical  string    `json:"technical,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
