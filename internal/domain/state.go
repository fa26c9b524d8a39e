package domain

import (
	"errors"
	"time"
)

// OperationID identifies one dispatched backend operation. Zero means no
// operation is active.
type OperationID uint64

// SessionState is an immutable snapshot of the launcher session.
type SessionState struct {
	Phase           Phase        `json:"phase"`
	OperationID     OperationID  `json:"operationId"`
	ProgressPercent float64      `json:"progressPercent"`
	DownloadedBytes int64        `json:"downloadedBytes"`
	TotalBytes      int64        `json:"totalBytes"`
	SpeedLabel      string       `json:"speedLabel"`
	CurrentFile     string       `json:"currentFile"`
	Stage           Stage        `json:"stage,omitempty"`
	StatusText      string       `json:"statusText"`
	LastError       *ErrorInfo   `json:"lastError,omitempty"`
	UpdateAsset     *UpdateAsset `json:"updateAsset,omitempty"`
	Revision        uint64       `json:"revision"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// NewSessionState returns the initial Idle state.
func NewSessionState(now time.Time) SessionState {
	return SessionState{Phase: PhaseIdle, UpdatedAt: now}
}

// Clone returns a deep copy so callers can never alias the owner's pointers.
func (s SessionState) Clone() SessionState {
	out := s
	if s.LastError != nil {
		e := *s.LastError
		out.LastError = &e
	}
	if s.UpdateAsset != nil {
		a := *s.UpdateAsset
		out.UpdateAsset = &a
	}
	return out
}

// Validate checks session invariants.
func (s SessionState) Validate() error {
	if !s.Phase.Valid() {
		return errors.New("phase is not defined")
	}
	if s.ProgressPercent < 0 || s.ProgressPercent > 100 {
		return errors.New("progressPercent must be within [0,100]")
	}
	if s.DownloadedBytes < 0 || s.TotalBytes < 0 {
		return errors.New("byte counters must not be negative")
	}
	if s.TotalBytes > 0 && s.DownloadedBytes > s.TotalBytes {
		return errors.New("downloadedBytes must not exceed totalBytes")
	}
	if s.LastError != nil && s.Phase != PhaseFailed {
		return errors.New("lastError is only present while failed")
	}
	if s.UpdateAsset != nil && s.Phase != PhaseLauncherUpdateAvailable && s.Phase != PhaseApplyingLauncherUpdate {
		return errors.New("updateAsset is only present while a launcher update is offered or applied")
	}
	return nil
}

// CommandResult reports the outcome of a session command.
type CommandResult struct {
	Accepted    bool         `json:"accepted"`
	OperationID OperationID  `json:"operationId,omitempty"`
	State       SessionState `json:"state"`
}
