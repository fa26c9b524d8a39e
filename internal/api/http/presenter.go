package apihttp

import (
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"

	"launcherd/internal/domain"
)

type errorView struct {
	domain.ErrorInfo
	Suggestion string `json:"suggestion,omitempty"`
}

// sessionView is the snapshot plus display texts for one locale.
type sessionView struct {
	Phase           domain.Phase        `json:"phase"`
	PhaseLabel      string              `json:"phaseLabel,omitempty"`
	OperationID     uint64              `json:"operationId"`
	ProgressPercent float64             `json:"progressPercent"`
	DownloadedBytes int64               `json:"downloadedBytes"`
	TotalBytes      int64               `json:"totalBytes"`
	SizeLabel       string              `json:"sizeLabel,omitempty"`
	SpeedLabel      string              `json:"speedLabel"`
	CurrentFile     string              `json:"currentFile"`
	Stage           domain.Stage        `json:"stage,omitempty"`
	StageLabel      string              `json:"stageLabel,omitempty"`
	StatusText      string              `json:"statusText"`
	LastError       *errorView          `json:"lastError,omitempty"`
	UpdateAsset     *domain.UpdateAsset `json:"updateAsset,omitempty"`
	CanPlay         bool                `json:"canPlay"`
	CanCancel       bool                `json:"canCancel"`
	Locale          string              `json:"locale,omitempty"`
	Revision        uint64              `json:"revision"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

func (s *Server) present(state domain.SessionState, tag language.Tag) sessionView {
	view := sessionView{
		Phase:           state.Phase,
		OperationID:     uint64(state.OperationID),
		ProgressPercent: state.ProgressPercent,
		DownloadedBytes: state.DownloadedBytes,
		TotalBytes:      state.TotalBytes,
		SizeLabel:       sizeLabel(state.DownloadedBytes, state.TotalBytes),
		SpeedLabel:      state.SpeedLabel,
		CurrentFile:     state.CurrentFile,
		Stage:           state.Stage,
		StatusText:      state.StatusText,
		UpdateAsset:     state.UpdateAsset,
		CanPlay:         state.Phase.Playable(),
		CanCancel:       state.Phase.Cancellable(),
		Revision:        state.Revision,
		UpdatedAt:       state.UpdatedAt,
	}
	if state.LastError != nil {
		view.LastError = &errorView{ErrorInfo: *state.LastError}
	}
	if s.localizer == nil || tag == language.Und {
		return view
	}

	view.Locale = tag.String()
	view.PhaseLabel = s.localizer.PhaseLabel(tag, state.Phase)
	view.StageLabel = s.localizer.StageLabel(tag, state.Stage)
	if view.LastError != nil {
		view.LastError.Suggestion = s.localizer.ErrorSuggestion(tag, state.LastError.Kind)
	}
	return view
}

// sizeLabel renders "12 MB / 256 MB", or "" when nothing is known.
func sizeLabel(downloaded, total int64) string {
	switch {
	case total > 0:
		return humanize.Bytes(uint64(downloaded)) + " / " + humanize.Bytes(uint64(total))
	case downloaded > 0:
		return humanize.Bytes(uint64(downloaded))
	default:
		return ""
	}
}
