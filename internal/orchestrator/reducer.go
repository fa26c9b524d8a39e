package orchestrator

import (
	"math"
	"time"

	"launcherd/internal/domain"
)

type outcome string

const (
	outcomeApplied outcome = "applied"
	outcomeStale   outcome = "stale"
	outcomeIgnored outcome = "ignored"
)

// reduce applies one backend event to s. The returned state is only
// meaningful when the outcome is outcomeApplied; otherwise s is returned
// unchanged.
func reduce(s domain.SessionState, ev domain.Event, now time.Time) (domain.SessionState, outcome) {
	if !ev.Type.SystemScoped() && ev.OperationID != s.OperationID {
		return s, outcomeStale
	}

	next := s.Clone()
	switch ev.Type {
	case domain.EventStatus:
		next.StatusText = ev.Status

	case domain.EventProgress:
		if ev.Progress == nil || !acceptsProgress(s.Phase) {
			return s, outcomeIgnored
		}
		if !applyProgress(&next, *ev.Progress) {
			return s, outcomeIgnored
		}

	case domain.EventComplete:
		switch s.Phase {
		case domain.PhaseDownloading, domain.PhaseInstalling:
			next.ProgressPercent = 100
		case domain.PhaseCheckingForUpdate:
		default:
			return s, outcomeIgnored
		}
		if !moveTo(&next, domain.PhaseLaunching) {
			return s, outcomeIgnored
		}

	case domain.EventLaunched:
		if s.Phase != domain.PhaseLaunching || !moveTo(&next, domain.PhaseIdle) {
			return s, outcomeIgnored
		}
		next.OperationID = 0

	case domain.EventReady:
		if s.Phase != domain.PhaseIdle || !moveTo(&next, domain.PhaseReadyToLaunch) {
			return s, outcomeIgnored
		}

	case domain.EventError:
		if s.Phase == domain.PhaseFailed || !moveTo(&next, domain.PhaseFailed) {
			return s, outcomeIgnored
		}
		info := normalizeError(ev.Error, now)
		next.LastError = &info
		next.OperationID = 0

	case domain.EventUpdateAvailable:
		if ev.Asset == nil || ev.Asset.Validate() != nil {
			return s, outcomeIgnored
		}
		if s.Phase != domain.PhaseIdle && s.Phase != domain.PhaseReadyToLaunch {
			return s, outcomeIgnored
		}
		if !moveTo(&next, domain.PhaseLauncherUpdateAvailable) {
			return s, outcomeIgnored
		}
		asset := *ev.Asset
		next.UpdateAsset = &asset

	default:
		return s, outcomeIgnored
	}
	return next, outcomeApplied
}

func acceptsProgress(p domain.Phase) bool {
	return p.Running()
}

// moveTo changes the phase of s, keeping the phase-scoped fields consistent.
// It reports false when the transition table forbids the move.
func moveTo(s *domain.SessionState, to domain.Phase) bool {
	if s.Phase == to {
		return true
	}
	if !domain.CanTransition(s.Phase, to) {
		return false
	}
	s.Phase = to
	if to != domain.PhaseFailed {
		s.LastError = nil
	}
	if to != domain.PhaseLauncherUpdateAvailable && to != domain.PhaseApplyingLauncherUpdate {
		s.UpdateAsset = nil
	}
	switch to {
	case domain.PhaseIdle, domain.PhaseDownloading, domain.PhaseInstalling:
		resetProgress(s)
	}
	return true
}

func resetProgress(s *domain.SessionState) {
	s.ProgressPercent = 0
	s.DownloadedBytes = 0
	s.TotalBytes = 0
	s.SpeedLabel = ""
	s.CurrentFile = ""
	s.Stage = domain.StageNone
}

func applyProgress(s *domain.SessionState, p domain.Progress) bool {
	if !moveTo(s, p.Stage.ProgressPhase(s.Phase)) {
		return false
	}
	if p.Stage != domain.StageNone {
		s.Stage = p.Stage
	}

	downloaded := max(p.DownloadedBytes, 0)
	total := max(p.TotalBytes, 0)
	if total > 0 && downloaded > total {
		downloaded = total
	}
	s.DownloadedBytes = downloaded
	s.TotalBytes = total

	if p.SpeedLabel != "" {
		s.SpeedLabel = p.SpeedLabel
	}
	if p.CurrentFile != "" {
		s.CurrentFile = p.CurrentFile
	}

	if percent, ok := derivePercent(downloaded, total, p.Percent); ok && percent > s.ProgressPercent {
		s.ProgressPercent = percent
	}
	return true
}

// derivePercent prefers the byte ratio when the size is known and falls back
// to the reported percent otherwise.
func derivePercent(downloaded, total int64, reported float64) (float64, bool) {
	if total > 0 {
		return float64(downloaded) * 100 / float64(total), true
	}
	if math.IsNaN(reported) || math.IsInf(reported, 0) {
		return 0, false
	}
	return min(max(reported, 0), 100), true
}

func normalizeError(info *domain.ErrorInfo, now time.Time) domain.ErrorInfo {
	if info == nil {
		return domain.ErrorInfo{Kind: domain.ErrorKindUnknown, Message: "unknown error", OccurredAt: now}
	}
	out := *info
	out.Kind = domain.ParseErrorKind(string(out.Kind))
	if out.Message == "" {
		out.Message = "unknown error"
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = now
	}
	return out
}
