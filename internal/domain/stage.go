package domain

import "strings"

// Stage is the pipeline step the backend reports alongside progress.
type Stage string

const (
	StageNone     Stage = ""
	StageVerify   Stage = "verify"
	StageDownload Stage = "download"
	StageJRE      Stage = "jre"
	StagePatch    Stage = "patch"
	StageExtract  Stage = "extract"
	StageInstall  Stage = "install"
	StageUpdate   Stage = "update"
	StageComplete Stage = "complete"
)

// ParseStage normalizes a backend stage name. Unknown names map to StageNone.
func ParseStage(raw string) Stage {
	switch s := Stage(strings.ToLower(strings.TrimSpace(raw))); s {
	case StageVerify, StageDownload, StageJRE, StagePatch, StageExtract, StageInstall, StageUpdate, StageComplete:
		return s
	default:
		return StageNone
	}
}

// ProgressPhase returns the phase a progress report in this stage moves the
// session to, given the current phase. Stages that do not imply a phase keep
// the current one, except that leaving CheckingForUpdate without a stage
// means the backend started downloading.
func (s Stage) ProgressPhase(current Phase) Phase {
	if current == PhaseApplyingLauncherUpdate {
		return current
	}
	switch s {
	case StageDownload, StageJRE:
		return PhaseDownloading
	case StagePatch, StageExtract, StageInstall:
		return PhaseInstalling
	case StageNone:
		if current == PhaseCheckingForUpdate {
			return PhaseDownloading
		}
	}
	return current
}
