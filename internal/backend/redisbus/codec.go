package redisbus

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"launcherd/internal/domain"
)

// Command names published on the command channel.
const (
	CommandEnsureInstalledAndLaunch = "ensure_installed_and_launch"
	CommandApplyLauncherUpdate      = "apply_launcher_update"
	CommandCancelOperation          = "cancel_operation"
)

type commandMessage struct {
	Command     string              `json:"command"`
	OperationID uint64              `json:"operationId"`
	InstanceID  string              `json:"instanceId,omitempty"`
	Asset       *domain.UpdateAsset `json:"asset,omitempty"`
	IssuedAt    int64               `json:"issuedAt"`
}

type progressMessage struct {
	Stage           string  `json:"stage"`
	Percent         float64 `json:"percent"`
	DownloadedBytes int64   `json:"downloadedBytes"`
	TotalBytes      int64   `json:"totalBytes"`
	Speed           string  `json:"speed"`
	CurrentFile     string  `json:"currentFile"`
}

type errorMessage struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Technical string `json:"technical"`
	Timestamp int64  `json:"timestamp"`
}

type assetMessage struct {
	URL     string `json:"url"`
	SHA256  string `json:"sha256"`
	Version string `json:"version"`
}

type eventMessage struct {
	Type        string           `json:"type"`
	OperationID uint64           `json:"operationId"`
	Status      string           `json:"status"`
	Progress    *progressMessage `json:"progress"`
	Error       *errorMessage    `json:"error"`
	Asset       *assetMessage    `json:"asset"`
}

func encodeCommand(command string, op domain.OperationID, instanceID string, asset *domain.UpdateAsset, now time.Time) ([]byte, error) {
	return json.Marshal(commandMessage{
		Command:     command,
		OperationID: uint64(op),
		InstanceID:  instanceID,
		Asset:       asset,
		IssuedAt:    now.UnixMilli(),
	})
}

// decodeEvent parses one backend event. Unknown event types are reported
// with domain.ErrUnknownEvent so the caller can count and skip them.
func decodeEvent(payload []byte) (domain.Event, error) {
	var msg eventMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return domain.Event{}, fmt.Errorf("decode event: %w", err)
	}
	typ, err := domain.ParseEventType(strings.TrimSpace(msg.Type))
	if err != nil {
		return domain.Event{}, fmt.Errorf("%w: %q", err, msg.Type)
	}

	ev := domain.Event{
		Type:        typ,
		OperationID: domain.OperationID(msg.OperationID),
		Status:      msg.Status,
	}
	if msg.Progress != nil {
		ev.Progress = &domain.Progress{
			Stage:           domain.ParseStage(msg.Progress.Stage),
			Percent:         msg.Progress.Percent,
			DownloadedBytes: msg.Progress.DownloadedBytes,
			TotalBytes:      msg.Progress.TotalBytes,
			SpeedLabel:      msg.Progress.Speed,
			CurrentFile:     msg.Progress.CurrentFile,
		}
	}
	if msg.Error != nil {
		info := &domain.ErrorInfo{
			Kind:      domain.ParseErrorKind(msg.Error.Kind),
			Message:   msg.Error.Message,
			Technical: msg.Error.Technical,
		}
		if msg.Error.Timestamp > 0 {
			info.OccurredAt = time.UnixMilli(msg.Error.Timestamp).UTC()
		}
		ev.Error = info
	}
	if msg.Asset != nil {
		ev.Asset = &domain.UpdateAsset{URL: msg.Asset.URL, SHA256: msg.Asset.SHA256, Version: msg.Asset.Version}
	}
	return ev, nil
}
