package domain

import (
	"errors"
	"strings"
)

// UpdateAsset describes a launcher self-update offered by the backend.
type UpdateAsset struct {
	URL     string `json:"url"`
	SHA256  string `json:"sha256,omitempty"`
	Version string `json:"version,omitempty"`
}

// Validate checks that the asset can be handed back to the backend.
func (a UpdateAsset) Validate() error {
	if strings.TrimSpace(a.URL) == "" {
		return errors.New("update asset url is required")
	}
	if a.SHA256 != "" && len(a.SHA256) != 64 {
		return errors.New("update asset sha256 must be 64 hex characters")
	}
	return nil
}
