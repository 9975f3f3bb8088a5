package model

import (
	"encoding/json"
	"time"
)

// SettingsTemplate is a channel's saved default session settings.
type SettingsTemplate struct {
	ChannelID string          `json:"channelId"`
	Settings  json.RawMessage `json:"settings"`
	SavedBy   string          `json:"savedBy"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type Ban struct {
	MemberID  string    `json:"memberId"`
	BannedBy  string    `json:"bannedBy"`
	CreatedAt time.Time `json:"createdAt"`
}
