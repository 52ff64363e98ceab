package guild

import "time"

// RotationConfig holds a guild's title rotation settings.
// Corresponds to the 'guild_settings' table.
// Optional Discord references (role, channel) are empty strings when unset.
type RotationConfig struct {
	GuildID         string
	RotationEnabled bool
	TitleRoleID     string // role rotated to the top scorer
	CronSchedule    string // standard 5-field cron expression
	NotifyChannelID string // channel for announcements and diagnostics
	GrantMessage    string // announcement template, see app.RenderGrantMessage
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Eligible reports whether the config carries everything a scheduled
// rotation job needs. Role existence is checked separately against the
// gateway; this only covers the stored fields.
func (c *RotationConfig) Eligible() bool {
	return c.RotationEnabled && c.TitleRoleID != "" && c.CronSchedule != ""
}
