package leaderboard

import "time"

// Entry is one user's accumulated points within a guild.
// Corresponds to a row of the 'guild_points' table.
type Entry struct {
	GuildID   string
	UserID    string
	Points    int64
	UpdatedAt time.Time
}
