package leaderboard

import "context"

// Repository defines the points accounting operations.
type Repository interface {
	// Top returns up to limit entries ordered by points descending.
	// Ties break on user ID so the order is stable across calls.
	Top(ctx context.Context, guildID string, limit int) ([]Entry, error)
	Score(ctx context.Context, guildID, userID string) (int64, error)
	AddPoints(ctx context.Context, guildID, userID string, delta int64) error
	// Clear removes every entry for the guild. Called once per rotation
	// cycle, strictly after the title role has been granted.
	Clear(ctx context.Context, guildID string) error
}
