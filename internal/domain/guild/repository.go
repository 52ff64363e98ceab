package guild

import "context"

// ConfigRepository defines the operations for persisting and retrieving
// per-guild rotation settings.
type ConfigRepository interface {
	Get(ctx context.Context, guildID string) (*RotationConfig, error)
	Upsert(ctx context.Context, cfg *RotationConfig) error
	// ListGuildIDs returns every guild with stored settings, used to
	// recompute schedules on process start.
	ListGuildIDs(ctx context.Context) ([]string, error)
}
