package database

import (
	"context"
	"database/sql"
	"fmt"

	"title_rotation_bot/internal/domain/guild"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Custom errors
var ErrGuildConfigNotFound = fmt.Errorf("guild config not found")

type PostgresGuildConfigRepository struct {
	db *sql.DB
}

func NewPostgresGuildConfigRepository(db *sql.DB) *PostgresGuildConfigRepository {
	return &PostgresGuildConfigRepository{db: db}
}

func (r *PostgresGuildConfigRepository) Get(ctx context.Context, guildID string) (*guild.RotationConfig, error) {
	query := `SELECT guild_id, rotation_enabled, title_role_id, cron_schedule, notify_channel_id, grant_message, created_at, updated_at
               FROM guild_settings WHERE guild_id = $1`
	cfg := &guild.RotationConfig{}
	err := r.db.QueryRowContext(ctx, query, guildID).Scan(
		&cfg.GuildID, &cfg.RotationEnabled, &cfg.TitleRoleID, &cfg.CronSchedule,
		&cfg.NotifyChannelID, &cfg.GrantMessage, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrGuildConfigNotFound
		}
		return nil, fmt.Errorf("error getting guild config: %w", err)
	}
	return cfg, nil
}

func (r *PostgresGuildConfigRepository) Upsert(ctx context.Context, cfg *guild.RotationConfig) error {
	query := `INSERT INTO guild_settings (guild_id, rotation_enabled, title_role_id, cron_schedule, notify_channel_id, grant_message)
               VALUES ($1, $2, $3, $4, $5, $6)
               ON CONFLICT (guild_id) DO UPDATE
               SET rotation_enabled = EXCLUDED.rotation_enabled,
                   title_role_id = EXCLUDED.title_role_id,
                   cron_schedule = EXCLUDED.cron_schedule,
                   notify_channel_id = EXCLUDED.notify_channel_id,
                   grant_message = EXCLUDED.grant_message,
                   updated_at = NOW()
               RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		cfg.GuildID, cfg.RotationEnabled, cfg.TitleRoleID, cfg.CronSchedule,
		cfg.NotifyChannelID, cfg.GrantMessage,
	).Scan(&cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error upserting guild config: %w", err)
	}
	return nil
}

func (r *PostgresGuildConfigRepository) ListGuildIDs(ctx context.Context) ([]string, error) {
	query := `SELECT guild_id FROM guild_settings ORDER BY guild_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing guild ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning guild id: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating guild ids: %w", err)
	}
	return ids, nil
}
