package database

import (
	"context"
	"database/sql"
	"fmt"

	"title_rotation_bot/internal/domain/leaderboard"

	_ "github.com/lib/pq" // PostgreSQL driver
)

type PostgresLeaderboardRepository struct {
	db *sql.DB
}

func NewPostgresLeaderboardRepository(db *sql.DB) *PostgresLeaderboardRepository {
	return &PostgresLeaderboardRepository{db: db}
}

// Top returns the highest-scoring entries for a guild. Ordering is
// points descending with user_id as a stable tie-break.
func (r *PostgresLeaderboardRepository) Top(ctx context.Context, guildID string, limit int) ([]leaderboard.Entry, error) {
	query := `SELECT guild_id, user_id, points, updated_at
               FROM guild_points WHERE guild_id = $1
               ORDER BY points DESC, user_id ASC
               LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying top entries: %w", err)
	}
	defer rows.Close()

	entries := make([]leaderboard.Entry, 0)
	for rows.Next() {
		var e leaderboard.Entry
		if err := rows.Scan(&e.GuildID, &e.UserID, &e.Points, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard entries: %w", err)
	}
	return entries, nil
}

func (r *PostgresLeaderboardRepository) Score(ctx context.Context, guildID, userID string) (int64, error) {
	query := `SELECT points FROM guild_points WHERE guild_id = $1 AND user_id = $2`
	var points int64
	err := r.db.QueryRowContext(ctx, query, guildID, userID).Scan(&points)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil // No row simply means no points yet.
		}
		return 0, fmt.Errorf("error getting score: %w", err)
	}
	return points, nil
}

func (r *PostgresLeaderboardRepository) AddPoints(ctx context.Context, guildID, userID string, delta int64) error {
	query := `INSERT INTO guild_points (guild_id, user_id, points)
               VALUES ($1, $2, $3)
               ON CONFLICT (guild_id, user_id) DO UPDATE
               SET points = guild_points.points + EXCLUDED.points,
                   updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, guildID, userID, delta); err != nil {
		return fmt.Errorf("error adding points: %w", err)
	}
	return nil
}

func (r *PostgresLeaderboardRepository) Clear(ctx context.Context, guildID string) error {
	query := `DELETE FROM guild_points WHERE guild_id = $1`

	if _, err := r.db.ExecContext(ctx, query, guildID); err != nil {
		return fmt.Errorf("error clearing points: %w", err)
	}
	return nil
}
