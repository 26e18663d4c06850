package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/feedfuse/feedfuse/pkg/models"
)

// Querier is the subset of pgxpool.Pool the repository needs. Tests
// substitute a pgxmock pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// InteractionRepository persists the collaborative-filtering interaction
// log. The in-memory log is the working copy; Postgres is the durable one
// that survives restarts.
type InteractionRepository struct {
	db     Querier
	logger *logrus.Logger
}

func NewInteractionRepository(db Querier, logger *logrus.Logger) *InteractionRepository {
	return &InteractionRepository{db: db, logger: logger}
}

// Save stores one interaction observation.
func (r *InteractionRepository) Save(ctx context.Context, in models.Interaction) error {
	query := `
		INSERT INTO interactions (id, user_id, item_id, interaction_type, duration, intensity, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.Exec(ctx, query,
		in.ID,
		in.UserID,
		in.ItemID,
		in.Type,
		in.Duration,
		in.Intensity,
		in.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to store interaction: %w", err)
	}
	return nil
}

// LoadSince returns interactions newer than the cutoff, oldest first, for
// replaying the durable log into the in-memory one on startup.
func (r *InteractionRepository) LoadSince(ctx context.Context, cutoff time.Time) ([]models.Interaction, error) {
	query := `
		SELECT id, user_id, item_id, interaction_type, duration, intensity, timestamp
		FROM interactions
		WHERE timestamp > $1
		ORDER BY timestamp ASC`

	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to load interactions: %w", err)
	}
	defer rows.Close()

	var interactions []models.Interaction
	for rows.Next() {
		var in models.Interaction
		err := rows.Scan(
			&in.ID,
			&in.UserID,
			&in.ItemID,
			&in.Type,
			&in.Duration,
			&in.Intensity,
			&in.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		interactions = append(interactions, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interactions: %w", err)
	}

	return interactions, nil
}

// DeleteOlderThan removes interactions past the retention horizon and
// returns how many were dropped.
func (r *InteractionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM interactions WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old interactions: %w", err)
	}

	deleted := tag.RowsAffected()
	if deleted > 0 {
		r.logger.WithFields(logrus.Fields{
			"deleted": deleted,
			"cutoff":  cutoff,
		}).Info("Interaction retention cleanup completed")
	}
	return deleted, nil
}
