package repository

import (
	"context"
	"time"

	"github.com/campusride/rideshare/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	// ListAfter returns messages for a ride created strictly after the given
	// instant, oldest first. A zero instant returns the whole thread.
	ListAfter(ctx context.Context, rideID string, after time.Time, limit int) ([]domain.Message, error)
}

type PGMessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) MessageRepository {
	return &PGMessageRepository{db: db}
}

func (r *PGMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	row := r.db.QueryRow(ctx, `INSERT INTO messages (id, ride_id, user_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`, msg.ID, msg.RideID, msg.UserID, msg.Content)
	return translate(row.Scan(&msg.CreatedAt), "message")
}

func (r *PGMessageRepository) ListAfter(ctx context.Context, rideID string, after time.Time, limit int) ([]domain.Message, error) {
	rows, err := r.db.Query(ctx, `SELECT id, ride_id, user_id, content, created_at FROM messages
		WHERE ride_id=$1 AND created_at > $2
		ORDER BY created_at, id
		LIMIT $3`, rideID, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := make([]domain.Message, 0)
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.RideID, &m.UserID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

var _ MessageRepository = (*PGMessageRepository)(nil)
