package repository

import (
	"context"

	"github.com/campusride/rideshare/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProfileRepository interface {
	Upsert(ctx context.Context, profile *domain.Profile) error
	GetByID(ctx context.Context, userID string) (*domain.Profile, error)
}

type PGProfileRepository struct {
	db *pgxpool.Pool
}

func NewProfileRepository(db *pgxpool.Pool) ProfileRepository {
	return &PGProfileRepository{db: db}
}

func (r *PGProfileRepository) Upsert(ctx context.Context, profile *domain.Profile) error {
	row := r.db.QueryRow(ctx, `INSERT INTO profiles (user_id, full_name, phone, email)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET full_name = EXCLUDED.full_name,
		    phone = EXCLUDED.phone,
		    email = EXCLUDED.email,
		    updated_at = now()
		RETURNING created_at, updated_at`, profile.UserID, profile.FullName, profile.Phone, profile.Email)
	return translate(row.Scan(&profile.CreatedAt, &profile.UpdatedAt), "profile")
}

func (r *PGProfileRepository) GetByID(ctx context.Context, userID string) (*domain.Profile, error) {
	var p domain.Profile
	err := r.db.QueryRow(ctx, `SELECT user_id, full_name, phone, email, created_at, updated_at FROM profiles WHERE user_id=$1`, userID).
		Scan(&p.UserID, &p.FullName, &p.Phone, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, translate(err, "profile "+userID)
	}
	return &p, nil
}

var _ ProfileRepository = (*PGProfileRepository)(nil)
