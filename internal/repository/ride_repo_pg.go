package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/campusride/rideshare/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// searchLimit caps one search page; the listing is meant for a single screen.
const searchLimit = 200

type RideRepository interface {
	Create(ctx context.Context, ride *domain.Ride) error
	GetByID(ctx context.Context, id string) (*domain.Ride, error)
	Search(ctx context.Context, filter domain.RideFilter) ([]domain.Ride, error)
	ListByCreator(ctx context.Context, creatorID string) ([]domain.Ride, error)
	ListJoined(ctx context.Context, userID string) ([]domain.Ride, error)
	// Delete soft-deletes the ride and rejects its pending requests in one
	// transaction. It fails with ErrConflict while approved requests exist.
	Delete(ctx context.Context, id string) ([]domain.JoinRequest, error)
}

type PGRideRepository struct {
	db *pgxpool.Pool
}

func NewRideRepository(db *pgxpool.Pool) RideRepository {
	return &PGRideRepository{db: db}
}

const rideColumns = `id, creator_id,
	origin_address, origin_display, origin_lat, origin_lng,
	dest_address, dest_display, dest_lat, dest_lng,
	departure_time, seats_offered, seats_remaining, price_cents, restricted, remark,
	created_at, updated_at`

func scanRide(row rowScanner) (*domain.Ride, error) {
	var r domain.Ride
	err := row.Scan(&r.ID, &r.CreatorID,
		&r.Origin.Address, &r.Origin.DisplayName, &r.Origin.Lat, &r.Origin.Lng,
		&r.Destination.Address, &r.Destination.DisplayName, &r.Destination.Lat, &r.Destination.Lng,
		&r.DepartureTime, &r.SeatsOffered, &r.SeatsRemaining, &r.PriceCents, &r.Restricted, &r.Remark,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func collectRides(rows pgx.Rows) ([]domain.Ride, error) {
	defer rows.Close()

	rides := make([]domain.Ride, 0)
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, *r)
	}
	return rides, rows.Err()
}

func (r *PGRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	row := r.db.QueryRow(ctx, `INSERT INTO rides (id, creator_id,
			origin_address, origin_display, origin_lat, origin_lng,
			dest_address, dest_display, dest_lat, dest_lng,
			departure_time, seats_offered, seats_remaining, price_cents, restricted, remark)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at`,
		ride.ID, ride.CreatorID,
		ride.Origin.Address, ride.Origin.DisplayName, ride.Origin.Lat, ride.Origin.Lng,
		ride.Destination.Address, ride.Destination.DisplayName, ride.Destination.Lat, ride.Destination.Lng,
		ride.DepartureTime, ride.SeatsOffered, ride.SeatsRemaining, ride.PriceCents, ride.Restricted, ride.Remark)
	return translate(row.Scan(&ride.CreatedAt, &ride.UpdatedAt), "ride")
}

func (r *PGRideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	ride, err := scanRide(r.db.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id=$1 AND deleted_at IS NULL`, id))
	if err != nil {
		return nil, translate(err, "ride "+id)
	}
	return ride, nil
}

func (r *PGRideRepository) Search(ctx context.Context, filter domain.RideFilter) ([]domain.Ride, error) {
	rows, err := r.db.Query(ctx, `SELECT `+rideColumns+` FROM rides
		WHERE deleted_at IS NULL
		  AND departure_time >= $1
		  AND ($2::text = '' OR origin_address ILIKE '%' || $2 || '%' OR origin_display ILIKE '%' || $2 || '%')
		  AND ($3::text = '' OR dest_address ILIKE '%' || $3 || '%' OR dest_display ILIKE '%' || $3 || '%')
		ORDER BY departure_time, id
		LIMIT $4`, filter.After, filter.From, filter.To, searchLimit)
	if err != nil {
		return nil, err
	}
	return collectRides(rows)
}

func (r *PGRideRepository) ListByCreator(ctx context.Context, creatorID string) ([]domain.Ride, error) {
	rows, err := r.db.Query(ctx, `SELECT `+rideColumns+` FROM rides
		WHERE creator_id=$1 AND deleted_at IS NULL
		ORDER BY departure_time, id`, creatorID)
	if err != nil {
		return nil, err
	}
	return collectRides(rows)
}

func (r *PGRideRepository) ListJoined(ctx context.Context, userID string) ([]domain.Ride, error) {
	rows, err := r.db.Query(ctx, `SELECT `+prefixed("r", rideColumns)+` FROM rides r
		JOIN join_requests jr ON jr.ride_id = r.id
		WHERE jr.requester_id=$1 AND jr.status=$2 AND r.deleted_at IS NULL
		ORDER BY r.departure_time, r.id`, userID, domain.RequestStatusApproved)
	if err != nil {
		return nil, err
	}
	return collectRides(rows)
}

func (r *PGRideRepository) Delete(ctx context.Context, id string) ([]domain.JoinRequest, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := lockRide(ctx, tx, id); err != nil {
		return nil, err
	}

	var approved int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM join_requests WHERE ride_id=$1 AND status=$2`, id, domain.RequestStatusApproved).Scan(&approved); err != nil {
		return nil, err
	}
	if approved > 0 {
		return nil, fmt.Errorf("ride %s has %d approved passengers: %w", id, approved, domain.ErrConflict)
	}

	rows, err := tx.Query(ctx, `UPDATE join_requests
		SET status=$1, updated_at=now(), responded_at=now()
		WHERE ride_id=$2 AND status=$3
		RETURNING `+requestColumns, domain.RequestStatusRejected, id, domain.RequestStatusPending)
	if err != nil {
		return nil, err
	}
	rejected, err := collectRequests(rows)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `UPDATE rides SET deleted_at=now(), updated_at=now() WHERE id=$1`, id); err != nil {
		return nil, err
	}
	return rejected, tx.Commit(ctx)
}

// lockRide takes the row lock every seat-changing transaction starts with, so
// rides are always locked before their requests.
func lockRide(ctx context.Context, tx pgx.Tx, id string) (*domain.Ride, error) {
	ride, err := scanRide(tx.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id=$1 AND deleted_at IS NULL FOR UPDATE`, id))
	if err != nil {
		return nil, translate(err, "ride "+id)
	}
	return ride, nil
}

// decrementSeat is the only write path for seats_remaining. The WHERE clause
// is the capacity guard; it holds even without the preceding row lock.
func decrementSeat(ctx context.Context, tx pgx.Tx, id string) (*domain.Ride, error) {
	ride, err := scanRide(tx.QueryRow(ctx, `UPDATE rides
		SET seats_remaining = seats_remaining - 1, updated_at = now()
		WHERE id=$1 AND deleted_at IS NULL AND seats_remaining > 0
		RETURNING `+rideColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ride %s: %w", id, domain.ErrCapacityExceeded)
	}
	if err != nil {
		return nil, err
	}
	return ride, nil
}

// prefixed qualifies a column list with a table alias for joins.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

var _ RideRepository = (*PGRideRepository)(nil)
