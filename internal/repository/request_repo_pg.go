package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campusride/rideshare/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PageCursor marks the last request of a page. The zero value starts at the
// beginning of the ledger.
type PageCursor struct {
	CreatedAt time.Time
	ID        string
}

func CursorAfter(r domain.JoinRequest) PageCursor {
	return PageCursor{CreatedAt: r.CreatedAt, ID: r.ID}
}

type RequestRepository interface {
	// Create inserts a pending request. A second active request for the same
	// (ride, requester) fails with ErrConflict.
	Create(ctx context.Context, req *domain.JoinRequest) error
	// Latest returns the most recent request for the pair.
	Latest(ctx context.Context, rideID, requesterID string) (*domain.JoinRequest, error)
	// ListPage returns requests for a ride ordered oldest first, strictly
	// after the cursor.
	ListPage(ctx context.Context, rideID string, after PageCursor, limit int) ([]domain.RequestView, error)
	// Approve decrements the ride's seats and marks the pending request
	// approved in one transaction.
	Approve(ctx context.Context, rideID, requesterID string) (*domain.JoinRequest, *domain.Ride, error)
	Reject(ctx context.Context, rideID, requesterID string) (*domain.JoinRequest, error)
	// ExpireDeparted rejects pending requests on rides that departed before
	// the deadline.
	ExpireDeparted(ctx context.Context, deadline time.Time) ([]domain.JoinRequest, error)
}

type PGRequestRepository struct {
	db *pgxpool.Pool
}

func NewRequestRepository(db *pgxpool.Pool) RequestRepository {
	return &PGRequestRepository{db: db}
}

const requestColumns = `id, ride_id, requester_id, status, created_at, updated_at, responded_at`

func scanRequest(row rowScanner) (*domain.JoinRequest, error) {
	var jr domain.JoinRequest
	if err := row.Scan(&jr.ID, &jr.RideID, &jr.RequesterID, &jr.Status, &jr.CreatedAt, &jr.UpdatedAt, &jr.RespondedAt); err != nil {
		return nil, err
	}
	return &jr, nil
}

func collectRequests(rows pgx.Rows) ([]domain.JoinRequest, error) {
	defer rows.Close()

	var out []domain.JoinRequest
	for rows.Next() {
		jr, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *jr)
	}
	return out, rows.Err()
}

func (r *PGRequestRepository) Create(ctx context.Context, req *domain.JoinRequest) error {
	req.Status = domain.RequestStatusPending
	row := r.db.QueryRow(ctx, `INSERT INTO join_requests (id, ride_id, requester_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`, req.ID, req.RideID, req.RequesterID, req.Status)
	return translate(row.Scan(&req.CreatedAt, &req.UpdatedAt), "join request")
}

func (r *PGRequestRepository) Latest(ctx context.Context, rideID, requesterID string) (*domain.JoinRequest, error) {
	jr, err := scanRequest(r.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM join_requests
		WHERE ride_id=$1 AND requester_id=$2
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, rideID, requesterID))
	if err != nil {
		return nil, translate(err, "join request")
	}
	return jr, nil
}

func (r *PGRequestRepository) ListPage(ctx context.Context, rideID string, after PageCursor, limit int) ([]domain.RequestView, error) {
	rows, err := r.db.Query(ctx, `SELECT `+prefixed("jr", requestColumns)+`,
			COALESCE(p.full_name, ''), COALESCE(p.phone, ''), COALESCE(p.email, '')
		FROM join_requests jr
		LEFT JOIN profiles p ON p.user_id = jr.requester_id
		WHERE jr.ride_id=$1 AND (jr.created_at, jr.id) > ($2, $3)
		ORDER BY jr.created_at, jr.id
		LIMIT $4`, rideID, after.CreatedAt, after.ID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := make([]domain.RequestView, 0, limit)
	for rows.Next() {
		var v domain.RequestView
		if err := rows.Scan(&v.ID, &v.RideID, &v.RequesterID, &v.Status, &v.CreatedAt, &v.UpdatedAt, &v.RespondedAt,
			&v.Requester.FullName, &v.Requester.Phone, &v.Requester.Email); err != nil {
			return nil, err
		}
		v.Requester.UserID = v.RequesterID
		views = append(views, v)
	}
	return views, rows.Err()
}

func (r *PGRequestRepository) Approve(ctx context.Context, rideID, requesterID string) (*domain.JoinRequest, *domain.Ride, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := lockRide(ctx, tx, rideID); err != nil {
		return nil, nil, err
	}
	current, err := lockPending(ctx, tx, rideID, requesterID)
	if err != nil {
		return nil, nil, err
	}

	ride, err := decrementSeat(ctx, tx, rideID)
	if err != nil {
		return nil, nil, err
	}
	approved, err := setStatus(ctx, tx, current.ID, domain.RequestStatusApproved)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return approved, ride, nil
}

func (r *PGRequestRepository) Reject(ctx context.Context, rideID, requesterID string) (*domain.JoinRequest, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	current, err := lockPending(ctx, tx, rideID, requesterID)
	if err != nil {
		return nil, err
	}
	rejected, err := setStatus(ctx, tx, current.ID, domain.RequestStatusRejected)
	if err != nil {
		return nil, err
	}
	return rejected, tx.Commit(ctx)
}

func (r *PGRequestRepository) ExpireDeparted(ctx context.Context, deadline time.Time) ([]domain.JoinRequest, error) {
	rows, err := r.db.Query(ctx, `UPDATE join_requests jr
		SET status=$1, updated_at=now(), responded_at=now()
		FROM rides r
		WHERE jr.ride_id = r.id AND jr.status=$2 AND r.departure_time < $3
		RETURNING `+prefixed("jr", requestColumns), domain.RequestStatusRejected, domain.RequestStatusPending, deadline)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

// lockPending locks the latest request for the pair and checks it is still
// pending.
func lockPending(ctx context.Context, tx pgx.Tx, rideID, requesterID string) (*domain.JoinRequest, error) {
	jr, err := scanRequest(tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM join_requests
		WHERE ride_id=$1 AND requester_id=$2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
		FOR UPDATE`, rideID, requesterID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("join request for ride %s by %s: %w", rideID, requesterID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if jr.Status != domain.RequestStatusPending {
		return nil, fmt.Errorf("join request is %s: %w", jr.Status, domain.ErrInvalidState)
	}
	return jr, nil
}

func setStatus(ctx context.Context, tx pgx.Tx, id string, status domain.RequestStatus) (*domain.JoinRequest, error) {
	jr, err := scanRequest(tx.QueryRow(ctx, `UPDATE join_requests
		SET status=$1, updated_at=now(), responded_at=now()
		WHERE id=$2 AND status=$3
		RETURNING `+requestColumns, status, id, domain.RequestStatusPending))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("join request %s is no longer pending: %w", id, domain.ErrInvalidState)
	}
	return jr, err
}

var _ RequestRepository = (*PGRequestRepository)(nil)
