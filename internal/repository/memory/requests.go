package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/campusride/rideshare/internal/domain"
	"github.com/campusride/rideshare/internal/repository"
)

type requests struct{ s *Store }

func (r *requests) Create(ctx context.Context, req *domain.JoinRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, err := r.s.liveRide(req.RideID); err != nil {
		return err
	}
	if prev := r.s.latest(req.RideID, req.RequesterID); prev != nil && prev.Status.IsActive() {
		return fmt.Errorf("join request already exists: %w", domain.ErrConflict)
	}

	now := r.s.now()
	req.Status = domain.RequestStatusPending
	req.CreatedAt, req.UpdatedAt = now, now
	stored := *req
	r.s.requests = append(r.s.requests, &stored)
	return nil
}

func (r *requests) Latest(ctx context.Context, rideID, requesterID string) (*domain.JoinRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	jr := r.s.latest(rideID, requesterID)
	if jr == nil {
		return nil, fmt.Errorf("join request: %w", domain.ErrNotFound)
	}
	out := *jr
	return &out, nil
}

func (r *requests) ListPage(ctx context.Context, rideID string, after repository.PageCursor, limit int) ([]domain.RequestView, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var matched []*domain.JoinRequest
	for _, jr := range r.s.requests {
		if jr.RideID == rideID && isAfter(jr, after) {
			matched = append(matched, jr)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}

	views := make([]domain.RequestView, 0, len(matched))
	for _, jr := range matched {
		v := domain.RequestView{JoinRequest: *jr, Requester: domain.Profile{UserID: jr.RequesterID}}
		if p, ok := r.s.profiles[jr.RequesterID]; ok {
			v.Requester = *p
		}
		views = append(views, v)
	}
	return views, nil
}

func isAfter(jr *domain.JoinRequest, c repository.PageCursor) bool {
	if jr.CreatedAt.Equal(c.CreatedAt) {
		return jr.ID > c.ID
	}
	return jr.CreatedAt.After(c.CreatedAt)
}

func (r *requests) Approve(ctx context.Context, rideID, requesterID string) (*domain.JoinRequest, *domain.Ride, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, err := r.s.liveRide(rideID)
	if err != nil {
		return nil, nil, err
	}
	jr, err := r.pending(rideID, requesterID)
	if err != nil {
		return nil, nil, err
	}
	if row.ride.SeatsRemaining <= 0 {
		return nil, nil, fmt.Errorf("ride %s: %w", rideID, domain.ErrCapacityExceeded)
	}

	now := r.s.now()
	row.ride.SeatsRemaining--
	row.ride.UpdatedAt = now
	respond(jr, domain.RequestStatusApproved, now)

	out, ride := *jr, row.ride
	return &out, &ride, nil
}

func (r *requests) Reject(ctx context.Context, rideID, requesterID string) (*domain.JoinRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	jr, err := r.pending(rideID, requesterID)
	if err != nil {
		return nil, err
	}
	respond(jr, domain.RequestStatusRejected, r.s.now())
	out := *jr
	return &out, nil
}

func (r *requests) ExpireDeparted(ctx context.Context, deadline time.Time) ([]domain.JoinRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	var expired []domain.JoinRequest
	for _, jr := range r.s.requests {
		if jr.Status != domain.RequestStatusPending {
			continue
		}
		row, ok := r.s.rides[jr.RideID]
		if !ok || !row.ride.DepartureTime.Before(deadline) {
			continue
		}
		respond(jr, domain.RequestStatusRejected, now)
		expired = append(expired, *jr)
	}
	return expired, nil
}

// pending must be called with the lock held.
func (r *requests) pending(rideID, requesterID string) (*domain.JoinRequest, error) {
	jr := r.s.latest(rideID, requesterID)
	if jr == nil {
		return nil, fmt.Errorf("join request for ride %s by %s: %w", rideID, requesterID, domain.ErrNotFound)
	}
	if jr.Status != domain.RequestStatusPending {
		return nil, fmt.Errorf("join request is %s: %w", jr.Status, domain.ErrInvalidState)
	}
	return jr, nil
}

var _ repository.RequestRepository = (*requests)(nil)
