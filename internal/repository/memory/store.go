// Package memory keeps the whole ledger in process memory. One mutex guards
// every table, so each repository call is a serializable transaction against
// this store; it stands in for PostgreSQL in tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/campusride/rideshare/internal/domain"
	"github.com/campusride/rideshare/internal/repository"
)

type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	rides    map[string]*rideRow
	requests []*domain.JoinRequest // insertion order == creation order
	profiles map[string]*domain.Profile
	messages []*domain.Message
}

type rideRow struct {
	ride    domain.Ride
	deleted bool
}

func NewStore() *Store {
	return &Store{
		now:      time.Now,
		rides:    make(map[string]*rideRow),
		profiles: make(map[string]*domain.Profile),
	}
}

// WithClock replaces the timestamp source, letting tests control ordering.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Rides() repository.RideRepository       { return &rides{s} }
func (s *Store) Requests() repository.RequestRepository { return &requests{s} }
func (s *Store) Profiles() repository.ProfileRepository { return &profiles{s} }
func (s *Store) Messages() repository.MessageRepository { return &messages{s} }

// liveRide must be called with the lock held.
func (s *Store) liveRide(id string) (*rideRow, error) {
	row, ok := s.rides[id]
	if !ok || row.deleted {
		return nil, fmt.Errorf("ride %s: %w", id, domain.ErrNotFound)
	}
	return row, nil
}

// latest must be called with the lock held.
func (s *Store) latest(rideID, requesterID string) *domain.JoinRequest {
	for i := len(s.requests) - 1; i >= 0; i-- {
		jr := s.requests[i]
		if jr.RideID == rideID && jr.RequesterID == requesterID {
			return jr
		}
	}
	return nil
}

type rides struct{ s *Store }

func (r *rides) Create(ctx context.Context, ride *domain.Ride) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.rides[ride.ID]; exists {
		return fmt.Errorf("ride already exists: %w", domain.ErrConflict)
	}
	now := r.s.now()
	ride.CreatedAt, ride.UpdatedAt = now, now
	r.s.rides[ride.ID] = &rideRow{ride: *ride}
	return nil
}

func (r *rides) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, err := r.s.liveRide(id)
	if err != nil {
		return nil, err
	}
	ride := row.ride
	return &ride, nil
}

func (r *rides) Search(ctx context.Context, filter domain.RideFilter) ([]domain.Ride, error) {
	from, to := strings.ToLower(filter.From), strings.ToLower(filter.To)
	return r.list(func(ride *domain.Ride) bool {
		if ride.DepartureTime.Before(filter.After) {
			return false
		}
		if from != "" && !matchLocation(ride.Origin, from) {
			return false
		}
		return to == "" || matchLocation(ride.Destination, to)
	}), nil
}

func (r *rides) ListByCreator(ctx context.Context, creatorID string) ([]domain.Ride, error) {
	return r.list(func(ride *domain.Ride) bool { return ride.CreatorID == creatorID }), nil
}

func (r *rides) ListJoined(ctx context.Context, userID string) ([]domain.Ride, error) {
	r.s.mu.Lock()
	joined := make(map[string]bool)
	for _, jr := range r.s.requests {
		if jr.RequesterID == userID && jr.Status == domain.RequestStatusApproved {
			joined[jr.RideID] = true
		}
	}
	r.s.mu.Unlock()

	return r.list(func(ride *domain.Ride) bool { return joined[ride.ID] }), nil
}

func (r *rides) list(keep func(*domain.Ride) bool) []domain.Ride {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]domain.Ride, 0)
	for _, row := range r.s.rides {
		if row.deleted || !keep(&row.ride) {
			continue
		}
		out = append(out, row.ride)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DepartureTime.Equal(out[j].DepartureTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].DepartureTime.Before(out[j].DepartureTime)
	})
	return out
}

func (r *rides) Delete(ctx context.Context, id string) ([]domain.JoinRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, err := r.s.liveRide(id)
	if err != nil {
		return nil, err
	}
	if taken := row.ride.SeatsTaken(); taken > 0 {
		return nil, fmt.Errorf("ride %s has %d approved passengers: %w", id, taken, domain.ErrConflict)
	}

	now := r.s.now()
	var rejected []domain.JoinRequest
	for _, jr := range r.s.requests {
		if jr.RideID == id && jr.Status == domain.RequestStatusPending {
			respond(jr, domain.RequestStatusRejected, now)
			rejected = append(rejected, *jr)
		}
	}
	row.deleted = true
	row.ride.UpdatedAt = now
	return rejected, nil
}

func matchLocation(loc domain.Location, needle string) bool {
	return strings.Contains(strings.ToLower(loc.Address), needle) ||
		strings.Contains(strings.ToLower(loc.DisplayName), needle)
}

func respond(jr *domain.JoinRequest, status domain.RequestStatus, now time.Time) {
	jr.Status = status
	jr.UpdatedAt = now
	at := now
	jr.RespondedAt = &at
}

var _ repository.RideRepository = (*rides)(nil)
