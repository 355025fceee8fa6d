package rides

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/campusride/rideshare/internal/domain"
	"github.com/campusride/rideshare/internal/logging"
	"github.com/campusride/rideshare/internal/notify"
	"github.com/campusride/rideshare/internal/observability"
	"github.com/campusride/rideshare/internal/repository"
	"github.com/google/uuid"
)

const maxRemarkLength = 500

type RideUseCase interface {
	Create(ctx context.Context, input CreateRideInput) (*domain.Ride, error)
	Get(ctx context.Context, id string) (*domain.Ride, error)
	Search(ctx context.Context, input SearchInput) ([]domain.Ride, error)
	Delete(ctx context.Context, id, actingUserID string) error
	MyRides(ctx context.Context, userID string) (*MyRides, error)
}

type Cache interface {
	GetRides(ctx context.Context, filter domain.RideFilter) ([]domain.Ride, error)
	SetRides(ctx context.Context, filter domain.RideFilter, rides []domain.Ride) error
	InvalidateRides(ctx context.Context) error
}

type CreateRideInput struct {
	CreatorID     string
	Origin        domain.Location
	Destination   domain.Location
	DepartureTime time.Time
	SeatsOffered  int
	PriceCents    int64
	Remark        string
	Restricted    bool
}

type SearchInput struct {
	From string
	To   string
}

// MyRides is the per-user dashboard: rides offered and rides joined.
type MyRides struct {
	Created []domain.Ride
	Joined  []domain.Ride
}

type RideService struct {
	rides    repository.RideRepository
	cache    Cache
	emitter  notify.Emitter
	logger   *slog.Logger
	now      func() time.Time
	maxSeats int
	grace    time.Duration
}

type RideServiceOption func(*RideService)

func WithCache(cache Cache) RideServiceOption {
	return func(s *RideService) { s.cache = cache }
}

func WithEmitter(emitter notify.Emitter) RideServiceOption {
	return func(s *RideService) { s.emitter = emitter }
}

func WithLogger(logger *slog.Logger) RideServiceOption {
	return func(s *RideService) { s.logger = logger }
}

func WithClock(now func() time.Time) RideServiceOption {
	return func(s *RideService) { s.now = now }
}

// WithLimits sets the seat ceiling and how far in the past a departure may
// be and still count as present.
func WithLimits(maxSeats int, grace time.Duration) RideServiceOption {
	return func(s *RideService) {
		s.maxSeats = maxSeats
		s.grace = grace
	}
}

func NewRideService(rides repository.RideRepository, opts ...RideServiceOption) *RideService {
	s := &RideService{
		rides:    rides,
		logger:   logging.Discard(),
		now:      time.Now,
		maxSeats: 8,
		grace:    5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RideService) Create(ctx context.Context, input CreateRideInput) (*domain.Ride, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}

	ride := &domain.Ride{
		ID:             uuid.NewString(),
		CreatorID:      input.CreatorID,
		Origin:         trimLocation(input.Origin),
		Destination:    trimLocation(input.Destination),
		DepartureTime:  input.DepartureTime.UTC(),
		SeatsOffered:   input.SeatsOffered,
		SeatsRemaining: input.SeatsOffered,
		PriceCents:     input.PriceCents,
		Restricted:     input.Restricted,
		Remark:         strings.TrimSpace(input.Remark),
	}
	if err := s.rides.Create(ctx, ride); err != nil {
		return nil, err
	}

	observability.RidesCreated.Inc()
	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "ride created", "ride_id", ride.ID, "creator_id", ride.CreatorID, "seats", ride.SeatsOffered)
	notify.FireAndForget(ctx, s.emitter, s.logger, domain.RideEvent{
		Type:           domain.EventRideCreated,
		RideID:         ride.ID,
		Recipient:      ride.CreatorID,
		SeatsRemaining: ride.SeatsRemaining,
		DepartureTime:  ride.DepartureTime,
		OccurredAt:     s.now(),
	})
	return ride, nil
}

func (s *RideService) validate(input CreateRideInput) error {
	var problems []string
	if strings.TrimSpace(input.CreatorID) == "" {
		problems = append(problems, "creator is required")
	}
	if input.SeatsOffered < 1 {
		problems = append(problems, "seats offered must be at least 1")
	} else if input.SeatsOffered > s.maxSeats {
		problems = append(problems, fmt.Sprintf("seats offered must be at most %d", s.maxSeats))
	}
	if input.DepartureTime.IsZero() {
		problems = append(problems, "departure time is required")
	} else if input.DepartureTime.Before(s.now().Add(-s.grace)) {
		problems = append(problems, "departure time is in the past")
	}
	if input.PriceCents < 0 {
		problems = append(problems, "price must not be negative")
	}
	problems = append(problems, locationProblems("origin", input.Origin)...)
	problems = append(problems, locationProblems("destination", input.Destination)...)
	if len([]rune(strings.TrimSpace(input.Remark))) > maxRemarkLength {
		problems = append(problems, fmt.Sprintf("remark must be at most %d characters", maxRemarkLength))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s: %w", strings.Join(problems, "; "), domain.ErrValidation)
	}
	return nil
}

func locationProblems(field string, loc domain.Location) []string {
	var problems []string
	if strings.TrimSpace(loc.Address) == "" {
		problems = append(problems, field+" address is required")
	}
	if math.IsNaN(loc.Lat) || loc.Lat < -90 || loc.Lat > 90 {
		problems = append(problems, field+" latitude out of range")
	}
	if math.IsNaN(loc.Lng) || loc.Lng < -180 || loc.Lng > 180 {
		problems = append(problems, field+" longitude out of range")
	}
	return problems
}

func trimLocation(loc domain.Location) domain.Location {
	loc.Address = strings.TrimSpace(loc.Address)
	loc.DisplayName = strings.TrimSpace(loc.DisplayName)
	return loc
}

func (s *RideService) Get(ctx context.Context, id string) (*domain.Ride, error) {
	return s.rides.GetByID(ctx, id)
}

// Search lists upcoming rides. Results come from the read cache when
// possible; cache errors fall through to the database.
func (s *RideService) Search(ctx context.Context, input SearchInput) ([]domain.Ride, error) {
	filter := domain.RideFilter{
		From:  strings.TrimSpace(input.From),
		To:    strings.TrimSpace(input.To),
		After: s.now().Add(-s.grace).Truncate(time.Minute),
	}

	if s.cache != nil {
		cached, err := s.cache.GetRides(ctx, filter)
		switch {
		case err != nil:
			observability.CacheResults.WithLabelValues("rides", "error").Inc()
			s.logger.WarnContext(ctx, "ride cache read failed", "error", err)
		case cached != nil:
			observability.CacheResults.WithLabelValues("rides", "hit").Inc()
			return cached, nil
		default:
			observability.CacheResults.WithLabelValues("rides", "miss").Inc()
		}
	}

	found, err := s.rides.Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetRides(ctx, filter, found); err != nil {
			s.logger.WarnContext(ctx, "ride cache write failed", "error", err)
		}
	}
	return found, nil
}

// Delete removes a ride on behalf of its creator. Pending requests are
// rejected with it; a ride with approved passengers cannot be deleted.
func (s *RideService) Delete(ctx context.Context, id, actingUserID string) error {
	ride, err := s.rides.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !ride.IsCreator(actingUserID) {
		return fmt.Errorf("only the ride creator can delete a ride: %w", domain.ErrAuthorization)
	}

	rejected, err := s.rides.Delete(ctx, id)
	if err != nil {
		return err
	}

	observability.RidesDeleted.Inc()
	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "ride deleted", "ride_id", id, "rejected_requests", len(rejected))
	for _, jr := range rejected {
		notify.FireAndForget(ctx, s.emitter, s.logger, domain.RideEvent{
			Type:          domain.EventRideDeleted,
			RideID:        id,
			RequestID:     jr.ID,
			RequesterID:   jr.RequesterID,
			Recipient:     jr.RequesterID,
			Status:        jr.Status,
			DepartureTime: ride.DepartureTime,
			OccurredAt:    s.now(),
		})
	}
	return nil
}

func (s *RideService) MyRides(ctx context.Context, userID string) (*MyRides, error) {
	created, err := s.rides.ListByCreator(ctx, userID)
	if err != nil {
		return nil, err
	}
	joined, err := s.rides.ListJoined(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &MyRides{Created: created, Joined: joined}, nil
}

func (s *RideService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateRides(ctx); err != nil {
		s.logger.WarnContext(ctx, "ride cache invalidation failed", "error", err)
	}
}

var _ RideUseCase = (*RideService)(nil)
