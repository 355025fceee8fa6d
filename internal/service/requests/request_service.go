package requests

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/campusride/rideshare/internal/domain"
	"github.com/campusride/rideshare/internal/logging"
	"github.com/campusride/rideshare/internal/notify"
	"github.com/campusride/rideshare/internal/observability"
	"github.com/campusride/rideshare/internal/repository"
	"github.com/google/uuid"
)

const defaultPageSize = 50

type RequestUseCase interface {
	Submit(ctx context.Context, rideID, requesterID string) (*domain.JoinRequest, error)
	List(ctx context.Context, rideID, actingUserID string) (iter.Seq2[domain.RequestView, error], error)
	Status(ctx context.Context, rideID, requesterID string) (*domain.JoinRequest, error)
	Approve(ctx context.Context, rideID, requesterID, actingUserID string) (*domain.JoinRequest, error)
	Reject(ctx context.Context, rideID, requesterID, actingUserID string) (*domain.JoinRequest, error)
	ExpireDeparted(ctx context.Context) ([]domain.JoinRequest, error)
}

// Invalidator drops cached ride listings after seat counts change.
type Invalidator interface {
	InvalidateRides(ctx context.Context) error
}

type RequestService struct {
	rides         repository.RideRepository
	requests      repository.RequestRepository
	cache         Invalidator
	emitter       notify.Emitter
	logger        *slog.Logger
	now           func() time.Time
	pageSize      int
	allowWaitlist bool
}

type RequestServiceOption func(*RequestService)

func WithCache(cache Invalidator) RequestServiceOption {
	return func(s *RequestService) { s.cache = cache }
}

func WithEmitter(emitter notify.Emitter) RequestServiceOption {
	return func(s *RequestService) { s.emitter = emitter }
}

func WithLogger(logger *slog.Logger) RequestServiceOption {
	return func(s *RequestService) { s.logger = logger }
}

func WithClock(now func() time.Time) RequestServiceOption {
	return func(s *RequestService) { s.now = now }
}

func WithPageSize(size int) RequestServiceOption {
	return func(s *RequestService) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// WithWaitlist lets riders queue pending requests on a ride with no seats
// left. Approval still fails until a seat is available.
func WithWaitlist(allow bool) RequestServiceOption {
	return func(s *RequestService) { s.allowWaitlist = allow }
}

func NewRequestService(
	rides repository.RideRepository,
	requests repository.RequestRepository,
	opts ...RequestServiceOption,
) *RequestService {
	s := &RequestService{
		rides:    rides,
		requests: requests,
		logger:   logging.Discard(),
		now:      time.Now,
		pageSize: defaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RequestService) Submit(ctx context.Context, rideID, requesterID string) (*domain.JoinRequest, error) {
	if strings.TrimSpace(requesterID) == "" {
		return nil, fmt.Errorf("requester is required: %w", domain.ErrValidation)
	}

	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.IsCreator(requesterID) {
		return nil, fmt.Errorf("a creator cannot request to join their own ride: %w", domain.ErrAuthorization)
	}
	if ride.DepartureTime.Before(s.now()) {
		return nil, fmt.Errorf("ride has already departed: %w", domain.ErrInvalidState)
	}
	if ride.SeatsRemaining <= 0 && !s.allowWaitlist {
		return nil, fmt.Errorf("ride %s is full: %w", rideID, domain.ErrCapacityExceeded)
	}

	req := &domain.JoinRequest{
		ID:          uuid.NewString(),
		RideID:      rideID,
		RequesterID: requesterID,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	observability.RequestsSubmitted.Inc()
	s.logger.InfoContext(ctx, "join request submitted", "ride_id", rideID, "request_id", req.ID, "requester_id", requesterID)
	s.emit(ctx, domain.EventRequestSubmitted, req, ride, ride.CreatorID)
	return req, nil
}

// List returns a lazy sequence over every request on the ride, oldest first.
// Pages are fetched on demand; ranging over the sequence again restarts it.
func (s *RequestService) List(ctx context.Context, rideID, actingUserID string) (iter.Seq2[domain.RequestView, error], error) {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !ride.IsCreator(actingUserID) {
		return nil, fmt.Errorf("only the ride creator can list requests: %w", domain.ErrAuthorization)
	}
	return s.pages(ctx, rideID), nil
}

func (s *RequestService) pages(ctx context.Context, rideID string) iter.Seq2[domain.RequestView, error] {
	return func(yield func(domain.RequestView, error) bool) {
		var cursor repository.PageCursor
		for {
			page, err := s.requests.ListPage(ctx, rideID, cursor, s.pageSize)
			if err != nil {
				yield(domain.RequestView{}, err)
				return
			}
			for _, view := range page {
				if !yield(view, nil) {
					return
				}
			}
			if len(page) < s.pageSize {
				return
			}
			cursor = repository.CursorAfter(page[len(page)-1].JoinRequest)
		}
	}
}

// Status returns the requester's latest request on the ride, or nil when
// they have never applied.
func (s *RequestService) Status(ctx context.Context, rideID, requesterID string) (*domain.JoinRequest, error) {
	if _, err := s.rides.GetByID(ctx, rideID); err != nil {
		return nil, err
	}
	jr, err := s.requests.Latest(ctx, rideID, requesterID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return jr, err
}

// Approve accepts a pending request and takes one seat. The seat decrement
// and the status change commit together or not at all.
func (s *RequestService) Approve(ctx context.Context, rideID, requesterID, actingUserID string) (*domain.JoinRequest, error) {
	if _, err := s.authorize(ctx, rideID, actingUserID, "approve"); err != nil {
		return nil, err
	}

	jr, ride, err := s.requests.Approve(ctx, rideID, requesterID)
	if err != nil {
		observability.Decisions.WithLabelValues("approve", outcome(err)).Inc()
		return nil, err
	}

	observability.Decisions.WithLabelValues("approve", "ok").Inc()
	if s.cache != nil {
		if err := s.cache.InvalidateRides(ctx); err != nil {
			s.logger.WarnContext(ctx, "ride cache invalidation failed", "error", err)
		}
	}
	s.logger.InfoContext(ctx, "join request approved",
		"ride_id", rideID, "request_id", jr.ID, "seats_remaining", ride.SeatsRemaining)
	s.emit(ctx, domain.EventRequestApproved, jr, ride, jr.RequesterID)
	return jr, nil
}

func (s *RequestService) Reject(ctx context.Context, rideID, requesterID, actingUserID string) (*domain.JoinRequest, error) {
	ride, err := s.authorize(ctx, rideID, actingUserID, "reject")
	if err != nil {
		return nil, err
	}

	jr, err := s.requests.Reject(ctx, rideID, requesterID)
	if err != nil {
		observability.Decisions.WithLabelValues("reject", outcome(err)).Inc()
		return nil, err
	}

	observability.Decisions.WithLabelValues("reject", "ok").Inc()
	s.logger.InfoContext(ctx, "join request rejected", "ride_id", rideID, "request_id", jr.ID)
	s.emit(ctx, domain.EventRequestRejected, jr, ride, jr.RequesterID)
	return jr, nil
}

// ExpireDeparted rejects every request still pending on a ride that has
// already left.
func (s *RequestService) ExpireDeparted(ctx context.Context) ([]domain.JoinRequest, error) {
	expired, err := s.requests.ExpireDeparted(ctx, s.now())
	if err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return expired, nil
	}

	observability.RequestsExpired.Add(float64(len(expired)))
	s.logger.InfoContext(ctx, "expired pending requests", "count", len(expired))
	for i := range expired {
		jr := &expired[i]
		ride, err := s.rides.GetByID(ctx, jr.RideID)
		if err != nil {
			ride = &domain.Ride{ID: jr.RideID}
		}
		s.emit(ctx, domain.EventRequestExpired, jr, ride, jr.RequesterID)
	}
	return expired, nil
}

// authorize checks that the ride exists and belongs to the acting user. It
// runs before any look at the request so that a non-creator learns nothing
// about it.
func (s *RequestService) authorize(ctx context.Context, rideID, actingUserID, action string) (*domain.Ride, error) {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !ride.IsCreator(actingUserID) {
		observability.Decisions.WithLabelValues(action, "forbidden").Inc()
		return nil, fmt.Errorf("only the ride creator can %s requests: %w", action, domain.ErrAuthorization)
	}
	return ride, nil
}

func (s *RequestService) emit(ctx context.Context, typ domain.EventType, jr *domain.JoinRequest, ride *domain.Ride, recipient string) {
	notify.FireAndForget(ctx, s.emitter, s.logger, domain.RideEvent{
		Type:           typ,
		RideID:         jr.RideID,
		RequestID:      jr.ID,
		RequesterID:    jr.RequesterID,
		Recipient:      recipient,
		Status:         jr.Status,
		SeatsRemaining: ride.SeatsRemaining,
		DepartureTime:  ride.DepartureTime,
		OccurredAt:     s.now(),
	})
}

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrCapacityExceeded):
		return "capacity_exceeded"
	default:
		return "error"
	}
}

var _ RequestUseCase = (*RequestService)(nil)
