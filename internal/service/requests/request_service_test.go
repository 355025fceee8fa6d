package requests

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/campusride/rideshare/internal/domain"
	"github.com/campusride/rideshare/internal/repository"
	"github.com/campusride/rideshare/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRequestRepository struct {
	mock.Mock
}

func (m *MockRequestRepository) Create(ctx context.Context, req *domain.JoinRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockRequestRepository) Latest(ctx context.Context, rideID, requesterID string) (*domain.JoinRequest, error) {
	args := m.Called(ctx, rideID, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.JoinRequest), args.Error(1)
}

func (m *MockRequestRepository) ListPage(ctx context.Context, rideID string, after repository.PageCursor, limit int) ([]domain.RequestView, error) {
	args := m.Called(ctx, rideID, after, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RequestView), args.Error(1)
}

func (m *MockRequestRepository) Approve(ctx context.Context, rideID, requesterID string) (*domain.JoinRequest, *domain.Ride, error) {
	args := m.Called(ctx, rideID, requesterID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.JoinRequest), args.Get(1).(*domain.Ride), args.Error(2)
}

func (m *MockRequestRepository) Reject(ctx context.Context, rideID, requesterID string) (*domain.JoinRequest, error) {
	args := m.Called(ctx, rideID, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.JoinRequest), args.Error(1)
}

func (m *MockRequestRepository) ExpireDeparted(ctx context.Context, deadline time.Time) ([]domain.JoinRequest, error) {
	args := m.Called(ctx, deadline)
	return args.Get(0).([]domain.JoinRequest), args.Error(1)
}

type MockEmitter struct {
	mock.Mock
}

func (m *MockEmitter) Emit(ctx context.Context, event domain.RideEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockInvalidator struct {
	mock.Mock
}

func (m *MockInvalidator) InvalidateRides(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func tickingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}

func seedRide(t *testing.T, store *memory.Store, seats int) *domain.Ride {
	t.Helper()
	ride := &domain.Ride{
		ID:             "ride-1",
		CreatorID:      "creator",
		Origin:         domain.Location{Address: "VIT Main Gate"},
		Destination:    domain.Location{Address: "Chennai Central"},
		DepartureTime:  now.Add(6 * time.Hour),
		SeatsOffered:   seats,
		SeatsRemaining: seats,
	}
	require.NoError(t, store.Rides().Create(context.Background(), ride))
	return ride
}

func newEngine(t *testing.T, seats int, opts ...RequestServiceOption) (*RequestService, *memory.Store) {
	t.Helper()
	store := memory.NewStore().WithClock(tickingClock(now.Add(-time.Hour)))
	seedRide(t, store, seats)
	opts = append([]RequestServiceOption{WithClock(func() time.Time { return now })}, opts...)
	return NewRequestService(store.Rides(), store.Requests(), opts...), store
}

// approvedCount recomputes the seat invariant from the request ledger.
func approvedCount(t *testing.T, svc *RequestService, rideID string) int {
	t.Helper()
	seq, err := svc.List(context.Background(), rideID, "creator")
	require.NoError(t, err)
	n := 0
	for view, err := range seq {
		require.NoError(t, err)
		if view.Status == domain.RequestStatusApproved {
			n++
		}
	}
	return n
}

func TestRequestService_Submit(t *testing.T) {
	ctx := context.Background()
	emitter := new(MockEmitter)
	emitter.On("Emit", mock.Anything, mock.MatchedBy(func(e domain.RideEvent) bool {
		return e.Type == domain.EventRequestSubmitted && e.Recipient == "creator" && e.RequesterID == "alice"
	})).Return(nil).Once()

	svc, _ := newEngine(t, 2, WithEmitter(emitter))
	jr, err := svc.Submit(ctx, "ride-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusPending, jr.Status)
	assert.NotEmpty(t, jr.ID)

	_, err = svc.Submit(ctx, "ride-1", "alice")
	assert.ErrorIs(t, err, domain.ErrConflict)

	emitter.AssertExpectations(t)
}

func TestRequestService_SubmitErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newEngine(t, 1)

	_, err := svc.Submit(ctx, "missing", "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Submit(ctx, "ride-1", "creator")
	assert.ErrorIs(t, err, domain.ErrAuthorization)

	_, err = svc.Submit(ctx, "ride-1", " ")
	assert.ErrorIs(t, err, domain.ErrValidation)

	late := NewRequestService(svc.rides, svc.requests, WithClock(func() time.Time { return now.Add(7 * time.Hour) }))
	_, err = late.Submit(ctx, "ride-1", "alice")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestRequestService_SubmitToFullRide(t *testing.T) {
	ctx := context.Background()

	t.Run("blocked by default", func(t *testing.T) {
		svc, _ := newEngine(t, 1)
		_, err := svc.Submit(ctx, "ride-1", "alice")
		require.NoError(t, err)
		_, err = svc.Approve(ctx, "ride-1", "alice", "creator")
		require.NoError(t, err)

		_, err = svc.Submit(ctx, "ride-1", "bob")
		assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
	})

	t.Run("waitlist accepts pending requests", func(t *testing.T) {
		svc, _ := newEngine(t, 1, WithWaitlist(true))
		_, err := svc.Submit(ctx, "ride-1", "alice")
		require.NoError(t, err)
		_, err = svc.Approve(ctx, "ride-1", "alice", "creator")
		require.NoError(t, err)

		jr, err := svc.Submit(ctx, "ride-1", "bob")
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusPending, jr.Status)

		_, err = svc.Approve(ctx, "ride-1", "bob", "creator")
		assert.ErrorIs(t, err, domain.ErrCapacityExceeded)

		status, err := svc.Status(ctx, "ride-1", "bob")
		require.NoError(t, err)
		assert.Equal(t, domain.RequestStatusPending, status.Status)
	})
}

func TestRequestService_ApproveKeepsSeatInvariant(t *testing.T) {
	ctx := context.Background()
	cache := new(MockInvalidator)
	cache.On("InvalidateRides", mock.Anything).Return(nil).Twice()

	svc, store := newEngine(t, 2, WithCache(cache))
	for _, u := range []string{"alice", "bob", "carol"} {
		_, err := svc.Submit(ctx, "ride-1", u)
		require.NoError(t, err)
	}

	jr, err := svc.Approve(ctx, "ride-1", "alice", "creator")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusApproved, jr.Status)
	_, err = svc.Approve(ctx, "ride-1", "bob", "creator")
	require.NoError(t, err)
	_, err = svc.Approve(ctx, "ride-1", "carol", "creator")
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)

	ride, err := store.Rides().GetByID(ctx, "ride-1")
	require.NoError(t, err)
	assert.Equal(t, 0, ride.SeatsRemaining)
	assert.Equal(t, ride.SeatsOffered-ride.SeatsRemaining, approvedCount(t, svc, "ride-1"))
	cache.AssertExpectations(t)
}

func TestRequestService_DecisionsAreFinal(t *testing.T) {
	ctx := context.Background()
	svc, store := newEngine(t, 3)
	_, err := svc.Submit(ctx, "ride-1", "alice")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, "ride-1", "bob")
	require.NoError(t, err)

	_, err = svc.Approve(ctx, "ride-1", "alice", "creator")
	require.NoError(t, err)
	_, err = svc.Approve(ctx, "ride-1", "alice", "creator")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = svc.Reject(ctx, "ride-1", "alice", "creator")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = svc.Reject(ctx, "ride-1", "bob", "creator")
	require.NoError(t, err)
	_, err = svc.Approve(ctx, "ride-1", "bob", "creator")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = svc.Approve(ctx, "ride-1", "nobody", "creator")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	ride, err := store.Rides().GetByID(ctx, "ride-1")
	require.NoError(t, err)
	assert.Equal(t, 2, ride.SeatsRemaining)
}

func TestRequestService_RejectedRequesterMayReapply(t *testing.T) {
	ctx := context.Background()
	svc, _ := newEngine(t, 1)
	first, err := svc.Submit(ctx, "ride-1", "alice")
	require.NoError(t, err)
	_, err = svc.Reject(ctx, "ride-1", "alice", "creator")
	require.NoError(t, err)

	second, err := svc.Submit(ctx, "ride-1", "alice")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	status, err := svc.Status(ctx, "ride-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, second.ID, status.ID)
	assert.Equal(t, domain.RequestStatusPending, status.Status)
}

func TestRequestService_StatusWithoutRequest(t *testing.T) {
	svc, _ := newEngine(t, 1)
	status, err := svc.Status(context.Background(), "ride-1", "alice")
	require.NoError(t, err)
	assert.Nil(t, status)

	_, err = svc.Status(context.Background(), "missing", "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequestService_NonCreatorIsForbiddenRegardlessOfState(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedRide(t, store, 1)
	reqs := new(MockRequestRepository)
	svc := NewRequestService(store.Rides(), reqs, WithClock(func() time.Time { return now }))

	_, err := svc.Approve(ctx, "ride-1", "alice", "alice")
	assert.ErrorIs(t, err, domain.ErrAuthorization)
	_, err = svc.Reject(ctx, "ride-1", "alice", "mallory")
	assert.ErrorIs(t, err, domain.ErrAuthorization)
	_, err = svc.List(ctx, "ride-1", "mallory")
	assert.ErrorIs(t, err, domain.ErrAuthorization)

	_, err = svc.Approve(ctx, "missing", "alice", "creator")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	reqs.AssertNotCalled(t, "Approve", mock.Anything, mock.Anything, mock.Anything)
	reqs.AssertNotCalled(t, "Reject", mock.Anything, mock.Anything, mock.Anything)
	reqs.AssertNotCalled(t, "ListPage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestService_ConcurrentApprovalsNeverOversell(t *testing.T) {
	ctx := context.Background()
	const seats, riders = 3, 20
	svc, store := newEngine(t, seats)
	for i := 0; i < riders; i++ {
		_, err := svc.Submit(ctx, "ride-1", fmt.Sprintf("rider-%d", i))
		require.NoError(t, err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		approved int
		full     int
	)
	for i := 0; i < riders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Approve(ctx, "ride-1", fmt.Sprintf("rider-%d", i), "creator")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				approved++
			case errors.Is(err, domain.ErrCapacityExceeded):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, seats, approved)
	assert.Equal(t, riders-seats, full)
	ride, err := store.Rides().GetByID(ctx, "ride-1")
	require.NoError(t, err)
	assert.Equal(t, 0, ride.SeatsRemaining)
	assert.Equal(t, seats, approvedCount(t, svc, "ride-1"))
}

func TestRequestService_ConcurrentApproveAndRejectOfOneRequest(t *testing.T) {
	ctx := context.Background()
	svc, store := newEngine(t, 2)
	_, err := svc.Submit(ctx, "ride-1", "alice")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); _, errs[0] = svc.Approve(ctx, "ride-1", "alice", "creator") }()
	go func() { defer wg.Done(); _, errs[1] = svc.Reject(ctx, "ride-1", "alice", "creator") }()
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrInvalidState)
		}
	}
	assert.Equal(t, 1, succeeded)

	ride, err := store.Rides().GetByID(ctx, "ride-1")
	require.NoError(t, err)
	assert.Equal(t, ride.SeatsOffered-ride.SeatsRemaining, approvedCount(t, svc, "ride-1"))
}

func TestRequestService_NotificationFailureDoesNotRollBack(t *testing.T) {
	ctx := context.Background()
	emitter := new(MockEmitter)
	emitter.On("Emit", mock.Anything, mock.Anything).Return(errors.New("broker unavailable"))

	svc, store := newEngine(t, 1, WithEmitter(emitter))
	_, err := svc.Submit(ctx, "ride-1", "alice")
	require.NoError(t, err)
	jr, err := svc.Approve(ctx, "ride-1", "alice", "creator")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusApproved, jr.Status)

	ride, err := store.Rides().GetByID(ctx, "ride-1")
	require.NoError(t, err)
	assert.Equal(t, 0, ride.SeatsRemaining)
	emitter.AssertNumberOfCalls(t, "Emit", 2)
}

func TestRequestService_ApprovalNotifiesRequester(t *testing.T) {
	ctx := context.Background()
	emitter := new(MockEmitter)
	emitter.On("Emit", mock.Anything, mock.MatchedBy(func(e domain.RideEvent) bool {
		return e.Type == domain.EventRequestSubmitted
	})).Return(nil)
	emitter.On("Emit", mock.Anything, mock.MatchedBy(func(e domain.RideEvent) bool {
		return e.Type == domain.EventRequestApproved && e.Recipient == "alice" && e.SeatsRemaining == 1
	})).Return(nil).Once()
	emitter.On("Emit", mock.Anything, mock.MatchedBy(func(e domain.RideEvent) bool {
		return e.Type == domain.EventRequestRejected && e.Recipient == "bob" && e.Status == domain.RequestStatusRejected
	})).Return(nil).Once()

	svc, _ := newEngine(t, 2, WithEmitter(emitter))
	_, err := svc.Submit(ctx, "ride-1", "alice")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, "ride-1", "bob")
	require.NoError(t, err)
	_, err = svc.Approve(ctx, "ride-1", "alice", "creator")
	require.NoError(t, err)
	_, err = svc.Reject(ctx, "ride-1", "bob", "creator")
	require.NoError(t, err)

	emitter.AssertExpectations(t)
}

func TestRequestService_ListPagesLazily(t *testing.T) {
	ctx := context.Background()
	svc, store := newEngine(t, 8, WithPageSize(2))
	require.NoError(t, store.Profiles().Upsert(ctx, &domain.Profile{UserID: "rider-0", FullName: "Asha Rao"}))
	for i := 0; i < 5; i++ {
		_, err := svc.Submit(ctx, "ride-1", fmt.Sprintf("rider-%d", i))
		require.NoError(t, err)
	}

	seq, err := svc.List(ctx, "ride-1", "creator")
	require.NoError(t, err)

	collect := func() []string {
		var ids []string
		for view, err := range seq {
			require.NoError(t, err)
			ids = append(ids, view.RequesterID)
		}
		return ids
	}
	want := []string{"rider-0", "rider-1", "rider-2", "rider-3", "rider-4"}
	assert.Equal(t, want, collect())
	assert.Equal(t, want, collect(), "sequence restarts from the beginning")

	for view, err := range seq {
		require.NoError(t, err)
		assert.Equal(t, "Asha Rao", view.Requester.FullName)
		break
	}
}

func TestRequestService_ListStopsFetchingWhenConsumerStops(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedRide(t, store, 4)
	reqs := new(MockRequestRepository)
	page := []domain.RequestView{
		{JoinRequest: domain.JoinRequest{ID: "a", RequesterID: "alice", CreatedAt: now}},
		{JoinRequest: domain.JoinRequest{ID: "b", RequesterID: "bob", CreatedAt: now}},
	}
	reqs.On("ListPage", mock.Anything, "ride-1", repository.PageCursor{}, 2).Return(page, nil).Once()

	svc := NewRequestService(store.Rides(), reqs, WithPageSize(2))
	seq, err := svc.List(ctx, "ride-1", "creator")
	require.NoError(t, err)

	seen := 0
	for _, err := range seq {
		require.NoError(t, err)
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
	reqs.AssertExpectations(t)
}

func TestRequestService_ListSurfacesRepositoryErrors(t *testing.T) {
	store := memory.NewStore()
	seedRide(t, store, 4)
	reqs := new(MockRequestRepository)
	reqs.On("ListPage", mock.Anything, "ride-1", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset")).Once()

	svc := NewRequestService(store.Rides(), reqs)
	seq, err := svc.List(context.Background(), "ride-1", "creator")
	require.NoError(t, err)

	var got error
	for _, err := range seq {
		got = err
	}
	assert.EqualError(t, got, "connection reset")
}

func TestRequestService_ExpireDeparted(t *testing.T) {
	ctx := context.Background()
	emitter := new(MockEmitter)
	emitter.On("Emit", mock.Anything, mock.MatchedBy(func(e domain.RideEvent) bool {
		return e.Type == domain.EventRequestSubmitted
	})).Return(nil)
	emitter.On("Emit", mock.Anything, mock.MatchedBy(func(e domain.RideEvent) bool {
		return e.Type == domain.EventRequestExpired && e.Recipient == "alice"
	})).Return(nil).Once()

	store := memory.NewStore()
	seedRide(t, store, 2)
	clock := now
	svc := NewRequestService(store.Rides(), store.Requests(),
		WithEmitter(emitter), WithClock(func() time.Time { return clock }))

	_, err := svc.Submit(ctx, "ride-1", "alice")
	require.NoError(t, err)

	expired, err := svc.ExpireDeparted(ctx)
	require.NoError(t, err)
	assert.Empty(t, expired)

	clock = now.Add(7 * time.Hour)
	expired, err = svc.ExpireDeparted(ctx)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, domain.RequestStatusRejected, expired[0].Status)
	emitter.AssertExpectations(t)
}

// Two seats: A approved, B rejected, C approved. D then either queues behind
// a full ride or is turned away at submission, depending on the waitlist.
func TestRequestService_CampusRideScenario(t *testing.T) {
	for _, waitlist := range []bool{false, true} {
		t.Run(fmt.Sprintf("waitlist=%v", waitlist), func(t *testing.T) {
			ctx := context.Background()
			svc, store := newEngine(t, 2, WithWaitlist(waitlist))
			seats := func() int {
				ride, err := store.Rides().GetByID(ctx, "ride-1")
				require.NoError(t, err)
				return ride.SeatsRemaining
			}

			_, err := svc.Submit(ctx, "rider-a", "rider-a")
			assert.ErrorIs(t, err, domain.ErrNotFound)

			_, err = svc.Submit(ctx, "ride-1", "rider-a")
			require.NoError(t, err)
			a, err := svc.Approve(ctx, "ride-1", "rider-a", "creator")
			require.NoError(t, err)
			assert.Equal(t, domain.RequestStatusApproved, a.Status)
			assert.Equal(t, 1, seats())

			_, err = svc.Submit(ctx, "ride-1", "rider-b")
			require.NoError(t, err)
			b, err := svc.Reject(ctx, "ride-1", "rider-b", "creator")
			require.NoError(t, err)
			assert.Equal(t, domain.RequestStatusRejected, b.Status)
			assert.Equal(t, 1, seats())

			_, err = svc.Submit(ctx, "ride-1", "rider-c")
			require.NoError(t, err)
			_, err = svc.Approve(ctx, "ride-1", "rider-c", "creator")
			require.NoError(t, err)
			assert.Equal(t, 0, seats())

			_, err = svc.Submit(ctx, "ride-1", "rider-d")
			if waitlist {
				require.NoError(t, err)
				_, err = svc.Approve(ctx, "ride-1", "rider-d", "creator")
			}
			assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
			assert.Equal(t, 0, seats())
			assert.Equal(t, 2, approvedCount(t, svc, "ride-1"))
		})
	}
}

func TestRequestService_LastSeatRace(t *testing.T) {
	ctx := context.Background()
	svc, store := newEngine(t, 1)
	_, err := svc.Submit(ctx, "ride-1", "alice")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, "ride-1", "bob")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, u := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			_, errs[i] = svc.Approve(ctx, "ride-1", u, "creator")
		}(i, u)
	}
	wg.Wait()

	var ok, full int
	for _, err := range errs {
		if err == nil {
			ok++
		} else if errors.Is(err, domain.ErrCapacityExceeded) {
			full++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, full)

	ride, err := store.Rides().GetByID(ctx, "ride-1")
	require.NoError(t, err)
	assert.Equal(t, 0, ride.SeatsRemaining)

	pending := 0
	for _, u := range []string{"alice", "bob"} {
		jr, err := svc.Status(ctx, "ride-1", u)
		require.NoError(t, err)
		if jr.Status == domain.RequestStatusPending {
			pending++
		}
	}
	assert.Equal(t, 1, pending)
}
