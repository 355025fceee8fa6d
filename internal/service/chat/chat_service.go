// Package chat implements the per-ride message thread shared by a ride's
// creator and its approved passengers. Clients poll with an `after` cursor.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/campusride/rideshare/internal/domain"
	"github.com/campusride/rideshare/internal/logging"
	"github.com/campusride/rideshare/internal/repository"
	"github.com/google/uuid"
)

const (
	defaultMaxLength = 1000
	listLimit        = 200
)

type ChatUseCase interface {
	Post(ctx context.Context, rideID, userID, content string) (*domain.Message, error)
	List(ctx context.Context, rideID, userID string, after time.Time) ([]domain.Message, error)
}

type ChatService struct {
	rides     repository.RideRepository
	requests  repository.RequestRepository
	messages  repository.MessageRepository
	logger    *slog.Logger
	maxLength int
}

type ChatServiceOption func(*ChatService)

func WithLogger(logger *slog.Logger) ChatServiceOption {
	return func(s *ChatService) { s.logger = logger }
}

func WithMaxLength(n int) ChatServiceOption {
	return func(s *ChatService) {
		if n > 0 {
			s.maxLength = n
		}
	}
}

func NewChatService(
	rides repository.RideRepository,
	requests repository.RequestRepository,
	messages repository.MessageRepository,
	opts ...ChatServiceOption,
) *ChatService {
	s := &ChatService{
		rides:     rides,
		requests:  requests,
		messages:  messages,
		logger:    logging.Discard(),
		maxLength: defaultMaxLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ChatService) Post(ctx context.Context, rideID, userID, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("message must not be empty: %w", domain.ErrValidation)
	}
	if n := len([]rune(content)); n > s.maxLength {
		return nil, fmt.Errorf("message is %d characters, limit is %d: %w", n, s.maxLength, domain.ErrValidation)
	}
	if err := s.participant(ctx, rideID, userID); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:      uuid.NewString(),
		RideID:  rideID,
		UserID:  userID,
		Content: content,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	s.logger.DebugContext(ctx, "message posted", "ride_id", rideID, "message_id", msg.ID)
	return msg, nil
}

// List returns messages newer than after, oldest first. A zero after
// returns the thread from the start.
func (s *ChatService) List(ctx context.Context, rideID, userID string, after time.Time) ([]domain.Message, error) {
	if err := s.participant(ctx, rideID, userID); err != nil {
		return nil, err
	}
	return s.messages.ListAfter(ctx, rideID, after, listLimit)
}

func (s *ChatService) participant(ctx context.Context, rideID, userID string) error {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return err
	}
	if ride.IsCreator(userID) {
		return nil
	}
	jr, err := s.requests.Latest(ctx, rideID, userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return err
	case jr.Status == domain.RequestStatusApproved:
		return nil
	}
	return fmt.Errorf("only the creator and approved passengers can use the ride chat: %w", domain.ErrAuthorization)
}

var _ ChatUseCase = (*ChatService)(nil)
