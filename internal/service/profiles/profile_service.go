package profiles

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/campusride/rideshare/internal/domain"
	"github.com/campusride/rideshare/internal/logging"
	"github.com/campusride/rideshare/internal/observability"
	"github.com/campusride/rideshare/internal/repository"
)

const maxNameLength = 120

type ProfileUseCase interface {
	Upsert(ctx context.Context, input UpsertInput) (*domain.Profile, error)
	Get(ctx context.Context, userID string) (*domain.Profile, error)
}

type Cache interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	SetProfile(ctx context.Context, profile *domain.Profile) error
}

type UpsertInput struct {
	UserID   string
	FullName string
	Phone    string
	Email    string
}

type ProfileService struct {
	profiles repository.ProfileRepository
	cache    Cache
	logger   *slog.Logger
}

type ProfileServiceOption func(*ProfileService)

func WithCache(cache Cache) ProfileServiceOption {
	return func(s *ProfileService) { s.cache = cache }
}

func WithLogger(logger *slog.Logger) ProfileServiceOption {
	return func(s *ProfileService) { s.logger = logger }
}

func NewProfileService(profiles repository.ProfileRepository, opts ...ProfileServiceOption) *ProfileService {
	s := &ProfileService{profiles: profiles, logger: logging.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ProfileService) Upsert(ctx context.Context, input UpsertInput) (*domain.Profile, error) {
	name := strings.TrimSpace(input.FullName)
	switch {
	case strings.TrimSpace(input.UserID) == "":
		return nil, fmt.Errorf("user is required: %w", domain.ErrValidation)
	case name == "":
		return nil, fmt.Errorf("full name is required: %w", domain.ErrValidation)
	case len([]rune(name)) > maxNameLength:
		return nil, fmt.Errorf("full name must be at most %d characters: %w", maxNameLength, domain.ErrValidation)
	}

	profile := &domain.Profile{
		UserID:   input.UserID,
		FullName: name,
		Phone:    strings.TrimSpace(input.Phone),
		Email:    strings.TrimSpace(input.Email),
	}
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return nil, err
	}
	s.remember(ctx, profile)
	return profile, nil
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	if s.cache != nil {
		cached, err := s.cache.GetProfile(ctx, userID)
		switch {
		case err != nil:
			observability.CacheResults.WithLabelValues("profiles", "error").Inc()
			s.logger.WarnContext(ctx, "profile cache read failed", "error", err)
		case cached != nil:
			observability.CacheResults.WithLabelValues("profiles", "hit").Inc()
			return cached, nil
		default:
			observability.CacheResults.WithLabelValues("profiles", "miss").Inc()
		}
	}

	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, profile)
	return profile, nil
}

func (s *ProfileService) remember(ctx context.Context, profile *domain.Profile) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetProfile(ctx, profile); err != nil {
		s.logger.WarnContext(ctx, "profile cache write failed", "error", err)
	}
}

var _ ProfileUseCase = (*ProfileService)(nil)
