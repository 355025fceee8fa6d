package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/campusride/rideshare/internal/domain"
	"github.com/campusride/rideshare/internal/repository"
)

type profiles struct{ s *Store }

func (p *profiles) Upsert(ctx context.Context, profile *domain.Profile) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	now := p.s.now()
	if existing, ok := p.s.profiles[profile.UserID]; ok {
		profile.CreatedAt = existing.CreatedAt
	} else {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	stored := *profile
	p.s.profiles[profile.UserID] = &stored
	return nil
}

func (p *profiles) GetByID(ctx context.Context, userID string) (*domain.Profile, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	profile, ok := p.s.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", userID, domain.ErrNotFound)
	}
	out := *profile
	return &out, nil
}

type messages struct{ s *Store }

func (m *messages) Create(ctx context.Context, msg *domain.Message) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, err := m.s.liveRide(msg.RideID); err != nil {
		return err
	}
	msg.CreatedAt = m.s.now()
	stored := *msg
	m.s.messages = append(m.s.messages, &stored)
	return nil
}

func (m *messages) ListAfter(ctx context.Context, rideID string, after time.Time, limit int) ([]domain.Message, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	out := make([]domain.Message, 0)
	for _, msg := range m.s.messages {
		if len(out) == limit {
			break
		}
		if msg.RideID == rideID && msg.CreatedAt.After(after) {
			out = append(out, *msg)
		}
	}
	return out, nil
}

var (
	_ repository.ProfileRepository = (*profiles)(nil)
	_ repository.MessageRepository = (*messages)(nil)
)
