package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/campusride/rideshare/internal/domain"
)

// Sender is the worker-side delivery end. Delivery channels (push, mail) are
// outside this service; the sender records what would be delivered.
type Sender struct {
	logger *slog.Logger
}

func NewSender(logger *slog.Logger) *Sender {
	return &Sender{logger: logger}
}

func (s *Sender) Send(ctx context.Context, event domain.RideEvent) error {
	if event.Recipient == "" {
		s.logger.WarnContext(ctx, "event without recipient dropped", "type", event.Type, "ride_id", event.RideID)
		return nil
	}
	s.logger.InfoContext(ctx, "notification delivered",
		"recipient", event.Recipient,
		"type", event.Type,
		"ride_id", event.RideID,
		"text", Describe(event),
	)
	return nil
}

// Describe renders the user-facing line for an event.
func Describe(event domain.RideEvent) string {
	when := event.DepartureTime.Format("Mon 02 Jan 15:04")
	switch event.Type {
	case domain.EventRequestSubmitted:
		return fmt.Sprintf("New request to join your ride on %s.", when)
	case domain.EventRequestApproved:
		return fmt.Sprintf("You're in! Your seat on the ride on %s is confirmed.", when)
	case domain.EventRequestRejected:
		return fmt.Sprintf("Your request for the ride on %s was declined.", when)
	case domain.EventRequestExpired:
		return fmt.Sprintf("The ride on %s departed before your request was answered.", when)
	case domain.EventRideDeleted:
		return fmt.Sprintf("The ride on %s was cancelled by its creator.", when)
	case domain.EventRideCreated:
		return fmt.Sprintf("Your ride on %s is live.", when)
	default:
		return string(event.Type)
	}
}
