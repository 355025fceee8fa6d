package worker

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/campusride/rideshare/internal/domain"
	"github.com/campusride/rideshare/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockExpirer struct {
	mock.Mock
}

func (m *MockExpirer) ExpireDeparted(ctx context.Context) ([]domain.JoinRequest, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.JoinRequest), args.Error(1)
}

func TestSweeper_RunsUntilCancelled(t *testing.T) {
	expirer := new(MockExpirer)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	expirer.On("ExpireDeparted", mock.Anything).
		Return([]domain.JoinRequest{{ID: "a"}}, nil).
		Run(func(mock.Arguments) {
			calls++
			if calls == 3 {
				cancel()
			}
		})

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		NewSweeper(expirer, time.Millisecond, logging.New(&buf, "info")).Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop")
	}
	expirer.AssertNumberOfCalls(t, "ExpireDeparted", 3)
	assert.Contains(t, buf.String(), "expired pending requests")
}

func TestSweeper_LogsErrors(t *testing.T) {
	expirer := new(MockExpirer)
	expirer.On("ExpireDeparted", mock.Anything).Return([]domain.JoinRequest(nil), errors.New("db down")).Once()

	var buf bytes.Buffer
	NewSweeper(expirer, time.Hour, logging.New(&buf, "info")).sweep(context.Background())

	assert.Contains(t, buf.String(), "db down")
	expirer.AssertExpectations(t)
}
