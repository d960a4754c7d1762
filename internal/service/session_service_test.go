package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"delivery-service/internal/mocks"
	"delivery-service/internal/models"
	"delivery-service/internal/repositories"
	"delivery-service/internal/service"
)

func newSessionTracker(repo repositories.SessionRepository) *service.SessionTracker {
	return service.NewSessionTracker(repo, 60*time.Minute, 30*time.Minute)
}

func TestTouchUpserts(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	tracker := newSessionTracker(repo)

	info := models.ClientInfo{UserAgent: "test-agent", IP: "10.0.0.1"}
	repo.On("UpsertSession", mock.Anything, "s-1", int64(1), info, mock.MatchedBy(func(now time.Time) bool {
		return time.Since(now) < 2*time.Second
	})).Return(nil).Once()

	require.NoError(t, tracker.Touch(context.Background(), "s-1", 1, info))
	repo.AssertExpectations(t)
}

func TestTouchPropagatesOwnerMismatch(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	tracker := newSessionTracker(repo)

	repo.On("UpsertSession", mock.Anything, "s-1", int64(1), mock.Anything, mock.Anything).Return(repositories.ErrSessionOwnerMismatch).Once()

	err := tracker.Touch(context.Background(), "s-1", 1, models.ClientInfo{})
	require.ErrorIs(t, err, repositories.ErrSessionOwnerMismatch)
	repo.AssertExpectations(t)
}

func TestActiveForUsesActiveWindow(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	tracker := newSessionTracker(repo)

	repo.On("ListActiveSessions", mock.Anything, int64(1), mock.MatchedBy(func(since time.Time) bool {
		expected := time.Now().Add(-30 * time.Minute)
		diff := since.Sub(expected)
		return diff > -2*time.Second && diff < 2*time.Second
	})).Return([]models.Session{{SessionID: "s-1", UserID: 1, Active: true}}, nil).Once()

	sessions, err := tracker.ActiveFor(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s-1", sessions[0].SessionID)
	repo.AssertExpectations(t)
}

func TestSessionReapUsesIdleCutoff(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	tracker := newSessionTracker(repo)

	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	repo.On("DeactivateIdleBefore", mock.Anything, now.Add(-60*time.Minute)).Return(int64(2), nil).Once()

	count, err := tracker.Reap(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	repo.AssertExpectations(t)
}

func TestSessionReapStorageError(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	tracker := newSessionTracker(repo)

	repo.On("DeactivateIdleBefore", mock.Anything, mock.Anything).Return(int64(0), repositories.ErrStorageUnavailable).Once()

	_, err := tracker.Reap(context.Background(), time.Now())
	require.ErrorIs(t, err, repositories.ErrStorageUnavailable)
	repo.AssertExpectations(t)
}
