package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"delivery-service/internal/models"
	"delivery-service/internal/repositories"
	"delivery-service/internal/service"
)

type QueueRepositoryMock struct {
	mock.Mock
}

func (m *QueueRepositoryMock) UpsertAppendMessage(ctx context.Context, userID, messageID int64, addedAt time.Time) (models.Queue, error) {
	args := m.Called(ctx, userID, messageID, addedAt)
	var queue models.Queue
	if val := args.Get(0); val != nil {
		queue = val.(models.Queue)
	}
	return queue, args.Error(1)
}

func (m *QueueRepositoryMock) UpsertAppendSystem(ctx context.Context, userID int64, notice models.SystemNotice) (models.Queue, error) {
	args := m.Called(ctx, userID, notice)
	var queue models.Queue
	if val := args.Get(0); val != nil {
		queue = val.(models.Queue)
	}
	return queue, args.Error(1)
}

func (m *QueueRepositoryMock) LoadQueue(ctx context.Context, userID int64) (*repositories.LoadedQueue, error) {
	args := m.Called(ctx, userID)
	var loaded *repositories.LoadedQueue
	if val := args.Get(0); val != nil {
		loaded = val.(*repositories.LoadedQueue)
	}
	return loaded, args.Error(1)
}

func (m *QueueRepositoryMock) MarkDelivered(ctx context.Context, userID int64, messageIDs []int64, noticeIDs []string, now time.Time) error {
	args := m.Called(ctx, userID, messageIDs, noticeIDs, now)
	return args.Error(0)
}

func (m *QueueRepositoryMock) PullDeliveredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type SessionRepositoryMock struct {
	mock.Mock
}

func (m *SessionRepositoryMock) UpsertSession(ctx context.Context, sessionID string, userID int64, info models.ClientInfo, now time.Time) error {
	args := m.Called(ctx, sessionID, userID, info, now)
	return args.Error(0)
}

func (m *SessionRepositoryMock) ListActiveSessions(ctx context.Context, userID int64, since time.Time) ([]models.Session, error) {
	args := m.Called(ctx, userID, since)
	var sessions []models.Session
	if val := args.Get(0); val != nil {
		sessions = val.([]models.Session)
	}
	return sessions, args.Error(1)
}

func (m *SessionRepositoryMock) DeactivateIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type QueueServiceMock struct {
	mock.Mock
}

func (m *QueueServiceMock) EnqueueMessage(ctx context.Context, userID, messageID int64) error {
	args := m.Called(ctx, userID, messageID)
	return args.Error(0)
}

func (m *QueueServiceMock) EnqueueSystem(ctx context.Context, userID int64, input service.NoticeInput) (models.SystemNotice, error) {
	args := m.Called(ctx, userID, input)
	var notice models.SystemNotice
	if val := args.Get(0); val != nil {
		notice = val.(models.SystemNotice)
	}
	return notice, args.Error(1)
}

func (m *QueueServiceMock) Drain(ctx context.Context, userID int64) (service.DrainResult, error) {
	args := m.Called(ctx, userID)
	var result service.DrainResult
	if val := args.Get(0); val != nil {
		result = val.(service.DrainResult)
	}
	return result, args.Error(1)
}

type SessionServiceMock struct {
	mock.Mock
}

func (m *SessionServiceMock) Touch(ctx context.Context, sessionID string, userID int64, info models.ClientInfo) error {
	args := m.Called(ctx, sessionID, userID, info)
	return args.Error(0)
}

func (m *SessionServiceMock) ActiveFor(ctx context.Context, userID int64) ([]models.Session, error) {
	args := m.Called(ctx, userID)
	var sessions []models.Session
	if val := args.Get(0); val != nil {
		sessions = val.([]models.Session)
	}
	return sessions, args.Error(1)
}

type ReaperMock struct {
	mock.Mock
}

func (m *ReaperMock) Reap(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

var _ repositories.QueueRepository = (*QueueRepositoryMock)(nil)
var _ repositories.SessionRepository = (*SessionRepositoryMock)(nil)
var _ interface {
	EnqueueMessage(context.Context, int64, int64) error
	EnqueueSystem(context.Context, int64, service.NoticeInput) (models.SystemNotice, error)
	Drain(context.Context, int64) (service.DrainResult, error)
} = (*QueueServiceMock)(nil)
var _ interface {
	Touch(context.Context, string, int64, models.ClientInfo) error
	ActiveFor(context.Context, int64) ([]models.Session, error)
} = (*SessionServiceMock)(nil)
