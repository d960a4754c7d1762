package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"delivery-service/internal/mocks"
	"delivery-service/internal/models"
	"delivery-service/internal/repositories"
	"delivery-service/internal/service"
)

func setupPollRouter(handler *PollHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", int64(1))
		c.Next()
	})
	r.POST("/poll", handler.Poll)
	r.GET("/sessions", handler.ListSessions)
	return r
}

func TestPollSuccess(t *testing.T) {
	queues := new(mocks.QueueServiceMock)
	sessions := new(mocks.SessionServiceMock)
	handler := NewPollHandler(queues, sessions)
	router := setupPollRouter(handler)

	sessions.On("Touch", mock.Anything, "s-1", int64(1), mock.Anything).Return(nil).Once()
	queues.On("Drain", mock.Anything, int64(1)).Return(service.DrainResult{
		Messages: []models.DeliveredMessage{{MessageID: 42, Content: "hi", SenderID: 2}},
		SystemMessages: []models.SystemNotice{{NoticeID: "n-1", Kind: models.NoticeKindFriendRequest, Content: "hello"}},
		PolledAt: time.Now(),
	}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/poll", bytes.NewBufferString(`{"session_id":"s-1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages       []models.DeliveredMessage `json:"messages"`
		SystemMessages []models.SystemNotice     `json:"system_messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, int64(42), resp.Messages[0].MessageID)
	require.Len(t, resp.SystemMessages, 1)
	assert.Equal(t, models.NoticeKindFriendRequest, resp.SystemMessages[0].Kind)

	queues.AssertExpectations(t)
	sessions.AssertExpectations(t)
}

func TestPollMissingSessionID(t *testing.T) {
	handler := NewPollHandler(new(mocks.QueueServiceMock), new(mocks.SessionServiceMock))
	router := setupPollRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/poll", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPollSessionOwnerMismatch(t *testing.T) {
	queues := new(mocks.QueueServiceMock)
	sessions := new(mocks.SessionServiceMock)
	handler := NewPollHandler(queues, sessions)
	router := setupPollRouter(handler)

	sessions.On("Touch", mock.Anything, "s-1", int64(1), mock.Anything).Return(repositories.ErrSessionOwnerMismatch).Once()

	req := httptest.NewRequest(http.MethodPost, "/poll", bytes.NewBufferString(`{"session_id":"s-1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	queues.AssertNotCalled(t, "Drain", mock.Anything, mock.Anything)
	sessions.AssertExpectations(t)
}

func TestPollTouchStorageFailureStillDrains(t *testing.T) {
	queues := new(mocks.QueueServiceMock)
	sessions := new(mocks.SessionServiceMock)
	handler := NewPollHandler(queues, sessions)
	router := setupPollRouter(handler)

	sessions.On("Touch", mock.Anything, "s-1", int64(1), mock.Anything).Return(repositories.ErrStorageUnavailable).Once()
	queues.On("Drain", mock.Anything, int64(1)).Return(service.DrainResult{PolledAt: time.Now()}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/poll", bytes.NewBufferString(`{"session_id":"s-1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	queues.AssertExpectations(t)
	sessions.AssertExpectations(t)
}

func TestPollDrainStorageError(t *testing.T) {
	queues := new(mocks.QueueServiceMock)
	sessions := new(mocks.SessionServiceMock)
	handler := NewPollHandler(queues, sessions)
	router := setupPollRouter(handler)

	sessions.On("Touch", mock.Anything, "s-1", int64(1), mock.Anything).Return(nil).Once()
	queues.On("Drain", mock.Anything, int64(1)).Return(service.DrainResult{}, repositories.ErrStorageUnavailable).Once()

	req := httptest.NewRequest(http.MethodPost, "/poll", bytes.NewBufferString(`{"session_id":"s-1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	queues.AssertExpectations(t)
}

func TestPollWaitRedrainsUntilItemArrives(t *testing.T) {
	queues := new(mocks.QueueServiceMock)
	sessions := new(mocks.SessionServiceMock)
	handler := NewPollHandler(queues, sessions)
	handler.waitInterval = 5 * time.Millisecond
	router := setupPollRouter(handler)

	sessions.On("Touch", mock.Anything, "s-1", int64(1), mock.Anything).Return(nil).Once()
	queues.On("Drain", mock.Anything, int64(1)).Return(service.DrainResult{PolledAt: time.Now()}, nil).Once()
	queues.On("Drain", mock.Anything, int64(1)).Return(service.DrainResult{
		Messages: []models.DeliveredMessage{{MessageID: 42, Content: "hi", SenderID: 2}},
		PolledAt: time.Now(),
	}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/poll?wait=5", bytes.NewBufferString(`{"session_id":"s-1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.DeliveredMessage `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, int64(42), resp.Messages[0].MessageID)
	queues.AssertExpectations(t)
}

func TestPollWaitReturnsEmptyAtDeadline(t *testing.T) {
	queues := new(mocks.QueueServiceMock)
	sessions := new(mocks.SessionServiceMock)
	handler := NewPollHandler(queues, sessions)
	// The next re-drain would land past the requested wait, so the handler
	// answers the first empty drain instead of sleeping.
	handler.waitInterval = 2 * time.Second
	router := setupPollRouter(handler)

	sessions.On("Touch", mock.Anything, "s-1", int64(1), mock.Anything).Return(nil).Once()
	queues.On("Drain", mock.Anything, int64(1)).Return(service.DrainResult{PolledAt: time.Now()}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/poll?wait=1", bytes.NewBufferString(`{"session_id":"s-1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.DeliveredMessage `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Empty(t, resp.Messages)
	queues.AssertNumberOfCalls(t, "Drain", 1)
}

func TestPollWaitStopsOnClientDisconnect(t *testing.T) {
	queues := new(mocks.QueueServiceMock)
	sessions := new(mocks.SessionServiceMock)
	handler := NewPollHandler(queues, sessions)
	handler.waitInterval = 50 * time.Millisecond
	router := setupPollRouter(handler)

	sessions.On("Touch", mock.Anything, "s-1", int64(1), mock.Anything).Return(nil).Once()
	queues.On("Drain", mock.Anything, int64(1)).Return(service.DrainResult{PolledAt: time.Now()}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/poll?wait=5", bytes.NewBufferString(`{"session_id":"s-1"}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Empty(t, rec.Body.Bytes())
	queues.AssertNumberOfCalls(t, "Drain", 1)
}

func TestListSessionsSuccess(t *testing.T) {
	sessions := new(mocks.SessionServiceMock)
	handler := NewPollHandler(new(mocks.QueueServiceMock), sessions)
	router := setupPollRouter(handler)

	sessions.On("ActiveFor", mock.Anything, int64(1)).Return([]models.Session{{SessionID: "s-1", UserID: 1, Active: true}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	sessions.AssertExpectations(t)
}

func TestListSessionsStorageError(t *testing.T) {
	sessions := new(mocks.SessionServiceMock)
	handler := NewPollHandler(new(mocks.QueueServiceMock), sessions)
	router := setupPollRouter(handler)

	sessions.On("ActiveFor", mock.Anything, int64(1)).Return(([]models.Session)(nil), repositories.ErrStorageUnavailable).Once()

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	sessions.AssertExpectations(t)
}

func TestParseWait(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseWait(""))
	assert.Equal(t, time.Duration(0), parseWait("abc"))
	assert.Equal(t, time.Duration(0), parseWait("-5"))
	assert.Equal(t, 10*time.Second, parseWait("10"))
	assert.Equal(t, maxPollWait, parseWait("3600"))
}
