package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"delivery-service/internal/mocks"
	"delivery-service/internal/models"
	"delivery-service/internal/repositories"
	"delivery-service/internal/service"
)

func setupEnqueueRouter(handler *EnqueueHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/internal/queues/:user_id/messages", handler.EnqueueMessage)
	r.POST("/internal/queues/:user_id/system", handler.EnqueueSystem)
	r.GET("/internal/users/:user_id/sessions", handler.UserSessions)
	return r
}

func TestEnqueueMessageSuccess(t *testing.T) {
	queues := new(mocks.QueueServiceMock)
	handler := NewEnqueueHandler(queues, new(mocks.SessionServiceMock))
	router := setupEnqueueRouter(handler)

	queues.On("EnqueueMessage", mock.Anything, int64(7), int64(99)).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/internal/queues/7/messages", bytes.NewBufferString(`{"message_id":99}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	queues.AssertExpectations(t)
}

func TestEnqueueMessageInvalidUserID(t *testing.T) {
	handler := NewEnqueueHandler(new(mocks.QueueServiceMock), new(mocks.SessionServiceMock))
	router := setupEnqueueRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/internal/queues/abc/messages", bytes.NewBufferString(`{"message_id":99}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnqueueMessageStorageError(t *testing.T) {
	queues := new(mocks.QueueServiceMock)
	handler := NewEnqueueHandler(queues, new(mocks.SessionServiceMock))
	router := setupEnqueueRouter(handler)

	queues.On("EnqueueMessage", mock.Anything, int64(7), int64(99)).Return(repositories.ErrStorageUnavailable).Once()

	req := httptest.NewRequest(http.MethodPost, "/internal/queues/7/messages", bytes.NewBufferString(`{"message_id":99}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	queues.AssertExpectations(t)
}

func TestEnqueueSystemSuccess(t *testing.T) {
	queues := new(mocks.QueueServiceMock)
	handler := NewEnqueueHandler(queues, new(mocks.SessionServiceMock))
	router := setupEnqueueRouter(handler)

	input := service.NoticeInput{Kind: models.NoticeKindFriendRequest, Content: "hi", Metadata: models.Metadata{"from": "9"}}
	queues.On("EnqueueSystem", mock.Anything, int64(7), input).Return(models.SystemNotice{
		NoticeID: "n-1",
		Kind:     models.NoticeKindFriendRequest,
		Content:  "hi",
		Metadata: models.Metadata{"from": "9"},
	}, nil).Once()

	body := bytes.NewBufferString(`{"kind":"friend_request","content":"hi","metadata":{"from":"9"}}`)
	req := httptest.NewRequest(http.MethodPost, "/internal/queues/7/system", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var notice models.SystemNotice
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&notice))
	assert.Equal(t, "n-1", notice.NoticeID)
	queues.AssertExpectations(t)
}

func TestEnqueueSystemEmptyContent(t *testing.T) {
	queues := new(mocks.QueueServiceMock)
	handler := NewEnqueueHandler(queues, new(mocks.SessionServiceMock))
	router := setupEnqueueRouter(handler)

	queues.On("EnqueueSystem", mock.Anything, int64(7), mock.Anything).Return(models.SystemNotice{}, service.ErrEmptyContent).Once()

	req := httptest.NewRequest(http.MethodPost, "/internal/queues/7/system", bytes.NewBufferString(`{"content":""}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	queues.AssertExpectations(t)
}

func TestUserSessionsOnline(t *testing.T) {
	sessions := new(mocks.SessionServiceMock)
	handler := NewEnqueueHandler(new(mocks.QueueServiceMock), sessions)
	router := setupEnqueueRouter(handler)

	sessions.On("ActiveFor", mock.Anything, int64(7)).Return([]models.Session{{SessionID: "s-1", UserID: 7, Active: true}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/internal/users/7/sessions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Online bool `json:"online"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Online)
	sessions.AssertExpectations(t)
}

func TestUserSessionsOffline(t *testing.T) {
	sessions := new(mocks.SessionServiceMock)
	handler := NewEnqueueHandler(new(mocks.QueueServiceMock), sessions)
	router := setupEnqueueRouter(handler)

	sessions.On("ActiveFor", mock.Anything, int64(7)).Return([]models.Session{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/internal/users/7/sessions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Online bool `json:"online"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Online)
	sessions.AssertExpectations(t)
}
