package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ad-tracker/channel-ingestion-go/internal/db"
	"github.com/ad-tracker/channel-ingestion-go/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRunStore struct {
	mock.Mock
}

func (m *mockRunStore) GetRun(ctx context.Context, id uuid.UUID) (*models.IngestionRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IngestionRun), args.Error(1)
}

func (m *mockRunStore) ListRuns(ctx context.Context, limit int) ([]models.IngestionRun, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.IngestionRun), args.Error(1)
}

func newRunRouter(store RunStore) *gin.Engine {
	h := NewRunHandler(store)
	r := gin.New()
	r.GET("/api/v1/ingestions", h.ListRuns)
	r.GET("/api/v1/ingestions/:id", h.GetRun)
	return r
}

func TestRunHandler_ListRuns(t *testing.T) {
	runs := []models.IngestionRun{
		{ID: uuid.New(), ChannelURL: "https://www.youtube.com/@a", Status: models.RunStatusCompleted, StartedAt: time.Now()},
	}

	store := new(mockRunStore)
	store.On("ListRuns", mock.Anything, 5).Return(runs, nil)
	store.On("ListRuns", mock.Anything, 0).Return([]models.IngestionRun{}, nil)

	r := newRunRouter(store)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ingestions?limit=5", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Runs  []models.IngestionRun `json:"runs"`
		Count int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, runs[0].ID, body.Runs[0].ID)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ingestions", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"runs":[]`)

	store.AssertExpectations(t)
}

func TestRunHandler_ListRunsErrors(t *testing.T) {
	store := new(mockRunStore)
	store.On("ListRuns", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
	r := newRunRouter(store)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ingestions?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ingestions", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRunHandler_GetRun(t *testing.T) {
	found := &models.IngestionRun{ID: uuid.New(), Status: models.RunStatusFailed, StartedAt: time.Now()}
	missing := uuid.New()
	broken := uuid.New()

	store := new(mockRunStore)
	store.On("GetRun", mock.Anything, found.ID).Return(found, nil)
	store.On("GetRun", mock.Anything, missing).Return(nil, fmt.Errorf("get run: %w", db.ErrNotFound))
	store.On("GetRun", mock.Anything, broken).Return(nil, errors.New("db down"))

	r := newRunRouter(store)

	tests := []struct {
		name       string
		id         string
		wantStatus int
	}{
		{name: "found", id: found.ID.String(), wantStatus: http.StatusOK},
		{name: "not found", id: missing.String(), wantStatus: http.StatusNotFound},
		{name: "store error", id: broken.String(), wantStatus: http.StatusInternalServerError},
		{name: "bad id", id: "not-a-uuid", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ingestions/"+tt.id, nil))
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
