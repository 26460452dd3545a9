package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ad-tracker/channel-ingestion-go/internal/db"
	"github.com/ad-tracker/channel-ingestion-go/internal/models"
	"github.com/ad-tracker/channel-ingestion-go/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunStore reads the run audit log.
type RunStore interface {
	GetRun(ctx context.Context, id uuid.UUID) (*models.IngestionRun, error)
	ListRuns(ctx context.Context, limit int) ([]models.IngestionRun, error)
}

// RunHandler serves the run audit log.
type RunHandler struct {
	store RunStore
}

// NewRunHandler creates a new RunHandler instance.
func NewRunHandler(store RunStore) *RunHandler {
	return &RunHandler{store: store}
}

// ListRuns returns recent runs, newest first. ?limit= bounds the count.
func (h *RunHandler) ListRuns(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		logger.Log.Error("Failed to list runs", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Failed to list ingestion runs")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun returns one run by id.
func (h *RunHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid run id")
		return
	}

	run, err := h.store.GetRun(c.Request.Context(), id)
	if err != nil {
		if db.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "Ingestion run not found")
			return
		}
		logger.Log.Error("Failed to get run", zap.Error(err), zap.String("runId", id.String()))
		respondError(c, http.StatusInternalServerError, "Failed to get ingestion run")
		return
	}

	c.JSON(http.StatusOK, run)
}
