package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ad-tracker/channel-ingestion-go/internal/export"
	"github.com/ad-tracker/channel-ingestion-go/internal/extractor"
	"github.com/ad-tracker/channel-ingestion-go/internal/models"
	"github.com/ad-tracker/channel-ingestion-go/internal/service"
	"github.com/ad-tracker/channel-ingestion-go/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Ingester runs one channel ingestion.
type Ingester interface {
	Ingest(ctx context.Context, dto *models.IngestionRequestDTO) (*models.IngestionResult, error)
}

// IngestionHandler serves the channel ingestion endpoint.
type IngestionHandler struct {
	ingester Ingester
}

// NewIngestionHandler creates a new IngestionHandler instance.
func NewIngestionHandler(ingester Ingester) *IngestionHandler {
	return &IngestionHandler{
		ingester: ingester,
	}
}

// HandleIngest runs an ingestion for the posted channel and returns the
// result as JSON. An explicit ?format=json or ?format=xlsx returns the result
// as a file attachment instead.
func (h *IngestionHandler) HandleIngest(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var dto models.IngestionRequestDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		logger.Log.Warn("Invalid request payload",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
		respondError(c, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	result, err := h.ingester.Ingest(c.Request.Context(), &dto)
	if err != nil {
		h.handleError(c, err)
		return
	}

	if format == export.FormatJSON && c.Query("format") == "" {
		c.JSON(http.StatusOK, result)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.FileName(result.ChannelTitle, format)))
	c.Header("Content-Type", format.ContentType())
	c.Status(http.StatusOK)
	if err := export.Write(c.Writer, result, format); err != nil {
		logger.Log.Error("Failed to write export",
			zap.Error(err),
			zap.String("format", string(format)),
		)
		_ = c.Error(err)
	}
}

func (h *IngestionHandler) handleError(c *gin.Context, err error) {
	var (
		validationErr *service.ValidationError
		startErr      *extractor.StartError
		exitErr       *extractor.ExitError
	)

	switch {
	case errors.As(err, &validationErr):
		logger.Log.Warn("Validation error",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
		respondError(c, http.StatusBadRequest, validationErr.Message)
	case errors.As(err, &startErr):
		logger.Log.Error("Extractor could not be started",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
		respondError(c, http.StatusInternalServerError,
			fmt.Sprintf("Failed to run %s: %v", startErr.Path, startErr.Err))
	case errors.Is(err, extractor.ErrUnavailable):
		logger.Log.Error("Extractor unavailable", zap.Error(err))
		respondError(c, http.StatusInternalServerError, err.Error())
	case errors.As(err, &exitErr):
		logger.Log.Error("Extraction failed",
			zap.Int("exitCode", exitErr.Code),
			zap.String("path", c.Request.URL.Path),
		)
		respondError(c, http.StatusInternalServerError, exitErr.Error())
	default:
		logger.Log.Error("Unexpected error",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
		respondError(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
