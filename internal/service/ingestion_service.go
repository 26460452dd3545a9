// Package service provides the channel ingestion pipeline.
package service

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/ad-tracker/channel-ingestion-go/internal/extractor"
	"github.com/ad-tracker/channel-ingestion-go/internal/metrics"
	"github.com/ad-tracker/channel-ingestion-go/internal/models"
	"github.com/ad-tracker/channel-ingestion-go/internal/parser"
	"github.com/ad-tracker/channel-ingestion-go/internal/validation"
	"github.com/ad-tracker/channel-ingestion-go/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Extractor runs the metadata extraction tool for one channel listing.
type Extractor interface {
	Run(ctx context.Context, url string, maxVideos int) (*extractor.Outcome, error)
}

// Enricher looks up a transcript for one record. Nil means none.
type Enricher interface {
	Enrich(ctx context.Context, raw parser.RawRecord) *string
}

// RunRecorder stores the audit trail of ingestion runs.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *models.IngestionRun) error
	FinishRun(ctx context.Context, run *models.IngestionRun) error
}

// EventPublisher announces finished runs.
type EventPublisher interface {
	PublishIngestionEvent(ctx context.Context, event *models.IngestionEvent) error
}

// IngestionService coordinates one channel ingestion: validate, extract,
// parse, normalize, enrich, aggregate.
type IngestionService struct {
	validator   *validation.Validator
	extractor   Extractor
	enricher    Enricher
	recorder    RunRecorder
	publisher   EventPublisher
	metrics     *metrics.Metrics
	concurrency int
	now         func() time.Time
}

// NewIngestionService creates an IngestionService. Enrichment runs one record
// at a time unless SetEnrichConcurrency says otherwise.
func NewIngestionService(validator *validation.Validator, ext Extractor, enricher Enricher) *IngestionService {
	return &IngestionService{
		validator:   validator,
		extractor:   ext,
		enricher:    enricher,
		concurrency: 1,
		now:         time.Now,
	}
}

// SetRunRecorder enables the run audit log.
func (s *IngestionService) SetRunRecorder(r RunRecorder) {
	s.recorder = r
}

// SetPublisher enables run events.
func (s *IngestionService) SetPublisher(p EventPublisher) {
	s.publisher = p
}

// SetMetrics enables Prometheus accounting.
func (s *IngestionService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetEnrichConcurrency sets how many transcript fetches may be in flight.
// Output order does not depend on this value.
func (s *IngestionService) SetEnrichConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	s.concurrency = n
}

// Ingest runs the pipeline for one request and returns exactly one result or
// one error. Errors are *ValidationError, an error matching
// extractor.ErrUnavailable, or *extractor.ExitError; everything that goes
// wrong for a single line or video is absorbed.
//
// The caller's cancellation is not propagated: the extractor's own ceiling is
// the only thing that stops a run early.
func (s *IngestionService) Ingest(ctx context.Context, dto *models.IngestionRequestDTO) (*models.IngestionResult, error) {
	start := s.now()

	req, err := s.validator.ValidateRequest(dto)
	if err != nil {
		s.metrics.ObserveRun(metrics.OutcomeInvalid, 0)
		return nil, &ValidationError{Message: err.Error()}
	}

	ctx = context.WithoutCancel(ctx)
	run := &models.IngestionRun{
		ID:          uuid.New(),
		ChannelURL:  req.ChannelURL,
		DispatchURL: req.DispatchURL,
		MaxVideos:   req.MaxVideos,
		Status:      models.RunStatusPending,
		StartedAt:   start,
	}
	log := logger.ForRun(run.ID.String())

	log.Info("Ingestion started",
		zap.String("channelUrl", req.ChannelURL),
		zap.String("dispatchUrl", req.DispatchURL),
		zap.Int("maxVideos", req.MaxVideos),
	)
	s.recordStart(ctx, log, run)

	outcome, err := s.extractor.Run(ctx, req.DispatchURL, req.MaxVideos)
	if outcome != nil {
		s.metrics.ObserveExtractor(outcome.State.String())
	}
	if err != nil {
		s.fail(ctx, log, run, err)
		return nil, err
	}
	downloadedAt := s.now()

	records, stats := parser.ParseRecordsWithStats(bytes.NewReader(outcome.Stdout))
	if len(records) > req.MaxVideos {
		log.Warn("Extractor returned more records than requested",
			zap.Int("records", len(records)),
			zap.Int("maxVideos", req.MaxVideos),
		)
		records = records[:req.MaxVideos]
	}

	result := &models.IngestionResult{
		ChannelTitle: FirstChannelTitle(records),
		ChannelURL:   req.ChannelURL,
		DownloadedAt: downloadedAt,
		Videos:       s.buildVideos(ctx, records),
	}
	s.metrics.ObserveParse(len(result.Videos), stats.Skipped)

	log.Info("Ingestion completed",
		zap.String("extractorState", outcome.State.String()),
		zap.Int("exitCode", outcome.ExitCode),
		zap.Int("videos", len(result.Videos)),
		zap.Int("transcripts", result.TranscriptCount()),
		zap.Int("skippedLines", stats.Skipped),
		zap.Duration("duration", s.now().Sub(start)),
	)
	s.complete(ctx, log, run, result)

	return result, nil
}

// FirstChannelTitle returns the first non-empty channel name in emission
// order. Later records never override it.
func FirstChannelTitle(records []parser.RawRecord) string {
	for _, r := range records {
		if t := ChannelTitle(r); t != "" {
			return t
		}
	}
	return ""
}

// buildVideos normalizes and enriches records, preserving their order.
func (s *IngestionService) buildVideos(ctx context.Context, records []parser.RawRecord) []models.VideoRecord {
	videos := make([]models.VideoRecord, len(records))
	for i, raw := range records {
		videos[i] = NormalizeRecord(raw)
	}

	if s.enricher == nil {
		return videos
	}

	if s.concurrency <= 1 {
		for i, raw := range records {
			videos[i].Transcript = s.enricher.Enrich(ctx, raw)
			s.metrics.ObserveTranscript(videos[i].Transcript != nil)
		}
		return videos
	}

	// Each goroutine writes only its own index, so order is kept.
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range records {
		g.Go(func() error {
			videos[i].Transcript = s.enricher.Enrich(ctx, records[i])
			return nil
		})
	}
	_ = g.Wait()

	for i := range videos {
		s.metrics.ObserveTranscript(videos[i].Transcript != nil)
	}
	return videos
}

func (s *IngestionService) recordStart(ctx context.Context, log *zap.Logger, run *models.IngestionRun) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.CreateRun(ctx, run); err != nil {
		log.Error("Failed to record ingestion run", zap.Error(err))
	}
}

func (s *IngestionService) complete(ctx context.Context, log *zap.Logger, run *models.IngestionRun, result *models.IngestionResult) {
	elapsed := s.now().Sub(run.StartedAt)
	s.metrics.ObserveRun(metrics.OutcomeSuccess, elapsed)

	finished := s.now()
	run.Status = models.RunStatusCompleted
	run.VideoCount = len(result.Videos)
	run.TranscriptCount = result.TranscriptCount()
	run.FinishedAt = &finished
	if result.ChannelTitle != "" {
		title := result.ChannelTitle
		run.ChannelTitle = &title
	}

	videoIDs := make([]string, len(result.Videos))
	for i, v := range result.Videos {
		videoIDs[i] = v.VideoID
	}

	s.finish(ctx, log, run, &models.IngestionEvent{
		RunID:           run.ID,
		Status:          run.Status,
		ChannelURL:      run.ChannelURL,
		ChannelTitle:    result.ChannelTitle,
		VideoCount:      run.VideoCount,
		TranscriptCount: run.TranscriptCount,
		VideoIDs:        videoIDs,
		DurationMs:      elapsed.Milliseconds(),
		OccurredAt:      finished,
	})
}

func (s *IngestionService) fail(ctx context.Context, log *zap.Logger, run *models.IngestionRun, cause error) {
	elapsed := s.now().Sub(run.StartedAt)
	outcome := metrics.OutcomeFailed
	if errors.Is(cause, extractor.ErrUnavailable) {
		outcome = metrics.OutcomeUnavailable
	}
	s.metrics.ObserveRun(outcome, elapsed)

	log.Error("Ingestion failed", zap.Error(cause), zap.Duration("duration", elapsed))

	finished := s.now()
	msg := cause.Error()
	run.Status = models.RunStatusFailed
	run.ErrorMessage = &msg
	run.FinishedAt = &finished

	s.finish(ctx, log, run, &models.IngestionEvent{
		RunID:      run.ID,
		Status:     run.Status,
		ChannelURL: run.ChannelURL,
		Error:      msg,
		DurationMs: elapsed.Milliseconds(),
		OccurredAt: finished,
	})
}

// finish writes the audit row and publishes the event. Neither can change
// the outcome the caller sees.
func (s *IngestionService) finish(ctx context.Context, log *zap.Logger, run *models.IngestionRun, event *models.IngestionEvent) {
	if s.recorder != nil {
		if err := s.recorder.FinishRun(ctx, run); err != nil {
			log.Error("Failed to update ingestion run", zap.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishIngestionEvent(ctx, event); err != nil {
			log.Error("Failed to publish ingestion event", zap.Error(err))
		}
	}
}
