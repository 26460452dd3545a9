// Package models contains the data models and DTOs for the channel ingestion service.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle state of an ingestion run in the audit log.
type RunStatus string

// RunStatus constants define the possible states of an ingestion run.
const (
	RunStatusPending   RunStatus = "PENDING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// IngestionRequestDTO is the body accepted by the channel ingestion endpoint.
type IngestionRequestDTO struct {
	ChannelURL string         `json:"channelUrl"`
	MaxVideos  MaxVideosValue `json:"maxVideos,omitempty"`
}

// MaxVideosValue holds the caller's maxVideos as text. It decodes from a JSON
// number or string; any other JSON value decodes as empty, so a malformed cap
// never fails the request.
type MaxVideosValue string

func (m *MaxVideosValue) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*m = MaxVideosValue(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = MaxVideosValue(s)
		return nil
	}
	*m = ""
	return nil
}

// IngestionRequest is a validated request. It is passed by value and never mutated.
type IngestionRequest struct {
	ChannelURL  string
	DispatchURL string
	MaxVideos   int
}

// VideoRecord is one normalized video. Nil pointers mean "unknown" and encode as null.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type VideoRecord struct {
	VideoID         string   `json:"video_id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Transcript      *string  `json:"transcript"`
	DurationSeconds *float64 `json:"duration_seconds"`
	PublishedAt     *string  `json:"published_at"`
	ViewCount       *int64   `json:"view_count"`
	LikeCount       *int64   `json:"like_count"`
	CommentCount    *int64   `json:"comment_count"`
	VideoURL        string   `json:"video_url"`
	ThumbnailURL    *string  `json:"thumbnail_url"`
}

// IngestionResult is the aggregate returned for one ingestion request.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type IngestionResult struct {
	ChannelTitle string        `json:"channel_title"`
	ChannelURL   string        `json:"channel_url"`
	DownloadedAt time.Time     `json:"downloaded_at"`
	Videos       []VideoRecord `json:"videos"`
}

// TranscriptCount returns how many videos carry a transcript.
func (r *IngestionResult) TranscriptCount() int {
	n := 0
	for _, v := range r.Videos {
		if v.Transcript != nil {
			n++
		}
	}
	return n
}

// IngestionRun is one row of the run audit log. It records what was asked and
// how it ended, never the videos themselves.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type IngestionRun struct {
	ID              uuid.UUID  `json:"id"`
	ChannelURL      string     `json:"channel_url"`
	DispatchURL     string     `json:"dispatch_url"`
	MaxVideos       int        `json:"max_videos"`
	Status          RunStatus  `json:"status"`
	ChannelTitle    *string    `json:"channel_title"`
	VideoCount      int        `json:"video_count"`
	TranscriptCount int        `json:"transcript_count"`
	ErrorMessage    *string    `json:"error_message"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at"`
}

// IngestionEvent is the summary published to the message broker when a run ends.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type IngestionEvent struct {
	RunID           uuid.UUID `json:"runId"`
	Status          RunStatus `json:"status"`
	ChannelURL      string    `json:"channelUrl"`
	ChannelTitle    string    `json:"channelTitle,omitempty"`
	VideoCount      int       `json:"videoCount"`
	TranscriptCount int       `json:"transcriptCount"`
	VideoIDs        []string  `json:"videoIds,omitempty"`
	Error           string    `json:"error,omitempty"`
	DurationMs      int64     `json:"durationMs"`
	OccurredAt      time.Time `json:"occurredAt"`
}

// ErrorResponse represents an error response.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type ErrorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
}
