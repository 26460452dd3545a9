package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ad-tracker/channel-ingestion-go/internal/parser"
	"github.com/ad-tracker/channel-ingestion-go/pkg/logger"
	"go.uber.org/zap"
)

const (
	captionFormatJSON3    = "json3"
	maxCaptionBodyBytes   = 32 << 20
	defaultCaptionTimeout = 30 * time.Second
)

// errEmptyTranscript marks a caption payload that flattened to nothing.
var errEmptyTranscript = errors.New("caption track has no text")

// captionSource names one place a caption track list can live.
type captionSource struct {
	automatic bool
	lang      string
}

// captionPriority is the order in which caption lists are consulted.
var captionPriority = []captionSource{
	{automatic: false, lang: "en"},
	{automatic: true, lang: "en"},
	{automatic: false, lang: "en-orig"},
}

// json3Payload is the structured-event caption format: events of text segments.
type json3Payload struct {
	Events []json3Event `json:"events"`
}

type json3Event struct {
	Segs []json3Segment `json:"segs"`
}

type json3Segment struct {
	UTF8 string `json:"utf8"`
}

// TranscriptEnricher fetches caption tracks and flattens them to plain text.
type TranscriptEnricher struct {
	client    *http.Client
	userAgent string
}

// NewTranscriptEnricher creates an enricher. A nil client gets a 30s timeout.
func NewTranscriptEnricher(client *http.Client, userAgent string) *TranscriptEnricher {
	if client == nil {
		client = &http.Client{Timeout: defaultCaptionTimeout}
	}
	return &TranscriptEnricher{
		client:    client,
		userAgent: userAgent,
	}
}

// Enrich returns the transcript for raw, or nil when the video has no usable
// English json3 track or anything about fetching it goes wrong. "No captions"
// and "captions failed" are deliberately indistinguishable to the caller.
func (e *TranscriptEnricher) Enrich(ctx context.Context, raw parser.RawRecord) *string {
	trackURL, ok := SelectCaptionTrack(raw)
	if !ok {
		return nil
	}

	text, err := e.fetch(ctx, trackURL)
	if err != nil {
		logger.Log.Debug("Transcript unavailable",
			zap.String("videoId", raw.ID),
			zap.Error(err),
		)
		return nil
	}
	return &text
}

// SelectCaptionTrack finds the json3 URL of the first caption list present in
// priority order. Only that list is searched; a present list without json3
// means no transcript.
func SelectCaptionTrack(raw parser.RawRecord) (string, bool) {
	for _, src := range captionPriority {
		tracks := raw.Subtitles
		if src.automatic {
			tracks = raw.AutomaticCaptions
		}

		formats, ok := tracks[src.lang]
		if !ok || formats == nil {
			continue
		}

		for _, f := range formats {
			if f.Ext == captionFormatJSON3 && f.URL != "" {
				return f.URL, true
			}
		}
		return "", false
	}
	return "", false
}

func (e *TranscriptEnricher) fetch(ctx context.Context, trackURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trackURL, nil)
	if err != nil {
		return "", fmt.Errorf("build caption request: %w", err)
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch captions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("caption fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCaptionBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read captions: %w", err)
	}

	return FlattenCaptions(body)
}

// FlattenCaptions decodes a json3 caption document into one line of text.
// Segments within an event are concatenated, events are joined by a space,
// and every run of whitespace (line breaks included) collapses to one space.
func FlattenCaptions(data []byte) (string, error) {
	var payload json3Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("decode captions: %w", err)
	}

	parts := make([]string, 0, len(payload.Events))
	for _, ev := range payload.Events {
		if ev.Segs == nil {
			continue
		}
		var b strings.Builder
		for _, seg := range ev.Segs {
			b.WriteString(seg.UTF8)
		}
		parts = append(parts, b.String())
	}

	text := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	if text == "" {
		return "", errEmptyTranscript
	}
	return text, nil
}
