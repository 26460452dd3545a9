// Package validation turns raw ingestion requests into validated ones.
package validation

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/ad-tracker/channel-ingestion-go/internal/models"
)

// ErrEmptyChannelURL is returned when the channel URL is missing or blank.
var ErrEmptyChannelURL = errors.New("channelUrl is required")

const videosSuffix = "/videos"

type Validator struct {
	defaultMaxVideos int
	maxVideosLimit   int
}

// New returns a validator. Non-positive arguments fall back to 10 and 100.
func New(defaultMaxVideos, maxVideosLimit int) *Validator {
	if maxVideosLimit < 1 {
		maxVideosLimit = 100
	}
	if defaultMaxVideos < 1 {
		defaultMaxVideos = 10
	}
	if defaultMaxVideos > maxVideosLimit {
		defaultMaxVideos = maxVideosLimit
	}
	return &Validator{
		defaultMaxVideos: defaultMaxVideos,
		maxVideosLimit:   maxVideosLimit,
	}
}

// ValidateRequest checks the channel URL and resolves the video cap.
// No I/O happens here; a failed request never reaches the extractor.
func (v *Validator) ValidateRequest(dto *models.IngestionRequestDTO) (models.IngestionRequest, error) {
	if dto == nil {
		return models.IngestionRequest{}, ErrEmptyChannelURL
	}

	channelURL := strings.TrimSpace(dto.ChannelURL)
	if channelURL == "" {
		return models.IngestionRequest{}, ErrEmptyChannelURL
	}

	return models.IngestionRequest{
		ChannelURL:  dto.ChannelURL,
		DispatchURL: DispatchURL(channelURL),
		MaxVideos:   v.ResolveMaxVideos(dto.MaxVideos),
	}, nil
}

// ResolveMaxVideos parses the caller's value, truncating fractions. Missing,
// zero and non-numeric values take the default; the result is then clamped.
func (v *Validator) ResolveMaxVideos(raw models.MaxVideosValue) int {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return v.defaultMaxVideos
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return v.defaultMaxVideos
	}

	f = math.Trunc(f)
	if f == 0 {
		return v.defaultMaxVideos
	}
	if f < 1 {
		return 1
	}
	if f > float64(v.maxVideosLimit) {
		return v.maxVideosLimit
	}
	return int(f)
}

// ClampMaxVideos bounds n to [1, limit].
func (v *Validator) ClampMaxVideos(n int) int {
	if n < 1 {
		return 1
	}
	if n > v.maxVideosLimit {
		return v.maxVideosLimit
	}
	return n
}

// DispatchURL points a channel URL at its uploads listing so the extractor
// enumerates videos instead of whatever the default tab is. URLs that already
// name a /videos listing or an explicit /channel/ path are kept as given.
func DispatchURL(channelURL string) string {
	u := strings.TrimRight(strings.TrimSpace(channelURL), "/")
	if strings.Contains(u, videosSuffix) || strings.Contains(u, "/channel/") {
		return u
	}
	return u + videosSuffix
}
