package service

import (
	"fmt"
	"strings"

	"github.com/ad-tracker/channel-ingestion-go/internal/models"
	"github.com/ad-tracker/channel-ingestion-go/internal/parser"
)

const watchURLPrefix = "https://www.youtube.com/watch?v="

// NormalizeRecord maps one raw extractor record to a VideoRecord. It performs
// no I/O; Transcript is left nil for the enricher to fill in.
func NormalizeRecord(raw parser.RawRecord) models.VideoRecord {
	v := models.VideoRecord{
		VideoID:         raw.ID,
		Title:           raw.Title,
		Description:     raw.Description,
		DurationSeconds: raw.Duration,
		PublishedAt:     stringPtr(raw.UploadDate),
		ViewCount:       raw.ViewCount,
		LikeCount:       raw.LikeCount,
		CommentCount:    raw.CommentCount,
		VideoURL:        raw.WebpageURL,
		ThumbnailURL:    stringPtr(pickThumbnail(raw)),
	}
	return CanonicalizeRecord(v)
}

// CanonicalizeRecord brings a record into canonical form. Applying it to a
// record that is already canonical returns the record unchanged, so results
// loaded back from disk can be passed through it safely.
func CanonicalizeRecord(v models.VideoRecord) models.VideoRecord {
	if v.PublishedAt != nil {
		v.PublishedAt = canonicalDate(*v.PublishedAt)
	}
	if v.ThumbnailURL != nil && *v.ThumbnailURL == "" {
		v.ThumbnailURL = nil
	}
	if v.Transcript != nil && strings.TrimSpace(*v.Transcript) == "" {
		v.Transcript = nil
	}
	if v.VideoURL == "" {
		v.VideoURL = WatchURL(v.VideoID)
	}
	return v
}

// WatchURL builds the canonical page URL for a video id.
func WatchURL(videoID string) string {
	return watchURLPrefix + videoID
}

// ChannelTitle returns the channel name a record reports, preferring the
// channel field over the uploader. Empty when neither is set.
func ChannelTitle(raw parser.RawRecord) string {
	if t := strings.TrimSpace(raw.Channel); t != "" {
		return t
	}
	return strings.TrimSpace(raw.Uploader)
}

// pickThumbnail prefers the single thumbnail field, then the last list entry
// (yt-dlp orders the list from low to high resolution).
func pickThumbnail(raw parser.RawRecord) string {
	if raw.Thumbnail != "" {
		return raw.Thumbnail
	}
	if n := len(raw.Thumbnails); n > 0 {
		return raw.Thumbnails[n-1].URL
	}
	return ""
}

// canonicalDate turns an 8-digit YYYYMMDD upload date into YYYY-MM-DD. Dates
// already in that form are kept; anything else is unknown.
func canonicalDate(s string) *string {
	switch {
	case len(s) == 8 && allDigits(s):
		d := fmt.Sprintf("%s-%s-%s", s[0:4], s[4:6], s[6:8])
		return &d
	case len(s) == 10 && s[4] == '-' && s[7] == '-' &&
		allDigits(s[0:4]) && allDigits(s[5:7]) && allDigits(s[8:10]):
		return &s
	default:
		return nil
	}
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
