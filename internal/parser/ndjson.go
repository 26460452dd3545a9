// Package parser decodes the line-delimited JSON that yt-dlp prints with --dump-json.
package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
)

// RawRecord is one video's metadata as yt-dlp reports it. Numeric fields are
// pointers so that an absent value stays distinguishable from zero. A numeric
// field of the wrong type decodes as absent rather than failing the record.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RawRecord struct {
	ID                string                     `json:"id"`
	Title             string                     `json:"title"`
	Description       string                     `json:"description"`
	Channel           string                     `json:"channel"`
	Uploader          string                     `json:"uploader"`
	Duration          *float64                   `json:"duration"`
	UploadDate        string                     `json:"upload_date"`
	ViewCount         *int64                     `json:"view_count"`
	LikeCount         *int64                     `json:"like_count"`
	CommentCount      *int64                     `json:"comment_count"`
	WebpageURL        string                     `json:"webpage_url"`
	Thumbnail         string                     `json:"thumbnail"`
	Thumbnails        []Thumbnail                `json:"thumbnails"`
	Subtitles         map[string][]CaptionFormat `json:"subtitles"`
	AutomaticCaptions map[string][]CaptionFormat `json:"automatic_captions"`
}

// Thumbnail is one entry of the thumbnails list, ordered low to high resolution.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// UnmarshalJSON decodes the auxiliary fields leniently. Only a malformed
// object or a mistyped text field rejects the record.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	type plain RawRecord
	var aux struct {
		plain
		Duration     json.RawMessage `json:"duration"`
		ViewCount    json.RawMessage `json:"view_count"`
		LikeCount    json.RawMessage `json:"like_count"`
		CommentCount json.RawMessage `json:"comment_count"`
		Thumbnails   json.RawMessage `json:"thumbnails"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*r = RawRecord(aux.plain)
	r.Duration = lenientFloat(aux.Duration)
	r.ViewCount = lenientInt(aux.ViewCount)
	r.LikeCount = lenientInt(aux.LikeCount)
	r.CommentCount = lenientInt(aux.CommentCount)

	r.Thumbnails = nil
	if len(aux.Thumbnails) > 0 {
		var thumbs []Thumbnail
		if err := json.Unmarshal(aux.Thumbnails, &thumbs); err == nil {
			r.Thumbnails = thumbs
		}
	}
	return nil
}

// UnmarshalJSON never fails: yt-dlp reports sizes such as "auto" for some
// extractors, and an entry that is not an object decodes as empty.
func (t *Thumbnail) UnmarshalJSON(data []byte) error {
	*t = Thumbnail{}

	var aux struct {
		URL    json.RawMessage `json:"url"`
		Width  json.RawMessage `json:"width"`
		Height json.RawMessage `json:"height"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return nil
	}

	if len(aux.URL) > 0 {
		_ = json.Unmarshal(aux.URL, &t.URL)
	}
	if w := lenientInt(aux.Width); w != nil {
		t.Width = int(*w)
	}
	if h := lenientInt(aux.Height); h != nil {
		t.Height = int(*h)
	}
	return nil
}

// lenientFloat accepts a JSON number or a numeric string. Anything else,
// null included, is unknown.
func lenientFloat(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// lenientInt is lenientFloat for counts. Fractions are truncated.
func lenientInt(raw json.RawMessage) *int64 {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return nil
	}

	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n
	}

	f := lenientFloat(raw)
	if f == nil || *f >= math.MaxInt64 || *f <= math.MinInt64 {
		return nil
	}
	n = int64(math.Trunc(*f))
	return &n
}

func isNull(raw []byte) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// CaptionFormat is one downloadable rendition of a caption track.
type CaptionFormat struct {
	Ext  string `json:"ext"`
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// Stats counts what happened to the lines of one stream.
type Stats struct {
	Lines   int
	Records int
	Skipped int
}

// DecodeLine decodes a single line into a record. It reports false for
// anything that is not a JSON object carrying a video id.
func DecodeLine(line []byte) (RawRecord, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return RawRecord{}, false
	}

	var rec RawRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return RawRecord{}, false
	}
	if rec.ID == "" {
		return RawRecord{}, false
	}
	return rec, true
}

// ParseRecords reads r to the end and returns the records in input order.
// Blank lines are ignored and lines that fail to decode are skipped.
func ParseRecords(r io.Reader) []RawRecord {
	records, _ := ParseRecordsWithStats(r)
	return records
}

// ParseRecordsWithStats is ParseRecords plus line accounting.
func ParseRecordsWithStats(r io.Reader) ([]RawRecord, Stats) {
	var (
		records []RawRecord
		stats   Stats
	)

	// A read error ends the stream; records decoded before it are kept.
	_ = EachLine(r, func(line []byte) {
		stats.Lines++
		rec, ok := DecodeLine(line)
		if !ok {
			stats.Skipped++
			return
		}
		stats.Records++
		records = append(records, rec)
	})

	return records, stats
}

// EachLine calls fn for every non-blank line of r. Lines have no length limit,
// which rules out bufio.Scanner: single --dump-json lines often exceed 1 MiB.
func EachLine(r io.Reader, fn func(line []byte)) error {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := br.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			fn(line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
