// Package export writes ingestion results as JSON documents or XLSX workbooks.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/ad-tracker/channel-ingestion-go/internal/models"
	"github.com/xuri/excelize/v2"
)

// Format is an output format for an ingestion result.
type Format string

const (
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

const (
	// VideosSheet holds one row per video.
	VideosSheet = "Videos"
	// ChannelSheet holds the result-level fields.
	ChannelSheet = "Channel"

	// maxCellChars is the per-cell character limit of the XLSX format.
	maxCellChars = 32767

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var whitespace = regexp.MustCompile(`\s+`)

// VideoColumns is the header row of the Videos sheet.
var VideoColumns = []string{
	"video_id", "title", "description", "transcript", "duration_seconds", "published_at",
	"view_count", "like_count", "comment_count", "video_url", "thumbnail_url",
}

// ParseFormat maps a query or flag value to a Format. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(FormatJSON):
		return FormatJSON, nil
	case string(FormatXLSX):
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported format %q (use json or xlsx)", s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return xlsxContentType
	}
	return "application/json"
}

// FileName builds the download name for a result: the channel title with
// whitespace runs replaced by underscores, lowercased, followed by
// "_videos.<ext>". An empty title becomes "channel".
func FileName(channelTitle string, f Format) string {
	base := strings.ToLower(whitespace.ReplaceAllString(strings.TrimSpace(channelTitle), "_"))
	if base == "" {
		base = "channel"
	}
	return base + "_videos." + string(f)
}

// Write encodes result in the given format.
func Write(w io.Writer, result *models.IngestionResult, f Format) error {
	if f == FormatXLSX {
		return WriteXLSX(w, result)
	}
	return WriteJSON(w, result)
}

// WriteJSON writes result as an indented JSON document.
func WriteJSON(w io.Writer, result *models.IngestionResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

// ReadJSON decodes a result previously written by WriteJSON.
func ReadJSON(r io.Reader) (*models.IngestionResult, error) {
	var result models.IngestionResult
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	if result.Videos == nil {
		result.Videos = []models.VideoRecord{}
	}
	return &result, nil
}

// WriteXLSX writes result as a workbook with a Videos sheet and a Channel sheet.
func WriteXLSX(w io.Writer, result *models.IngestionResult) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName("Sheet1", VideosSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(ChannelSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	if err := writeRow(f, VideosSheet, 1, toRow(VideoColumns)); err != nil {
		return err
	}
	for i, v := range result.Videos {
		if err := writeRow(f, VideosSheet, i+2, videoRow(v)); err != nil {
			return err
		}
	}

	channelRows := [][]any{
		{"channel_title", result.ChannelTitle},
		{"channel_url", result.ChannelURL},
		{"downloaded_at", result.DownloadedAt.UTC().Format(time.RFC3339)},
		{"video_count", len(result.Videos)},
		{"transcript_count", result.TranscriptCount()},
	}
	for i, row := range channelRows {
		if err := writeRow(f, ChannelSheet, i+1, row); err != nil {
			return err
		}
	}

	if err := f.SetPanes(VideosSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toRow(cols []string) []any {
	row := make([]any, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	return row
}

// videoRow renders a record in VideoColumns order. Unknown values are blank cells.
func videoRow(v models.VideoRecord) []any {
	return []any{
		v.VideoID,
		cellText(v.Title),
		cellText(v.Description),
		optString(v.Transcript),
		optFloat(v.DurationSeconds),
		optString(v.PublishedAt),
		optInt(v.ViewCount),
		optInt(v.LikeCount),
		optInt(v.CommentCount),
		v.VideoURL,
		optString(v.ThumbnailURL),
	}
}

func cellText(s string) string {
	r := []rune(s)
	if len(r) <= maxCellChars {
		return s
	}
	return string(r[:maxCellChars])
}

func optString(p *string) any {
	if p == nil {
		return nil
	}
	return cellText(*p)
}

func optFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func optInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
