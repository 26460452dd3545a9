package validation

import (
	"errors"
	"testing"

	"github.com/ad-tracker/channel-ingestion-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		defaultMax  int
		limit       int
		wantDefault int
		wantLimit   int
	}{
		{"standard bounds", 10, 100, 10, 100},
		{"non-positive values fall back", 0, -1, 10, 100},
		{"default above limit is capped", 50, 20, 20, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New(tt.defaultMax, tt.limit)
			if v == nil {
				t.Fatal("New() returned nil")
			}
			if v.defaultMaxVideos != tt.wantDefault {
				t.Errorf("defaultMaxVideos = %d, want %d", v.defaultMaxVideos, tt.wantDefault)
			}
			if v.maxVideosLimit != tt.wantLimit {
				t.Errorf("maxVideosLimit = %d, want %d", v.maxVideosLimit, tt.wantLimit)
			}
		})
	}
}

func TestValidator_ValidateRequest(t *testing.T) {
	t.Parallel()

	v := New(10, 100)

	tests := []struct {
		name    string
		dto     *models.IngestionRequestDTO
		want    models.IngestionRequest
		wantErr error
	}{
		{
			name: "handle URL gets videos suffix",
			dto:  &models.IngestionRequestDTO{ChannelURL: "https://example.com/@someone", MaxVideos: "5"},
			want: models.IngestionRequest{
				ChannelURL:  "https://example.com/@someone",
				DispatchURL: "https://example.com/@someone/videos",
				MaxVideos:   5,
			},
		},
		{
			name: "original URL is preserved untrimmed",
			dto:  &models.IngestionRequestDTO{ChannelURL: "  https://www.youtube.com/@chan/  "},
			want: models.IngestionRequest{
				ChannelURL:  "  https://www.youtube.com/@chan/  ",
				DispatchURL: "https://www.youtube.com/@chan/videos",
				MaxVideos:   10,
			},
		},
		{
			name: "max videos above limit is clamped",
			dto:  &models.IngestionRequestDTO{ChannelURL: "https://www.youtube.com/@chan", MaxVideos: "500"},
			want: models.IngestionRequest{
				ChannelURL:  "https://www.youtube.com/@chan",
				DispatchURL: "https://www.youtube.com/@chan/videos",
				MaxVideos:   100,
			},
		},
		{
			name:    "empty URL",
			dto:     &models.IngestionRequestDTO{ChannelURL: ""},
			wantErr: ErrEmptyChannelURL,
		},
		{
			name:    "whitespace URL",
			dto:     &models.IngestionRequestDTO{ChannelURL: " \t\n"},
			wantErr: ErrEmptyChannelURL,
		},
		{
			name:    "nil request",
			dto:     nil,
			wantErr: ErrEmptyChannelURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := v.ValidateRequest(tt.dto)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidator_ResolveMaxVideos(t *testing.T) {
	t.Parallel()

	v := New(10, 100)

	tests := []struct {
		raw  models.MaxVideosValue
		want int
	}{
		{"", 10},
		{"0", 10},
		{"1", 1},
		{"5", 5},
		{"5.9", 5},
		{"-3", 1},
		{"-0.5", 10},
		{"100", 100},
		{"101", 100},
		{"500", 100},
		{"1e308", 100},
		{"abc", 10},
	}

	for _, tt := range tests {
		t.Run(string(tt.raw), func(t *testing.T) {
			t.Parallel()
			got := v.ResolveMaxVideos(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 1)
			assert.LessOrEqual(t, got, 100)
		})
	}
}

func TestValidator_ClampMaxVideos(t *testing.T) {
	v := New(10, 100)

	for n := -200; n <= 200; n += 7 {
		got := v.ClampMaxVideos(n)
		if got < 1 || got > 100 {
			t.Fatalf("ClampMaxVideos(%d) = %d, outside [1,100]", n, got)
		}
	}
	assert.Equal(t, 1, v.ClampMaxVideos(0))
	assert.Equal(t, 42, v.ClampMaxVideos(42))
	assert.Equal(t, 100, v.ClampMaxVideos(1000))
}

func TestDispatchURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"handle", "https://www.youtube.com/@someone", "https://www.youtube.com/@someone/videos"},
		{"trailing slash", "https://www.youtube.com/@someone/", "https://www.youtube.com/@someone/videos"},
		{"many trailing slashes", "https://www.youtube.com/@someone///", "https://www.youtube.com/@someone/videos"},
		{"already videos tab", "https://www.youtube.com/@someone/videos", "https://www.youtube.com/@someone/videos"},
		{"videos tab with slash", "https://www.youtube.com/@someone/videos/", "https://www.youtube.com/@someone/videos"},
		{"channel path", "https://www.youtube.com/channel/UCuAXFkgsw1L7xaCfnd5JJOw", "https://www.youtube.com/channel/UCuAXFkgsw1L7xaCfnd5JJOw"},
		{"surrounding whitespace", "  https://www.youtube.com/c/legacy  ", "https://www.youtube.com/c/legacy/videos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DispatchURL(tt.in))
		})
	}
}
