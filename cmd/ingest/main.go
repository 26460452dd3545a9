// Command ingest runs one channel ingestion from the command line and writes
// the result as JSON or XLSX. With --input it re-exports a saved JSON result
// without running the extractor.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/ad-tracker/channel-ingestion-go/internal/config"
	"github.com/ad-tracker/channel-ingestion-go/internal/export"
	"github.com/ad-tracker/channel-ingestion-go/internal/extractor"
	"github.com/ad-tracker/channel-ingestion-go/internal/models"
	"github.com/ad-tracker/channel-ingestion-go/internal/service"
	"github.com/ad-tracker/channel-ingestion-go/internal/validation"
	"github.com/ad-tracker/channel-ingestion-go/pkg/logger"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// options holds the parsed command line.
type options struct {
	URL    string
	Max    int
	Out    string
	Format export.Format
	Input  string
}

var errUsage = errors.New("usage")

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := pflag.NewFlagSet("ingest", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		opts   options
		format string
	)
	fs.StringVarP(&opts.URL, "url", "u", "", "Channel URL to ingest")
	fs.IntVarP(&opts.Max, "max", "n", 0, "Maximum number of videos (default from config, clamped to the configured limit)")
	fs.StringVarP(&opts.Out, "out", "o", "", `Output file; "-" writes to stdout (default <channel>_videos.<format>)`)
	fs.StringVarP(&format, "format", "f", "json", "Output format: json or xlsx")
	fs.StringVarP(&opts.Input, "input", "i", "", "Re-export a saved JSON result instead of running an ingestion")

	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: ingest --url <channel-url> [--max N] [--format json|xlsx] [--out file]")
		fmt.Fprintln(stderr, "       ingest --input result.json --format xlsx [--out file]")
		fmt.Fprintln(stderr)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	opts.Format = f

	if (opts.URL == "") == (opts.Input == "") {
		fs.Usage()
		return nil, errUsage
	}

	return &opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "ingest: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// stdout may carry the export (--out -), so logs go to stderr.
	if err := logger.InitTo(cfg.Logging.Level, cfg.Logging.File, "stderr"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(context.Background(), cfg, opts, os.Stdout); err != nil {
		logger.Log.Error("Ingestion failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts *options, stdout io.Writer) error {
	var (
		result *models.IngestionResult
		err    error
	)

	if opts.Input != "" {
		result, err = loadResult(opts.Input)
	} else {
		result, err = newIngestionService(cfg).Ingest(ctx, requestFor(opts))
	}
	if err != nil {
		return err
	}

	return writeResult(result, opts, stdout)
}

func newIngestionService(cfg *config.Config) *service.IngestionService {
	runner := &extractor.Runner{
		Path:      cfg.Extractor.Path,
		Timeout:   cfg.Extractor.Timeout,
		WaitDelay: cfg.Extractor.WaitDelay,
		ExtraArgs: cfg.Extractor.ExtraArgs,
	}
	enricher := service.NewTranscriptEnricher(
		&http.Client{Timeout: cfg.Transcript.HTTPTimeout},
		cfg.Transcript.UserAgent,
	)
	svc := service.NewIngestionService(
		validation.New(cfg.Ingestion.DefaultMaxVideos, cfg.Ingestion.MaxVideosLimit),
		runner,
		enricher,
	)
	svc.SetEnrichConcurrency(cfg.Transcript.Concurrency)
	return svc
}

func requestFor(opts *options) *models.IngestionRequestDTO {
	dto := &models.IngestionRequestDTO{ChannelURL: opts.URL}
	if opts.Max != 0 {
		dto.MaxVideos = models.MaxVideosValue(strconv.Itoa(opts.Max))
	}
	return dto
}

// loadResult reads a saved result and brings every record back to canonical form.
func loadResult(path string) (*models.IngestionResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	result, err := export.ReadJSON(f)
	if err != nil {
		return nil, err
	}
	for i := range result.Videos {
		result.Videos[i] = service.CanonicalizeRecord(result.Videos[i])
	}
	return result, nil
}

func writeResult(result *models.IngestionResult, opts *options, stdout io.Writer) (err error) {
	if opts.Out == "-" {
		return export.Write(stdout, result, opts.Format)
	}

	path := opts.Out
	if path == "" {
		path = export.FileName(result.ChannelTitle, opts.Format)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := export.Write(f, result, opts.Format); err != nil {
		return err
	}

	logger.Log.Info("Result written",
		zap.String("path", path),
		zap.String("format", string(opts.Format)),
		zap.Int("videos", len(result.Videos)),
		zap.Int("transcripts", result.TranscriptCount()),
	)
	return nil
}
