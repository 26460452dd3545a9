// Package extractor runs yt-dlp as a child process and captures its output.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/ad-tracker/channel-ingestion-go/pkg/logger"
	"go.uber.org/zap"
)

const (
	DefaultPath      = "yt-dlp"
	DefaultTimeout   = 600 * time.Second
	defaultWaitDelay = 5 * time.Second
)

// State is the lifecycle of a single run.
type State int

const (
	StatePending State = iota
	StateRunning
	StateCompleted
	StateTimedOut
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateTimedOut:
		return "timed_out"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is what a finished run produced. Stdout is kept even when the run
// failed or timed out so the caller can use partial output.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Outcome struct {
	State    State
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// HasOutput reports whether stdout holds anything besides whitespace.
func (o *Outcome) HasOutput() bool {
	return len(bytes.TrimSpace(o.Stdout)) > 0
}

// Runner launches yt-dlp in metadata-only mode.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Runner struct {
	// Path is the yt-dlp executable. Defaults to "yt-dlp".
	Path string

	// Timeout is the wall-clock ceiling for one run. Defaults to 600s.
	Timeout time.Duration

	// WaitDelay bounds how long Wait blocks on output pipes after a kill.
	WaitDelay time.Duration

	// ExtraArgs are placed before the URL.
	ExtraArgs []string

	// killAfter overrides the horizon of the forced kill. Zero means Timeout.
	killAfter time.Duration
}

// NewRunner creates a Runner with default settings.
func NewRunner() *Runner {
	return &Runner{
		Path:      DefaultPath,
		Timeout:   DefaultTimeout,
		WaitDelay: defaultWaitDelay,
	}
}

// BuildArgs returns the yt-dlp arguments for a metadata-only listing:
// one JSON object per line, capped at maxVideos, no warnings, keep going past
// per-item errors, and never download media.
func BuildArgs(url string, maxVideos int, extra ...string) []string {
	args := []string{
		"--dump-json",
		"--playlist-end", strconv.Itoa(maxVideos),
		"--no-warnings",
		"--ignore-errors",
		"--skip-download",
	}
	args = append(args, extra...)
	return append(args, url)
}

// Run executes yt-dlp once for url. It returns a *StartError when the binary
// cannot be launched and an *ExitError when it exits non-zero with no output.
// A non-zero exit or a timeout that still produced output is not an error.
//
// Cancellation of ctx does not stop the process; only the timeout does.
func (r *Runner) Run(ctx context.Context, url string, maxVideos int) (*Outcome, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	run := &processRun{
		path:    r.path(),
		args:    BuildArgs(url, maxVideos, r.ExtraArgs...),
		timeout:   timeout,
		killAfter: r.killAfter,
		delay:     r.WaitDelay,
	}
	outcome, err := run.execute(context.WithoutCancel(ctx))
	if err != nil {
		return nil, err
	}

	if outcome.ExitCode != 0 && !outcome.HasOutput() {
		return outcome, &ExitError{
			Path:   run.path,
			Code:   outcome.ExitCode,
			Stderr: truncate(string(outcome.Stderr), MaxDiagnosticLen),
		}
	}

	return outcome, nil
}

func (r *Runner) path() string {
	if r.Path != "" {
		return r.Path
	}
	return DefaultPath
}

// processRun owns one child process from start to exit.
type processRun struct {
	path      string
	args      []string
	timeout   time.Duration
	killAfter time.Duration
	delay     time.Duration

	state State
}

func (p *processRun) setState(s State) {
	p.state = s
}

func (p *processRun) execute(ctx context.Context) (*Outcome, error) {
	p.setState(StatePending)

	// First mechanism: the command's own deadline.
	cmdCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, p.path, p.args...)
	if p.delay > 0 {
		cmd.WaitDelay = p.delay
	} else {
		cmd.WaitDelay = defaultWaitDelay
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		p.setState(StateFailed)
		return nil, &StartError{Path: p.path, Err: err}
	}
	p.setState(StateRunning)

	logger.Log.Debug("Extractor started",
		zap.String("path", p.path),
		zap.Int("pid", cmd.Process.Pid),
		zap.Duration("timeout", p.timeout),
	)

	// Second mechanism: an independent kill, by default at the same horizon. Stopped on
	// every exit path; a kill after exit returns os.ErrProcessDone and is ignored.
	killAt := p.timeout
	if p.killAfter > 0 {
		killAt = p.killAfter
	}
	var killed atomic.Bool
	killTimer := time.AfterFunc(killAt, func() {
		killed.Store(true)
		_ = cmd.Process.Kill()
	})
	defer killTimer.Stop()

	waitErr := cmd.Wait()
	killTimer.Stop()

	outcome := &Outcome{
		ExitCode: exitCode(cmd, waitErr),
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	switch {
	case errors.Is(cmdCtx.Err(), context.DeadlineExceeded) || killed.Load():
		outcome.State = StateTimedOut
	case outcome.ExitCode != 0:
		outcome.State = StateFailed
	default:
		outcome.State = StateCompleted
	}
	p.setState(outcome.State)

	logger.Log.Debug("Extractor finished",
		zap.String("state", outcome.State.String()),
		zap.Int("exitCode", outcome.ExitCode),
		zap.Int("stdoutBytes", len(outcome.Stdout)),
		zap.Duration("duration", outcome.Duration),
	)

	return outcome, nil
}

// exitCode returns the process exit status, or -1 when it died from a signal.
func exitCode(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if waitErr != nil {
		return -1
	}
	return 0
}
