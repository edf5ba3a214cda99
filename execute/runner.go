package execute

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/linescope/debugprobe"
	"golang.org/x/sync/errgroup"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	maxLineSize   = 64 * 1024 * 1024
	probeFileName = ".linescope-probe.log"
)

// Outcome represents a finished execution
type Outcome struct {
	ExitCode int
	Elapsed  time.Duration
	WorkDir  string // kept working directory, empty when a temporary one was removed
}

// Runner executes a built artifact once
type Runner interface {
	Run(ctx context.Context, artifact string, input *Input, sink *Sink) (*Outcome, error)
}

// ProcessRunner runs the artifact as a subprocess
type ProcessRunner struct {
	fs        afs.Service
	logger    *slog.Logger
	workDir   string
	probeFile bool
}

// Option configures a ProcessRunner
type Option func(*ProcessRunner)

// WithLogger sets the runner logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *ProcessRunner) {
		r.logger = logger
	}
}

// WithWorkDir sets the working directory, it is recreated for every run
func WithWorkDir(dir string) Option {
	return func(r *ProcessRunner) {
		r.workDir = dir
	}
}

// WithProbeFile sends probe records to a file instead of the error stream
func WithProbeFile(enabled bool) Option {
	return func(r *ProcessRunner) {
		r.probeFile = enabled
	}
}

// NewProcessRunner creates a subprocess runner
func NewProcessRunner(options ...Option) *ProcessRunner {
	r := &ProcessRunner{fs: afs.New()}
	for _, option := range options {
		option(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Run materializes the environment, runs artifact and fills sink with stdout and stderr lines.
// A non-zero exit status is reported in Outcome, captures emitted before a failure stay usable.
func (r *ProcessRunner) Run(ctx context.Context, artifact string, input *Input, sink *Sink) (*Outcome, error) {
	workDir, err := r.prepare(ctx, input)
	if err != nil {
		return nil, err
	}
	if r.workDir == "" {
		defer func() {
			if err := r.fs.Delete(context.Background(), workDir); err != nil {
				r.logger.Warn("failed to remove run directory", "dir", workDir, "error", err)
			}
		}()
	}
	env := append(os.Environ(), input.Env()...)
	probeFile := ""
	if r.probeFile {
		probeFile = filepath.Join(workDir, probeFileName)
		env = append(env, debugprobe.OutputEnv+"="+probeFile)
	}

	cmd := exec.CommandContext(ctx, artifact, input.Request.Args...)
	cmd.Dir = workDir
	cmd.Env = env
	cmd.Stdin = strings.NewReader(input.Request.Stdin)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	started := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %v: %w", artifact, err)
	}
	group := errgroup.Group{}
	group.Go(func() error { return pump(stdout, sink) })
	group.Go(func() error { return pump(stderr, sink) })
	streamErr := group.Wait()
	waitErr := cmd.Wait()

	outcome := &Outcome{Elapsed: time.Since(started), WorkDir: r.workDir}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, fmt.Errorf("failed to run %v: %w", artifact, waitErr)
		}
		outcome.ExitCode = exitErr.ExitCode()
		r.logger.Warn("program exited with failure", "artifact", artifact, "code", outcome.ExitCode)
	}
	if streamErr != nil {
		return nil, fmt.Errorf("failed to read output of %v: %w", artifact, streamErr)
	}
	if probeFile != "" {
		if err := r.collect(ctx, probeFile, sink); err != nil {
			return nil, err
		}
	}
	r.logger.Debug("program finished", "artifact", artifact, "lines", sink.Len(), "elapsed", outcome.Elapsed)
	return outcome, nil
}

// prepare recreates the working directory with the environment files, a temporary one is removed after the run
func (r *ProcessRunner) prepare(ctx context.Context, input *Input) (string, error) {
	workDir := r.workDir
	if workDir == "" {
		dir, err := os.MkdirTemp("", "linescope-run")
		if err != nil {
			return "", err
		}
		workDir = dir
	} else {
		if exists, _ := r.fs.Exists(ctx, workDir); exists {
			if err := r.fs.Delete(ctx, workDir); err != nil {
				return "", fmt.Errorf("failed to remove %v: %w", workDir, err)
			}
		}
		if err := r.fs.Create(ctx, workDir, file.DefaultDirOsMode, true); err != nil {
			return "", fmt.Errorf("failed to create %v: %w", workDir, err)
		}
	}
	for name, content := range input.Environment.Files {
		location := filepath.Join(workDir, filepath.FromSlash(name))
		if err := r.fs.Upload(ctx, location, file.DefaultFileOsMode, strings.NewReader(content)); err != nil {
			return "", fmt.Errorf("failed to write %v: %w", location, err)
		}
	}
	return workDir, nil
}

func (r *ProcessRunner) collect(ctx context.Context, location string, sink *Sink) error {
	exists, err := r.fs.Exists(ctx, location)
	if err != nil || !exists {
		return err
	}
	data, err := r.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return fmt.Errorf("failed to read %v: %w", location, err)
	}
	return pump(bytes.NewReader(data), sink)
}

// pump appends lines as they are produced
func pump(reader io.Reader, sink *Sink) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		sink.Append(scanner.Text())
	}
	return scanner.Err()
}
