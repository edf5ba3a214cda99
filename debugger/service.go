// Package debugger runs one single line debugging session: it instruments a copy of the
// program, builds it with self correction, executes it once and decodes the captures.
package debugger

import (
	"context"
	"errors"
	"fmt"
	"github.com/viant/linescope/compile"
	"github.com/viant/linescope/config"
	"github.com/viant/linescope/execute"
	"github.com/viant/linescope/instrument"
	"github.com/viant/linescope/output"
	"github.com/viant/linescope/repository"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Report represents the outcome of one session
type Report struct {
	Location  *Location
	Variables []string
	Probe     *instrument.Probe
	Build     *compile.Result
	Execution *execute.Outcome
	Captures  []*output.LineCapture
}

// Service orchestrates debugging sessions
type Service struct {
	store        *config.Store
	detector     *repository.Detector
	instrumenter *instrument.Service
	builder      compile.Builder
	runner       execute.Runner
	logger       *slog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the session logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithBuilder replaces the go command builder
func WithBuilder(builder compile.Builder) Option {
	return func(s *Service) {
		s.builder = builder
	}
}

// WithRunner replaces the subprocess runner
func WithRunner(runner execute.Runner) Option {
	return func(s *Service) {
		s.runner = runner
	}
}

// New creates a debugger service backed by store
func New(store *config.Store, options ...Option) *Service {
	s := &Service{store: store, detector: repository.New()}
	for _, option := range options {
		option(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.instrumenter = instrument.New(instrument.WithLogger(s.logger))
	if s.builder == nil {
		s.builder = compile.NewGoBuilder(s.logger)
	}
	if s.runner == nil {
		s.runner = execute.NewProcessRunner(execute.WithLogger(s.logger))
	}
	return s
}

// Init validates and saves the program and input paths
func (s *Service) Init(ctx context.Context, program, input string) (*config.Config, error) {
	cfg, err := s.store.Load(ctx)
	if errors.Is(err, config.ErrNotInitialized) {
		cfg, err = config.DefaultConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	if cfg.Program, err = directory("program", program); err != nil {
		return nil, err
	}
	if cfg.Input, err = directory("input", input); err != nil {
		return nil, err
	}
	if _, err = s.project(ctx, cfg); err != nil {
		return nil, err
	}
	if err = s.store.Save(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Status returns the saved configuration and the last session, if any
func (s *Service) Status(ctx context.Context) (*config.Config, *config.Session, error) {
	cfg, err := s.store.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	session, err := s.store.LoadSession(ctx)
	if err != nil {
		return nil, nil, err
	}
	return cfg, session, nil
}

// Inspect captures the variables live at location, names optionally restrict the printed roots
func (s *Service) Inspect(ctx context.Context, location string, names []string) (*Report, error) {
	started := time.Now()
	cfg, err := s.config(ctx)
	if err != nil {
		return nil, err
	}
	target, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(target.File); err != nil || info.IsDir() {
		return nil, invalid("location", location, "file does not exist", err)
	}
	project, err := s.project(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if !project.Contains(target.File) {
		return nil, invalid("location", location, "file is outside of module "+project.ModulePath, nil)
	}
	input, err := execute.LoadInput(ctx, cfg.Input)
	if err != nil {
		return nil, err
	}
	report := &Report{Location: target, Variables: names}

	s.logger.Info("Instrument...", "location", target.String())
	instrumented, err := s.instrumenter.Project(ctx, &instrument.Request{
		Root:       project.Root,
		ModuleDir:  project.ModuleDir,
		ModulePath: project.ModulePath,
		File:       target.File,
		Line:       target.Line,
		OutputDir:  s.store.BuildDir(),
		Skip:       s.skip(project),
	})
	if err != nil {
		return nil, err
	}
	report.Probe = instrumented.Probe
	if instrumented.Probe == nil {
		s.logger.Info("no statement starts at location, nothing to capture", "location", target.String())
		return report, s.save(ctx, report, instrumented, started)
	}

	s.logger.Info("Compile...", "module", project.ModulePath)
	loop := compile.NewLoop(s.builder, compile.Options{MaxRounds: cfg.MaxRounds, Logger: s.logger})
	if report.Build, err = loop.Run(ctx, &compile.Request{
		Dir:      instrumented.ModuleDir,
		Package:  programPattern(project),
		Output:   filepath.Join(s.store.BinDir(), project.Binary),
		CacheDir: s.store.CacheDir(),
	}); err != nil {
		return nil, err
	}

	s.logger.Info("Run...", "artifact", report.Build.Artifact)
	sink := execute.NewSink()
	if report.Execution, err = s.runner.Run(ctx, report.Build.Artifact, input, sink); err != nil {
		return nil, err
	}

	s.logger.Info("Output...", "lines", sink.Len())
	if report.Captures, err = output.Parse(sink.Lines()); err != nil {
		return nil, err
	}
	if len(report.Captures) == 0 {
		s.logger.Info("location was never hit", "location", target.String())
	}
	return report, s.save(ctx, report, instrumented, started)
}

func (s *Service) config(ctx context.Context) (*config.Config, error) {
	cfg, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, invalid("config", s.store.Dir(), "bad configuration", err)
	}
	return cfg, nil
}

func (s *Service) project(ctx context.Context, cfg *config.Config) (*repository.Project, error) {
	project, err := s.detector.Detect(ctx, cfg.Program)
	if err != nil {
		return nil, invalid("program", cfg.Program, "not a main package of a Go module", err)
	}
	return project, nil
}

// skip excludes the debugger cache when it lives inside the project
func (s *Service) skip(project *repository.Project) []string {
	rel, err := filepath.Rel(project.Root, s.store.Dir())
	if err != nil {
		return nil
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return nil
	}
	return []string{rel}
}

func (s *Service) save(ctx context.Context, report *Report, instrumented *instrument.Result, started time.Time) error {
	session := &config.Session{
		File:        report.Location.File,
		Line:        report.Location.Line,
		Variables:   report.Variables,
		Captures:    len(report.Captures),
		Fingerprint: instrumented.Fingerprint,
		Started:     started,
		Elapsed:     time.Since(started),
	}
	if report.Build != nil {
		session.Rounds = report.Build.Rounds
		for _, removed := range report.Build.Removed {
			session.Removed = append(session.Removed, config.RemovedProbe{
				File: removed.File,
				Line: removed.Line,
				Text: removed.Text,
			})
		}
	}
	if err := s.store.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// programPattern returns the program package relative to its module
func programPattern(project *repository.Project) string {
	rel, err := filepath.Rel(project.ModuleDir, project.ProgramDir)
	if err != nil || rel == "." {
		return "."
	}
	return "./" + path.Clean(filepath.ToSlash(rel))
}

func directory(field, location string) (string, error) {
	if location == "" {
		return "", invalid(field, location, "path was empty", nil)
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return "", invalid(field, location, "bad path", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", invalid(field, location, "path does not exist", err)
	}
	if !info.IsDir() {
		return "", invalid(field, location, "not a directory", nil)
	}
	return abs, nil
}
