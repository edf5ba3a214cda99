package compile

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultMaxRounds bounds the build and correction loop
const DefaultMaxRounds = 64

// Options configures the loop
type Options struct {
	MaxRounds int
	Logger    *slog.Logger
}

// Result represents a successful build
type Result struct {
	Rounds   int
	Removed  []*RemovedStatement
	Artifact string
}

// Loop alternates between building and correcting until the build is clean
type Loop struct {
	builder   Builder
	corrector *Corrector
	maxRounds int
	logger    *slog.Logger
}

// NewLoop creates a build and correction loop
func NewLoop(builder Builder, options Options) *Loop {
	if options.MaxRounds <= 0 {
		options.MaxRounds = DefaultMaxRounds
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Loop{builder: builder, corrector: NewCorrector(), maxRounds: options.MaxRounds, logger: options.Logger}
}

// Run builds request, every round either removes at least one generated statement or fails
func (l *Loop) Run(ctx context.Context, request *Request) (*Result, error) {
	result := &Result{}
	for round := 1; ; round++ {
		if round > l.maxRounds {
			return nil, fmt.Errorf("%w after %d rounds", ErrTooManyRounds, l.maxRounds)
		}
		result.Rounds = round
		outcome, err := l.builder.Build(ctx, request)
		if err != nil {
			return nil, err
		}
		errs := CollectErrors(outcome.Diagnostics)
		if len(errs) == 0 {
			if outcome.ExitCode != 0 {
				return nil, &BuildInvocationError{Dir: request.Dir, ExitCode: outcome.ExitCode, Stderr: outcome.Stderr}
			}
			result.Artifact = request.Output
			return result, nil
		}
		l.logger.Info("correcting generated code", "round", round, "errors", len(errs))
		removed, err := l.corrector.Correct(ctx, round, errs)
		if err != nil {
			return nil, err
		}
		for _, item := range removed {
			l.logger.Debug("removed statement", "file", item.File, "line", item.Line, "text", item.Text, "error", item.Error.Message)
		}
		result.Removed = append(result.Removed, removed...)
	}
}
