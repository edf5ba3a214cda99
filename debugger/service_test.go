package debugger_test

import (
	"bytes"
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/linescope/compile"
	"github.com/viant/linescope/config"
	"github.com/viant/linescope/debugger"
	"github.com/viant/linescope/debugprobe"
	"github.com/viant/linescope/execute"
	"github.com/viant/linescope/output"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

type cleanBuilder struct {
	requests []*compile.Request
}

func (b *cleanBuilder) Build(ctx context.Context, request *compile.Request) (*compile.Outcome, error) {
	b.requests = append(b.requests, request)
	return &compile.Outcome{}, nil
}

// loopRunner emits what the instrumented loop body would emit
type loopRunner struct {
	hits int
}

func (r *loopRunner) Run(ctx context.Context, artifact string, input *execute.Input, sink *execute.Sink) (*execute.Outcome, error) {
	buffer := &bytes.Buffer{}
	debugprobe.SetOutput(buffer)
	defer debugprobe.SetOutput(nil)
	sink.Append("program started")
	total := 0
	for i := 0; i < r.hits; i++ {
		debugprobe.LineStart(8)
		debugprobe.Serialize(&total, "total")
		debugprobe.Serialize(&i, "i")
		debugprobe.LineEnd()
		total += i
	}
	sink.Append(strings.Split(strings.TrimSuffix(buffer.String(), "\n"), "\n")...)
	return &execute.Outcome{}, nil
}

func newService(t *testing.T, builder compile.Builder, runner execute.Runner) (*debugger.Service, *config.Store) {
	store := config.NewStore(filepath.Join(t.TempDir(), "linescope"))
	service := debugger.New(store,
		debugger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		debugger.WithBuilder(builder),
		debugger.WithRunner(runner),
	)
	_, err := service.Init(context.Background(), filepath.Join("testdata", "app"), filepath.Join("testdata", "input"))
	require.NoError(t, err)
	return service, store
}

func TestService_Inspect(t *testing.T) {
	builder := &cleanBuilder{}
	service, store := newService(t, builder, &loopRunner{hits: 3})
	report, err := service.Inspect(context.Background(), filepath.Join("testdata", "app", "main.go")+":8", nil)
	require.NoError(t, err)

	require.NotNil(t, report.Probe)
	assert.Equal(t, []string{"total", "i"}, []string(report.Probe.Bindings))
	require.Len(t, builder.requests, 1)
	assert.Equal(t, ".", builder.requests[0].Package)
	assert.Equal(t, filepath.Join(store.BinDir(), "app"), builder.requests[0].Output)

	require.Len(t, report.Captures, 3)
	for i, capture := range report.Captures {
		assert.Equal(t, 8, capture.Line)
		require.NotNil(t, capture.Lookup("i"))
		assert.Equal(t, []string{"0", "1", "2"}[i], capture.Lookup("i").Value)
	}
	assert.Equal(t, "1", report.Captures[2].Lookup("total").Value)

	_, session, err := service.Status(context.Background())
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, 3, session.Captures)
	assert.Equal(t, 1, session.Rounds)
	assert.Equal(t, 8, session.Line)

	out := &bytes.Buffer{}
	require.NoError(t, debugger.Render(out, output.NewPrinter(false), &debugger.Report{
		Location:  report.Location,
		Variables: []string{"i", "missing"},
		Probe:     report.Probe,
		Captures:  report.Captures,
	}))
	rendered := out.String()
	assert.Equal(t, 1, strings.Count(rendered, "Variable missing not available"))
	assert.Contains(t, rendered, "main.go:8 (3)")
	assert.Contains(t, rendered, "• i: 2 (int)")
	assert.NotContains(t, rendered, "total")
}

func TestService_Inspect_NeverHit(t *testing.T) {
	service, _ := newService(t, &cleanBuilder{}, &loopRunner{})
	report, err := service.Inspect(context.Background(), filepath.Join("testdata", "app", "main.go")+":8", nil)
	require.NoError(t, err)
	assert.Empty(t, report.Captures)

	out := &bytes.Buffer{}
	require.NoError(t, debugger.Render(out, output.NewPrinter(false), report))
	assert.Contains(t, out.String(), "was never hit")
}

func TestService_Inspect_NoStatement(t *testing.T) {
	builder := &cleanBuilder{}
	service, _ := newService(t, builder, &loopRunner{hits: 1})
	report, err := service.Inspect(context.Background(), filepath.Join("testdata", "app", "main.go")+":4", nil)
	require.NoError(t, err)
	assert.Nil(t, report.Probe)
	assert.Empty(t, builder.requests)
}

func TestService_Inspect_Invalid(t *testing.T) {
	service, _ := newService(t, &cleanBuilder{}, &loopRunner{})
	for _, location := range []string{
		"main.go",
		filepath.Join("testdata", "app", "main.go") + ":x",
		filepath.Join("testdata", "app", "main.go") + ":0",
		filepath.Join("testdata", "app", "absent.go") + ":3",
		filepath.Join("testdata", "input", "request.yaml") + ":1",
	} {
		_, err := service.Inspect(context.Background(), location, nil)
		var validation *debugger.ValidationError
		assert.True(t, errors.As(err, &validation), location)
	}
}

func TestService_Init_Invalid(t *testing.T) {
	store := config.NewStore(filepath.Join(t.TempDir(), "linescope"))
	service := debugger.New(store, debugger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	var validation *debugger.ValidationError
	_, err := service.Init(context.Background(), filepath.Join("testdata", "input"), filepath.Join("testdata", "input"))
	assert.True(t, errors.As(err, &validation))
	_, err = service.Init(context.Background(), filepath.Join("testdata", "app"), filepath.Join("testdata", "absent"))
	assert.True(t, errors.As(err, &validation))

	_, _, err = service.Status(context.Background())
	assert.ErrorIs(t, err, config.ErrNotInitialized)
}
