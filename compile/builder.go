package compile

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"go/token"
	"go/types"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/packages"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// gcCode tags diagnostics reported by the compiler stage, they carry no go/types error code
const gcCode = "gc"

var gcLine = regexp.MustCompile(`^(.+\.go):(\d+):(\d+):\s*(.+)$`)

// Request describes one build of the instrumented program
type Request struct {
	Dir      string   // module directory of the instrumented copy
	Package  string   // program package pattern relative to Dir
	Output   string   // artifact location
	CacheDir string   // optional GOCACHE
	Env      []string // extra environment
}

// Outcome represents diagnostics and the exit status of one build
type Outcome struct {
	Diagnostics []*Diagnostic
	ExitCode    int
	Stderr      string
}

// Builder builds a project and reports structured diagnostics
type Builder interface {
	Build(ctx context.Context, request *Request) (*Outcome, error)
}

// GoBuilder type checks the program with go/packages, then builds it with the go command
type GoBuilder struct {
	fs     afs.Service
	logger *slog.Logger
	goBin  string
}

// NewGoBuilder creates a go command builder
func NewGoBuilder(logger *slog.Logger) *GoBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoBuilder{fs: afs.New(), logger: logger, goBin: "go"}
}

// Build runs the type check stage and, when it reports no coded error, the compiler stage
func (b *GoBuilder) Build(ctx context.Context, request *Request) (*Outcome, error) {
	env := b.environ(request)
	diagnostics, err := b.typeCheck(ctx, request, env)
	if err != nil {
		return nil, &BuildInvocationError{Dir: request.Dir, Err: err}
	}
	if len(CollectErrors(diagnostics)) > 0 {
		b.logger.Debug("type check failed", "dir", request.Dir, "diagnostics", len(diagnostics))
		return &Outcome{Diagnostics: diagnostics, ExitCode: 1}, nil
	}
	outcome, err := b.compile(ctx, request, env)
	if err != nil {
		return nil, err
	}
	outcome.Diagnostics = append(diagnostics, outcome.Diagnostics...)
	return outcome, nil
}

func (b *GoBuilder) environ(request *Request) []string {
	env := append(os.Environ(), request.Env...)
	if request.CacheDir != "" {
		env = append(env, "GOCACHE="+request.CacheDir)
	}
	return env
}

func (b *GoBuilder) typeCheck(ctx context.Context, request *Request, env []string) ([]*Diagnostic, error) {
	cfg := &packages.Config{
		Context: ctx,
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedImports | packages.NeedDeps |
			packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo | packages.NeedModule,
		Dir: request.Dir,
		Env: env,
	}
	pkgs, err := packages.Load(cfg, request.Package)
	if err != nil {
		return nil, err
	}
	var diagnostics []*Diagnostic
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		if pkg.Module == nil || !pkg.Module.Main {
			return
		}
		for _, typeErr := range pkg.TypeErrors {
			diagnostics = append(diagnostics, typeDiagnostic(typeErr))
		}
		for _, pkgErr := range pkg.Errors {
			if pkgErr.Kind == packages.TypeError {
				continue
			}
			diagnostics = append(diagnostics, &Diagnostic{Severity: SeverityError, Message: pkgErr.Msg})
		}
	})
	return diagnostics, nil
}

// typeDiagnostic converts a go/types error, code and range are read from unexported fields like x/tools does
func typeDiagnostic(typeErr types.Error) *Diagnostic {
	position := typeErr.Fset.Position(typeErr.Pos)
	diagnostic := &Diagnostic{
		File:     position.Filename,
		Line:     position.Line,
		Column:   position.Column,
		Severity: SeverityError,
		Message:  typeErr.Msg,
	}
	code, start, end := errorData(typeErr)
	if code != 0 {
		diagnostic.Code = "TC" + strconv.Itoa(code)
	}
	if !start.IsValid() {
		start = typeErr.Pos
	}
	if !start.IsValid() || position.Filename == "" {
		return diagnostic
	}
	span := Span{Start: typeErr.Fset.Position(start).Offset, Primary: true}
	span.End = span.Start
	if end.IsValid() {
		if endPosition := typeErr.Fset.Position(end); endPosition.Filename == position.Filename && endPosition.Offset > span.Start {
			span.End = endPosition.Offset
		}
	}
	diagnostic.Spans = []Span{span}
	return diagnostic
}

func errorData(typeErr types.Error) (int, token.Pos, token.Pos) {
	value := reflect.ValueOf(typeErr)
	code := value.FieldByName("go116code")
	start := value.FieldByName("go116start")
	end := value.FieldByName("go116end")
	if !code.IsValid() || !start.IsValid() || !end.IsValid() {
		return 0, token.NoPos, token.NoPos
	}
	return int(code.Int()), token.Pos(start.Int()), token.Pos(end.Int())
}

// compile runs go build, compiler messages are read from both streams while the command runs
func (b *GoBuilder) compile(ctx context.Context, request *Request, env []string) (*Outcome, error) {
	if err := b.ensureDir(ctx, filepath.Dir(request.Output)); err != nil {
		return nil, &BuildInvocationError{Dir: request.Dir, Err: err}
	}
	cmd := exec.CommandContext(ctx, b.goBin, "build", "-o", request.Output, request.Package)
	cmd.Dir = request.Dir
	cmd.Env = env
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &BuildInvocationError{Dir: request.Dir, Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &BuildInvocationError{Dir: request.Dir, Err: fmt.Errorf("stderr pipe: %w", err)}
	}
	if err := cmd.Start(); err != nil {
		return nil, &BuildInvocationError{Dir: request.Dir, Err: fmt.Errorf("start: %w", err)}
	}
	b.logger.Debug("go build started", "dir", request.Dir, "package", request.Package)

	var stdoutLines, stderrLines []string
	group := errgroup.Group{}
	group.Go(func() error {
		var err error
		stdoutLines, err = readLines(stdout)
		return err
	})
	group.Go(func() error {
		var err error
		stderrLines, err = readLines(stderr)
		return err
	})
	streamErr := group.Wait()
	waitErr := cmd.Wait()

	outcome := &Outcome{Stderr: strings.Join(stderrLines, "\n")}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, &BuildInvocationError{Dir: request.Dir, Err: waitErr, Stderr: outcome.Stderr}
		}
		outcome.ExitCode = exitErr.ExitCode()
	}
	if streamErr != nil && outcome.ExitCode == 0 {
		return nil, &BuildInvocationError{Dir: request.Dir, Err: streamErr, Stderr: outcome.Stderr}
	}
	outcome.Diagnostics = b.compilerDiagnostics(ctx, request.Dir, append(stdoutLines, stderrLines...))
	return outcome, nil
}

func (b *GoBuilder) ensureDir(ctx context.Context, dir string) error {
	exists, err := b.fs.Exists(ctx, dir)
	if err != nil || exists {
		return err
	}
	if err = b.fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
		return fmt.Errorf("failed to create %v: %w", dir, err)
	}
	return nil
}

func readLines(reader io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		_, _ = io.Copy(io.Discard, reader)
		return lines, err
	}
	return lines, nil
}

// compilerDiagnostics parses file:line:col: message lines into zero width spans
func (b *GoBuilder) compilerDiagnostics(ctx context.Context, dir string, lines []string) []*Diagnostic {
	var result []*Diagnostic
	contents := map[string][]byte{}
	for _, line := range lines {
		match := gcLine.FindStringSubmatch(strings.TrimSpace(line))
		if match == nil {
			continue
		}
		location := match[1]
		if !filepath.IsAbs(location) {
			location = filepath.Join(dir, location)
		}
		lineNumber, _ := strconv.Atoi(match[2])
		column, _ := strconv.Atoi(match[3])
		diagnostic := &Diagnostic{
			File:     location,
			Line:     lineNumber,
			Column:   column,
			Code:     gcCode,
			Severity: SeverityError,
			Message:  match[4],
		}
		content, ok := contents[location]
		if !ok {
			content, _ = b.fs.DownloadWithURL(ctx, location)
			contents[location] = content
		}
		if offset, ok := Offset(content, lineNumber, column); ok {
			diagnostic.Spans = []Span{{Start: offset, End: offset, Primary: true}}
		}
		result = append(result, diagnostic)
	}
	return result
}

// Offset converts a 1-based line and byte column into a byte offset of content
func Offset(content []byte, line, column int) (int, bool) {
	if line < 1 || column < 1 {
		return 0, false
	}
	offset := 0
	for current := 1; current < line; current++ {
		index := bytes.IndexByte(content[offset:], '\n')
		if index < 0 {
			return 0, false
		}
		offset += index + 1
	}
	offset += column - 1
	if offset > len(content) {
		return 0, false
	}
	return offset, true
}
