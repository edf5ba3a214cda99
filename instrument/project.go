package instrument

import (
	"bytes"
	"context"
	"fmt"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/linescope/debugprobe"
	"go/ast"
	"go/build"
	"go/parser"
	"go/token"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Request describes one instrumentation pass
type Request struct {
	Root       string   // tree copied to OutputDir, a module root or a workspace root
	ModuleDir  string   // module containing File, it receives the runtime and the encoders
	ModulePath string   // import path of the module in ModuleDir
	File       string   // target source file
	Line       int      // 1-based target line
	OutputDir  string   // replaced on every pass
	Skip       []string // slash separated paths relative to Root excluded from the copy
}

// Result describes the instrumented copy
type Result struct {
	OutputDir   string
	ModuleDir   string // instrumented module inside OutputDir
	File        string // instrumented target file inside OutputDir
	Probe       *Probe
	Generated   []string
	Fingerprint uint64
}

// Service copies a project into a scratch directory and instruments the copy
type Service struct {
	fs     afs.Service
	logger *slog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the service logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithFS sets the storage service
func WithFS(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// New creates an instrumentation service
func New(options ...Option) *Service {
	s := &Service{}
	for _, option := range options {
		option(s)
	}
	if s.fs == nil {
		s.fs = afs.New()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

type sourceFile struct {
	name string
	data []byte
}

type pass struct {
	request   *Request
	moduleRel string
	targetRel string
	skip      map[string]bool
	packages  map[string][]*sourceFile // slash separated dir relative to the module
	nested    []string
	target    []byte
	probe     *Probe
	found     bool
}

// Project writes an instrumented copy of request.Root to request.OutputDir, the source tree is never modified
func (s *Service) Project(ctx context.Context, request *Request) (*Result, error) {
	p, err := newPass(request)
	if err != nil {
		return nil, err
	}
	if err := s.reset(ctx, request.OutputDir); err != nil {
		return nil, err
	}
	var visitor storage.OnVisit = func(ctx context.Context, baseURL, parent string, info os.FileInfo, reader io.Reader) (bool, error) {
		rel := path.Join(parent, info.Name())
		excluded := strings.HasPrefix(info.Name(), ".") || p.skip[rel]
		if info.IsDir() {
			return !excluded, nil
		}
		if excluded {
			return true, nil
		}
		data, err := io.ReadAll(reader)
		if err != nil {
			return false, fmt.Errorf("failed to read %v: %w", rel, err)
		}
		if data, err = p.visit(rel, data); err != nil {
			return false, err
		}
		dest := filepath.Join(request.OutputDir, filepath.FromSlash(rel))
		if err = s.fs.Upload(ctx, dest, info.Mode().Perm()|0o200, bytes.NewReader(data)); err != nil {
			return false, fmt.Errorf("failed to copy %v: %w", rel, err)
		}
		return true, nil
	}
	if err := s.fs.Walk(ctx, request.Root, visitor); err != nil {
		return nil, fmt.Errorf("failed to copy %v: %w", request.Root, err)
	}
	if !p.found {
		return nil, fmt.Errorf("target file %v was not copied from %v", request.File, request.Root)
	}
	result := &Result{
		OutputDir: request.OutputDir,
		ModuleDir: filepath.Join(request.OutputDir, filepath.FromSlash(p.moduleRel)),
		File:      filepath.Join(request.OutputDir, filepath.FromSlash(p.targetRel)),
		Probe:     p.probe,
	}
	if p.probe == nil {
		s.logger.Warn("no statement starts at line, nothing instrumented", "file", request.File, "line", request.Line)
		return result, nil
	}
	s.logger.Info("probe injected", "file", request.File, "line", request.Line, "function", p.probe.Function, "bindings", strings.Join(p.probe.Bindings, ","))
	contents := [][]byte{p.target}
	generated, err := s.generate(ctx, p, result.ModuleDir)
	if err != nil {
		return nil, err
	}
	for _, item := range generated {
		result.Generated = append(result.Generated, item.name)
		contents = append(contents, item.data)
	}
	if err := s.writeRuntime(ctx, result.ModuleDir); err != nil {
		return nil, err
	}
	if result.Fingerprint, err = Fingerprint(contents...); err != nil {
		return nil, err
	}
	return result, nil
}

func newPass(request *Request) (*pass, error) {
	if request.Line < 1 {
		return nil, fmt.Errorf("invalid line %d", request.Line)
	}
	moduleRel, err := relative(request.Root, request.ModuleDir)
	if err != nil {
		return nil, err
	}
	targetRel, err := relative(request.Root, request.File)
	if err != nil {
		return nil, err
	}
	if moduleRel != "." && !strings.HasPrefix(targetRel, moduleRel+"/") {
		return nil, fmt.Errorf("%v is outside of module %v", request.File, request.ModuleDir)
	}
	p := &pass{
		request:   request,
		moduleRel: moduleRel,
		targetRel: targetRel,
		skip:      map[string]bool{},
		packages:  map[string][]*sourceFile{},
	}
	for _, skip := range request.Skip {
		p.skip[path.Clean(skip)] = true
	}
	if outputRel, err := relative(request.Root, request.OutputDir); err == nil {
		p.skip[outputRel] = true
	}
	return p, nil
}

// relative returns location relative to root in slash form, it fails for locations outside of root
func relative(root, location string) (string, error) {
	rel, err := filepath.Rel(root, location)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%v is outside of %v", location, root)
	}
	return rel, nil
}

// visit instruments the target file and records module sources for encoder generation
func (p *pass) visit(rel string, data []byte) ([]byte, error) {
	dir, name := path.Split(rel)
	dir = path.Clean(dir)
	moduleDir, inModule := p.inModule(dir)
	if name == "go.mod" && inModule && moduleDir != "." {
		p.nested = append(p.nested, moduleDir)
	}
	original := data
	if rel == p.targetRel {
		p.found = true
		instrumented, probe, err := InstrumentSource(p.request.File, data, p.request.Line, p.request.ModulePath)
		if err != nil {
			return nil, err
		}
		p.target = instrumented
		p.probe = probe
		data = instrumented
	}
	if inModule && isGoSource(name) && packageDir(moduleDir) {
		p.packages[moduleDir] = append(p.packages[moduleDir], &sourceFile{name: name, data: original})
	}
	return data, nil
}

func (p *pass) inModule(dir string) (string, bool) {
	if p.moduleRel == "." {
		return dir, true
	}
	if dir == p.moduleRel {
		return ".", true
	}
	if strings.HasPrefix(dir, p.moduleRel+"/") {
		return strings.TrimPrefix(dir, p.moduleRel+"/"), true
	}
	return "", false
}

// isNested returns true for module directories that belong to a nested module
func (p *pass) isNested(dir string) bool {
	for _, nested := range p.nested {
		if dir == nested || strings.HasPrefix(dir, nested+"/") {
			return true
		}
	}
	return false
}

func isGoSource(name string) bool {
	return strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go")
}

// packageDir excludes directories ignored by the go command
func packageDir(dir string) bool {
	if dir == "." {
		return true
	}
	for _, segment := range strings.Split(dir, "/") {
		if segment == "testdata" || segment == "vendor" || strings.HasPrefix(segment, "_") || strings.HasPrefix(segment, ".") {
			return false
		}
	}
	return true
}

// generate writes an encoder file to every module package with encodable types
func (s *Service) generate(ctx context.Context, p *pass, moduleDir string) ([]*sourceFile, error) {
	generator := &Generator{ModulePath: p.request.ModulePath}
	dirs := make([]string, 0, len(p.packages))
	for dir := range p.packages {
		if !p.isNested(dir) {
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)
	sourceModule := filepath.Join(p.request.Root, filepath.FromSlash(p.moduleRel))
	var generated []*sourceFile
	for _, dir := range dirs {
		sourceDir := filepath.Join(sourceModule, filepath.FromSlash(dir))
		files, err := parsePackage(sourceDir, p.packages[dir])
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			continue
		}
		pkg, err := CollectPackage(dir, files)
		if err != nil {
			s.logger.Warn("skipping encoders", "dir", dir, "error", err)
			continue
		}
		code, err := generator.Generate(pkg)
		if err != nil {
			return nil, err
		}
		if code == nil {
			continue
		}
		location := filepath.Join(moduleDir, filepath.FromSlash(dir), GeneratedFile)
		if err = s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(code)); err != nil {
			return nil, fmt.Errorf("failed to write %v: %w", location, err)
		}
		s.logger.Debug("encoders generated", "dir", dir, "types", len(pkg.Types))
		generated = append(generated, &sourceFile{name: location, data: code})
	}
	return generated, nil
}

// parsePackage parses the files of one directory that match the current build context
func parsePackage(sourceDir string, sources []*sourceFile) ([]*ast.File, error) {
	sort.Slice(sources, func(i, j int) bool { return sources[i].name < sources[j].name })
	fset := token.NewFileSet()
	var files []*ast.File
	for _, source := range sources {
		if match, err := build.Default.MatchFile(sourceDir, source.name); err != nil || !match {
			continue
		}
		filename := filepath.Join(sourceDir, source.name)
		parsed, err := parser.ParseFile(fset, filename, source.data, parser.SkipObjectResolution)
		if err != nil {
			return nil, &ParseError{File: filename, Err: err}
		}
		files = append(files, parsed)
	}
	return files, nil
}

func (s *Service) writeRuntime(ctx context.Context, moduleDir string) error {
	sources, err := debugprobe.Sources()
	if err != nil {
		return err
	}
	for name, data := range sources {
		location := filepath.Join(moduleDir, debugprobe.RuntimeDir, name)
		if err := s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("failed to write %v: %w", location, err)
		}
	}
	return nil
}

func (s *Service) reset(ctx context.Context, outputDir string) error {
	exists, err := s.fs.Exists(ctx, outputDir)
	if err != nil {
		return err
	}
	if exists {
		if err := s.fs.Delete(ctx, outputDir); err != nil {
			return fmt.Errorf("failed to remove %v: %w", outputDir, err)
		}
	}
	return s.fs.Create(ctx, outputDir, file.DefaultDirOsMode, true)
}
