package repository

import (
	"context"
	"fmt"
	"github.com/viant/afs"
	"go/parser"
	"go/token"
	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	goModFile  = "go.mod"
	goWorkFile = "go.work"
)

// Detector discovers the module and workspace of a Go program
type Detector struct {
	fs afs.Service
}

// New creates a new project detector instance
func New() *Detector {
	return &Detector{fs: afs.New()}
}

// Detect identifies the project of the main package located in programDir
func (d *Detector) Detect(ctx context.Context, programDir string) (*Project, error) {
	absPath, err := filepath.Abs(programDir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("program %v is not a directory", absPath)
	}
	isMain, err := HasMainPackage(absPath)
	if err != nil {
		return nil, err
	}
	if !isMain {
		return nil, fmt.Errorf("no main package in %v", absPath)
	}

	moduleDir := findUp(absPath, goModFile)
	if moduleDir == "" {
		return nil, fmt.Errorf("no %v found for %v", goModFile, absPath)
	}
	goModule, err := d.loadModule(ctx, filepath.Join(moduleDir, goModFile))
	if err != nil {
		return nil, err
	}
	project := &Project{
		Root:       moduleDir,
		ModuleDir:  moduleDir,
		ModulePath: goModule.Mod.Path,
		ProgramDir: absPath,
		GoModule:   goModule,
	}
	project.Binary = binaryName(project)

	if workDir := findUp(moduleDir, goWorkFile); workDir != "" {
		work, err := d.loadWorkspace(ctx, filepath.Join(workDir, goWorkFile))
		if err != nil {
			return nil, err
		}
		if uses(work, workDir, moduleDir) {
			project.Root = workDir
			project.Workspace = work
		}
	}
	return project, nil
}

func (d *Detector) loadModule(ctx context.Context, location string) (*modfile.Module, error) {
	content, err := d.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read %v: %w", location, err)
	}
	mod, err := modfile.ParseLax(location, content, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %v: %w", location, err)
	}
	if mod.Module == nil {
		return nil, fmt.Errorf("no module directive in %v", location)
	}
	return mod.Module, nil
}

func (d *Detector) loadWorkspace(ctx context.Context, location string) (*modfile.WorkFile, error) {
	content, err := d.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read %v: %w", location, err)
	}
	work, err := modfile.ParseWork(location, content, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %v: %w", location, err)
	}
	return work, nil
}

// uses returns true if the workspace lists moduleDir
func uses(work *modfile.WorkFile, workDir, moduleDir string) bool {
	for _, use := range work.Use {
		dir := filepath.FromSlash(use.Path)
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(workDir, dir)
		}
		if filepath.Clean(dir) == moduleDir {
			return true
		}
	}
	return false
}

// findUp searches up the directory tree for a marker file
func findUp(startDir, marker string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, marker)); err == nil && !info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// binaryName follows the go command: the last import path element without a major version suffix
func binaryName(project *Project) string {
	importPath := project.ModulePath
	if rel, err := filepath.Rel(project.ModuleDir, project.ProgramDir); err == nil && rel != "." {
		importPath = path.Join(importPath, filepath.ToSlash(rel))
	}
	if prefix, _, ok := module.SplitPathVersion(importPath); ok && prefix != "" {
		importPath = prefix
	}
	return path.Base(importPath)
}

// HasMainPackage checks if a directory contains non test Go files of package main
func HasMainPackage(dirPath string) (bool, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return false, err
	}
	fset := token.NewFileSet()
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dirPath, name), nil, parser.PackageClauseOnly)
		if err != nil {
			return false, err
		}
		if file.Name.Name == "main" {
			return true, nil
		}
	}
	return false, nil
}
