package repository

import (
	"golang.org/x/mod/modfile"
	"path/filepath"
	"strings"
)

// Project represents the Go project containing a debugged program
type Project struct {
	Root       string // workspace root when the module belongs to a go.work, module root otherwise
	ModuleDir  string // absolute path of the module containing the program
	ModulePath string
	ProgramDir string // absolute path of the main package
	Binary     string // name of the program executable
	Workspace  *modfile.WorkFile
	GoModule   *modfile.Module
}

// IsWorkspace returns true if the project is a go.work workspace
func (p *Project) IsWorkspace() bool {
	return p.Workspace != nil
}

// Relative returns location relative to the project root in slash form
func (p *Project) Relative(location string) string {
	rel, err := filepath.Rel(p.Root, location)
	if err != nil {
		return location
	}
	return filepath.ToSlash(rel)
}

// Contains returns true if location is inside the module of the program
func (p *Project) Contains(location string) bool {
	rel, err := filepath.Rel(p.ModuleDir, location)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return rel != ".." && !strings.HasPrefix(rel, "../")
}
