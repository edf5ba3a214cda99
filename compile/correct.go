package compile

import (
	"bytes"
	"context"
	"fmt"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/linescope/instrument"
	"go/parser"
	"go/token"
	"sort"
)

// RemovedStatement represents a generated statement deleted by a correction round
type RemovedStatement struct {
	Round int
	File  string
	Line  int
	Text  string
	Error *CompileError
}

// Corrector removes generated serialize statements that contain compile errors
type Corrector struct {
	fs afs.Service
}

// NewCorrector creates a corrector
func NewCorrector() *Corrector {
	return &Corrector{fs: afs.New()}
}

type fileCorrection struct {
	location string
	content  []byte
	edits    []instrument.Edit
}

// Correct edits every file of errs, no file is written unless every error is covered by a generated statement
func (c *Corrector) Correct(ctx context.Context, round int, errs []*CompileError) ([]*RemovedStatement, error) {
	byFile := map[string][]*CompileError{}
	var files []string
	for _, item := range errs {
		if _, ok := byFile[item.File]; !ok {
			files = append(files, item.File)
		}
		byFile[item.File] = append(byFile[item.File], item)
	}
	sort.Strings(files)

	var corrections []*fileCorrection
	var removed []*RemovedStatement
	var uncovered []*CompileError
	for _, location := range files {
		correction, statements, missed, err := c.correctFile(ctx, location, round, byFile[location])
		if err != nil {
			return nil, err
		}
		uncovered = append(uncovered, missed...)
		removed = append(removed, statements...)
		if len(correction.edits) > 0 {
			corrections = append(corrections, correction)
		}
	}
	if len(uncovered) > 0 {
		return nil, &UncorrectableCompileError{Errors: uncovered}
	}
	for _, correction := range corrections {
		content, err := instrument.Apply(correction.content, correction.edits)
		if err != nil {
			return nil, err
		}
		if err = c.fs.Upload(ctx, correction.location, file.DefaultFileOsMode, bytes.NewReader(content)); err != nil {
			return nil, fmt.Errorf("failed to write %v: %w", correction.location, err)
		}
	}
	return removed, nil
}

// correctFile re-reads and re-parses location, spans are offsets into its current content
func (c *Corrector) correctFile(ctx context.Context, location string, round int, errs []*CompileError) (*fileCorrection, []*RemovedStatement, []*CompileError, error) {
	content, err := c.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read %v: %w", location, err)
	}
	fset := token.NewFileSet()
	parsed, err := parser.ParseFile(fset, location, content, parser.SkipObjectResolution)
	if err != nil {
		return nil, nil, nil, &instrument.ParseError{File: location, Err: err}
	}
	correction := &fileCorrection{location: location, content: content}
	statements := instrument.SerializeStatements(parsed)
	removedAt := map[int]bool{}
	var removed []*RemovedStatement
	var uncovered []*CompileError
	for _, item := range errs {
		primary := item.Primary()
		covered := false
		for _, stmt := range statements {
			start := fset.Position(stmt.Pos())
			span := Span{Start: start.Offset, End: fset.Position(stmt.End()).Offset}
			if !span.Contains(primary) {
				continue
			}
			covered = true
			if removedAt[span.Start] {
				break
			}
			removedAt[span.Start] = true
			correction.edits = append(correction.edits, instrument.Edit{Start: span.Start, End: span.End})
			removed = append(removed, &RemovedStatement{
				Round: round,
				File:  location,
				Line:  start.Line,
				Text:  string(content[span.Start:span.End]),
				Error: item,
			})
			break
		}
		if !covered {
			uncovered = append(uncovered, item)
		}
	}
	return correction, removed, uncovered, nil
}
