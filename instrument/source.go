package instrument

import (
	"fmt"
	"go/parser"
	"go/token"
)

// ParseError reports a Go source file that cannot be parsed
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %v: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// InstrumentSource injects a probe before the first statement starting on line.
// The source is returned unchanged with a nil probe when no statement starts there.
func InstrumentSource(filename string, src []byte, line int, modulePath string) ([]byte, *Probe, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, nil, &ParseError{File: filename, Err: err}
	}
	probe := FindProbe(fset, file, line)
	if probe == nil {
		return src, nil, nil
	}
	importAt := fset.Position(file.Name.End()).Offset
	edits := []Edit{
		{Start: importAt, End: importAt, Text: "; " + ImportDecl(modulePath)},
		{Start: probe.Offset, End: probe.Offset, Text: probe.Code()},
	}
	instrumented, err := Apply(src, edits)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to instrument %v: %w", filename, err)
	}
	return instrumented, probe, nil
}
