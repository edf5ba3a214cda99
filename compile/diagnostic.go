package compile

import (
	"fmt"
	"sort"
)

// Severity of a diagnostic
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Span is a half-open byte range of a file as written in the current round
type Span struct {
	Start   int
	End     int
	Primary bool
}

// Contains returns true if other lies within the span
func (s Span) Contains(other Span) bool {
	return s.Start <= other.Start && other.End <= s.End
}

// Diagnostic is a raw record reported by a builder
type Diagnostic struct {
	File     string // absolute path
	Line     int
	Column   int
	Code     string
	Severity Severity
	Spans    []Span
	Message  string
}

// CompileError is a diagnostic the correction loop acts on
type CompileError struct {
	File    string
	Line    int
	Column  int
	Code    string
	Spans   []Span
	Message string
}

// Primary returns the first primary span
func (e *CompileError) Primary() Span {
	for _, span := range e.Spans {
		if span.Primary {
			return span
		}
	}
	return Span{}
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%v:%d:%d: %v [%v]", e.File, e.Line, e.Column, e.Message, e.Code)
}

// CollectErrors keeps error diagnostics with a code and a primary span, everything else is noise
func CollectErrors(diagnostics []*Diagnostic) []*CompileError {
	var result []*CompileError
	seen := map[string]bool{}
	for _, diagnostic := range diagnostics {
		if diagnostic.Severity != SeverityError || diagnostic.Code == "" || diagnostic.File == "" {
			continue
		}
		hasPrimary := false
		for _, span := range diagnostic.Spans {
			hasPrimary = hasPrimary || span.Primary
		}
		if !hasPrimary {
			continue
		}
		item := &CompileError{
			File:    diagnostic.File,
			Line:    diagnostic.Line,
			Column:  diagnostic.Column,
			Code:    diagnostic.Code,
			Spans:   diagnostic.Spans,
			Message: diagnostic.Message,
		}
		key := fmt.Sprintf("%v:%d:%d:%v", item.File, item.Primary().Start, item.Primary().End, item.Message)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, item)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].File != result[j].File {
			return result[i].File < result[j].File
		}
		return result[i].Primary().Start < result[j].Primary().Start
	})
	return result
}
