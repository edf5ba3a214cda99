package debugger

import (
	"fmt"
	"github.com/viant/linescope/output"
	"io"
)

// Render prints every capture of report, a FILE:LINE (k) header separates multiple hits
func Render(w io.Writer, printer *output.Printer, report *Report) error {
	if report.Probe == nil {
		_, err := fmt.Fprintf(w, "No statement starts at %v\n", report.Location)
		return err
	}
	if len(report.Captures) == 0 {
		_, err := fmt.Fprintf(w, "%v was never hit\n", report.Location)
		return err
	}
	reported := map[string]bool{}
	for i, capture := range report.Captures {
		filtered, missing := capture.Filter(report.Variables)
		for _, name := range missing {
			if reported[name] {
				continue
			}
			reported[name] = true
			if _, err := fmt.Fprintf(w, "Variable %v not available\n", name); err != nil {
				return err
			}
		}
		if len(report.Captures) > 1 {
			if _, err := fmt.Fprintf(w, "%v:%d (%d)\n", report.Location.File, capture.Line, i+1); err != nil {
				return err
			}
		}
		if err := printer.PrintCapture(w, filtered); err != nil {
			return err
		}
	}
	return nil
}
