package debugger

import (
	"fortio.org/safecast"
	"path/filepath"
	"strconv"
	"strings"
)

// Location represents a FILE:LINE target
type Location struct {
	File string
	Line int
}

func (l *Location) String() string {
	return l.File + ":" + strconv.Itoa(l.Line)
}

// ParseLocation parses FILE:LINE, the file is made absolute
func ParseLocation(text string) (*Location, error) {
	index := strings.LastIndex(text, ":")
	if index <= 0 || index == len(text)-1 {
		return nil, invalid("location", text, "expected FILE:LINE", nil)
	}
	value, err := strconv.ParseUint(text[index+1:], 10, 64)
	if err != nil {
		return nil, invalid("location", text, "line is not a number", err)
	}
	line, err := safecast.Conv[int](value)
	if err != nil || line < 1 {
		return nil, invalid("location", text, "line out of range", err)
	}
	file, err := filepath.Abs(text[:index])
	if err != nil {
		return nil, invalid("location", text, "bad file path", err)
	}
	if !strings.HasSuffix(file, ".go") || strings.HasSuffix(file, "_test.go") {
		return nil, invalid("location", text, "expected a non test .go file", nil)
	}
	return &Location{File: file, Line: line}, nil
}
