package output

import (
	"github.com/viant/linescope/debugprobe"
	"strings"
)

// Clean keeps probe records only, with their record prefix removed and text records unescaped.
func Clean(lines []string) []string {
	result := make([]string, 0, len(lines))
	logPrefix := strings.TrimSuffix(debugprobe.LogPrefix, " ")
	dataPrefix := strings.TrimSuffix(debugprobe.DataPrefix, " ")
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case strings.HasPrefix(line, debugprobe.LogPrefix):
			result = append(result, debugprobe.UnescapeText(line[len(debugprobe.LogPrefix):]))
		case line == logPrefix:
			result = append(result, "")
		case strings.HasPrefix(line, debugprobe.DataPrefix):
			result = append(result, line[len(debugprobe.DataPrefix):])
		case line == dataPrefix:
			result = append(result, "")
		}
	}
	return result
}
