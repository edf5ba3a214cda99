package instrument

import (
	"fmt"
	"sort"
)

// Edit replaces src[Start:End] with Text, an insertion has Start == End
type Edit struct {
	Start int
	End   int
	Text  string
}

// Apply applies non overlapping edits to src
func Apply(src []byte, edits []Edit) ([]byte, error) {
	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	result := make([]byte, 0, len(src)+64*len(edits))
	prev := 0
	for _, edit := range sorted {
		if edit.Start < prev || edit.End < edit.Start || edit.End > len(src) {
			return nil, fmt.Errorf("invalid edit [%d,%d) at %d of %d bytes", edit.Start, edit.End, prev, len(src))
		}
		result = append(result, src[prev:edit.Start]...)
		result = append(result, edit.Text...)
		prev = edit.End
	}
	result = append(result, src[prev:]...)
	return result, nil
}
