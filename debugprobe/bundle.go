package debugprobe

import (
	"embed"
	"io/fs"
)

// RuntimeDir is the directory, relative to the instrumented module root, holding the runtime copy.
const RuntimeDir = "linescopeprobe"

// ImportAlias is the name instrumented files use for the runtime import.
const ImportAlias = "_debugprobe"

//go:embed wire.go probe.go encode.go
var sources embed.FS

// Sources returns the runtime files copied into instrumented modules, keyed by file name.
func Sources() (map[string][]byte, error) {
	entries, err := fs.ReadDir(sources, ".")
	if err != nil {
		return nil, err
	}
	result := make(map[string][]byte, len(entries))
	for _, entry := range entries {
		data, err := sources.ReadFile(entry.Name())
		if err != nil {
			return nil, err
		}
		result[entry.Name()] = data
	}
	return result, nil
}
