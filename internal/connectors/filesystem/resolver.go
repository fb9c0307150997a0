package filesystem

import (
	"path/filepath"
	"strings"
)

// ResolvePath converts a source location to a local path for opening.
// Handles file:// URIs, a leading ~/ and bare paths.
func ResolvePath(location string, home string) string {
	location = strings.TrimSpace(location)
	location = strings.TrimPrefix(location, "file://")
	if home != "" && (location == "~" || strings.HasPrefix(location, "~/")) {
		location = filepath.Join(home, strings.TrimPrefix(location, "~"))
	}
	return location
}
