package shapefile

import (
	"path"
	"strings"
)

// isMacOSXPath returns if p is inside a __MACOSX directory, which macOS adds
// to zip archives for resource forks.
func isMacOSXPath(p string) bool {
	dir, _ := path.Split(p)
	for _, elem := range strings.Split(dir, "/") {
		if elem == "__MACOSX" {
			return true
		}
	}
	return false
}
