package model

import (
	"fmt"
	"strings"
)

// splitPath splits a model path at the last separator and the last dot.
// dir keeps its trailing separator and is "./" for bare file names.
func splitPath(path string) (dir, base, ext string, err error) {
	file := path
	dir = "./"
	if sep := strings.LastIndexAny(path, `\/`); sep >= 0 {
		dir = path[:sep+1]
		file = path[sep+1:]
	}

	dot := strings.LastIndex(file, ".")
	if dot < 0 {
		return "", "", "", fmt.Errorf("%w: %q", ErrMissingExtension, path)
	}
	return dir, file[:dot], file[dot:], nil
}
