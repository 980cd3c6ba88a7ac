package tfs

// splitPath validates an absolute, single-component path and returns
// the name with its leading slash stripped (§4.F). A valid path is
// non-empty, has length > 1, and begins with "/".
func splitPath(path string) (string, error) {
	if len(path) <= 1 || path[0] != '/' {
		return "", newError("path.split", KindInvalidInput, "path must be an absolute single-component name")
	}
	return path[1:], nil
}
