package apperr

import "os"

// ScopedTempDir is a directory created for the lifetime of a single
// task (an archive extraction, a subprocess invocation's working
// area) and guaranteed to be recursively removed on every exit path.
type ScopedTempDir struct {
	Path string
}

// NewScopedTempDir creates a temp directory under the OS default
// location (or dir, if non-empty) named with the given prefix.
func NewScopedTempDir(dir, prefix string) (*ScopedTempDir, error) {
	path, err := os.MkdirTemp(dir, prefix)
	if err != nil {
		return nil, Wrap(IoFailure, "create scoped temp directory", err)
	}
	return &ScopedTempDir{Path: path}, nil
}

// Close recursively deletes the temp directory. It is safe to call
// more than once.
func (s *ScopedTempDir) Close() error {
	if s == nil || s.Path == "" {
		return nil
	}
	err := os.RemoveAll(s.Path)
	s.Path = ""
	if err != nil {
		return Wrap(IoFailure, "remove scoped temp directory", err)
	}
	return nil
}
