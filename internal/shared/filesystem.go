package shared

import (
	"io/fs"
	"os"
	"path/filepath"
)

// OSFileSystem implements FileSystem using operating system facilities.
type OSFileSystem struct{}

// Stat returns file information for the provided path.
func (OSFileSystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Lstat returns file information without following symbolic links.
func (OSFileSystem) Lstat(path string) (fs.FileInfo, error) {
	return os.Lstat(path)
}

// Abs resolves the absolute representation of the provided path.
func (OSFileSystem) Abs(path string) (string, error) {
	return filepath.Abs(path)
}

// MkdirAll creates the directory path along with any missing parents.
func (OSFileSystem) MkdirAll(path string, permissions fs.FileMode) error {
	return os.MkdirAll(path, permissions)
}

// Symlink creates a symbolic link at linkPath pointing to linkTarget.
func (OSFileSystem) Symlink(linkTarget string, linkPath string) error {
	return os.Symlink(linkTarget, linkPath)
}

// Readlink returns the destination of the named symbolic link.
func (OSFileSystem) Readlink(linkPath string) (string, error) {
	return os.Readlink(linkPath)
}

// EvalSymlinks resolves the path after evaluating any symbolic links.
func (OSFileSystem) EvalSymlinks(path string) (string, error) {
	return filepath.EvalSymlinks(path)
}

// Remove deletes the named file or symbolic link.
func (OSFileSystem) Remove(path string) error {
	return os.Remove(path)
}
