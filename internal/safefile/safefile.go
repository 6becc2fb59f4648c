// Package safefile opens and checks files read by pedlog.
package safefile

import (
	"errors"
	"fmt"
	"os"
)

// ErrNotRegularFile is returned for paths that are not regular files
// (directories, FIFOs, devices, sockets; symlinks for OpenRegular).
var ErrNotRegularFile = errors.New("not a regular file")

// OpenRegular opens path for reading after checking, without following
// symlinks, that it is a regular file. The open descriptor is checked again
// to catch a file swapped between the check and the open.
//
// The caller must close the returned file.
func OpenRegular(path string) (*os.File, os.FileInfo, error) {
	linkInfo, err := os.Lstat(path)
	if err != nil {
		return nil, nil, err
	}
	if !linkInfo.Mode().IsRegular() {
		return nil, nil, ErrNotRegularFile
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, ErrNotRegularFile
	}

	return f, info, nil
}

// Check verifies that path exists, is readable and resolves to a regular
// file. Unlike OpenRegular it follows symlinks, since chat logs are commonly
// redirected to another drive. It returns the file info of the target.
func Check(path string) (os.FileInfo, error) {
	// Stat before opening: opening a FIFO for reading would block.
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotRegularFile)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	f.Close()
	return info, nil
}

// StripPath removes the path from an *os.PathError so that messages shown to
// users do not leak file system layout.
func StripPath(err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return fmt.Errorf("%s: %w", pathErr.Op, pathErr.Err)
	}
	return err
}
