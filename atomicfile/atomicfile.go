// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package atomicfile contains code related to writing to filesystems
// atomically.
//
// This package should be considered internal; its API is not stable.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// WriteFile writes data to a temporary file next to filename on fs, then
// renames it into filename. The parent directory is created if needed.
// It refuses to replace anything but a regular file.
func WriteFile(fs afero.Fs, filename string, data []byte, perm os.FileMode) (err error) {
	fi, err := fs.Stat(filename)
	if err == nil && !fi.Mode().IsRegular() {
		return fmt.Errorf("%s already exists and is not a regular file", filename)
	}
	dir := filepath.Dir(filename)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := afero.TempFile(fs, dir, filepath.Base(filename)+".tmp")
	if err != nil {
		return err
	}
	tmpName := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			fs.Remove(tmpName)
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	if err := fs.Chmod(tmpName, perm); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return fs.Rename(tmpName, filename)
}
