// Copyright 2015 Dorival Pedroso and Raul Durand. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package topo

import (
	"fmt"
	goio "io"
	"os"
	"path/filepath"
)

// File is an open checkpoint file
type File interface {
	goio.ReaderAt
	goio.WriterAt
	goio.Closer
	Sync() error
}

// FileBackend performs the file operations needed by the restart manager
type FileBackend interface {
	Exists(path string) bool              // file exists
	Size(path string) (int64, error)      // file size in bytes
	Create(path string) (File, error)     // create or truncate file for writing
	OpenWrite(path string) (File, error)  // open existing file for writing
	Open(path string) (File, error)       // open existing file for reading
	Rename(oldpath, newpath string) error // atomically replace newpath with oldpath
	Remove(path string) error             // remove file; no error if missing
	MkdirAll(dir string) error            // create directory and parents
}

// OSBackend implements FileBackend with the local file system
type OSBackend struct{}

func (o OSBackend) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (o OSBackend) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (o OSBackend) Create(path string) (File, error) {
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
}

func (o OSBackend) OpenWrite(path string) (File, error) {
	return os.OpenFile(path, os.O_WRONLY, 0644)
}

func (o OSBackend) Open(path string) (File, error) {
	return os.Open(path)
}

// Rename renames the file and syncs the directory so the new name survives a crash
func (o OSBackend) Rename(oldpath, newpath string) error {
	if err := os.Rename(oldpath, newpath); err != nil {
		return err
	}
	return syncDir(filepath.Dir(newpath))
}

func (o OSBackend) Remove(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (o OSBackend) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0777)
}

// syncDir syncs a directory to make a rename durable
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open dir for sync: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync dir: %w", err)
	}
	return nil
}
