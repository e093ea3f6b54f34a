// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package canopy

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// LocalConn reads photos from a directory on the local machine, and
// copies results into another. Storage ids are directory paths, and
// keys are paths relative to them.
type LocalConn struct {
	// these should be set before running Init(), or left to defaults
	Dir       string
	ResultDir string
	Logger    *log.Logger
}

// MinimalInit does the bare minimum initialisation
func (a *LocalConn) MinimalInit() error {
	if a.Dir == "" {
		a.Dir = "."
	}
	if a.ResultDir == "" {
		a.ResultDir = filepath.Join(a.Dir, strings.TrimSuffix(resultPrefix, "/"))
	}
	if a.Logger == nil {
		a.Logger = log.New(os.Stdout, "", 0)
	}
	return nil
}

// Init checks that the photo directory exists, and creates the
// result directory if needed
func (a *LocalConn) Init() error {
	err := a.MinimalInit()
	if err != nil {
		return err
	}

	info, err := os.Stat(a.Dir)
	if err != nil {
		return fmt.Errorf("Error opening photo directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("Error opening photo directory: %s is not a directory", a.Dir)
	}

	err = os.MkdirAll(a.ResultDir, 0755)
	if err != nil {
		return fmt.Errorf("Error creating result directory: %w", err)
	}

	return nil
}

func (a *LocalConn) PhotoStorageId() string {
	return a.Dir
}

func (a *LocalConn) PhotoPrefix() string {
	return ""
}

func (a *LocalConn) ResultStorageId() string {
	return a.ResultDir
}

func (a *LocalConn) ResultPrefix() string {
	return ""
}

// ListObjects lists the files in the bucket directory whose names
// start with prefix. Subdirectories are not descended into, and
// dotfiles are skipped.
func (a *LocalConn) ListObjects(bucket string, prefix string) ([]string, error) {
	var names []string
	entries, err := os.ReadDir(bucket)
	if err != nil {
		return names, err
	}
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || strings.HasPrefix(n, ".") || !strings.HasPrefix(n, prefix) {
			continue
		}
		names = append(names, n)
	}
	return names, nil
}

// Download just copies the file from bucket/key to path
func (a *LocalConn) Download(bucket string, key string, path string) error {
	return copyFile(path, filepath.Join(bucket, key))
}

// Upload just copies the file from path to bucket/key
func (a *LocalConn) Upload(bucket string, key string, path string) error {
	dest := filepath.Join(bucket, key)
	err := os.MkdirAll(filepath.Dir(dest), 0755)
	if err != nil {
		return fmt.Errorf("Error creating directory for %s: %w", dest, err)
	}
	return copyFile(dest, path)
}

// DeleteObjects removes the files bucket/key for each key, ignoring
// any which are already gone
func (a *LocalConn) DeleteObjects(bucket string, keys []string) error {
	for _, k := range keys {
		err := os.Remove(filepath.Join(bucket, k))
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func copyFile(dest string, src string) error {
	fin, err := os.Open(src)
	if err != nil {
		return err
	}
	defer fin.Close()

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, fin)
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (a *LocalConn) GetLogger() *log.Logger {
	return a.Logger
}

// Log records an item with the Logger. Arguments are handled
// as with fmt.Println.
func (a *LocalConn) Log(v ...interface{}) {
	a.Logger.Println(v...)
}
