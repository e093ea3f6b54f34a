// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

type PhotoUploader interface {
	Log(v ...interface{})
	Upload(bucket string, key string, path string) error
	PhotoStorageId() string
	PhotoPrefix() string
}

// localPhotos lists the photos directly inside dir, skipping any
// file which starts with "." to prevent automatically generated
// files like .DS_Store getting in the way
func localPhotos(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("Failed to read directory %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return FilterPhotos(names), nil
}

// CheckPhotos checks that all the photos in a directory can be
// decoded
func CheckPhotos(ctx context.Context, dir string) error {
	names, err := localPhotos(dir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("No photos found")
	}

	for _, n := range names {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		path := filepath.Join(dir, n)
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("Opening photo %s failed: %w", path, err)
		}
		_, err = imaging.Decode(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("Decoding photo %s failed: %w", path, err)
		}
	}

	return nil
}

// UploadPhotos uploads all of the photos in a directory (except
// those which start with a ".") into conn.PhotoStorageId(), under
// conn.PhotoPrefix()
func UploadPhotos(ctx context.Context, dir string, conn PhotoUploader) error {
	names, err := localPhotos(dir)
	if err != nil {
		return err
	}

	for _, n := range names {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		path := filepath.Join(dir, n)
		key := conn.PhotoPrefix() + n
		conn.Log("Uploading", key)
		err = conn.Upload(conn.PhotoStorageId(), key, path)
		if err != nil {
			return fmt.Errorf("Failed to upload %s: %w", path, err)
		}
	}

	return nil
}
