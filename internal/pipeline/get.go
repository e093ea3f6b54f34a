// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type ResultDownloader interface {
	Download(bucket string, key string, fn string) error
	ListObjects(bucket string, prefix string) ([]string, error)
	Log(v ...interface{})
	ResultStorageId() string
	ResultPrefix() string
}

// DownloadResults downloads the results of a batch into dir. If
// overlays is false only the tables and graph are downloaded.
func DownloadResults(dir string, conn ResultDownloader, overlays bool) error {
	objs, err := conn.ListObjects(conn.ResultStorageId(), conn.ResultPrefix())
	if err != nil {
		return fmt.Errorf("Failed to get list of results: %w", err)
	}
	if len(objs) == 0 {
		return fmt.Errorf("No results found")
	}
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return fmt.Errorf("Failed to create directory %s: %w", dir, err)
	}
	for _, key := range objs {
		base := filepath.Base(key)
		if !overlays && strings.HasSuffix(base, overlaySuffix) {
			continue
		}
		conn.Log("Downloading", key)
		err = conn.Download(conn.ResultStorageId(), key, filepath.Join(dir, base))
		if err != nil {
			return fmt.Errorf("Failed to download file %s: %w", key, err)
		}
	}
	return nil
}

type ResultRemover interface {
	DeleteObjects(bucket string, keys []string) error
	ListObjects(bucket string, prefix string) ([]string, error)
	Log(v ...interface{})
	ResultStorageId() string
	ResultPrefix() string
}

// ClearResults removes any results already in the result storage of
// conn, so that overlays from earlier runs don't linger alongside new
// results. Only the files a batch writes are removed.
func ClearResults(conn ResultRemover) error {
	objs, err := conn.ListObjects(conn.ResultStorageId(), conn.ResultPrefix())
	if err != nil {
		return fmt.Errorf("Failed to get list of results: %w", err)
	}
	var keys []string
	for _, key := range objs {
		if isResult(filepath.Base(key)) {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	conn.Log("Removing", len(keys), "old results")
	err = conn.DeleteObjects(conn.ResultStorageId(), keys)
	if err != nil {
		return fmt.Errorf("Failed to remove old results: %w", err)
	}
	return nil
}

// isResult reports whether a file name is one a batch writes
func isResult(name string) bool {
	switch name {
	case ResultsFile, FailuresFile, SummaryFile, GraphFile:
		return true
	}
	return strings.HasSuffix(name, overlaySuffix)
}
