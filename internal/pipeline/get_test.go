// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func Test_DownloadResults(t *testing.T) {
	var slog StrLog
	conn := newConn(t, photoDir(t), &slog)

	_, err := Run(context.Background(), conn, testConfig(t, true), Options{})
	if err != nil {
		t.Fatalf("Run failed: %v\nLog: %s", err, slog.log)
	}

	cases := []struct {
		name     string
		overlays bool
	}{
		{"tables", false},
		{"all", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "results")
			err := DownloadResults(dir, conn, c.overlays)
			if err != nil {
				t.Fatalf("Download failed: %v\nLog: %s", err, slog.log)
			}
			for _, f := range []string{ResultsFile, FailuresFile, SummaryFile, GraphFile} {
				_, err = os.Stat(filepath.Join(dir, f))
				if err != nil {
					t.Fatalf("Expected %s to be downloaded: %v", f, err)
				}
			}
			_, err = os.Stat(filepath.Join(dir, "a_overlay.png"))
			if c.overlays && err != nil {
				t.Fatalf("Expected overlay to be downloaded: %v", err)
			}
			if !c.overlays && err == nil {
				t.Fatalf("Expected overlay not to be downloaded")
			}
		})
	}

	empty := newConn(t, t.TempDir(), &slog)
	err = DownloadResults(t.TempDir(), empty, false)
	if err == nil {
		t.Fatalf("Expected an error with no results")
	}
}

func Test_ClearResults(t *testing.T) {
	var slog StrLog
	conn := newConn(t, photoDir(t), &slog)

	_, err := Run(context.Background(), conn, testConfig(t, true), Options{})
	if err != nil {
		t.Fatalf("Run failed: %v\nLog: %s", err, slog.log)
	}
	other := filepath.Join(conn.ResultStorageId(), "notes.txt")
	err = os.WriteFile(other, []byte("keep me"), 0644)
	if err != nil {
		t.Fatalf("Could not write %s: %v", other, err)
	}

	err = ClearResults(conn)
	if err != nil {
		t.Fatalf("ClearResults failed: %v\nLog: %s", err, slog.log)
	}
	left, err := conn.ListObjects(conn.ResultStorageId(), conn.ResultPrefix())
	if err != nil {
		t.Fatalf("Could not list results: %v", err)
	}
	if len(left) != 1 || left[0] != "notes.txt" {
		t.Fatalf("Expected only notes.txt to be left, got %v", left)
	}

	err = ClearResults(conn)
	if err != nil {
		t.Fatalf("ClearResults with nothing to remove failed: %v", err)
	}
}
