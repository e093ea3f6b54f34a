// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package undistort

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Calibrate runs an external camera calibration command, which is
// expected to write a calibration file that LoadCalibration can
// read. Its standard output is returned.
func Calibrate(ctx context.Context, command []string) (string, error) {
	if len(command) == 0 {
		return "", errors.New("No calibration command set")
	}
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	HideCmd(cmd)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		return stdout.String(), fmt.Errorf("Error running calibration %s: %w\nStdout: %s\nStderr: %s", command[0], err, stdout.String(), stderr.String())
	}
	return stdout.String(), nil
}
