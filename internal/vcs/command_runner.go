// SPDX-License-Identifier: MIT
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// ErrEmptyCommand is returned by RunCommand when argv is empty.
var ErrEmptyCommand = errors.New("empty command")

// RunCommand runs argv inside dir, streaming stdout to out. Stderr is copied
// to errOut and also kept for the returned error.
func RunCommand(ctx context.Context, dir string, out, errOut io.Writer, argv []string) error {
	if len(argv) == 0 {
		return ErrEmptyCommand
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if strings.TrimSpace(dir) != "" {
		cmd.Dir = dir
	}
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	var stderr bytes.Buffer
	cmd.Stdout = out
	cmd.Stderr = io.MultiWriter(errOut, &stderr)
	if err := cmd.Run(); err != nil {
		errText := strings.TrimSpace(stderr.String())
		if errText != "" {
			return fmt.Errorf("%s: %s: %w", strings.Join(argv, " "), errText, err)
		}
		return fmt.Errorf("%s: %w", strings.Join(argv, " "), err)
	}
	return nil
}
