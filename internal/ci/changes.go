// Package ci provides helpers for the scheduled data-refresh workflow.
package ci

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrNoChanges is returned by AnyChanged when no watched file differs from HEAD.
var ErrNoChanges = eris.New("ci: no changes")

// HasChanges reports whether path differs from the committed HEAD version in
// repoDir. Untracked files count as changed; a missing file does not.
func HasChanges(ctx context.Context, repoDir, path string) (bool, error) {
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(repoDir, path)
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, eris.Wrapf(err, "ci: stat %s", path)
	}

	cmd := exec.CommandContext(ctx, "git", "diff", "--quiet", "HEAD", "--", path)
	cmd.Dir = repoDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err == nil {
		return untracked(ctx, repoDir, path)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, eris.Wrapf(err, "ci: git diff %s: %s", path, strings.TrimSpace(stderr.String()))
}

func untracked(ctx context.Context, repoDir, path string) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--others", "--exclude-standard", "--", path)
	cmd.Dir = repoDir
	out, err := cmd.Output()
	if err != nil {
		return false, eris.Wrapf(err, "ci: git ls-files %s", path)
	}
	return len(bytes.TrimSpace(out)) > 0, nil
}

// AnyChanged checks each path and returns ErrNoChanges when none changed.
func AnyChanged(ctx context.Context, repoDir string, paths []string) error {
	for _, p := range paths {
		changed, err := HasChanges(ctx, repoDir, p)
		if err != nil {
			return err
		}
		if changed {
			zap.L().Info("ci: change detected", zap.String("path", p))
			return nil
		}
	}
	return ErrNoChanges
}
