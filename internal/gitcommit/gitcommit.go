// Package gitcommit records database updates in the surrounding git repository.
package gitcommit

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fairyhunter13/glass-catalog-updater/internal/obs"
)

// Message is the commit subject for a run.
func Message(added, updated, discontinued int) string {
	return fmt.Sprintf("Update glass database: %d new, %d updated, %d discontinued", added, updated, discontinued)
}

// Committer runs git in Dir.
type Committer struct {
	Dir string
	// Git is the binary, "git" when empty.
	Git string
}

func (c Committer) run(ctx context.Context, args ...string) (string, error) {
	bin := c.Git
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = c.Dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.String(), fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(out.String()))
	}
	return out.String(), nil
}

// Commit stages paths and commits them with msg. Relative paths are taken
// from the working directory of the process, not from Dir.
func (c Committer) Commit(ctx context.Context, msg string, paths ...string) error {
	if _, err := c.run(ctx, "rev-parse", "--is-inside-work-tree"); err != nil {
		return err
	}
	add := []string{"add", "--"}
	for _, p := range paths {
		if c.Dir != "" {
			rel, err := relTo(c.Dir, p)
			if err != nil {
				return fmt.Errorf("git add %s: %w", p, err)
			}
			p = rel
		}
		add = append(add, p)
	}
	if _, err := c.run(ctx, add...); err != nil {
		return err
	}
	if _, err := c.run(ctx, "commit", "-m", msg); err != nil {
		return err
	}
	obs.Logger.Info("git_committed", "message", msg, "paths", paths)
	return nil
}

func relTo(dir, p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	return filepath.Rel(absDir, abs)
}
