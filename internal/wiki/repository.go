package wiki

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cra-hub/cra-sync/pkg/models"
)

// Author is the commit identity configured in every working copy.
type Author struct {
	Name  string
	Email string
}

// Repository is the narrow set of version-control operations the publisher needs.
type Repository interface {
	Clone(ctx context.Context, remote, dir string) error
	// WriteFile writes name below dir and stages it.
	WriteFile(ctx context.Context, dir, name, body string) error
	// Diff reports whether the staged tree differs from HEAD.
	Diff(ctx context.Context, dir string) (bool, error)
	Commit(ctx context.Context, dir, message string, author Author) error
	Push(ctx context.Context, dir string) error
}

var credentialPattern = regexp.MustCompile(`://[^/@\s]+@`)

// GitRepository implements Repository with the git command line tool.
type GitRepository struct {
	binary string
}

// NewGitRepository creates a GitRepository that runs the git binary found in PATH.
func NewGitRepository() *GitRepository {
	return &GitRepository{binary: "git"}
}

// Clone clones remote into dir.
func (g *GitRepository) Clone(ctx context.Context, remote, dir string) error {
	_, err := g.run(ctx, "", "clone", remote, dir)
	return err
}

// WriteFile writes the page file and stages it.
func (g *GitRepository) WriteFile(ctx context.Context, dir, name, body string) error {
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		return models.NewError(models.KindIO, "write "+name, err)
	}
	_, err := g.run(ctx, dir, "add", "--", name)
	return err
}

// Diff runs "git diff --cached --exit-code", which exits 1 when something is staged.
func (g *GitRepository) Diff(ctx context.Context, dir string) (bool, error) {
	_, err := g.run(ctx, dir, "diff", "--cached", "--exit-code", "--quiet")
	if err == nil {
		return false, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, err
}

// Commit configures the author identity of the working copy and commits the staged changes.
func (g *GitRepository) Commit(ctx context.Context, dir, message string, author Author) error {
	if _, err := g.run(ctx, dir, "config", "user.name", author.Name); err != nil {
		return err
	}
	if _, err := g.run(ctx, dir, "config", "user.email", author.Email); err != nil {
		return err
	}
	_, err := g.run(ctx, dir, "commit", "-m", message)
	return err
}

// Push pushes the current branch to origin. HEAD is pushed explicitly so that
// the first commit of an empty wiki has a destination.
func (g *GitRepository) Push(ctx context.Context, dir string) error {
	_, err := g.run(ctx, dir, "push", "origin", "HEAD")
	return err
}

func (g *GitRepository) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, g.binary, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("running git", "args", redact(strings.Join(args, " ")), "dir", dir)

	if err := cmd.Run(); err != nil {
		msg := redact(strings.TrimSpace(stderr.String()))
		if msg == "" {
			return "", models.NewError(models.KindTool, "git "+args[0], err)
		}
		return "", models.NewError(models.KindTool, "git "+args[0], fmt.Errorf("%w: %s", err, msg))
	}
	return stdout.String(), nil
}

// redact removes credentials embedded in remote URLs.
func redact(s string) string {
	return credentialPattern.ReplaceAllString(s, "://***@")
}
