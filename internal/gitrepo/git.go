// Package gitrepo wraps the git CLI for a single working directory.
package gitrepo

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quarry-io/quarry/internal/model"
	"github.com/quarry-io/quarry/internal/qerrors"
	"github.com/quarry-io/quarry/internal/resilience"
)

// Runner creates repository handles. It carries the commit identity written
// into every repository it initializes or clones.
type Runner struct {
	authorName  string
	authorEmail string
	retryer     *resilience.Retryer
	logger      *zap.Logger
}

// NewRunner creates a git runner.
func NewRunner(authorName, authorEmail string, logger *zap.Logger) *Runner {
	if authorName == "" {
		authorName = "quarry"
	}
	if authorEmail == "" {
		authorEmail = "quarry@localhost"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{authorName: authorName, authorEmail: authorEmail, logger: logger}
}

// SetRetryer enables retries on the operations that talk to a remote.
// Local operations never retry.
func (r *Runner) SetRetryer(retryer *resilience.Retryer) {
	r.retryer = retryer
}

// Init initializes a repository with a main branch in dir.
func (r *Runner) Init(ctx context.Context, dir string) (*Repo, error) {
	repo := r.repo(dir)
	if _, err := repo.run(ctx, "init", "-b", "main"); err != nil {
		return nil, err
	}
	if err := repo.configureIdentity(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// Clone clones remoteURL into dir.
func (r *Runner) Clone(ctx context.Context, remoteURL, dir string) (*Repo, error) {
	if err := r.remote(ctx, "git.clone", func(ctx context.Context) error {
		cmd := exec.CommandContext(ctx, "git", "clone", remoteURL, dir)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			os.RemoveAll(dir)
			return classify("git.clone", err, stderr.String())
		}
		return nil
	}); err != nil {
		return nil, err
	}

	repo := r.repo(dir)
	if err := repo.configureIdentity(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// Open returns a handle for an existing repository without touching it.
func (r *Runner) Open(dir string) *Repo {
	return r.repo(dir)
}

func (r *Runner) repo(dir string) *Repo {
	return &Repo{
		dir:         dir,
		authorName:  r.authorName,
		authorEmail: r.authorEmail,
		retryer:     r.retryer,
		logger:      r.logger,
	}
}

func (r *Runner) remote(ctx context.Context, operation string, fn func(context.Context) error) error {
	if r.retryer == nil {
		return fn(ctx)
	}
	return r.retryer.Do(ctx, operation, fn)
}

// Repo operates on one working directory. It is not safe for concurrent use;
// working directories are scoped to a single orchestrator invocation.
type Repo struct {
	dir         string
	authorName  string
	authorEmail string
	retryer     *resilience.Retryer
	logger      *zap.Logger
}

// Dir returns the working directory path.
func (g *Repo) Dir() string {
	return g.dir
}

func (g *Repo) remote(ctx context.Context, operation string, fn func(context.Context) error) error {
	if g.retryer == nil {
		return fn(ctx)
	}
	return g.retryer.Do(ctx, operation, fn)
}

func (g *Repo) configureIdentity(ctx context.Context) error {
	if _, err := g.run(ctx, "config", "user.name", g.authorName); err != nil {
		return err
	}
	_, err := g.run(ctx, "config", "user.email", g.authorEmail)
	return err
}

// AddRemote registers (or re-points) a named remote.
func (g *Repo) AddRemote(ctx context.Context, name, remoteURL string) error {
	if _, err := g.run(ctx, "remote", "get-url", name); err == nil {
		_, err = g.run(ctx, "remote", "set-url", name, remoteURL)
		return err
	}
	_, err := g.run(ctx, "remote", "add", name, remoteURL)
	return err
}

// Add stages the given paths.
func (g *Repo) Add(ctx context.Context, paths ...string) error {
	args := append([]string{"add", "--"}, paths...)
	_, err := g.run(ctx, args...)
	return err
}

// Commit commits the staged changes and returns the new commit hash.
func (g *Repo) Commit(ctx context.Context, message string) (string, error) {
	if _, err := g.run(ctx, "commit", "-m", message); err != nil {
		return "", err
	}
	return g.Head(ctx)
}

// Head returns the current commit hash.
func (g *Repo) Head(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CreateTag creates an annotated tag on the current commit. An existing tag
// of the same name is a conflict, never an overwrite.
func (g *Repo) CreateTag(ctx context.Context, tag, message string) error {
	_, err := g.run(ctx, "tag", "-a", tag, "-m", message)
	if err != nil && strings.Contains(err.Error(), "already exists") {
		return qerrors.Wrapf("git.create_tag", qerrors.KindConflict, err,
			"tag %s already exists", tag)
	}
	return err
}

// RemoteTagExists checks the remote for a tag without fetching.
func (g *Repo) RemoteTagExists(ctx context.Context, remote, tag string) (bool, error) {
	var out string
	err := g.remote(ctx, "git.ls_remote", func(ctx context.Context) error {
		var err error
		out, err = g.run(ctx, "ls-remote", "--tags", remote, "refs/tags/"+tag)
		return err
	})
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// Push pushes a branch to the remote.
func (g *Repo) Push(ctx context.Context, remote, branch string) error {
	err := g.remote(ctx, "git.push", func(ctx context.Context) error {
		_, err := g.run(ctx, "push", remote, branch)
		return err
	})
	if err == nil {
		g.logger.Debug("pushed branch",
			zap.String("remote", remote),
			zap.String("branch", branch),
		)
	}
	return err
}

// PushTag pushes a single tag to the remote.
func (g *Repo) PushTag(ctx context.Context, remote, tag string) error {
	err := g.remote(ctx, "git.push_tag", func(ctx context.Context) error {
		_, err := g.run(ctx, "push", remote, "refs/tags/"+tag)
		return err
	})
	if err != nil && strings.Contains(err.Error(), "already exists") {
		return qerrors.Wrapf("git.push_tag", qerrors.KindConflict, err,
			"tag %s already exists on remote", tag)
	}
	return err
}

// ListTags returns tag names ordered newest first by creation date.
func (g *Repo) ListTags(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "for-each-ref", "refs/tags",
		"--sort=-creatordate", "--format=%(refname:short)")
	if err != nil {
		return nil, err
	}

	tags := make([]string, 0)
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			tags = append(tags, line)
		}
	}
	return tags, nil
}

// History returns up to maxCount most recent commits.
func (g *Repo) History(ctx context.Context, maxCount int) ([]model.CommitInfo, error) {
	if maxCount <= 0 {
		maxCount = 10
	}
	// Unit separator keeps the fields safe against arbitrary messages.
	out, err := g.run(ctx, "log", fmt.Sprintf("--max-count=%d", maxCount),
		"--pretty=format:%H%x1f%an%x1f%aI%x1f%s")
	if err != nil {
		return nil, err
	}

	commits := make([]model.CommitInfo, 0)
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.SplitN(line, "\x1f", 4)
		if len(fields) != 4 {
			continue
		}
		date, err := time.Parse(time.RFC3339, fields[2])
		if err != nil {
			date = time.Time{}
		}
		commits = append(commits, model.CommitInfo{
			Hash:    fields[0],
			Author:  fields[1],
			Date:    date,
			Message: fields[3],
		})
	}
	return commits, nil
}

func (g *Repo) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", classify("git."+args[0], err, stderr.String())
	}
	return stdout.String(), nil
}

// classify maps a git failure onto an error kind. Network-flavored failures
// are transient so the retry layer picks them up.
func classify(op string, err error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	msg := strings.ToLower(stderr)

	kind := qerrors.KindInternal
	switch {
	case strings.Contains(msg, "could not resolve host"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "timed out"),
		strings.Contains(msg, "early eof"),
		strings.Contains(msg, "the remote end hung up"):
		kind = qerrors.KindTransient
	case strings.Contains(msg, "already exists"):
		kind = qerrors.KindConflict
	}

	if stderr != "" {
		return qerrors.Wrapf(op, kind, err, "%s", stderr)
	}
	return qerrors.Wrap(op, kind, err)
}
