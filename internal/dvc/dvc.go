// Package dvc wraps the dvc CLI: remote configuration and content tracking
// for a working directory, plus version-scoped listings of tracked files.
package dvc

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/quarry-io/quarry/internal/model"
	"github.com/quarry-io/quarry/internal/qerrors"
	"github.com/quarry-io/quarry/internal/resilience"
)

// RemoteName is the name under which the object-storage remote is
// registered in every dataset repository.
const RemoteName = "s3_storage"

// S3Config holds the object-storage credentials written into each
// repository's versioning configuration.
type S3Config struct {
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
}

// Runner executes dvc commands.
type Runner struct {
	s3      S3Config
	retryer *resilience.Retryer
	logger  *zap.Logger
}

// NewRunner creates a dvc runner.
func NewRunner(s3 S3Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{s3: s3, logger: logger}
}

// SetRetryer enables retries on the operations that talk to a remote
// (listing and push). Local operations never retry.
func (r *Runner) SetRetryer(retryer *resilience.Retryer) {
	r.retryer = retryer
}

// Attach returns a workspace handle for dir.
func (r *Runner) Attach(dir string) *Workspace {
	return &Workspace{dir: dir, s3: r.s3, retryer: r.retryer, logger: r.logger}
}

// listEntry is one record of `dvc ls --json` output.
type listEntry struct {
	Path  string `json:"path"`
	IsDir bool   `json:"isdir"`
	Size  int64  `json:"size"`
	MD5   string `json:"md5"`
}

// List returns the flat listing of tracked files for one revision of a
// remote repository, without a full checkout. Paths in the result are
// absolute under the listing root.
func (r *Runner) List(ctx context.Context, repoURL, rev, startPath string, recursive bool) ([]model.FileRecord, error) {
	args := []string{"ls", "--json", "--rev", rev, repoURL}
	if recursive {
		args = append(args, "-R")
	}
	start := strings.Trim(startPath, "/")
	if start != "" {
		args = append(args, start)
	}

	var out string
	err := remote(ctx, r.retryer, "dvc.ls", func(ctx context.Context) error {
		var err error
		out, err = runCommand(ctx, "dvc.ls", "", args...)
		return err
	})
	if err != nil {
		return nil, err
	}

	var entries []listEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		return nil, qerrors.Wrapf("dvc.ls", qerrors.KindInternal, err, "cannot decode listing")
	}

	records := make([]model.FileRecord, 0, len(entries))
	for _, e := range entries {
		rec := model.FileRecord{
			Path: "/" + path.Join(start, e.Path),
			Type: model.EntryFile,
		}
		if e.IsDir {
			rec.Type = model.EntryDirectory
		} else {
			rec.Size = e.Size
			rec.Checksum = e.MD5
		}
		records = append(records, rec)
	}
	return records, nil
}

// Workspace operates on one working directory.
type Workspace struct {
	dir     string
	s3      S3Config
	retryer *resilience.Retryer
	logger  *zap.Logger
}

// Init initializes dvc in the working directory without SCM integration;
// the caller commits the generated metadata files through git itself.
func (w *Workspace) Init(ctx context.Context) error {
	_, err := runCommand(ctx, "dvc.init", w.dir, "init", "--no-scm")
	return err
}

// ConfigureRemote points the default remote at the object-storage URL and
// writes endpoint plus credentials into the repository configuration.
func (w *Workspace) ConfigureRemote(ctx context.Context, remoteURL string) error {
	steps := [][]string{
		{"remote", "add", "-d", "-f", RemoteName, remoteURL},
		{"remote", "modify", RemoteName, "endpointurl", w.s3.EndpointURL},
		{"remote", "modify", RemoteName, "access_key_id", w.s3.AccessKeyID},
		{"remote", "modify", RemoteName, "secret_access_key", w.s3.SecretAccessKey},
	}
	for _, args := range steps {
		if _, err := runCommand(ctx, "dvc.remote", w.dir, args...); err != nil {
			return err
		}
	}

	w.logger.Debug("configured dvc remote",
		zap.String("dir", w.dir),
		zap.String("url", remoteURL),
	)
	return nil
}

// Track registers a path as dvc-tracked content, producing the pointer
// metadata file committed to git in place of the raw data.
func (w *Workspace) Track(ctx context.Context, target string) error {
	_, err := runCommand(ctx, "dvc.add", w.dir, "add", target)
	return err
}

// Push uploads tracked content to the configured remote.
func (w *Workspace) Push(ctx context.Context) error {
	return remote(ctx, w.retryer, "dvc.push", func(ctx context.Context) error {
		_, err := runCommand(ctx, "dvc.push", w.dir, "push")
		return err
	})
}

func remote(ctx context.Context, retryer *resilience.Retryer, operation string, fn func(context.Context) error) error {
	if retryer == nil {
		return fn(ctx)
	}
	return retryer.Do(ctx, operation, fn)
}

// runCommand is swapped in tests.
var runCommand = func(ctx context.Context, op, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "dvc", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", classify(op, err, stderr.String())
	}
	return stdout.String(), nil
}

func classify(op string, err error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	msg := strings.ToLower(stderr)

	kind := qerrors.KindInternal
	switch {
	case strings.Contains(msg, "connection"),
		strings.Contains(msg, "timed out"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "temporarily unavailable"):
		kind = qerrors.KindTransient
	}

	if stderr != "" {
		return qerrors.Wrapf(op, kind, err, "%s", stderr)
	}
	return qerrors.Wrap(op, kind, err)
}
