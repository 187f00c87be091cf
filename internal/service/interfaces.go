// Package service implements the dataset orchestration pipelines on top of
// the hosting API, git, dvc and the registry.
package service

import (
	"context"

	"github.com/quarry-io/quarry/internal/model"
)

// HostingProvider is the subset of the hosting client the service uses.
type HostingProvider interface {
	GetOrg(ctx context.Context, name string) (*model.Org, error)
	CreateOrg(ctx context.Context, name string) (*model.Org, error)
	GetRepo(ctx context.Context, org, name string) (*model.Repo, error)
	CreateRepo(ctx context.Context, org, name string) (*model.Repo, error)
	DeleteRepo(ctx context.Context, org, name string) error
	AuthenticatedCloneURL(cloneURL string) string
}

// GitRunner creates and opens local git repositories.
type GitRunner interface {
	Init(ctx context.Context, dir string) (GitRepo, error)
	Clone(ctx context.Context, remoteURL, dir string) (GitRepo, error)
}

// GitRepo is one local working copy.
type GitRepo interface {
	Dir() string
	AddRemote(ctx context.Context, name, remoteURL string) error
	Add(ctx context.Context, paths ...string) error
	Commit(ctx context.Context, message string) (string, error)
	CreateTag(ctx context.Context, tag, message string) error
	RemoteTagExists(ctx context.Context, remote, tag string) (bool, error)
	Push(ctx context.Context, remote, branch string) error
	PushTag(ctx context.Context, remote, tag string) error
	ListTags(ctx context.Context) ([]string, error)
	History(ctx context.Context, maxCount int) ([]model.CommitInfo, error)
}

// DataRunner drives dvc against local workspaces and remote repositories.
type DataRunner interface {
	Attach(dir string) DataWorkspace
	List(ctx context.Context, repoURL, rev, startPath string, recursive bool) ([]model.FileRecord, error)
}

// DataWorkspace is a dvc workspace rooted at a working copy.
type DataWorkspace interface {
	Init(ctx context.Context) error
	ConfigureRemote(ctx context.Context, remoteURL string) error
	Track(ctx context.Context, target string) error
	Push(ctx context.Context) error
}

// Downloader fetches one remote file reference to a local path.
type Downloader interface {
	Fetch(ctx context.Context, ref model.FileReference, destPath string) error
}
