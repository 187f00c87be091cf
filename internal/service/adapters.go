package service

import (
	"context"

	"github.com/quarry-io/quarry/internal/dvc"
	"github.com/quarry-io/quarry/internal/gitrepo"
	"github.com/quarry-io/quarry/internal/model"
)

// gitRunnerAdapter lifts the concrete git runner to the GitRunner interface.
type gitRunnerAdapter struct {
	runner *gitrepo.Runner
}

// NewGitRunner wraps a gitrepo.Runner for use by the service.
func NewGitRunner(runner *gitrepo.Runner) GitRunner {
	return &gitRunnerAdapter{runner: runner}
}

func (a *gitRunnerAdapter) Init(ctx context.Context, dir string) (GitRepo, error) {
	return a.runner.Init(ctx, dir)
}

func (a *gitRunnerAdapter) Clone(ctx context.Context, remoteURL, dir string) (GitRepo, error) {
	return a.runner.Clone(ctx, remoteURL, dir)
}

// dataRunnerAdapter lifts the concrete dvc runner to the DataRunner interface.
type dataRunnerAdapter struct {
	runner *dvc.Runner
}

// NewDataRunner wraps a dvc.Runner for use by the service.
func NewDataRunner(runner *dvc.Runner) DataRunner {
	return &dataRunnerAdapter{runner: runner}
}

func (a *dataRunnerAdapter) Attach(dir string) DataWorkspace {
	return a.runner.Attach(dir)
}

func (a *dataRunnerAdapter) List(ctx context.Context, repoURL, rev, startPath string, recursive bool) ([]model.FileRecord, error) {
	return a.runner.List(ctx, repoURL, rev, startPath, recursive)
}
