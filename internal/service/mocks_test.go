package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/quarry-io/quarry/internal/model"
)

// MockHostingProvider is a mock implementation of HostingProvider
type MockHostingProvider struct {
	mock.Mock
}

func (m *MockHostingProvider) GetOrg(ctx context.Context, name string) (*model.Org, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Org), args.Error(1)
}

func (m *MockHostingProvider) CreateOrg(ctx context.Context, name string) (*model.Org, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Org), args.Error(1)
}

func (m *MockHostingProvider) GetRepo(ctx context.Context, org, name string) (*model.Repo, error) {
	args := m.Called(ctx, org, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Repo), args.Error(1)
}

func (m *MockHostingProvider) CreateRepo(ctx context.Context, org, name string) (*model.Repo, error) {
	args := m.Called(ctx, org, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Repo), args.Error(1)
}

func (m *MockHostingProvider) DeleteRepo(ctx context.Context, org, name string) error {
	args := m.Called(ctx, org, name)
	return args.Error(0)
}

func (m *MockHostingProvider) AuthenticatedCloneURL(cloneURL string) string {
	args := m.Called(cloneURL)
	return args.String(0)
}

// MockGitRunner is a mock implementation of GitRunner
type MockGitRunner struct {
	mock.Mock
}

func (m *MockGitRunner) Init(ctx context.Context, dir string) (GitRepo, error) {
	args := m.Called(ctx, dir)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(GitRepo), args.Error(1)
}

func (m *MockGitRunner) Clone(ctx context.Context, remoteURL, dir string) (GitRepo, error) {
	args := m.Called(ctx, remoteURL, dir)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(GitRepo), args.Error(1)
}

// MockGitRepo is a mock implementation of GitRepo
type MockGitRepo struct {
	mock.Mock

	dir string
}

func (m *MockGitRepo) Dir() string {
	return m.dir
}

func (m *MockGitRepo) AddRemote(ctx context.Context, name, remoteURL string) error {
	args := m.Called(ctx, name, remoteURL)
	return args.Error(0)
}

func (m *MockGitRepo) Add(ctx context.Context, paths ...string) error {
	args := m.Called(ctx, paths)
	return args.Error(0)
}

func (m *MockGitRepo) Commit(ctx context.Context, message string) (string, error) {
	args := m.Called(ctx, message)
	return args.String(0), args.Error(1)
}

func (m *MockGitRepo) CreateTag(ctx context.Context, tag, message string) error {
	args := m.Called(ctx, tag, message)
	return args.Error(0)
}

func (m *MockGitRepo) RemoteTagExists(ctx context.Context, remote, tag string) (bool, error) {
	args := m.Called(ctx, remote, tag)
	return args.Bool(0), args.Error(1)
}

func (m *MockGitRepo) Push(ctx context.Context, remote, branch string) error {
	args := m.Called(ctx, remote, branch)
	return args.Error(0)
}

func (m *MockGitRepo) PushTag(ctx context.Context, remote, tag string) error {
	args := m.Called(ctx, remote, tag)
	return args.Error(0)
}

func (m *MockGitRepo) ListTags(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGitRepo) History(ctx context.Context, maxCount int) ([]model.CommitInfo, error) {
	args := m.Called(ctx, maxCount)
	return args.Get(0).([]model.CommitInfo), args.Error(1)
}

// MockDataRunner is a mock implementation of DataRunner
type MockDataRunner struct {
	mock.Mock
}

func (m *MockDataRunner) Attach(dir string) DataWorkspace {
	args := m.Called(dir)
	return args.Get(0).(DataWorkspace)
}

func (m *MockDataRunner) List(ctx context.Context, repoURL, rev, startPath string, recursive bool) ([]model.FileRecord, error) {
	args := m.Called(ctx, repoURL, rev, startPath, recursive)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FileRecord), args.Error(1)
}

// MockDataWorkspace is a mock implementation of DataWorkspace
type MockDataWorkspace struct {
	mock.Mock
}

func (m *MockDataWorkspace) Init(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDataWorkspace) ConfigureRemote(ctx context.Context, remoteURL string) error {
	args := m.Called(ctx, remoteURL)
	return args.Error(0)
}

func (m *MockDataWorkspace) Track(ctx context.Context, target string) error {
	args := m.Called(ctx, target)
	return args.Error(0)
}

func (m *MockDataWorkspace) Push(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockDownloader is a mock implementation of Downloader
type MockDownloader struct {
	mock.Mock
}

func (m *MockDownloader) Fetch(ctx context.Context, ref model.FileReference, destPath string) error {
	args := m.Called(ctx, ref, destPath)
	return args.Error(0)
}
