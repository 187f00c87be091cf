package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarry-io/quarry/internal/archive"
	"github.com/quarry-io/quarry/internal/filetree"
	"github.com/quarry-io/quarry/internal/metrics"
	"github.com/quarry-io/quarry/internal/model"
	"github.com/quarry-io/quarry/internal/qerrors"
	"github.com/quarry-io/quarry/internal/store"
	"github.com/quarry-io/quarry/internal/workerpool"
)

const (
	// dataDirName is the dvc-tracked payload directory inside every dataset
	// repository. All version content lives under it.
	dataDirName = "data"

	// sentinelFile keeps the payload directory present in git even when a
	// version carries no files.
	sentinelFile = ".gitkeep"

	defaultBranch = "main"
	firstTag      = "v1"
)

// Config holds the service-level settings.
type Config struct {
	// RemoteURLBase is the S3-compatible prefix under which each dataset gets
	// its own dvc remote, e.g. "s3://quarry-data".
	RemoteURLBase  string
	IdempotencyTTL time.Duration
	CacheTTL       time.Duration
}

// DatasetService orchestrates dataset lifecycle operations across the
// hosting API, git, dvc, the download pool and the registry.
type DatasetService struct {
	cfg         Config
	registry    store.DatasetStore
	idempotency store.IdempotencyStore
	cache       store.Cache
	hosting     HostingProvider
	git         GitRunner
	data        DataRunner
	ingester    *archive.Ingester
	downloader  Downloader
	pool        *workerpool.Pool
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// Deps bundles the service dependencies.
type Deps struct {
	Registry    store.DatasetStore
	Idempotency store.IdempotencyStore
	Cache       store.Cache
	Hosting     HostingProvider
	Git         GitRunner
	Data        DataRunner
	Ingester    *archive.Ingester
	Downloader  Downloader
	Pool        *workerpool.Pool
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

// NewDatasetService creates the orchestrator.
func NewDatasetService(cfg Config, deps Deps) *DatasetService {
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return &DatasetService{
		cfg:         cfg,
		registry:    deps.Registry,
		idempotency: deps.Idempotency,
		cache:       deps.Cache,
		hosting:     deps.Hosting,
		git:         deps.Git,
		data:        deps.Data,
		ingester:    deps.Ingester,
		downloader:  deps.Downloader,
		pool:        deps.Pool,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
	}
}

// InitializeRequest describes a dataset to create. ID is optional; one is
// generated when the caller does not supply it.
type InitializeRequest struct {
	ID          string
	Name        string
	Tenant      string
	ArchivePath string
	Message     string
}

// CreateVersionRequest describes a new version of an existing dataset.
type CreateVersionRequest struct {
	DatasetID string
	Tag       string
	Message   string
	Files     []model.FileReference
}

// InitializeDataset provisions the organization and repository on the
// hosting service, seeds the payload directory, wires dvc to the data
// remote, and publishes the first tagged version. Redelivered requests for
// the same tenant and name return the originally created dataset.
func (s *DatasetService) InitializeDataset(ctx context.Context, req InitializeRequest) (*model.Dataset, error) {
	op := "service.InitializeDataset"
	defer s.observe(op, req.Tenant, time.Now())

	if req.Name == "" || req.Tenant == "" {
		return nil, s.fail(op, qerrors.New(op, qerrors.KindInvalid, "dataset name and tenant are required"))
	}

	idemKey := initKey(req.Tenant, req.Name)
	if cached, err := s.idempotency.Get(ctx, idemKey); err == nil {
		var dataset model.Dataset
		if err := json.Unmarshal(cached, &dataset); err == nil {
			s.logger.Info("initialize replayed from idempotency store",
				zap.String("tenant", req.Tenant),
				zap.String("name", req.Name))
			return &dataset, nil
		}
	}

	datasetID := req.ID
	if datasetID == "" {
		datasetID = uuid.NewString()
	}

	if _, err := s.hosting.CreateOrg(ctx, req.Tenant); err != nil {
		return nil, s.fail(op, err)
	}

	// Get-or-create: a repo left behind by an earlier partial run is reused,
	// so re-invocation after a failed push is cheap and safe.
	repo, err := s.hosting.GetRepo(ctx, req.Tenant, req.Name)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if repo == nil {
		repo, err = s.hosting.CreateRepo(ctx, req.Tenant, req.Name)
		if err != nil {
			return nil, s.fail(op, err)
		}
	} else {
		s.logger.Info("reusing existing hosting repository",
			zap.String("tenant", req.Tenant),
			zap.String("name", req.Name))
	}

	workdir, err := os.MkdirTemp("", "quarry-init-*")
	if err != nil {
		return nil, s.fail(op, qerrors.Wrapf(op, qerrors.KindInternal, err, "cannot create workspace"))
	}
	defer os.RemoveAll(workdir)

	local, err := s.git.Init(ctx, workdir)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if err := local.AddRemote(ctx, "origin", s.hosting.AuthenticatedCloneURL(repo.CloneURL)); err != nil {
		return nil, s.fail(op, err)
	}

	dataDir := filepath.Join(workdir, dataDirName)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, s.fail(op, qerrors.Wrapf(op, qerrors.KindInternal, err, "cannot create payload directory"))
	}
	if req.ArchivePath != "" {
		if err := s.ingester.Extract(req.ArchivePath, dataDir); err != nil {
			return nil, s.fail(op, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dataDir, sentinelFile), nil, 0o644); err != nil {
		return nil, s.fail(op, qerrors.Wrapf(op, qerrors.KindInternal, err, "cannot write sentinel"))
	}

	fileCount, totalSize, err := archive.DirectoryStats(dataDir, sentinelFile)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if err := writeReadme(workdir, datasetID, req.Tenant, req.Name, fileCount, totalSize); err != nil {
		return nil, s.fail(op, err)
	}

	remoteURL := s.remoteURL(datasetID)
	ws := s.data.Attach(workdir)
	if err := ws.Init(ctx); err != nil {
		return nil, s.fail(op, err)
	}
	if err := ws.ConfigureRemote(ctx, remoteURL); err != nil {
		return nil, s.fail(op, err)
	}
	if err := ws.Track(ctx, dataDirName); err != nil {
		return nil, s.fail(op, err)
	}

	if err := local.Add(ctx, "."); err != nil {
		return nil, s.fail(op, err)
	}
	message := req.Message
	if message == "" {
		message = fmt.Sprintf("initialize dataset %s", req.Name)
	}
	commitHash, err := local.Commit(ctx, message)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if err := local.CreateTag(ctx, firstTag, message); err != nil {
		return nil, s.fail(op, err)
	}

	// Data goes to the remote before the metadata that references it.
	if err := ws.Push(ctx); err != nil {
		return nil, s.fail(op, err)
	}
	if err := local.Push(ctx, "origin", defaultBranch); err != nil {
		return nil, s.fail(op, err)
	}
	if err := local.PushTag(ctx, "origin", firstTag); err != nil {
		return nil, s.fail(op, err)
	}

	now := time.Now().UTC()
	dataset := &model.Dataset{
		ID:        datasetID,
		Name:      req.Name,
		Tenant:    req.Tenant,
		RepoURL:   repo.CloneURL,
		RemoteURL: remoteURL,
		FileCount: fileCount,
		TotalSize: totalSize,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.registry.CreateDataset(ctx, dataset); err != nil {
		return nil, s.fail(op, err)
	}
	if err := s.registry.RecordVersion(ctx, &model.Version{
		ID:         uuid.NewString(),
		DatasetID:  dataset.ID,
		Tag:        firstTag,
		CommitHash: commitHash,
		FileCount:  fileCount,
		TotalSize:  totalSize,
		Message:    message,
		CreatedAt:  now,
	}); err != nil {
		return nil, s.fail(op, err)
	}

	if encoded, err := json.Marshal(dataset); err == nil {
		if err := s.idempotency.Set(ctx, idemKey, encoded, s.cfg.IdempotencyTTL); err != nil {
			s.logger.Warn("failed to record idempotency key", zap.Error(err))
		}
	}

	s.logger.Info("dataset initialized",
		zap.String("dataset_id", dataset.ID),
		zap.String("tenant", req.Tenant),
		zap.String("name", req.Name),
		zap.Int("files", fileCount),
		zap.Int64("bytes", totalSize))
	return dataset, nil
}

// CreateVersion materializes the given file references into a fresh clone of
// the dataset repository and publishes them as a new tagged version. The tag
// is checked against the remote before any push, so a duplicate tag fails
// without publishing anything. Individual download failures are skipped.
func (s *DatasetService) CreateVersion(ctx context.Context, req CreateVersionRequest) (*model.Version, error) {
	op := "service.CreateVersion"

	if req.Tag == "" {
		return nil, s.fail(op, qerrors.New(op, qerrors.KindInvalid, "version tag is required"))
	}

	dataset, err := s.getDataset(ctx, op, req.DatasetID)
	if err != nil {
		return nil, err
	}
	defer s.observe(op, dataset.Tenant, time.Now())

	workdir, err := os.MkdirTemp("", "quarry-version-*")
	if err != nil {
		return nil, s.fail(op, qerrors.Wrapf(op, qerrors.KindInternal, err, "cannot create workspace"))
	}
	defer os.RemoveAll(workdir)

	local, err := s.git.Clone(ctx, s.hosting.AuthenticatedCloneURL(dataset.RepoURL), workdir)
	if err != nil {
		return nil, s.fail(op, err)
	}

	exists, err := local.RemoteTagExists(ctx, "origin", req.Tag)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if exists {
		return nil, s.fail(op, qerrors.New(op, qerrors.KindConflict,
			"version %s already exists", req.Tag))
	}

	dataDir := filepath.Join(workdir, dataDirName)
	if err := resetPayloadDir(dataDir); err != nil {
		return nil, s.fail(op, err)
	}

	downloaded, err := s.hydrate(ctx, dataDir, req.Files)
	if err != nil {
		return nil, s.fail(op, err)
	}

	ws := s.data.Attach(workdir)
	if err := ws.ConfigureRemote(ctx, dataset.RemoteURL); err != nil {
		return nil, s.fail(op, err)
	}
	if err := ws.Track(ctx, dataDirName); err != nil {
		return nil, s.fail(op, err)
	}

	if err := local.Add(ctx, "."); err != nil {
		return nil, s.fail(op, err)
	}
	message := req.Message
	if message == "" {
		message = fmt.Sprintf("version %s", req.Tag)
	}
	commitHash, err := local.Commit(ctx, message)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if err := local.CreateTag(ctx, req.Tag, message); err != nil {
		return nil, s.fail(op, err)
	}

	if err := ws.Push(ctx); err != nil {
		return nil, s.fail(op, err)
	}
	if err := local.Push(ctx, "origin", defaultBranch); err != nil {
		return nil, s.fail(op, err)
	}
	if err := local.PushTag(ctx, "origin", req.Tag); err != nil {
		return nil, s.fail(op, err)
	}

	fileCount, totalSize, err := archive.DirectoryStats(dataDir, sentinelFile)
	if err != nil {
		return nil, s.fail(op, err)
	}

	version := &model.Version{
		ID:         uuid.NewString(),
		DatasetID:  dataset.ID,
		Tag:        req.Tag,
		CommitHash: commitHash,
		FileCount:  fileCount,
		TotalSize:  totalSize,
		Message:    message,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.registry.RecordVersion(ctx, version); err != nil {
		return nil, s.fail(op, err)
	}

	s.logger.Info("version created",
		zap.String("dataset_id", dataset.ID),
		zap.String("tag", req.Tag),
		zap.Int("requested", len(req.Files)),
		zap.Int("downloaded", downloaded))
	return version, nil
}

// hydrate downloads the file references into dataDir through the worker
// pool. Failed downloads are logged and skipped; only a batch where every
// reference fails is an error.
func (s *DatasetService) hydrate(ctx context.Context, dataDir string, refs []model.FileReference) (int, error) {
	op := "service.hydrate"
	if len(refs) == 0 {
		return 0, nil
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for _, ref := range refs {
		destPath, err := payloadPath(dataDir, ref.Name)
		if err != nil {
			wg.Wait()
			return 0, err
		}

		wg.Add(1)
		ref := ref
		task := workerpool.Task{
			ID:      ref.Name,
			Context: ctx,
			Fn: func(taskCtx context.Context) error {
				defer wg.Done()
				if err := s.downloader.Fetch(taskCtx, ref, destPath); err != nil {
					s.logger.Warn("skipping file reference after failed download",
						zap.String("name", ref.Name),
						zap.String("url", ref.URL),
						zap.Error(err))
					return err
				}
				mu.Lock()
				succeeded++
				mu.Unlock()
				return nil
			},
		}
		if err := s.pool.Submit(ctx, task); err != nil {
			wg.Done()
			wg.Wait()
			return 0, qerrors.Wrapf(op, qerrors.KindInternal, err, "cannot queue download")
		}
	}
	wg.Wait()

	// Partial failure is tolerated; a fully failed hydration would publish an
	// empty tag, so it aborts instead.
	if succeeded == 0 {
		return 0, qerrors.New(op, qerrors.KindInternal, "all file reference downloads failed")
	}
	return succeeded, nil
}

// ListVersions returns the recorded versions of a dataset, newest first.
// When the registry holds no rows the repository tags are used instead, so
// datasets recorded before the registry existed still list.
func (s *DatasetService) ListVersions(ctx context.Context, datasetID string) ([]*model.Version, error) {
	op := "service.ListVersions"

	dataset, err := s.getDataset(ctx, op, datasetID)
	if err != nil {
		return nil, err
	}

	versions, err := s.registry.ListVersions(ctx, datasetID)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if len(versions) > 0 {
		return versions, nil
	}

	workdir, err := os.MkdirTemp("", "quarry-tags-*")
	if err != nil {
		return nil, s.fail(op, qerrors.Wrapf(op, qerrors.KindInternal, err, "cannot create workspace"))
	}
	defer os.RemoveAll(workdir)

	local, err := s.git.Clone(ctx, s.hosting.AuthenticatedCloneURL(dataset.RepoURL), workdir)
	if err != nil {
		return nil, s.fail(op, err)
	}
	tags, err := local.ListTags(ctx)
	if err != nil {
		return nil, s.fail(op, err)
	}

	versions = make([]*model.Version, 0, len(tags))
	for _, tag := range tags {
		versions = append(versions, &model.Version{
			DatasetID: datasetID,
			Tag:       tag,
		})
	}
	return versions, nil
}

// GetFileTree returns the full recursive tree of one dataset version.
// Trees are immutable per (dataset, tag) and cached.
func (s *DatasetService) GetFileTree(ctx context.Context, datasetID, tag string) (*model.FileTree, error) {
	op := "service.GetFileTree"

	dataset, err := s.getDataset(ctx, op, datasetID)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("tree:%s:%s", datasetID, tag)
	if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
		if tree, ok := cached.(*model.FileTree); ok {
			s.cacheHit("file_tree")
			return tree, nil
		}
	}
	s.cacheMiss("file_tree")

	records, err := s.listPayload(ctx, dataset, tag, "", true)
	if err != nil {
		return nil, s.fail(op, err)
	}

	root, totalFiles, totalSize := filetree.BuildTree(records)
	tree := &model.FileTree{
		DatasetID:  datasetID,
		VersionTag: tag,
		Root:       root,
		TotalFiles: totalFiles,
		TotalSize:  totalSize,
	}

	if err := s.cache.Set(ctx, cacheKey, tree, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("failed to cache file tree", zap.Error(err))
	}
	return tree, nil
}

// BrowseDirectory returns one page of a single directory level of a dataset
// version. Page numbering starts at 1 and limit is capped at 100.
func (s *DatasetService) BrowseDirectory(ctx context.Context, datasetID, tag, dirPath string, page, limit int) (*model.DirectoryContent, error) {
	op := "service.BrowseDirectory"

	if page < 1 {
		return nil, s.fail(op, qerrors.New(op, qerrors.KindInvalid, "page must be at least 1"))
	}
	if limit < 1 || limit > 100 {
		return nil, s.fail(op, qerrors.New(op, qerrors.KindInvalid, "limit must be between 1 and 100"))
	}

	dataset, err := s.getDataset(ctx, op, datasetID)
	if err != nil {
		return nil, err
	}

	current := filetree.Normalize(dirPath)
	cacheKey := fmt.Sprintf("listing:%s:%s:%s", datasetID, tag, current)

	var content *model.DirectoryContent
	if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
		if c, ok := cached.(*model.DirectoryContent); ok {
			s.cacheHit("directory_listing")
			content = c
		}
	}
	if content == nil {
		s.cacheMiss("directory_listing")

		records, err := s.listPayload(ctx, dataset, tag, current, false)
		if err != nil {
			return nil, s.fail(op, err)
		}
		content = filetree.BuildListing(records, current)

		if err := s.cache.Set(ctx, cacheKey, content, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("failed to cache directory listing", zap.Error(err))
		}
	}

	return paginate(content, page, limit), nil
}

// GetHistory returns the most recent commits of the dataset repository.
func (s *DatasetService) GetHistory(ctx context.Context, datasetID string, maxCount int) ([]model.CommitInfo, error) {
	op := "service.GetHistory"

	dataset, err := s.getDataset(ctx, op, datasetID)
	if err != nil {
		return nil, err
	}

	workdir, err := os.MkdirTemp("", "quarry-history-*")
	if err != nil {
		return nil, s.fail(op, qerrors.Wrapf(op, qerrors.KindInternal, err, "cannot create workspace"))
	}
	defer os.RemoveAll(workdir)

	local, err := s.git.Clone(ctx, s.hosting.AuthenticatedCloneURL(dataset.RepoURL), workdir)
	if err != nil {
		return nil, s.fail(op, err)
	}
	history, err := local.History(ctx, maxCount)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return history, nil
}

// GetDataset returns one dataset registry entry.
func (s *DatasetService) GetDataset(ctx context.Context, datasetID string) (*model.Dataset, error) {
	return s.getDataset(ctx, "service.GetDataset", datasetID)
}

// DeleteDataset removes the hosted repository and the registry entry.
func (s *DatasetService) DeleteDataset(ctx context.Context, datasetID string) error {
	op := "service.DeleteDataset"

	dataset, err := s.getDataset(ctx, op, datasetID)
	if err != nil {
		return err
	}
	defer s.observe(op, dataset.Tenant, time.Now())

	if err := s.hosting.DeleteRepo(ctx, dataset.Tenant, dataset.Name); err != nil {
		return s.fail(op, err)
	}
	if err := s.registry.DeleteDataset(ctx, datasetID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return s.fail(op, err)
	}
	if err := s.idempotency.Delete(ctx, initKey(dataset.Tenant, dataset.Name)); err != nil {
		s.logger.Warn("failed to drop idempotency key", zap.Error(err))
	}

	s.logger.Info("dataset deleted",
		zap.String("dataset_id", datasetID),
		zap.String("tenant", dataset.Tenant),
		zap.String("name", dataset.Name))
	return nil
}

func (s *DatasetService) getDataset(ctx context.Context, op, datasetID string) (*model.Dataset, error) {
	dataset, err := s.registry.GetDataset(ctx, datasetID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, s.fail(op, qerrors.New(op, qerrors.KindNotFound,
			"dataset %s not found", datasetID))
	}
	if err != nil {
		return nil, s.fail(op, err)
	}
	return dataset, nil
}

// listPayload lists the payload directory of one version and rebases the
// returned paths so callers never see the internal directory prefix.
func (s *DatasetService) listPayload(ctx context.Context, dataset *model.Dataset, tag, subPath string, recursive bool) ([]model.FileRecord, error) {
	startPath := dataDirName
	if subPath != "" && subPath != "/" {
		startPath = path.Join(dataDirName, strings.TrimPrefix(subPath, "/"))
	}

	records, err := s.data.List(ctx, s.hosting.AuthenticatedCloneURL(dataset.RepoURL), tag, startPath, recursive)
	if err != nil {
		return nil, err
	}

	rebased := make([]model.FileRecord, 0, len(records))
	for _, r := range records {
		p := strings.TrimPrefix(r.Path, "/"+dataDirName)
		r.Path = filetree.Normalize(p)
		if path.Base(r.Path) == sentinelFile {
			continue
		}
		rebased = append(rebased, r)
	}
	return rebased, nil
}

// remoteURL derives the object-storage location for one dataset, keyed by
// the dataset id under the configured prefix.
func (s *DatasetService) remoteURL(datasetID string) string {
	return strings.TrimRight(s.cfg.RemoteURLBase, "/") + "/" + datasetID
}

func (s *DatasetService) observe(op, tenant string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.OperationsTotal.WithLabelValues(op, tenant).Inc()
	s.metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (s *DatasetService) fail(op string, err error) error {
	if s.metrics != nil {
		s.metrics.OperationErrors.WithLabelValues(op, qerrors.KindOf(err).String()).Inc()
	}
	return err
}

func (s *DatasetService) cacheHit(kind string) {
	if s.metrics != nil {
		s.metrics.CacheHits.WithLabelValues(kind).Inc()
	}
}

func (s *DatasetService) cacheMiss(kind string) {
	if s.metrics != nil {
		s.metrics.CacheMisses.WithLabelValues(kind).Inc()
	}
}

func initKey(tenant, name string) string {
	return fmt.Sprintf("init:%s/%s", tenant, name)
}

// resetPayloadDir empties the payload directory, keeping only the sentinel.
func resetPayloadDir(dataDir string) error {
	op := "service.resetPayloadDir"

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return qerrors.Wrapf(op, qerrors.KindInternal, err, "cannot create payload directory")
	}
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return qerrors.Wrapf(op, qerrors.KindInternal, err, "cannot read payload directory")
	}
	for _, entry := range entries {
		if entry.Name() == sentinelFile {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dataDir, entry.Name())); err != nil {
			return qerrors.Wrapf(op, qerrors.KindInternal, err, "cannot clear payload directory")
		}
	}
	return os.WriteFile(filepath.Join(dataDir, sentinelFile), nil, 0o644)
}

// payloadPath resolves a file reference name inside the payload directory,
// rejecting names that would escape it.
func payloadPath(dataDir, name string) (string, error) {
	op := "service.payloadPath"

	cleaned := filepath.Clean(filepath.FromSlash(name))
	if cleaned == "." || filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || cleaned == ".." {
		return "", qerrors.New(op, qerrors.KindSecurity,
			"file reference name %q escapes the payload directory", name)
	}

	target := filepath.Join(dataDir, cleaned)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", qerrors.Wrapf(op, qerrors.KindInternal, err, "cannot create payload subdirectory")
	}
	return target, nil
}

func writeReadme(workdir, datasetID, tenant, name string, fileCount int, totalSize int64) error {
	content := fmt.Sprintf(`# %s

- Dataset ID: %s
- Tenant: %s
- Files: %d
- Total size: %d bytes

Content lives under `+"`%s/`"+` and is tracked with dvc; use the tagged
versions to retrieve a specific snapshot.
`, name, datasetID, tenant, fileCount, totalSize, dataDirName)
	if err := os.WriteFile(filepath.Join(workdir, "README.md"), []byte(content), 0o644); err != nil {
		return qerrors.Wrapf("service.writeReadme", qerrors.KindInternal, err, "cannot write README")
	}
	return nil
}

// paginate slices one page out of a cached listing without mutating it.
func paginate(content *model.DirectoryContent, page, limit int) *model.DirectoryContent {
	paged := *content

	start := (page - 1) * limit
	if start >= len(content.Items) {
		paged.Items = []*model.FileItem{}
		return &paged
	}
	end := start + limit
	if end > len(content.Items) {
		end = len(content.Items)
	}
	paged.Items = content.Items[start:end]
	return &paged
}
