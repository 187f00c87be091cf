// Package hosting talks to the repository hosting service (Gitea) over its
// REST API. Every network call goes through the retry executor with the HTTP
// policy: transient transport failures are retried, application rejections
// are not.
package hosting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quarry-io/quarry/internal/model"
	"github.com/quarry-io/quarry/internal/qerrors"
	"github.com/quarry-io/quarry/internal/resilience"
)

// Config holds hosting service connection settings.
type Config struct {
	BaseURL      string
	User         string
	Token        string
	OrgEmail     string
	OrgLocation  string
	Timeout      time.Duration
	MaxIdleConns int
}

// Client is a hosting service client. Each Client owns its HTTP connection
// pool; construct once, share across calls, release with Close.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retryer    *resilience.Retryer
	logger     *zap.Logger
}

// NewClient creates a hosting client with a keep-alive connection pool.
func NewClient(cfg Config, retryer *resilience.Retryer, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		retryer: retryer,
		logger:  logger,
	}
}

// Close releases pooled connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// GetOrg fetches an organization. A 404 means "not found" and returns
// (nil, nil).
func (c *Client) GetOrg(ctx context.Context, name string) (*model.Org, error) {
	const op = "hosting.get_org"

	var org *model.Org
	err := c.retryer.Do(ctx, op, func(ctx context.Context) error {
		found, err := c.doJSON(ctx, op, http.MethodGet, "/api/v1/orgs/"+url.PathEscape(name), nil, &org)
		if err != nil {
			return err
		}
		if !found {
			org = nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

// CreateOrg is idempotent: an existing organization is returned as-is, the
// creation call only happens on a miss.
func (c *Client) CreateOrg(ctx context.Context, name string) (*model.Org, error) {
	const op = "hosting.create_org"

	existing, err := c.GetOrg(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	body := map[string]any{
		"username":                      name,
		"full_name":                     fmt.Sprintf("Datasets %s", name),
		"description":                   fmt.Sprintf("organization for dataset service %s", name),
		"email":                         c.cfg.OrgEmail,
		"location":                      c.cfg.OrgLocation,
		"visibility":                    "public",
		"repo_admin_change_team_access": true,
	}

	var org *model.Org
	err = c.retryer.Do(ctx, op, func(ctx context.Context) error {
		_, err := c.doJSON(ctx, op, http.MethodPost, "/api/v1/orgs", body, &org)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("created hosting organization", zap.String("org", name))
	return org, nil
}

// GetRepo fetches a repository. A 404 returns (nil, nil).
func (c *Client) GetRepo(ctx context.Context, org, name string) (*model.Repo, error) {
	const op = "hosting.get_repo"

	var repo *model.Repo
	err := c.retryer.Do(ctx, op, func(ctx context.Context) error {
		path := fmt.Sprintf("/api/v1/repos/%s/%s", url.PathEscape(org), url.PathEscape(name))
		found, err := c.doJSON(ctx, op, http.MethodGet, path, nil, &repo)
		if err != nil {
			return err
		}
		if !found {
			repo = nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// CreateRepo creates a private repository under the organization.
func (c *Client) CreateRepo(ctx context.Context, org, name string) (*model.Repo, error) {
	const op = "hosting.create_repo"

	body := map[string]any{
		"name":           name,
		"description":    fmt.Sprintf("repository for dataset %s", name),
		"private":        true,
		"default_branch": "main",
		"auto_init":      false,
	}

	var repo *model.Repo
	err := c.retryer.Do(ctx, op, func(ctx context.Context) error {
		path := fmt.Sprintf("/api/v1/orgs/%s/repos", url.PathEscape(org))
		_, err := c.doJSON(ctx, op, http.MethodPost, path, body, &repo)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("created hosting repository",
		zap.String("org", org),
		zap.String("repo", name),
	)
	return repo, nil
}

// DeleteRepo removes a repository.
func (c *Client) DeleteRepo(ctx context.Context, org, name string) error {
	const op = "hosting.delete_repo"

	return c.retryer.Do(ctx, op, func(ctx context.Context) error {
		path := fmt.Sprintf("/api/v1/repos/%s/%s", url.PathEscape(org), url.PathEscape(name))
		_, err := c.doJSON(ctx, op, http.MethodDelete, path, nil, nil)
		return err
	})
}

// ListRepos pages through an organization's repositories. Pagination bounds
// are validated before any network call.
func (c *Client) ListRepos(ctx context.Context, org string, page, limit int) ([]*model.Repo, error) {
	const op = "hosting.list_repos"

	if page < 1 {
		return nil, qerrors.New(op, qerrors.KindInvalid, "page must be >= 1, got %d", page)
	}
	if limit < 1 || limit > 100 {
		return nil, qerrors.New(op, qerrors.KindInvalid, "limit must be between 1 and 100, got %d", limit)
	}

	var repos []*model.Repo
	err := c.retryer.Do(ctx, op, func(ctx context.Context) error {
		path := fmt.Sprintf("/api/v1/orgs/%s/repos?page=%s&limit=%s",
			url.PathEscape(org), strconv.Itoa(page), strconv.Itoa(limit))
		_, err := c.doJSON(ctx, op, http.MethodGet, path, nil, &repos)
		return err
	})
	if err != nil {
		return nil, err
	}
	return repos, nil
}

// AuthenticatedCloneURL inserts the client credentials into the authority
// component of an http(s) clone URL. Other schemes pass through unmodified.
func (c *Client) AuthenticatedCloneURL(cloneURL string) string {
	if !strings.HasPrefix(cloneURL, "http://") && !strings.HasPrefix(cloneURL, "https://") {
		return cloneURL
	}
	u, err := url.Parse(cloneURL)
	if err != nil {
		return cloneURL
	}
	u.User = url.UserPassword(c.cfg.User, c.cfg.Token)
	return u.String()
}

// doJSON performs one HTTP round trip. The bool result reports whether the
// entity was found; a 404 on GET yields (false, nil). Transport failures
// classify as transient, other non-2xx statuses as rejected.
func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out any) (bool, error) {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return false, qerrors.Wrap(op, qerrors.KindInternal, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
	if err != nil {
		return false, qerrors.Wrap(op, qerrors.KindInternal, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, qerrors.Wrapf(op, qerrors.KindTransient, err, "hosting service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && method == http.MethodGet {
		io.Copy(io.Discard, resp.Body)
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, qerrors.New(op, qerrors.KindRejected,
			"hosting service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, qerrors.Wrapf(op, qerrors.KindTransient, err, "cannot decode response")
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return true, nil
}
