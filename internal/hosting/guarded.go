package hosting

import (
	"context"

	"github.com/quarry-io/quarry/internal/model"
	"github.com/quarry-io/quarry/internal/resilience"
)

// GuardedClient runs every hosting call through a circuit breaker. When the
// hosting service has been failing, calls are rejected immediately instead of
// burning retry budgets against a dead endpoint.
type GuardedClient struct {
	client  *Client
	breaker *resilience.CircuitBreaker
}

// NewGuardedClient wraps a client with a breaker.
func NewGuardedClient(client *Client, breaker *resilience.CircuitBreaker) *GuardedClient {
	return &GuardedClient{client: client, breaker: breaker}
}

func (g *GuardedClient) GetOrg(ctx context.Context, name string) (*model.Org, error) {
	var org *model.Org
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		org, err = g.client.GetOrg(ctx, name)
		return err
	})
	return org, err
}

func (g *GuardedClient) CreateOrg(ctx context.Context, name string) (*model.Org, error) {
	var org *model.Org
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		org, err = g.client.CreateOrg(ctx, name)
		return err
	})
	return org, err
}

func (g *GuardedClient) GetRepo(ctx context.Context, org, name string) (*model.Repo, error) {
	var repo *model.Repo
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		repo, err = g.client.GetRepo(ctx, org, name)
		return err
	})
	return repo, err
}

func (g *GuardedClient) CreateRepo(ctx context.Context, org, name string) (*model.Repo, error) {
	var repo *model.Repo
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		repo, err = g.client.CreateRepo(ctx, org, name)
		return err
	})
	return repo, err
}

func (g *GuardedClient) DeleteRepo(ctx context.Context, org, name string) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.client.DeleteRepo(ctx, org, name)
	})
}

func (g *GuardedClient) ListRepos(ctx context.Context, org string, page, limit int) ([]*model.Repo, error) {
	var repos []*model.Repo
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		repos, err = g.client.ListRepos(ctx, org, page, limit)
		return err
	})
	return repos, err
}

// AuthenticatedCloneURL is a pure transformation and bypasses the breaker.
func (g *GuardedClient) AuthenticatedCloneURL(cloneURL string) string {
	return g.client.AuthenticatedCloneURL(cloneURL)
}
