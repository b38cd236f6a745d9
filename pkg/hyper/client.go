package hyper

import (
	"context"

	"github.com/virtops/virtdash/pkg/virsh"
)

// Execer runs one tool invocation against a host endpoint. *virsh.Runner
// satisfies it; tests substitute scripted fakes.
type Execer interface {
	Run(ctx context.Context, ep virsh.Endpoint, args ...string) (string, error)
}

// Client maps tool invocations against a single host endpoint into typed
// inventory records and write operations. It holds no state beyond the
// endpoint; all caching happens above it.
type Client struct {
	ep   virsh.Endpoint
	exec Execer
}

// NewClient binds a mapper to one host endpoint.
func NewClient(ep virsh.Endpoint, exec Execer) *Client {
	return &Client{ep: ep.WithDefaults(), exec: exec}
}

// Endpoint returns the bound endpoint.
func (c *Client) Endpoint() virsh.Endpoint {
	return c.ep
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	return c.exec.Run(ctx, c.ep, args...)
}

// Health checks endpoint reachability with the cheapest listing the tool
// offers.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	out, err := c.run(ctx, "list", "--all", "--name")
	if err != nil {
		return HealthStatus{}, err
	}
	return HealthStatus{Reachable: true, VMCount: len(ParseNameList(out))}, nil
}
