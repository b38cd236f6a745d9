package hyper

import (
	"context"

	"github.com/rs/zerolog"
)

// ListNetworks enumerates defined virtual networks. The tool's name listing
// carries no addressing detail, so CIDR is reported as "n/a".
func (c *Client) ListNetworks(ctx context.Context) ([]NetworkRecord, error) {
	out, err := c.run(ctx, "net-list", "--all", "--name")
	if err != nil {
		return nil, err
	}
	names := ParseNameList(out)
	nets := make([]NetworkRecord, 0, len(names))
	for _, name := range names {
		nets = append(nets, NetworkRecord{
			ID:            name,
			Name:          name,
			CIDR:          "n/a",
			AttachedVMIDs: []string{},
		})
	}
	return nets, nil
}

// CreateNetwork defines a NAT network for the given CIDR, marks it
// autostarted and starts it.
func (c *Client) CreateNetwork(ctx context.Context, name, cidr string, vlanID *int) (NetworkRecord, error) {
	xml, err := networkXML(name, cidr)
	if err != nil {
		return NetworkRecord{}, err
	}
	if err := c.defineFromXML(ctx, "net-define", "virtdash-network-*.xml", xml); err != nil {
		return NetworkRecord{}, err
	}
	if _, err := c.run(ctx, "net-autostart", name); err != nil {
		return NetworkRecord{}, err
	}
	if _, err := c.run(ctx, "net-start", name); err != nil {
		return NetworkRecord{}, err
	}

	zerolog.Ctx(ctx).Info().Str("network", name).Str("cidr", cidr).Msg("network defined and started")

	return NetworkRecord{
		ID:            name,
		Name:          name,
		CIDR:          cidr,
		VLANID:        vlanID,
		AttachedVMIDs: []string{},
	}, nil
}

// DeleteNetwork stops the network best-effort and undefines it.
func (c *Client) DeleteNetwork(ctx context.Context, networkID string) error {
	if _, err := c.run(ctx, "net-destroy", networkID); err != nil {
		zerolog.Ctx(ctx).Debug().Str("network", networkID).Err(err).Msg("net-destroy before undefine failed, continuing")
	}
	_, err := c.run(ctx, "net-undefine", networkID)
	return err
}
