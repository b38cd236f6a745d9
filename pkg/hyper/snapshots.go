package hyper

import (
	"context"
	"time"
)

// CreateSnapshot takes an atomic snapshot of a domain.
func (c *Client) CreateSnapshot(ctx context.Context, vmID, name string) (SnapshotRecord, error) {
	if _, err := c.run(ctx, "snapshot-create-as", vmID, name, "--atomic"); err != nil {
		return SnapshotRecord{}, err
	}
	return SnapshotRecord{
		ID:        name,
		VMID:      vmID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// ListSnapshots enumerates a domain's snapshots by name.
func (c *Client) ListSnapshots(ctx context.Context, vmID string) ([]SnapshotRecord, error) {
	out, err := c.run(ctx, "snapshot-list", vmID, "--name")
	if err != nil {
		return nil, err
	}
	names := ParseNameList(out)
	snaps := make([]SnapshotRecord, 0, len(names))
	for _, name := range names {
		snaps = append(snaps, SnapshotRecord{
			ID:        name,
			VMID:      vmID,
			Name:      name,
			CreatedAt: time.Now().UTC(),
		})
	}
	return snaps, nil
}

// RevertSnapshot restores a snapshot and leaves the domain running.
func (c *Client) RevertSnapshot(ctx context.Context, vmID, snapshotID string) error {
	_, err := c.run(ctx, "snapshot-revert", vmID, snapshotID, "--running")
	return err
}

// DeleteSnapshot removes a snapshot.
func (c *Client) DeleteSnapshot(ctx context.Context, vmID, snapshotID string) error {
	_, err := c.run(ctx, "snapshot-delete", vmID, snapshotID)
	return err
}
