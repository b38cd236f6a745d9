package hyper

import (
	"context"

	"gitlab.com/tozd/go/errors"
)

// mediaTarget is the device slot used for recovery ISO attachment.
const mediaTarget = "hdb"

// CurrentISO reports the ISO currently inserted in the media slot, "" when
// none (or when the block listing is unavailable).
func (c *Client) CurrentISO(ctx context.Context, vmID string) string {
	out, err := c.run(ctx, "domblklist", vmID, "--details")
	if err != nil {
		return ""
	}
	for _, row := range ParseTableRows(out) {
		if len(row) >= 4 && row[0] == "cdrom" && row[len(row)-1] != "-" {
			return row[len(row)-1]
		}
	}
	return ""
}

// AttachISO inserts an ISO into the media slot. change-media handles domains
// with an existing cdrom device; attach-disk is the fallback for domains
// without one. Both failing is a hard failure.
func (c *Client) AttachISO(ctx context.Context, vmID, isoPath string) (MediaStatus, error) {
	attempts := [][]string{
		{"change-media", vmID, mediaTarget, "--insert", isoPath, "--live", "--config"},
		{"attach-disk", vmID, isoPath, mediaTarget, "--type", "cdrom", "--mode", "readonly", "--live", "--config"},
	}
	var lastErr error
	for _, args := range attempts {
		if _, err := c.run(ctx, args...); err == nil {
			return MediaStatus{VMID: vmID, ISOPath: isoPath, Attached: true}, nil
		} else {
			lastErr = err
		}
	}
	return MediaStatus{}, errors.Errorf("attaching iso: %w", lastErr)
}

// DetachISO ejects the media slot. A domain with no attached media reports
// Detached=false without an error.
func (c *Client) DetachISO(ctx context.Context, vmID string) MediaStatus {
	attempts := [][]string{
		{"change-media", vmID, mediaTarget, "--eject", "--live", "--config"},
		{"detach-disk", vmID, mediaTarget, "--live", "--config"},
	}
	for _, args := range attempts {
		if _, err := c.run(ctx, args...); err == nil {
			return MediaStatus{VMID: vmID, Detached: true}
		}
	}
	return MediaStatus{VMID: vmID, Detached: false}
}
