package inventory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/virtops/virtdash/pkg/hyper"
)

// Fetcher produces the four inventory collections for one host.
// *hyper.Client satisfies it.
type Fetcher interface {
	ListVMs(ctx context.Context) ([]hyper.VMRecord, error)
	ListNetworks(ctx context.Context) ([]hyper.NetworkRecord, error)
	ListImages(ctx context.Context) ([]hyper.ImageRecord, error)
	ListStoragePools(ctx context.Context) ([]hyper.StoragePoolRecord, error)
}

// Cache serves per-host inventory snapshots with a TTL, refreshing through
// a Fetcher and degrading to the prior row when a refresh fails. It offers
// per-host eventual consistency: a reader racing a refresh sees either the
// old or the new row, never a mix, but two concurrent refreshes may both
// run.
type Cache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// DefaultTTL matches a dashboard poll interval with a little slack.
const DefaultTTL = 15 * time.Second

func New(store Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get serves the cached row when it is fresh enough, otherwise refreshes.
// A failed refresh falls back to the prior row annotated stale; only a
// first-ever refresh failure (no prior row) propagates.
func (c *Cache) Get(ctx context.Context, hostID string, fetcher Fetcher, forceRefresh bool) (Snapshot, error) {
	row, exists, err := c.store.Get(ctx, hostID)
	if err != nil {
		return Snapshot{}, err
	}

	if !forceRefresh && exists && c.now().Sub(row.UpdatedAt) <= c.ttl {
		return Snapshot{Entry: row, State: StateHit}, nil
	}

	fresh, refreshErr := c.refresh(ctx, hostID, fetcher)
	if refreshErr == nil {
		return fresh, nil
	}

	if !exists {
		return Snapshot{}, refreshErr
	}

	zerolog.Ctx(ctx).Warn().Str("host", hostID).Err(refreshErr).Msg("inventory refresh failed, serving stale data")
	if err := c.store.SetError(ctx, hostID, refreshErr.Error()); err != nil {
		zerolog.Ctx(ctx).Error().Str("host", hostID).Err(err).Msg("recording refresh error failed")
	}
	row.LastError = refreshErr.Error()
	return Snapshot{Entry: row, State: StateStale}, nil
}

// refresh fetches all four collections and replaces the row atomically.
// Any single fetch failing aborts the whole refresh; nothing is persisted.
func (c *Cache) refresh(ctx context.Context, hostID string, fetcher Fetcher) (Snapshot, error) {
	vms, err := fetcher.ListVMs(ctx)
	if err != nil {
		return Snapshot{}, errors.Errorf("listing vms: %w", err)
	}
	networks, err := fetcher.ListNetworks(ctx)
	if err != nil {
		return Snapshot{}, errors.Errorf("listing networks: %w", err)
	}
	images, err := fetcher.ListImages(ctx)
	if err != nil {
		return Snapshot{}, errors.Errorf("listing images: %w", err)
	}
	pools, err := fetcher.ListStoragePools(ctx)
	if err != nil {
		return Snapshot{}, errors.Errorf("listing storage pools: %w", err)
	}

	entry := Entry{UpdatedAt: c.now().UTC()}
	entry.LastSuccessAt = &entry.UpdatedAt

	if entry.VMs, err = json.Marshal(vms); err != nil {
		return Snapshot{}, errors.Errorf("encoding vms: %w", err)
	}
	if entry.Networks, err = json.Marshal(networks); err != nil {
		return Snapshot{}, errors.Errorf("encoding networks: %w", err)
	}
	if entry.Images, err = json.Marshal(images); err != nil {
		return Snapshot{}, errors.Errorf("encoding images: %w", err)
	}
	if entry.Pools, err = json.Marshal(pools); err != nil {
		return Snapshot{}, errors.Errorf("encoding storage pools: %w", err)
	}

	if err := c.store.Put(ctx, hostID, entry); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Entry: entry, State: StateMiss}, nil
}
