package inventory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/virtops/virtdash/pkg/hyper"
)

type fakeFetcher struct {
	vms      []hyper.VMRecord
	networks []hyper.NetworkRecord
	images   []hyper.ImageRecord
	pools    []hyper.StoragePoolRecord

	err       error // fails every call
	imagesErr error // fails only the image listing
	fetches   int
}

func (f *fakeFetcher) ListVMs(context.Context) ([]hyper.VMRecord, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return f.vms, nil
}

func (f *fakeFetcher) ListNetworks(context.Context) ([]hyper.NetworkRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.networks, nil
}

func (f *fakeFetcher) ListImages(context.Context) ([]hyper.ImageRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.imagesErr != nil {
		return nil, f.imagesErr
	}
	return f.images, nil
}

func (f *fakeFetcher) ListStoragePools(context.Context) ([]hyper.StoragePoolRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pools, nil
}

func twoVMFetcher() *fakeFetcher {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &fakeFetcher{
		vms: []hyper.VMRecord{
			{ID: "v1", Name: "v1", CPUCores: 2, MemoryMB: 2048, PowerState: hyper.PowerRunning, CreatedAt: created},
			{ID: "v2", Name: "v2", CPUCores: 1, MemoryMB: 1024, PowerState: hyper.PowerStopped, CreatedAt: created},
		},
		networks: []hyper.NetworkRecord{{ID: "default", Name: "default", CIDR: "n/a"}},
		images:   []hyper.ImageRecord{},
		pools:    []hyper.StoragePoolRecord{{ID: "default", Name: "default", Type: "dir", State: "active"}},
	}
}

// testCache returns a cache over a memory store with a controllable clock.
func testCache(ttl time.Duration) (*Cache, *time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := New(NewMemoryStore(), ttl)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestFirstGetIsMiss(t *testing.T) {
	c, _ := testCache(15 * time.Second)
	f := twoVMFetcher()

	snap, err := c.Get(context.Background(), "h1", f, false)
	require.NoError(t, err)
	assert.Equal(t, StateMiss, snap.State)
	assert.Empty(t, snap.LastError)
	require.NotNil(t, snap.LastSuccessAt)

	var vms []hyper.VMRecord
	require.NoError(t, json.Unmarshal(snap.VMs, &vms))
	assert.Len(t, vms, 2)
}

func TestSecondGetWithinTTLIsIdenticalHit(t *testing.T) {
	c, _ := testCache(15 * time.Second)
	f := twoVMFetcher()
	ctx := context.Background()

	first, err := c.Get(ctx, "h1", f, false)
	require.NoError(t, err)
	second, err := c.Get(ctx, "h1", f, false)
	require.NoError(t, err)

	assert.Equal(t, StateHit, second.State)
	assert.Equal(t, 1, f.fetches, "the hit must not touch the backend")
	assert.Empty(t, cmp.Diff(first.Entry, second.Entry), "hit payload must be identical to the refreshed one")
}

func TestTTLExpiryTriggersRefresh(t *testing.T) {
	c, now := testCache(15 * time.Second)
	f := twoVMFetcher()
	ctx := context.Background()

	_, err := c.Get(ctx, "h1", f, false)
	require.NoError(t, err)

	*now = now.Add(16 * time.Second)
	snap, err := c.Get(ctx, "h1", f, false)
	require.NoError(t, err)
	assert.Equal(t, StateMiss, snap.State)
	assert.Equal(t, 2, f.fetches)
}

func TestForceRefreshBypassesFreshRow(t *testing.T) {
	c, _ := testCache(time.Hour)
	f := twoVMFetcher()
	ctx := context.Background()

	_, err := c.Get(ctx, "h1", f, false)
	require.NoError(t, err)

	snap, err := c.Get(ctx, "h1", f, true)
	require.NoError(t, err)
	assert.Equal(t, StateMiss, snap.State)
	assert.Equal(t, 2, f.fetches)
}

func TestFailedRefreshServesStaleWithPriorData(t *testing.T) {
	c, _ := testCache(time.Hour)
	f := twoVMFetcher()
	ctx := context.Background()

	first, err := c.Get(ctx, "h1", f, false)
	require.NoError(t, err)

	f.err = errors.New("virsh command timed out")
	snap, err := c.Get(ctx, "h1", f, true)
	require.NoError(t, err, "stale fallback must not surface the refresh error")

	assert.Equal(t, StateStale, snap.State)
	assert.Contains(t, snap.LastError, "timed out")
	assert.Equal(t, string(first.VMs), string(snap.VMs), "prior collections are served unchanged")
	assert.Equal(t, first.UpdatedAt, snap.UpdatedAt)

	// the store keeps the data but carries the error annotation
	row, exists, err := c.store.Get(ctx, "h1")
	require.NoError(t, err)
	require.True(t, exists)
	assert.Contains(t, row.LastError, "timed out")
	assert.Equal(t, string(first.VMs), string(row.VMs))
}

func TestFirstEverFailurePropagates(t *testing.T) {
	c, _ := testCache(time.Hour)
	f := &fakeFetcher{err: errors.New("virsh is not installed on this host")}

	_, err := c.Get(context.Background(), "h1", f, false)
	require.Error(t, err, "no prior row means nothing to fall back to")
}

func TestPartialRefreshIsNeverPersisted(t *testing.T) {
	c, _ := testCache(time.Hour)
	f := twoVMFetcher()
	ctx := context.Background()

	first, err := c.Get(ctx, "h1", f, false)
	require.NoError(t, err)

	// vms and networks succeed, images fail: the row must stay untouched
	f.imagesErr = errors.New("error: storage backend offline")
	f.vms = f.vms[:1]

	snap, err := c.Get(ctx, "h1", f, true)
	require.NoError(t, err)
	assert.Equal(t, StateStale, snap.State)
	assert.Equal(t, string(first.VMs), string(snap.VMs), "partially fetched collections must not replace the row")
}

func TestSuccessfulRefreshClearsError(t *testing.T) {
	c, _ := testCache(time.Hour)
	f := twoVMFetcher()
	ctx := context.Background()

	_, err := c.Get(ctx, "h1", f, false)
	require.NoError(t, err)

	f.err = errors.New("transient")
	_, err = c.Get(ctx, "h1", f, true)
	require.NoError(t, err)

	f.err = nil
	snap, err := c.Get(ctx, "h1", f, true)
	require.NoError(t, err)
	assert.Equal(t, StateMiss, snap.State)
	assert.Empty(t, snap.LastError)

	row, _, err := c.store.Get(ctx, "h1")
	require.NoError(t, err)
	assert.Empty(t, row.LastError)
}

func TestRowsAreIndependentPerHost(t *testing.T) {
	c, _ := testCache(time.Hour)
	ctx := context.Background()

	_, err := c.Get(ctx, "h1", twoVMFetcher(), false)
	require.NoError(t, err)

	failing := &fakeFetcher{err: errors.New("unreachable")}
	_, err = c.Get(ctx, "h2", failing, false)
	require.Error(t, err, "h2 has no prior row")

	snap, err := c.Get(ctx, "h1", twoVMFetcher(), false)
	require.NoError(t, err)
	assert.Equal(t, StateHit, snap.State, "h2's failure must not disturb h1's row")
}
