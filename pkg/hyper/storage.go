package hyper

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gitlab.com/tozd/go/errors"
)

// imageSuffixes are the volume extensions surfaced as images.
var imageSuffixes = []string{".qcow2", ".iso", ".img"}

// volumeUsage builds the host-wide volume usage map: volume basename to the
// VM names whose block devices reference it. Per-VM failures are swallowed
// so one broken domain does not block pool enumeration. Insertion order is
// kept so repeated listings stay stable.
func (c *Client) volumeUsage(ctx context.Context) (*orderedmap.OrderedMap[string, []string], error) {
	usage := orderedmap.New[string, []string]()

	out, err := c.run(ctx, "list", "--all", "--name")
	if err != nil {
		return nil, err
	}
	for _, vmName := range ParseNameList(out) {
		bout, err := c.run(ctx, "domblklist", vmName, "--details")
		if err != nil {
			continue
		}
		for _, row := range ParseTableRows(bout) {
			if len(row) < 4 {
				continue
			}
			source := row[len(row)-1]
			base := filepath.Base(source)
			if base == "" || base == "." || source == "-" {
				continue
			}
			users, _ := usage.Get(base)
			if !containsString(users, vmName) {
				usage.Set(base, append(users, vmName))
			}
		}
	}
	return usage, nil
}

// ListStoragePools enumerates pools and their volumes, cross-referencing the
// volume usage map. Volume listing and per-volume detail are best-effort.
func (c *Client) ListStoragePools(ctx context.Context) ([]StoragePoolRecord, error) {
	out, err := c.run(ctx, "pool-list", "--all", "--name")
	if err != nil {
		return nil, err
	}
	usage, err := c.volumeUsage(ctx)
	if err != nil {
		return nil, err
	}

	names := ParseNameList(out)
	pools := make([]StoragePoolRecord, 0, len(names))
	for _, poolName := range names {
		volumes := make([]Volume, 0)
		if vout, err := c.run(ctx, "vol-list", poolName); err == nil {
			for _, row := range ParseTableRows(vout) {
				volName := row[0]

				usedBy := "-"
				if users, ok := usage.Get(volName); ok && len(users) > 0 {
					sorted := append([]string(nil), users...)
					sort.Strings(sorted)
					usedBy = strings.Join(sorted, ",")
				}

				var sizeGB float64
				if info, err := c.run(ctx, "vol-info", volName, "--pool", poolName); err == nil {
					sizeGB = ParseCapacityGB(info)
				}

				volumes = append(volumes, Volume{
					Name:   volName,
					Kind:   KindOfVolume(volName),
					UsedBy: usedBy,
					SizeGB: sizeGB,
				})
			}
		}
		pools = append(pools, StoragePoolRecord{
			ID:      poolName,
			Name:    poolName,
			Type:    "dir",
			State:   "active",
			Volumes: volumes,
		})
	}
	return pools, nil
}

// ListImages surfaces attachable volumes (qcow2, iso, raw images) across all
// pools as image records.
func (c *Client) ListImages(ctx context.Context) ([]ImageRecord, error) {
	pools, err := c.ListStoragePools(ctx)
	if err != nil {
		return nil, err
	}
	images := make([]ImageRecord, 0)
	for _, pool := range pools {
		for _, vol := range pool.Volumes {
			if !hasImageSuffix(vol.Name) {
				continue
			}
			images = append(images, ImageRecord{
				ID:        pool.Name + "::" + vol.Name,
				Name:      vol.Name,
				SourceURL: pool.Name,
				Status:    "available",
				UsedBy:    vol.UsedBy,
				CreatedAt: time.Now().UTC(),
			})
		}
	}
	return images, nil
}

// CreateImage allocates a new qcow2 volume in a pool. An empty pool selects
// the endpoint's default pool.
func (c *Client) CreateImage(ctx context.Context, name, pool string, sizeGB int) (ImageRecord, error) {
	if pool == "" {
		pool = c.ep.DefaultPool
	}
	if _, err := c.run(ctx, "vol-create-as", pool, name, fmt.Sprintf("%dG", sizeGB), "--format", "qcow2"); err != nil {
		return ImageRecord{}, err
	}
	return ImageRecord{
		ID:        pool + "::" + name,
		Name:      name,
		SourceURL: pool,
		Status:    "available",
		UsedBy:    "-",
		CreatedAt: time.Now().UTC(),
	}, nil
}

// DeleteImage removes the volume behind a "<pool>::<volume>" image id.
func (c *Client) DeleteImage(ctx context.Context, imageID string) error {
	pool, volume, ok := strings.Cut(imageID, "::")
	if !ok || pool == "" || volume == "" {
		return errors.New(`image id must be "<pool>::<volume>"`)
	}
	_, err := c.run(ctx, "vol-delete", volume, "--pool", pool)
	return err
}

func hasImageSuffix(name string) bool {
	for _, suffix := range imageSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
