package hyper

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// ListVMs enumerates all domains and fetches a detail block per domain.
// Interface enumeration is best-effort: a failing domiflist yields an empty
// network list instead of voiding the record. A failing detail fetch aborts
// the listing, since without it the record would be meaningless.
func (c *Client) ListVMs(ctx context.Context) ([]VMRecord, error) {
	out, err := c.run(ctx, "list", "--all", "--name")
	if err != nil {
		return nil, err
	}

	names := ParseNameList(out)
	vms := make([]VMRecord, 0, len(names))
	for _, name := range names {
		info, err := c.run(ctx, "dominfo", name)
		if err != nil {
			return nil, errors.Errorf("fetching detail for domain %s: %w", name, err)
		}
		detail := ParseDomainDetail(info)

		networks := make([]string, 0)
		if nout, err := c.run(ctx, "domiflist", name); err == nil {
			networks = ParseInterfaceNames(nout)
		}

		vms = append(vms, VMRecord{
			ID:         name,
			Name:       name,
			CPUCores:   detail.CPUCores,
			MemoryMB:   detail.MemoryMB,
			Image:      "libvirt:" + name,
			PowerState: detail.PowerState,
			Networks:   networks,
			Labels:     map[string]string{"executor": "libvirt-direct"},
			Annotations: map[string]string{
				"libvirt_uri": c.ep.URI,
			},
			CreatedAt: time.Now().UTC(),
		})
	}
	return vms, nil
}

// ApplyAction requests a power-state transition. The transition is handed to
// the tool unvalidated; invalid transitions surface as process failures.
func (c *Client) ApplyAction(ctx context.Context, vmID string, action Action) error {
	var args []string
	switch action {
	case ActionStart:
		args = []string{"start", vmID}
	case ActionStop:
		args = []string{"shutdown", vmID}
	case ActionReboot:
		args = []string{"reboot", vmID}
	case ActionPause:
		args = []string{"suspend", vmID}
	case ActionResume:
		args = []string{"resume", vmID}
	default:
		return errors.Errorf("unsupported vm action %q", action)
	}
	_, err := c.run(ctx, args...)
	return err
}

// CreateVM defines a new domain from a synthesized descriptor. Disk
// resolution is soft: when the image reference cannot be resolved the domain
// is defined without a disk rather than failing the whole creation.
func (c *Client) CreateVM(ctx context.Context, req CreateVMRequest) (VMRecord, error) {
	logger := zerolog.Ctx(ctx)
	if req.Network == "" {
		req.Network = "default"
	}

	diskPath := c.diskSourceFromImage(ctx, req.Image)
	if diskPath == "" && req.Image != "" {
		logger.Warn().Str("name", req.Name).Str("image", req.Image).Msg("disk source not resolvable, defining VM without disk")
	}

	xml, err := domainXML(req, diskPath)
	if err != nil {
		return VMRecord{}, errors.Errorf("building domain descriptor: %w", err)
	}

	if err := c.defineFromXML(ctx, "define", "virtdash-domain-*.xml", xml); err != nil {
		return VMRecord{}, err
	}

	logger.Info().Str("name", req.Name).Int("cpu", req.CPUCores).Int("memoryMB", req.MemoryMB).Msg("VM defined")

	return VMRecord{
		ID:          req.Name,
		Name:        req.Name,
		CPUCores:    req.CPUCores,
		MemoryMB:    req.MemoryMB,
		Image:       req.Image,
		PowerState:  PowerStopped,
		Networks:    []string{req.Network},
		Labels:      map[string]string{},
		Annotations: map[string]string{},
		CreatedAt:   time.Now().UTC(),
		DiskSource:  diskPath,
	}, nil
}

// Resize adjusts vCPU count and memory. Three invocations; a failure leaves
// the domain partially resized, which the tool reports on the next listing.
func (c *Client) Resize(ctx context.Context, vmID string, cpuCores, memoryMB int) error {
	if _, err := c.run(ctx, "setvcpus", vmID, strconv.Itoa(cpuCores), "--live", "--config"); err != nil {
		return err
	}
	memKiB := strconv.Itoa(memoryMB * 1024)
	if _, err := c.run(ctx, "setmaxmem", vmID, memKiB, "--config"); err != nil {
		return err
	}
	_, err := c.run(ctx, "setmem", vmID, memKiB, "--live")
	return err
}

// Delete force-stops the domain best-effort and then undefines it.
func (c *Client) Delete(ctx context.Context, vmID string) error {
	if _, err := c.run(ctx, "destroy", vmID); err != nil {
		zerolog.Ctx(ctx).Debug().Str("vm", vmID).Err(err).Msg("destroy before undefine failed, continuing")
	}
	_, err := c.run(ctx, "undefine", vmID, "--nvram")
	return err
}

// Migrate moves a domain to another host endpoint.
func (c *Client) Migrate(ctx context.Context, vmID, targetURI string, live bool) error {
	args := []string{"migrate"}
	if live {
		args = append(args, "--live", "--persistent", "--undefinesource")
	}
	args = append(args, vmID, targetURI)
	_, err := c.run(ctx, args...)
	return err
}

// diskSourceFromImage resolves an image reference to an absolute disk path.
// References are "pool::volume", an absolute path, or a bare volume name
// looked up in the endpoint's default pool. Resolution failure yields "".
func (c *Client) diskSourceFromImage(ctx context.Context, image string) string {
	image = strings.TrimSpace(image)
	if image == "" {
		return ""
	}
	if pool, vol, ok := strings.Cut(image, "::"); ok && pool != "" && vol != "" {
		path, err := c.run(ctx, "vol-path", vol, "--pool", pool)
		if err != nil {
			return ""
		}
		return path
	}
	if strings.HasPrefix(image, "/") {
		return image
	}
	path, err := c.run(ctx, "vol-path", image, "--pool", c.ep.DefaultPool)
	if err != nil {
		return ""
	}
	return path
}

// defineFromXML writes a descriptor to a temporary file and feeds it to a
// define-style subcommand.
func (c *Client) defineFromXML(ctx context.Context, subcommand, pattern, xml string) error {
	tmp, err := os.CreateTemp("", pattern)
	if err != nil {
		return errors.Errorf("creating descriptor file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(xml); err != nil {
		tmp.Close()
		return errors.Errorf("writing descriptor file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Errorf("closing descriptor file: %w", err)
	}

	_, err = c.run(ctx, subcommand, tmp.Name())
	return err
}
