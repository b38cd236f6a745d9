package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/virtops/virtdash/pkg/hyper"
	"github.com/virtops/virtdash/pkg/inventory"
)

var inventoryGroup = &cobra.Group{
	ID:    "inventory",
	Title: "Inventory",
}

var forceRefresh bool

func init() {
	rootCmd.AddGroup(inventoryGroup)
	rootCmd.AddCommand(inventoryCmd)
	rootCmd.AddCommand(healthCmd)

	inventoryCmd.Flags().BoolVar(&forceRefresh, "refresh", false, "Bypass the cache and refresh from the host")
}

// inventoryCmd represents the inventory command
var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Show a host's cached inventory",
	Long:  `Show the VM, network, image, and storage pool inventory of a host, served through the TTL cache.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return showInventory(cmd.Context())
	},
	GroupID: inventoryGroup.ID,
}

// healthCmd represents the health command
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check host reachability",
	Long:  `Check that the host's management connection answers and report its VM count.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkHealth(cmd.Context())
	},
	GroupID: inventoryGroup.ID,
}

func showInventory(ctx context.Context) error {
	c, err := client()
	if err != nil {
		return err
	}

	snap, err := Cache.Get(ctx, c.Endpoint().HostID, c, forceRefresh)
	if err != nil {
		return errors.Errorf("fetching inventory: %w", err)
	}

	fmt.Printf("Host %s (cache: %s, updated %s)\n",
		c.Endpoint().HostID,
		cacheStateLabel(snap.State),
		snap.UpdatedAt.Format("2006-01-02 15:04:05"))
	if snap.LastError != "" {
		color.New(color.FgHiRed).Printf("  last error: %s\n", snap.LastError)
	}

	var vms []hyper.VMRecord
	if err := json.Unmarshal(snap.VMs, &vms); err != nil {
		return errors.Errorf("decoding cached vms: %w", err)
	}
	fmt.Println("Virtual Machines:")
	for _, vm := range vms {
		fmt.Printf("  - %-20s %s  %d vCPU, %d MB\n", vm.Name, powerStateLabel(vm.PowerState), vm.CPUCores, vm.MemoryMB)
	}

	var nets []hyper.NetworkRecord
	if err := json.Unmarshal(snap.Networks, &nets); err != nil {
		return errors.Errorf("decoding cached networks: %w", err)
	}
	fmt.Println("Networks:")
	for _, n := range nets {
		fmt.Printf("  - %-20s %s\n", n.Name, n.CIDR)
	}

	var images []hyper.ImageRecord
	if err := json.Unmarshal(snap.Images, &images); err != nil {
		return errors.Errorf("decoding cached images: %w", err)
	}
	fmt.Println("Images:")
	for _, img := range images {
		fmt.Printf("  - %-30s used by: %s\n", img.ID, img.UsedBy)
	}

	var pools []hyper.StoragePoolRecord
	if err := json.Unmarshal(snap.Pools, &pools); err != nil {
		return errors.Errorf("decoding cached pools: %w", err)
	}
	fmt.Println("Storage Pools:")
	for _, p := range pools {
		fmt.Printf("  - %-20s %s, %.1f/%.1f GB, %d volumes\n", p.Name, p.State, p.AllocatedGB, p.CapacityGB, len(p.Volumes))
	}

	return nil
}

func checkHealth(ctx context.Context) error {
	c, err := client()
	if err != nil {
		return err
	}

	status, err := c.Health(ctx)
	if err != nil {
		color.New(color.FgHiRed).Printf("Host %s is unreachable: %v\n", c.Endpoint().HostID, err)
		return err
	}

	color.New(color.FgGreen).Printf("Host %s is reachable (%d VMs)\n", c.Endpoint().HostID, status.VMCount)
	return nil
}

func cacheStateLabel(state inventory.State) string {
	switch state {
	case inventory.StateHit:
		return color.GreenString(string(state))
	case inventory.StateStale:
		return color.YellowString(string(state))
	default:
		return string(state)
	}
}

func powerStateLabel(state hyper.PowerState) string {
	switch state {
	case hyper.PowerRunning:
		return color.GreenString("%-8s", string(state))
	case hyper.PowerPaused:
		return color.YellowString("%-8s", string(state))
	default:
		return color.RedString("%-8s", string(state))
	}
}
