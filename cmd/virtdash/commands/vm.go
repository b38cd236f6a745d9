package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/virtops/virtdash/pkg/hyper"
)

var vmGroup = &cobra.Group{
	ID:    "vm",
	Title: "VM Management",
}

var (
	createCPUCores int
	createMemoryMB int
	createVMImage  string
	createVMNetwork string

	migrateLive bool
)

func init() {
	rootCmd.AddGroup(vmGroup)
	rootCmd.AddCommand(listVMsCmd)
	rootCmd.AddCommand(createVMCmd)
	rootCmd.AddCommand(vmActionCmd)
	rootCmd.AddCommand(resizeVMCmd)
	rootCmd.AddCommand(deleteVMCmd)
	rootCmd.AddCommand(migrateVMCmd)

	createVMCmd.Flags().IntVar(&createCPUCores, "cpus", 2, "vCPU count")
	createVMCmd.Flags().IntVar(&createMemoryMB, "memory", 2048, "Memory in MB")
	createVMCmd.Flags().StringVar(&createVMImage, "image", "", "Image reference (pool::volume, absolute path, or bare volume name)")
	createVMCmd.Flags().StringVar(&createVMNetwork, "network", "default", "Network to attach")

	migrateVMCmd.Flags().BoolVar(&migrateLive, "live", false, "Migrate without stopping the VM")
}

// listVMsCmd represents the list-vms command
var listVMsCmd = &cobra.Command{
	Use:   "list-vms",
	Short: "List all VMs on a host",
	Long:  `List all virtual machines defined on the selected host, bypassing the cache.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listVMs(cmd.Context())
	},
	GroupID: vmGroup.ID,
}

// createVMCmd represents the create-vm command
var createVMCmd = &cobra.Command{
	Use:   "create-vm <name>",
	Short: "Create a new VM",
	Long:  `Define a new virtual machine on the selected host from an image reference.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return createVM(cmd.Context(), args[0])
	},
	GroupID: vmGroup.ID,
}

// vmActionCmd represents the vm-action command
var vmActionCmd = &cobra.Command{
	Use:   "vm-action <name> <start|stop|reboot|pause|resume>",
	Short: "Apply a power action to a VM",
	Long: `Apply a power-state transition to a virtual machine. The transition is
passed to the hypervisor unvalidated; an impossible transition fails there.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return applyVMAction(cmd.Context(), args[0], hyper.Action(args[1]))
	},
	GroupID: vmGroup.ID,
}

// resizeVMCmd represents the resize-vm command
var resizeVMCmd = &cobra.Command{
	Use:   "resize-vm <name> <cpus> <memory-mb>",
	Short: "Resize a VM",
	Long:  `Adjust a virtual machine's vCPU count and memory allocation.`,
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cpus, err := strconv.Atoi(args[1])
		if err != nil {
			return errors.Errorf("parsing cpu count: %w", err)
		}
		memMB, err := strconv.Atoi(args[2])
		if err != nil {
			return errors.Errorf("parsing memory: %w", err)
		}
		return resizeVM(cmd.Context(), args[0], cpus, memMB)
	},
	GroupID: vmGroup.ID,
}

// deleteVMCmd represents the delete-vm command
var deleteVMCmd = &cobra.Command{
	Use:   "delete-vm <name>",
	Short: "Delete a VM",
	Long:  `Force-stop a virtual machine when needed and remove its definition.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deleteVM(cmd.Context(), args[0])
	},
	GroupID: vmGroup.ID,
}

// migrateVMCmd represents the migrate-vm command
var migrateVMCmd = &cobra.Command{
	Use:   "migrate-vm <name> <target-uri>",
	Short: "Migrate a VM to another host",
	Long:  `Migrate a virtual machine to another host's management URI.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return migrateVM(cmd.Context(), args[0], args[1])
	},
	GroupID: vmGroup.ID,
}

// Implementation functions

func listVMs(ctx context.Context) error {
	c, err := client()
	if err != nil {
		return err
	}

	vms, err := c.ListVMs(ctx)
	if err != nil {
		return errors.Errorf("listing VMs: %w", err)
	}

	fmt.Println("Virtual Machines:")
	for _, vm := range vms {
		fmt.Printf("  - %-20s %s  %d vCPU, %d MB, networks: %v\n",
			vm.Name, powerStateLabel(vm.PowerState), vm.CPUCores, vm.MemoryMB, vm.Networks)
	}

	return nil
}

func createVM(ctx context.Context, name string) error {
	c, err := client()
	if err != nil {
		return err
	}

	vm, err := c.CreateVM(ctx, hyper.CreateVMRequest{
		Name:     name,
		CPUCores: createCPUCores,
		MemoryMB: createMemoryMB,
		Image:    createVMImage,
		Network:  createVMNetwork,
	})
	if err != nil {
		return errors.Errorf("creating VM: %w", err)
	}

	fmt.Printf("VM %s defined (%d vCPU, %d MB)\n", vm.Name, vm.CPUCores, vm.MemoryMB)
	return nil
}

func applyVMAction(ctx context.Context, name string, action hyper.Action) error {
	c, err := client()
	if err != nil {
		return err
	}

	if err := c.ApplyAction(ctx, name, action); err != nil {
		return errors.Errorf("applying %s to %s: %w", action, name, err)
	}

	fmt.Printf("Action %s applied to VM %s\n", action, name)
	return nil
}

func resizeVM(ctx context.Context, name string, cpus, memMB int) error {
	c, err := client()
	if err != nil {
		return err
	}

	if err := c.Resize(ctx, name, cpus, memMB); err != nil {
		return errors.Errorf("resizing VM: %w", err)
	}

	fmt.Printf("VM %s resized to %d vCPU, %d MB\n", name, cpus, memMB)
	return nil
}

func deleteVM(ctx context.Context, name string) error {
	c, err := client()
	if err != nil {
		return err
	}

	if err := c.Delete(ctx, name); err != nil {
		return errors.Errorf("deleting VM: %w", err)
	}

	fmt.Printf("VM %s deleted\n", name)
	return nil
}

func migrateVM(ctx context.Context, name, targetURI string) error {
	c, err := client()
	if err != nil {
		return err
	}

	if err := c.Migrate(ctx, name, targetURI, migrateLive); err != nil {
		return errors.Errorf("migrating VM: %w", err)
	}

	fmt.Printf("VM %s migrated to %s\n", name, targetURI)
	return nil
}
