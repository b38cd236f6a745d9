package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
)

var storageGroup = &cobra.Group{
	ID:    "storage",
	Title: "Storage Management",
}

var createImagePool string

func init() {
	rootCmd.AddGroup(storageGroup)
	rootCmd.AddCommand(listPoolsCmd)
	rootCmd.AddCommand(listImagesCmd)
	rootCmd.AddCommand(createImageCmd)
	rootCmd.AddCommand(deleteImageCmd)
	rootCmd.AddCommand(attachISOCmd)
	rootCmd.AddCommand(detachISOCmd)
	rootCmd.AddCommand(currentISOCmd)

	createImageCmd.Flags().StringVar(&createImagePool, "pool", "", "Target pool (defaults to the host's configured pool)")
}

// listPoolsCmd represents the list-pools command
var listPoolsCmd = &cobra.Command{
	Use:   "list-pools",
	Short: "List storage pools with volume usage",
	Long:  `List storage pools and their volumes, cross-referenced against every VM's block devices.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listPools(cmd.Context())
	},
	GroupID: storageGroup.ID,
}

// listImagesCmd represents the list-images command
var listImagesCmd = &cobra.Command{
	Use:   "list-images",
	Short: "List disk images",
	Long:  `List image volumes (qcow2, iso, img) found across all storage pools.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listImages(cmd.Context())
	},
	GroupID: storageGroup.ID,
}

// createImageCmd represents the create-image command
var createImageCmd = &cobra.Command{
	Use:   "create-image <name> <size-gb>",
	Short: "Allocate a new qcow2 volume",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sizeGB, err := strconv.Atoi(args[1])
		if err != nil {
			return errors.Errorf("parsing size: %w", err)
		}
		return createImage(cmd.Context(), args[0], sizeGB)
	},
	GroupID: storageGroup.ID,
}

// deleteImageCmd represents the delete-image command
var deleteImageCmd = &cobra.Command{
	Use:   "delete-image <pool::volume>",
	Short: "Delete an image volume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deleteImage(cmd.Context(), args[0])
	},
	GroupID: storageGroup.ID,
}

// attachISOCmd represents the attach-iso command
var attachISOCmd = &cobra.Command{
	Use:   "attach-iso <vm> <iso-path>",
	Short: "Attach an ISO to a VM",
	Long:  `Insert an ISO into the VM's cdrom drive, attaching a drive first when none exists.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return attachISO(cmd.Context(), args[0], args[1])
	},
	GroupID: storageGroup.ID,
}

// detachISOCmd represents the detach-iso command
var detachISOCmd = &cobra.Command{
	Use:   "detach-iso <vm>",
	Short: "Detach a VM's ISO",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return detachISO(cmd.Context(), args[0])
	},
	GroupID: storageGroup.ID,
}

// currentISOCmd represents the current-iso command
var currentISOCmd = &cobra.Command{
	Use:   "current-iso <vm>",
	Short: "Show a VM's attached ISO",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return currentISO(cmd.Context(), args[0])
	},
	GroupID: storageGroup.ID,
}

func listPools(ctx context.Context) error {
	c, err := client()
	if err != nil {
		return err
	}

	pools, err := c.ListStoragePools(ctx)
	if err != nil {
		return errors.Errorf("listing pools: %w", err)
	}

	fmt.Println("Storage Pools:")
	for _, p := range pools {
		fmt.Printf("  - %s (%s, %.1f/%.1f GB)\n", p.Name, p.State, p.AllocatedGB, p.CapacityGB)
		for _, v := range p.Volumes {
			fmt.Printf("      %-30s %-6s %6.1f GB  used by: %s\n", v.Name, v.Kind, v.SizeGB, v.UsedBy)
		}
	}

	return nil
}

func listImages(ctx context.Context) error {
	c, err := client()
	if err != nil {
		return err
	}

	images, err := c.ListImages(ctx)
	if err != nil {
		return errors.Errorf("listing images: %w", err)
	}

	fmt.Println("Images:")
	for _, img := range images {
		fmt.Printf("  - %-30s used by: %s\n", img.ID, img.UsedBy)
	}

	return nil
}

func createImage(ctx context.Context, name string, sizeGB int) error {
	c, err := client()
	if err != nil {
		return err
	}

	img, err := c.CreateImage(ctx, name, createImagePool, sizeGB)
	if err != nil {
		return errors.Errorf("creating image: %w", err)
	}

	fmt.Printf("Image %s created\n", img.ID)
	return nil
}

func deleteImage(ctx context.Context, imageID string) error {
	c, err := client()
	if err != nil {
		return err
	}

	if err := c.DeleteImage(ctx, imageID); err != nil {
		return errors.Errorf("deleting image: %w", err)
	}

	fmt.Printf("Image %s deleted\n", imageID)
	return nil
}

func currentISO(ctx context.Context, vmID string) error {
	c, err := client()
	if err != nil {
		return err
	}

	iso := c.CurrentISO(ctx, vmID)
	if iso == "" {
		fmt.Printf("VM %s has no ISO attached\n", vmID)
		return nil
	}
	fmt.Printf("VM %s has %s attached\n", vmID, iso)
	return nil
}

func attachISO(ctx context.Context, vmID, isoPath string) error {
	c, err := client()
	if err != nil {
		return err
	}

	status, err := c.AttachISO(ctx, vmID, isoPath)
	if err != nil {
		return errors.Errorf("attaching ISO: %w", err)
	}

	fmt.Printf("ISO %s attached to VM %s\n", status.ISOPath, vmID)
	return nil
}

func detachISO(ctx context.Context, vmID string) error {
	c, err := client()
	if err != nil {
		return err
	}

	status := c.DetachISO(ctx, vmID)
	if status.Detached {
		fmt.Printf("ISO detached from VM %s\n", vmID)
	} else {
		fmt.Printf("VM %s had no ISO attached\n", vmID)
	}
	return nil
}
