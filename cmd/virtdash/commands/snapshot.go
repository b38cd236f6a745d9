package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
)

var snapshotGroup = &cobra.Group{
	ID:    "snapshot",
	Title: "Snapshot Management",
}

func init() {
	rootCmd.AddGroup(snapshotGroup)
	rootCmd.AddCommand(createSnapshotCmd)
	rootCmd.AddCommand(listSnapshotsCmd)
	rootCmd.AddCommand(revertSnapshotCmd)
	rootCmd.AddCommand(deleteSnapshotCmd)
}

// createSnapshotCmd represents the create-snapshot command
var createSnapshotCmd = &cobra.Command{
	Use:   "create-snapshot <vm> <name>",
	Short: "Create a VM snapshot",
	Long:  `Create a named snapshot of a virtual machine.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return createSnapshot(cmd.Context(), args[0], args[1])
	},
	GroupID: snapshotGroup.ID,
}

// listSnapshotsCmd represents the list-snapshots command
var listSnapshotsCmd = &cobra.Command{
	Use:   "list-snapshots <vm>",
	Short: "List a VM's snapshots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return listSnapshots(cmd.Context(), args[0])
	},
	GroupID: snapshotGroup.ID,
}

// revertSnapshotCmd represents the revert-snapshot command
var revertSnapshotCmd = &cobra.Command{
	Use:   "revert-snapshot <vm> <snapshot>",
	Short: "Revert a VM to a snapshot",
	Long:  `Revert a virtual machine to a named snapshot and resume it.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return revertSnapshot(cmd.Context(), args[0], args[1])
	},
	GroupID: snapshotGroup.ID,
}

// deleteSnapshotCmd represents the delete-snapshot command
var deleteSnapshotCmd = &cobra.Command{
	Use:   "delete-snapshot <vm> <snapshot>",
	Short: "Delete a VM snapshot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deleteSnapshot(cmd.Context(), args[0], args[1])
	},
	GroupID: snapshotGroup.ID,
}

func createSnapshot(ctx context.Context, vmID, name string) error {
	c, err := client()
	if err != nil {
		return err
	}

	snap, err := c.CreateSnapshot(ctx, vmID, name)
	if err != nil {
		return errors.Errorf("creating snapshot: %w", err)
	}

	fmt.Printf("Snapshot %s created for VM %s\n", snap.Name, vmID)
	return nil
}

func listSnapshots(ctx context.Context, vmID string) error {
	c, err := client()
	if err != nil {
		return err
	}

	snaps, err := c.ListSnapshots(ctx, vmID)
	if err != nil {
		return errors.Errorf("listing snapshots: %w", err)
	}

	fmt.Printf("Snapshots of %s:\n", vmID)
	for _, s := range snaps {
		fmt.Printf("  - %s\n", s.Name)
	}

	return nil
}

func revertSnapshot(ctx context.Context, vmID, snapshotID string) error {
	c, err := client()
	if err != nil {
		return err
	}

	if err := c.RevertSnapshot(ctx, vmID, snapshotID); err != nil {
		return errors.Errorf("reverting snapshot: %w", err)
	}

	fmt.Printf("VM %s reverted to snapshot %s\n", vmID, snapshotID)
	return nil
}

func deleteSnapshot(ctx context.Context, vmID, snapshotID string) error {
	c, err := client()
	if err != nil {
		return err
	}

	if err := c.DeleteSnapshot(ctx, vmID, snapshotID); err != nil {
		return errors.Errorf("deleting snapshot: %w", err)
	}

	fmt.Printf("Snapshot %s deleted from VM %s\n", snapshotID, vmID)
	return nil
}
