package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
)

var networkGroup = &cobra.Group{
	ID:    "network",
	Title: "Network Management",
}

var createVLANID int

func init() {
	rootCmd.AddGroup(networkGroup)
	rootCmd.AddCommand(listNetworksCmd)
	rootCmd.AddCommand(createNetworkCmd)
	rootCmd.AddCommand(deleteNetworkCmd)

	createNetworkCmd.Flags().IntVar(&createVLANID, "vlan", 0, "VLAN id (0 for none)")
}

// listNetworksCmd represents the list-networks command
var listNetworksCmd = &cobra.Command{
	Use:   "list-networks",
	Short: "List virtual networks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listNetworks(cmd.Context())
	},
	GroupID: networkGroup.ID,
}

// createNetworkCmd represents the create-network command
var createNetworkCmd = &cobra.Command{
	Use:   "create-network <name> <cidr>",
	Short: "Create a NAT network",
	Long:  `Define, autostart, and start a NAT network with a gateway derived from the CIDR.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return createNetwork(cmd.Context(), args[0], args[1])
	},
	GroupID: networkGroup.ID,
}

// deleteNetworkCmd represents the delete-network command
var deleteNetworkCmd = &cobra.Command{
	Use:   "delete-network <name>",
	Short: "Delete a virtual network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deleteNetwork(cmd.Context(), args[0])
	},
	GroupID: networkGroup.ID,
}

func listNetworks(ctx context.Context) error {
	c, err := client()
	if err != nil {
		return err
	}

	nets, err := c.ListNetworks(ctx)
	if err != nil {
		return errors.Errorf("listing networks: %w", err)
	}

	fmt.Println("Networks:")
	for _, n := range nets {
		fmt.Printf("  - %-20s %s\n", n.Name, n.CIDR)
	}

	return nil
}

func createNetwork(ctx context.Context, name, cidr string) error {
	c, err := client()
	if err != nil {
		return err
	}

	var vlan *int
	if createVLANID > 0 {
		vlan = &createVLANID
	}

	net, err := c.CreateNetwork(ctx, name, cidr, vlan)
	if err != nil {
		return errors.Errorf("creating network: %w", err)
	}

	fmt.Printf("Network %s created (%s)\n", net.Name, net.CIDR)
	return nil
}

func deleteNetwork(ctx context.Context, name string) error {
	c, err := client()
	if err != nil {
		return err
	}

	if err := c.DeleteNetwork(ctx, name); err != nil {
		return errors.Errorf("deleting network: %w", err)
	}

	fmt.Printf("Network %s deleted\n", name)
	return nil
}
