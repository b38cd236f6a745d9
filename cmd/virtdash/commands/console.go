package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
)

var consoleGroup = &cobra.Group{
	ID:    "console",
	Title: "Console Access",
}

func init() {
	rootCmd.AddGroup(consoleGroup)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(consoleSessionsCmd)
}

// consoleCmd represents the console command
var consoleCmd = &cobra.Command{
	Use:   "console <vm>",
	Short: "Request a console session for a VM",
	Long: `Request a noVNC console session for a virtual machine. A fresh existing
session for the same VM is reused instead of minting a new ticket.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return requestConsole(cmd.Context(), args[0])
	},
	GroupID: consoleGroup.ID,
}

// consoleSessionsCmd represents the console-sessions command
var consoleSessionsCmd = &cobra.Command{
	Use:   "console-sessions",
	Short: "Show issued console sessions",
	Long:  `Show the retained console session history, most recent first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return showConsoleSessions()
	},
	GroupID: consoleGroup.ID,
}

func requestConsole(ctx context.Context, vmID string) error {
	c, err := client()
	if err != nil {
		return err
	}

	ep := c.Endpoint()
	session, err := Broker.Request(ctx, ep.HostID, vmID, ep.Address, c)
	if err != nil {
		return errors.Errorf("requesting console session: %w", err)
	}

	fmt.Printf("Ticket:  %s\n", session.Ticket)
	fmt.Printf("Viewer:  %s\n", session.ViewerURL)
	if session.VNCPort != 0 {
		fmt.Printf("VNC:     %s:%d\n", session.VNCHost, session.VNCPort)
	}
	return nil
}

func showConsoleSessions() error {
	sessions := Broker.Sessions()
	if len(sessions) == 0 {
		fmt.Println("No console sessions issued")
		return nil
	}

	fmt.Println("Console Sessions:")
	for _, s := range sessions {
		fmt.Printf("  - %s  host=%s vm=%s ticket=%s\n",
			s.CreatedAt.Format("2006-01-02 15:04:05"), s.HostID, s.VMID, s.Ticket)
	}
	return nil
}
