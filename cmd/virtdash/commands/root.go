package commands

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/virtops/virtdash/pkg/config"
	"github.com/virtops/virtdash/pkg/console"
	"github.com/virtops/virtdash/pkg/hyper"
	"github.com/virtops/virtdash/pkg/inventory"
	"github.com/virtops/virtdash/pkg/virsh"
)

var (
	// ConfigPath is the location of the YAML configuration file.
	ConfigPath string

	// HostID selects the target host. Empty picks the first configured host.
	HostID string

	// Debug flag for verbose logging
	Debug bool
)

var (
	Cfg    *config.Config
	Runner *virsh.Runner
	Cache  *inventory.Cache
	Broker *console.Broker

	sqlStore *inventory.SQLStore
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "virtdash",
	Short: "Inventory and console tooling for libvirt host fleets",
	Long: `A command line utility for inspecting and managing virtual machines
across a fleet of libvirt hosts. Inventory listings are served through a
per-host TTL cache; console access is brokered through reusable noVNC
tickets.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.InfoLevel
		if Debug {
			level = zerolog.DebugLevel
		}

		ctx := zerolog.Ctx(cmd.Context()).With().Str("command", cmd.Name()).Logger().Level(level).WithContext(cmd.Context())
		cmd.SetContext(ctx)

		var err error
		Cfg, err = config.Load(ConfigPath)
		if err != nil {
			return errors.Errorf("loading configuration: %w", err)
		}
		if len(Cfg.Hosts) == 0 {
			return errors.New("no hosts configured")
		}

		Runner = virsh.NewRunner()

		var store inventory.Store
		if Cfg.Cache.DSN != "" {
			sqlStore, err = inventory.OpenSQLStore(ctx, Cfg.Cache.DSN)
			if err != nil {
				return errors.Errorf("opening cache store: %w", err)
			}
			store = sqlStore
		} else {
			store = inventory.NewMemoryStore()
		}
		Cache = inventory.New(store, Cfg.Cache.TTL())

		Broker = console.NewBroker(
			Cfg.Console.ViewerBaseURL,
			Cfg.Console.WSBaseURL,
			Cfg.Console.SessionTTL(),
			Cfg.Console.HistoryLimit,
		)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if sqlStore != nil {
			return sqlStore.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&ConfigPath, "config", "c", "virtdash.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVarP(&HostID, "host", "H", "", "Target host id (defaults to the first configured host)")
	rootCmd.PersistentFlags().BoolVarP(&Debug, "debug", "d", false, "Enable debug logging")
}

// selectedHost resolves the --host flag against the configuration.
func selectedHost() (config.Host, error) {
	if HostID == "" {
		return Cfg.Hosts[0], nil
	}
	h, ok := Cfg.Host(HostID)
	if !ok {
		return config.Host{}, errors.Errorf("unknown host %q", HostID)
	}
	return h, nil
}

// client builds a mapper bound to the selected host.
func client() (*hyper.Client, error) {
	h, err := selectedHost()
	if err != nil {
		return nil, err
	}
	return hyper.NewClient(h.Endpoint(), Runner), nil
}

func RootCmd() *cobra.Command {
	return rootCmd
}
