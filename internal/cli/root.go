// Package cli implements the claimdesk command line: the web server, bulk
// loading, schema migration and account management.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JonMunkholm/claimdesk/internal/config"
	"github.com/JonMunkholm/claimdesk/internal/core"
	"github.com/JonMunkholm/claimdesk/internal/logging"
	"github.com/JonMunkholm/claimdesk/internal/store"
)

// app carries state shared by the subcommands. cfg is set by the root
// command's PersistentPreRunE.
type app struct {
	v       *viper.Viper
	cfg     *config.Config
	version string
}

// NewRootCommand builds the claimdesk command tree. Global flags override
// the environment and the config file.
func NewRootCommand(version string) *cobra.Command {
	a := &app{v: viper.New(), version: version}

	root := &cobra.Command{
		Use:           "claimdesk",
		Short:         "Review insurance claims and import claim data",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (YAML, TOML or JSON); also "+config.ConfigFileKey)
	pf.String("database-driver", "", "postgres, sqlite or mysql; also DATABASE_DRIVER")
	pf.String("database-url", "", "database connection string; also DATABASE_URL")
	pf.String("log-level", "", "debug, info, warn or error; also LOG_LEVEL")
	pf.String("log-format", "", "text or json; also LOG_FORMAT")
	a.bindFlags(root, map[string]string{
		config.ConfigFileKey: "config",
		"DATABASE_DRIVER":    "database-driver",
		"DATABASE_URL":       "database-url",
		"LOG_LEVEL":          "log-level",
		"LOG_FORMAT":         "log-format",
	})

	root.AddCommand(
		a.serveCommand(),
		a.loadCommand(),
		a.migrateCommand(),
		a.userCommand(),
	)
	return root
}

// bindFlags binds flags of cmd onto the viper keys the config loader reads.
// Persistent flags are looked up first.
func (a *app) bindFlags(cmd *cobra.Command, keys map[string]string) {
	for key, name := range keys {
		f := cmd.PersistentFlags().Lookup(name)
		if f == nil {
			f = cmd.Flags().Lookup(name)
		}
		if err := a.v.BindPFlag(key, f); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

func (a *app) initialize(cmd *cobra.Command) error {
	cfg, err := config.LoadFrom(a.v)
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	a.cfg = cfg
	return nil
}

// openStore connects to the configured database.
func (a *app) openStore(ctx context.Context) (core.Store, error) {
	return store.Open(ctx, a.cfg.Database)
}
