// Package cmd implements CLI commands using the cobra framework.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/msrp/internal/config"
	"firestige.xyz/msrp/internal/log"
)

// version is set at build time via -ldflags; it defaults to "dev" for
// local builds.
var version = "dev"

var (
	configFile string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "msrp",
	Short: "msrp is a command-line MSRP (RFC 4975) endpoint",
	Long: `msrp implements the Message Session Relay Protocol session engine:
it can act as a passive listener (serve) or an active peer (dial),
exchanging SEND/REPORT chunks over a bound TCP path.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once for the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults built in if omitted)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dialCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd == versionCmd {
		return nil
	}
	loaded, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg = loaded
	if err := log.Init(cfg.Log); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	return nil
}
