package main

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vstore/internal/config"
	"github.com/vango-dev/vstore/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╦  ╦┌─┐┌┬┐┌─┐┬─┐┌─┐
  ╚╗╔╝└─┐ │ │ │├┬┘├┤
   ╚╝ └─┘ ┴ └─┘┴└─└─┘
`

func main() {
	if err := rootCmd().Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "vstore",
		Short: "Reactive state stores over HTTP and WebSocket",
		Long: `vstore serves a registry of reactive stores.

Clients read and patch state, call actions over HTTP and
follow every mutation over a WebSocket. State snapshots are
persisted to memory, disk, Redis, Postgres, S3 or NATS.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: vstore.json or vstore.yaml in the working directory)")

	load := func() (*config.Config, error) {
		return loadConfig(configPath)
	}

	root.AddCommand(
		serveCmd(load),
		snapshotCmd(load),
		configCmd(),
		versionCmd(),
	)
	return root
}

// loadConfig reads path, or the config found from the working directory.
// Without any config file the defaults are used.
func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.LoadFromWorkingDir()
		if stderrors.Is(err, errors.New("E031")) {
			cfg, err = config.New(), nil
		}
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// printBanner prints the vstore ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
