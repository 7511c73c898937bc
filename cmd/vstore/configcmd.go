package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vstore/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var (
		useYAML bool
		force   bool
	)
	initCmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			name := config.ConfigFileName
			if useYAML {
				name = config.YAMLConfigFileName
			}
			path := filepath.Join(dir, name)

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.New().SaveTo(path); err != nil {
				return err
			}
			success("Wrote %s", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&useYAML, "yaml", false, "Write vstore.yaml instead of vstore.json")
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	validateCmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			cfg, err := loadConfig(path)
			if err != nil {
				return err
			}
			if cfg.Path() == "" {
				warn("no config file found; defaults are valid")
				return nil
			}
			success("%s is valid", cfg.Path())
			return nil
		},
	}

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
