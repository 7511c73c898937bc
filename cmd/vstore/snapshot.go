package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vstore/internal/config"
	"github.com/vango-dev/vstore/pkg/persist"
)

func snapshotCmd(load func() (*config.Config, error)) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect persisted snapshots",
		Long: `Inspect the snapshot saved by the configured backend.

Examples:
  vstore snapshot show
  vstore snapshot get cart lines.0.sku
  vstore snapshot validate ./backup.json
  vstore snapshot delete --key=staging`,
	}
	cmd.PersistentFlags().StringVarP(&key, "key", "k", "", "Snapshot key (default from config)")

	// withSnapshot loads the raw snapshot from the configured backend.
	withSnapshot := func(cmd *cobra.Command, fn func(data []byte) error) error {
		cfg, err := load()
		if err != nil {
			return err
		}
		if key == "" {
			key = cfg.Persist.Key
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		backend, cleanup, err := openBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer cleanup()
		if backend == nil {
			return fmt.Errorf("persistence is off (persist.backend is %q)", cfg.Persist.Backend)
		}
		defer backend.Close()

		data, err := backend.Load(ctx, key)
		if err != nil {
			return err
		}
		if data == nil {
			return fmt.Errorf("no snapshot under key %q", key)
		}
		return fn(data)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the whole snapshot",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSnapshot(cmd, func(data []byte) error {
					env, err := persist.DecodeEnvelope(data)
					if err != nil {
						return err
					}
					return showEnvelope(cmd.OutOrStdout(), env)
				})
			},
		},
		&cobra.Command{
			Use:   "get <store> [path]",
			Short: "Print one store, or one value inside it",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSnapshot(cmd, func(data []byte) error {
					return getValue(cmd.OutOrStdout(), data, args)
				})
			},
		},
		&cobra.Command{
			Use:   "validate <file>",
			Short: "Check that a file holds a readable snapshot",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				env, err := persist.DecodeEnvelope(data)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "valid snapshot: version %d, %d stores\n", env.Version, len(env.Stores))
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Delete the snapshot",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := load()
				if err != nil {
					return err
				}
				if key == "" {
					key = cfg.Persist.Key
				}
				backend, cleanup, err := openBackend(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer cleanup()
				if backend == nil {
					return fmt.Errorf("persistence is off (persist.backend is %q)", cfg.Persist.Backend)
				}
				defer backend.Close()
				if err := backend.Delete(cmd.Context(), key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted snapshot %q\n", key)
				return nil
			},
		},
	)
	return cmd
}

func showEnvelope(w io.Writer, env *persist.Envelope) error {
	fmt.Fprintf(w, "version:  %d\n", env.Version)
	fmt.Fprintf(w, "saved at: %s\n", env.SavedAt.Format(time.RFC3339))

	ids := make([]string, 0, len(env.Stores))
	for id := range env.Stores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		data, err := json.MarshalIndent(env.Stores[id], "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\n%s:\n%s\n", id, data)
	}
	return nil
}

func getValue(w io.Writer, data []byte, args []string) error {
	id := args[0]
	if len(args) == 2 {
		res, err := persist.ExtractField(data, id, args[1])
		if err != nil {
			return err
		}
		if !res.Exists() {
			return fmt.Errorf("%s has no value at %q", id, args[1])
		}
		fmt.Fprintln(w, res.Raw)
		return nil
	}

	state, found, err := persist.Extract(data, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("snapshot has no store %q", id)
	}
	out, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(out))
	return nil
}
