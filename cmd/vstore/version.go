package main

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vstore/internal/config"
	"github.com/vango-dev/vstore/pkg/persist"
)

const modulePath = "github.com/vango-dev/vstore"

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print the vstore version, the snapshot format it reads and
writes, and the persist backends compiled in.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(out, version)
				return
			}
			printVersion(out)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only version number")

	return cmd
}

func printVersion(w io.Writer) {
	module := modulePath
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Path != "" {
		module = bi.Main.Path
	}

	fmt.Fprint(w, banner)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  vstore %s (%s, built %s)\n", version, commit, date)
	fmt.Fprintf(w, "  Module:     %s\n", module)
	fmt.Fprintf(w, "  Snapshots:  format v%d\n", persist.CurrentVersion)
	fmt.Fprintf(w, "  Backends:   %v\n", config.Backends())
	fmt.Fprintf(w, "  Runtime:    %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintln(w)
}
