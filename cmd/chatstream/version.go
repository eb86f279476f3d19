package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func (a *app) versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print version, commit, and build information for chatstream.`,
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Fprintln(a.stdout, version)
				return
			}

			a.printBanner()
			fmt.Fprintln(a.stdout)
			fmt.Fprintf(a.stdout, "  Version:    %s\n", version)
			fmt.Fprintf(a.stdout, "  Commit:     %s\n", commit)
			fmt.Fprintf(a.stdout, "  Built:      %s\n", date)
			fmt.Fprintf(a.stdout, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(a.stdout, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
			fmt.Fprintln(a.stdout)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only version number")

	return cmd
}
