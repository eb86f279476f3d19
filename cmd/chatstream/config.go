package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/chatstream/internal/config"
	"github.com/vango-dev/chatstream/internal/errors"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create chatstream.yaml",
	}
	cmd.AddCommand(a.configShowCmd(), a.configInitCmd())
	return cmd
}

func (a *app) configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after files, environment and flags are applied,
preceded by the files it was read from and the resolved endpoint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			sources := cfg.Sources()
			if len(sources) == 0 {
				fmt.Fprintln(a.stdout, "# no config files found, using defaults")
			}
			for _, src := range sources {
				fmt.Fprintf(a.stdout, "# from %s\n", src)
			}
			fmt.Fprintf(a.stdout, "# endpoint %s\n", cfg.Endpoint())

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return errors.New("C002").Wrap(err)
			}
			_, err = a.stdout.Write(data)
			return err
		},
	}
}

func (a *app) configInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default chatstream.yaml",
		Long: `Write the default configuration to path (default ./chatstream.yaml).
An existing file is kept unless --force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ConfigFileName
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return errors.New("C301").
					WithDetail(path + " already exists.").
					WithSuggestion("Pass --force to overwrite it.")
			}
			if err := config.New().Save(path); err != nil {
				return err
			}
			abs, _ := filepath.Abs(path)
			a.success("Wrote %s", abs)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	return cmd
}
