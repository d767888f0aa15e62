package main

import (
	"fmt"
	"io"

	"github.com/jamesainslie/tidy/pkg/tidy/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (a *cli) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage tidy configuration settings.

Configuration is loaded from:
  1. --config <file>
  2. $XDG_CONFIG_HOME/tidy/config.yaml (if set)
  3. ~/.config/tidy/config.yaml

Environment variables override file settings using the TIDY_ prefix:
  TIDY_NOT_MODIFIED_WITHIN=7d
  TIDY_DRY_RUN=true
  TIDY_LOGGING_LEVEL=debug`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runConfigShow(cmd.OutOrStdout())
		},
	}, &cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, created, err := config.WriteDefault()
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", path)
			}
			return nil
		},
	}, &cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.v.ConfigFileUsed()
			if path == "" {
				var err error
				if path, err = config.ConfigFile(); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})

	return cmd
}

func (a *cli) runConfigShow(w io.Writer) error {
	if file := a.v.ConfigFileUsed(); file != "" {
		fmt.Fprintf(w, "# Config file: %s\n", file)
	} else {
		fmt.Fprintln(w, "# Config file: none found, using defaults")
	}

	data, err := yaml.Marshal(a.v.AllSettings())
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	_, err = w.Write(data)
	return err
}
