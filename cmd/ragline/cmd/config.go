package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ragline/ragline/internal/cli"
	"github.com/ragline/ragline/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the ragline configuration file.

All commands share one file; each node reads the sections it needs.
Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. Config file (./ragline.yaml or --config)
  3. Environment variables (RAGLINE_*, OPENAI_API_KEY, CHROMA_URL, ...)
  4. Command-line flags`,
		Example: `  # Write a config file with the defaults spelled out
  ragline config init

  # Show the effective configuration after merging all sources
  ragline config show`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file",
		Long: `Write a configuration file with every setting spelled out at its
default value, as a starting point for editing.

The file is written to the --config path, or ./ragline.yaml.`,
		Example: `  ragline config init

  # Somewhere else
  ragline config init --config /etc/ragline/ragline.yaml

  # Overwrite an existing file
  ragline config init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long: `Show the configuration a node would start with after merging
defaults, the config file, environment variables, and flags.`,
		Example: `  ragline config show

  # As JSON
  ragline config show --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := cli.New(cmd.OutOrStdout())

	path := cfgFile
	if path == "" {
		path = "ragline.yaml"
	}

	if fileExists(path) && !force {
		out.Warning("configuration file already exists")
		out.Statusf("", "location: %s", path)
		out.Status("", "use --force to overwrite it")
		return nil
	}

	cfg := config.NewConfig()
	if dataDirFlag != "" {
		cfg.DataDir = dataDirFlag
	}
	if err := cfg.WriteYAML(path); err != nil {
		return err
	}

	out.Success("created configuration file")
	out.Statusf("", "location: %s", path)
	out.Newline()
	out.Status("", "edit it, then verify with 'ragline config show'")
	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if jsonOutput {
		// Round-trip through YAML so the JSON keys match the file format.
		var m map[string]any
		if err := yaml.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
	return err
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
