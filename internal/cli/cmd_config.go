package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/bugfiler/internal/config"
	bferrors "github.com/randalmurphal/bugfiler/internal/errors"
)

func newConfigCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View configuration",
		Long: `View bugfiler configuration.

Configuration is loaded from these sources, highest priority first:
  1. Environment: ` + config.EnvPrefix + `_* variables (e.g. ` + config.EnvVar("log.level") + `)
  2. File: ~/.config/bugfiler/` + config.ConfigFileName + ` or --config
  3. Defaults: built-in values

The JIRA URL, login and password are not configuration; see 'bugfiler settings'.

Subcommands:
  show   Show merged configuration
  get    Get a specific config value
  path   Print the config file location

Examples:
  bugfiler config show              # Show merged config as YAML
  bugfiler config show --source     # Show with source annotations
  bugfiler config get log.level --source`,
	}

	cmd.AddCommand(newConfigShowCmd(a))
	cmd.AddCommand(newConfigGetCmd(a))
	cmd.AddCommand(newConfigPathCmd(a))

	return cmd
}

func newConfigShowCmd(a *App) *cobra.Command {
	var showSource bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show merged configuration",
		Long: `Show the merged configuration from all sources.

By default, outputs valid YAML. Use --source to see where each value comes from.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch {
			case a.jsonOut:
				return printJSON(out, a.configValues(showSource))
			case showSource:
				printConfigWithSources(out, a)
				return nil
			default:
				return printConfigAsYAML(out, a.cfg)
			}
		},
	}

	cmd.Flags().BoolVar(&showSource, "source", false, "show source for each value")

	return cmd
}

func newConfigGetCmd(a *App) *cobra.Command {
	var showSource bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a specific config value",
		Long: `Get a specific configuration value by key.

Keys use dot notation for nested values (e.g., "log.level").

Examples:
  bugfiler config get defaults.project
  bugfiler config get http.timeout --source`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !slices.Contains(config.Keys, key) {
				return bferrors.ErrNotFound("config key", key)
			}

			value := a.v.Get(key)
			out := cmd.OutOrStdout()
			switch {
			case a.jsonOut:
				entry := configValue{Key: key, Value: value}
				if showSource {
					entry.Source = config.Sources(a.v)[key].String()
				}
				return printJSON(out, entry)
			case showSource:
				_, _ = fmt.Fprintf(out, "%v (from %s)\n", value, config.Sources(a.v)[key])
			default:
				_, _ = fmt.Fprintln(out, value)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSource, "source", false, "show source of the value")

	return cmd
}

func newConfigPathCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.v.ConfigFileUsed()
			if path == "" {
				path = filepath.Join(config.Dir(), config.ConfigFileName)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

// configValue is one key of the merged configuration.
type configValue struct {
	Key    string `json:"key"`
	Value  any    `json:"value"`
	Source string `json:"source,omitempty"`
}

func (a *App) configValues(withSource bool) []configValue {
	sources := config.Sources(a.v)
	values := make([]configValue, 0, len(config.Keys))
	for _, key := range config.Keys {
		entry := configValue{Key: key, Value: a.v.Get(key)}
		if withSource {
			entry.Source = sources[key].String()
		}
		values = append(values, entry)
	}
	return values
}

// printConfigAsYAML outputs the config as valid YAML.
func printConfigAsYAML(out io.Writer, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, _ = fmt.Fprint(out, string(data))
	return nil
}

// printConfigWithSources outputs config values with source annotations.
func printConfigWithSources(out io.Writer, a *App) {
	for _, entry := range a.configValues(true) {
		_, _ = fmt.Fprintf(out, "%s = %v (%s)\n", entry.Key, entry.Value, subtleStyle.Render(entry.Source))
	}
}
