package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/architect-io/mdpack/pkg/config"
)

// configurableKeys maps the CLI-facing dashed key name to its viper key,
// covering the full set of ambient settings pkg/config resolves.
var configurableKeys = map[string]string{
	"package-root":  config.KeyPackageRoot,
	"cache-dir":     config.KeyCacheDir,
	"ignore-file":   config.KeyIgnoreFile,
	"poll-interval": config.KeyPollInterval,
	"api-version":   config.KeyAPIVersion,
	"parallelism":   config.KeyParallelism,
	"backend":       config.KeyBackend,
}

// configKeyOrder lists the configurable keys in a stable display order.
var configKeyOrder = []string{
	"package-root", "cache-dir", "ignore-file", "poll-interval",
	"api-version", "parallelism", "backend",
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage mdpack CLI configuration",
		Long:  `Get and set mdpack CLI configuration values stored in ~/.mdpack/config.yaml.`,
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigListCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in ~/.mdpack/config.yaml.

Available keys:
  package-root, cache-dir, ignore-file, poll-interval, api-version,
  parallelism, backend

Examples:
  mdpack config set api-version 62.0
  mdpack config set parallelism 16`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			viperKey, ok := configurableKeys[key]
			if !ok {
				return fmt.Errorf("unknown configuration key %q\n\nAvailable keys: %s", key, availableKeys())
			}

			cfg.Set(viperKey, value)
			if err := writeConfig(); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Printf("Set %s = %s\n", key, value)
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Long: `Get a configuration value from ~/.mdpack/config.yaml.

Examples:
  mdpack config get api-version`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			viperKey, ok := configurableKeys[key]
			if !ok {
				return fmt.Errorf("unknown configuration key %q\n\nAvailable keys: %s", key, availableKeys())
			}

			value := cfg.GetString(viperKey)
			if value == "" {
				fmt.Printf("%s is not set\n", key)
			} else {
				fmt.Println(value)
			}
			return nil
		},
	}
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration values",
		Long:  `List all configuration values from ~/.mdpack/config.yaml.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Configuration:")
			printed := false
			for _, key := range configKeyOrder {
				value := cfg.GetString(configurableKeys[key])
				if value == "" {
					continue
				}
				fmt.Printf("  %s = %s\n", key, value)
				printed = true
			}
			if !printed {
				fmt.Println("  (no values set)")
			}
			return nil
		},
	}
}

// writeConfig persists the shared viper instance to its resolved config
// file path, creating ~/.mdpack if needed.
func writeConfig() error {
	path, err := config.ConfigFilePath()
	if err != nil {
		return err
	}
	return cfg.WriteConfigAs(path)
}

func availableKeys() string {
	return "package-root, cache-dir, ignore-file, poll-interval, api-version, parallelism, backend"
}
