// Package cli implements the mdpack CLI commands: a thin cobra layer
// driving pkg/resolver, pkg/convert, pkg/transfer and pkg/publish.
// Persistent flags are bound onto a shared viper instance, and an init()
// registers every transfer-store backend before a command can reference
// one by name.
package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	// Import transfer-store backends to register them via init().
	_ "github.com/architect-io/mdpack/pkg/transferstore/backend/azurerm"
	_ "github.com/architect-io/mdpack/pkg/transferstore/backend/gcs"
	_ "github.com/architect-io/mdpack/pkg/transferstore/backend/local"
	_ "github.com/architect-io/mdpack/pkg/transferstore/backend/s3"

	"github.com/architect-io/mdpack/pkg/config"
)

// cfg is the shared viper instance every command's flags bind onto
// before calling config.Resolve.
var cfg = config.New()

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "mdpack",
	Short: "Convert and transfer typed metadata packages",
	Long: `mdpack converts between the flat packaged layout and the decomposed
source-tree layout of a declarative-cloud metadata format, and drives
asynchronous deploy/retrieve operations against a remote metadata service.

Examples:
  mdpack resolve ./force-app
  mdpack convert ./force-app --to metadata --out ./build
  mdpack deploy ./force-app
  mdpack retrieve ./manifest/package.xml --out ./force-app
  mdpack transfer list
  mdpack push ./build ghcr.io/myorg/mypackage:v1.0.0
  mdpack pull ghcr.io/myorg/mypackage:v1.0.0`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("package-root", "", "default package root (default: current directory)")
	rootCmd.PersistentFlags().String("ignore-file", "", "ignore-file name searched for while walking a tree")
	rootCmd.PersistentFlags().String("api-version", "", "metadata API version written to package.xml")
	rootCmd.PersistentFlags().Int("parallelism", 0, "converter fan-out bound")
	rootCmd.PersistentFlags().String("backend", "", "transfer store backend (local, s3, gcs, azurerm)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	_ = cfg.BindPFlag(config.KeyIgnoreFile, rootCmd.PersistentFlags().Lookup("ignore-file"))
	_ = cfg.BindPFlag(config.KeyAPIVersion, rootCmd.PersistentFlags().Lookup("api-version"))
	_ = cfg.BindPFlag(config.KeyParallelism, rootCmd.PersistentFlags().Lookup("parallelism"))
	_ = cfg.BindPFlag(config.KeyBackend, rootCmd.PersistentFlags().Lookup("backend"))

	rootCmd.AddCommand(newResolveCmd())
	rootCmd.AddCommand(newConvertCmd())
	rootCmd.AddCommand(newDeployCmd())
	rootCmd.AddCommand(newRetrieveCmd())
	rootCmd.AddCommand(newTransferCmd())
	rootCmd.AddCommand(newPushCmd())
	rootCmd.AddCommand(newPullCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// resolvedConfig builds a config.Config from cmd's bound flags and the
// positional package-root argument, if one was given.
func resolvedConfig(cmd *cobra.Command, args []string) config.Config {
	flagRoot, _ := cmd.Flags().GetString("package-root")
	if len(args) > 0 {
		flagRoot = args[0]
	}
	return config.Resolve(cfg, flagRoot)
}
