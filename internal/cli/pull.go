package cli

import (
	"context"
	"fmt"

	"github.com/architect-io/mdpack/pkg/publish"
	"github.com/spf13/cobra"
)

func newPullCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "pull <repo:tag>",
		Short: "Pull a converted metadata package from an OCI registry",
		Long: `Pull a converted metadata package from an OCI registry to the local cache.

This command downloads the package artifact and records it in the local
push/pull history. The extracted package can then be deployed or inspected.

Examples:
  mdpack pull ghcr.io/myorg/mypackage:v1.0.0
  mdpack pull myorg/mypackage:latest`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reference := args[0]
			ctx := context.Background()

			if !quiet {
				fmt.Printf("Pulling %s\n", reference)
			}

			p, err := publish.New(publish.Options{})
			if err != nil {
				return err
			}

			if !quiet {
				fmt.Printf("[pull] Downloading %s...\n", reference)
			}

			cacheDir, err := p.Pull(ctx, reference)
			if err != nil {
				return fmt.Errorf("failed to pull %s: %w", reference, err)
			}

			if !quiet {
				fmt.Printf("[success] Pulled %s\n", reference)
				fmt.Printf("  Cache: %s\n", cacheDir)
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress output")

	return cmd
}
