package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/architect-io/mdpack/pkg/publish"
	"github.com/spf13/cobra"
)

func newPushCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "push <dir> <repo:tag>",
		Short: "Push a converted metadata package to an OCI registry",
		Long: `Push a converted metadata package directory to an OCI registry.

This command builds a single-layer OCI artifact from a directory already
produced by 'mdpack convert' and pushes it to the given reference. It is an
alternate distribution path for a converted package, independent of
deploying it directly.

Examples:
  mdpack push ./build ghcr.io/myorg/mypackage:v1.0.0
  mdpack push ./build myorg/mypackage:latest -y`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, reference := args[0], args[1]

			fmt.Printf("Pushing %s as %s\n", dir, reference)

			if !yes {
				fmt.Print("Proceed with push? [Y/n]: ")
				var response string
				_, _ = fmt.Scanln(&response)
				response = strings.ToLower(strings.TrimSpace(response))
				if response != "" && response != "y" && response != "yes" {
					fmt.Println("Push cancelled.")
					return nil
				}
			}

			p, err := publish.New(publish.Options{})
			if err != nil {
				return err
			}

			fmt.Printf("[push] Pushing %s...\n", reference)
			entry, err := p.Push(context.Background(), dir, reference)
			if err != nil {
				return fmt.Errorf("failed to push %s: %w", reference, err)
			}

			fmt.Printf("[success] Pushed %s (%d bytes)\n", entry.Reference, entry.Size)

			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Non-interactive mode")

	return cmd
}
