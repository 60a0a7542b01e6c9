package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/architect-io/mdpack/pkg/catalog"
	"github.com/architect-io/mdpack/pkg/componentset"
	"github.com/architect-io/mdpack/pkg/convert"
	"github.com/architect-io/mdpack/pkg/manifest"
	"github.com/architect-io/mdpack/pkg/resolver"
	"github.com/architect-io/mdpack/pkg/tree"
	"github.com/architect-io/mdpack/pkg/writer"
)

func newConvertCmd() *cobra.Command {
	var direction string
	var manifestPath string
	var outPath string
	var asZip bool

	cmd := &cobra.Command{
		Use:   "convert [path]",
		Short: "Transform resolved components between source and metadata layout",
		Long: `Resolve the tree rooted at path (default: the package root), transform
every component through its registered Transformer, and stage the result
through a Writer.

Examples:
  mdpack convert ./force-app --to metadata --out ./build
  mdpack convert ./build --to source --out ./force-app
  mdpack convert ./force-app --to metadata --zip --out ./build.zip`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved := resolvedConfig(cmd, args)
			if outPath == "" {
				return fmt.Errorf("--out is required")
			}

			dir, err := parseDirection(direction)
			if err != nil {
				return err
			}

			registry, err := catalog.Load()
			if err != nil {
				return err
			}

			var filter *componentset.Set
			if manifestPath != "" {
				data, err := os.ReadFile(manifestPath)
				if err != nil {
					return fmt.Errorf("failed to read manifest: %w", err)
				}
				parsed, err := manifest.Parse(data, registry)
				if err != nil {
					return err
				}
				filter = componentset.FromManifest(parsed.Entries)
			}

			r := resolver.New(resolver.Options{Registry: registry, IgnoreFileName: resolved.IgnoreFile})
			t := tree.OSTree(resolved.PackageRoot)

			ctx := context.Background()
			set, err := r.ResolveSource(ctx, t, []string{"."}, filter)
			if err != nil {
				return err
			}

			c := convert.New(convert.Options{Parallelism: int64(resolved.Parallelism)})

			if asZip {
				zw := writer.NewZipWriter()
				if err := c.Convert(ctx, set, dir, zw); err != nil {
					return err
				}
				data, err := zw.Finalize()
				if err != nil {
					return err
				}
				if err := os.WriteFile(outPath, data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", outPath, err)
				}
				fmt.Printf("Wrote %s (%d bytes, %d component(s))\n", outPath, len(data), set.Len())
				return nil
			}

			sw := writer.NewStandardWriter(outPath)
			if err := c.Convert(ctx, set, dir, sw); err != nil {
				return err
			}
			fmt.Printf("Converted %d component(s) into %s\n", set.Len(), outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&direction, "to", "metadata", "target format: metadata or source")
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "filter the walk to components listed in this package.xml")
	cmd.Flags().StringVar(&outPath, "out", "", "output directory (or zip file path with --zip)")
	cmd.Flags().BoolVar(&asZip, "zip", false, "write a single zip archive instead of a directory tree")

	return cmd
}

func parseDirection(s string) (convert.Direction, error) {
	switch s {
	case "metadata":
		return convert.ToMetadata, nil
	case "source":
		return convert.ToSource, nil
	default:
		return 0, fmt.Errorf("invalid --to %q: must be \"metadata\" or \"source\"", s)
	}
}
