package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/architect-io/mdpack/pkg/catalog"
	"github.com/architect-io/mdpack/pkg/component"
	"github.com/architect-io/mdpack/pkg/componentset"
	"github.com/architect-io/mdpack/pkg/manifest"
	"github.com/architect-io/mdpack/pkg/resolver"
	"github.com/architect-io/mdpack/pkg/tree"
)

func newResolveCmd() *cobra.Command {
	var manifestPath string
	var outPath string
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "resolve [path]",
		Short: "Walk a source tree and list the typed components it contains",
		Long: `Walk the tree rooted at path (default: the package root) and infer which
components it contains. Prints one line per resolved
component by default; --out writes a package.xml manifest of the result
instead.

Examples:
  mdpack resolve ./force-app
  mdpack resolve ./force-app --manifest ./manifest/package.xml
  mdpack resolve ./force-app --out ./manifest/package.xml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved := resolvedConfig(cmd, args)

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

			set, err := r.ResolveSource(context.Background(), t, []string{"."}, filter)
			if err != nil {
				return err
			}

			if outPath != "" {
				data, err := set.GetPackageXML(resolved.APIVersion, "    ")
				if err != nil {
					return err
				}
				if err := os.WriteFile(outPath, data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", outPath, err)
				}
				fmt.Printf("Wrote %s (%d components)\n", outPath, set.Len())
				return nil
			}

			ctx := context.Background()
			if outputFormat == "yaml" {
				return printComponentsYAML(ctx, set)
			}
			for _, c := range set.All() {
				if err := printComponent(ctx, c, 0); err != nil {
					return err
				}
			}
			fmt.Printf("\n%d component(s) resolved\n", set.Len())
			return nil
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "filter the walk to components listed in this package.xml")
	cmd.Flags().StringVar(&outPath, "out", "", "write a package.xml manifest of the resolved set instead of printing it")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, yaml")

	return cmd
}

// resolvedComponent is the yaml-output shape for one resolved component.
type resolvedComponent struct {
	Type     string              `yaml:"type"`
	FullName string              `yaml:"fullName"`
	XML      string              `yaml:"xml,omitempty"`
	Content  string              `yaml:"content,omitempty"`
	Children []resolvedComponent `yaml:"children,omitempty"`
}

func printComponentsYAML(ctx context.Context, set *componentset.Set) error {
	var out []resolvedComponent
	for _, c := range set.All() {
		rc, err := toResolvedComponent(ctx, c)
		if err != nil {
			return err
		}
		out = append(out, rc)
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

func toResolvedComponent(ctx context.Context, c component.MetadataComponent) (resolvedComponent, error) {
	rc := resolvedComponent{FullName: c.FullName()}
	if c.Type() != nil {
		rc.Type = c.Type().Name
	}
	sc, ok := c.(*component.SourceComponent)
	if !ok {
		return rc, nil
	}
	rc.XML = sc.XML()
	rc.Content = sc.Content()
	children, err := sc.Children(ctx)
	if err != nil {
		return rc, err
	}
	for _, child := range children {
		childRC, err := toResolvedComponent(ctx, child)
		if err != nil {
			return rc, err
		}
		rc.Children = append(rc.Children, childRC)
	}
	return rc, nil
}

func printComponent(ctx context.Context, c component.MetadataComponent, depth int) error {
	typeName := ""
	if c.Type() != nil {
		typeName = c.Type().Name
	}
	fmt.Printf("%s%s: %s\n", indent(depth), typeName, c.FullName())

	sc, ok := c.(*component.SourceComponent)
	if !ok {
		return nil
	}
	children, err := sc.Children(ctx)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := printComponent(ctx, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func indent(depth int) string {
	out := ""
	for i := 0; i < depth; i++ {
		out += "  "
	}
	return out
}
