package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/architect-io/mdpack/pkg/catalog"
	"github.com/architect-io/mdpack/pkg/component"
	"github.com/architect-io/mdpack/pkg/componentset"
	"github.com/architect-io/mdpack/pkg/convert"
	"github.com/architect-io/mdpack/pkg/manifest"
	"github.com/architect-io/mdpack/pkg/resolver"
	"github.com/architect-io/mdpack/pkg/transfer"
	"github.com/architect-io/mdpack/pkg/transfer/simulated"
	"github.com/architect-io/mdpack/pkg/tree"
	"github.com/architect-io/mdpack/pkg/writer"
)

func newRetrieveCmd() *cobra.Command {
	var outPath string
	var pollInterval time.Duration

	cmd := &cobra.Command{
		Use:   "retrieve <manifest>",
		Short: "Retrieve the components listed in a manifest and write them as source",
		Long: `Drive a MetadataTransfer retrieve for the components named in manifest
(a package.xml), then convert the returned zip back to source layout and
write it to --out.

The wire SDK a real retrieve talks to is an external collaborator; this
command drives pkg/transfer/simulated, scripted to
return the current package-root's own metadata-format conversion as the
retrieved payload, so the full poll/convert/write-back path can be
exercised without a live org.

Examples:
  mdpack retrieve ./manifest/package.xml --out ./force-app`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestPath := args[0]
			resolved := resolvedConfig(cmd, nil)
			if pollInterval <= 0 {
				pollInterval = resolved.PollInterval
			}
			if outPath == "" {
				return fmt.Errorf("--out is required")
			}

			registry, err := catalog.Load()
			if err != nil {
				return err
			}

			data, err := os.ReadFile(manifestPath)
			if err != nil {
				return fmt.Errorf("failed to read manifest: %w", err)
			}
			parsed, err := manifest.Parse(data, registry)
			if err != nil {
				return err
			}
			wanted := componentset.FromManifest(parsed.Entries)

			r := resolver.New(resolver.Options{Registry: registry, IgnoreFileName: resolved.IgnoreFile})
			t := tree.OSTree(resolved.PackageRoot)

			ctx := context.Background()
			set, err := r.ResolveSource(ctx, t, []string{"."}, wanted)
			if err != nil {
				return err
			}

			converter := convert.New(convert.Options{Parallelism: int64(resolved.Parallelism)})
			zw := writer.NewZipWriter()
			if err := converter.Convert(ctx, set, convert.ToMetadata, zw); err != nil {
				return err
			}
			zipBytes, err := zw.Finalize()
			if err != nil {
				return err
			}

			driver := simulated.New(simulated.Outcome{
				PollsBeforeDone: 1,
				FinalStatus:     transfer.StateSucceeded,
				Details:         transfer.StatusDetails{ZipFile: zipBytes},
			}, nil)

			progress := NewTransferProgress(os.Stdout, "retrieve")
			for _, mc := range set.GetSourceComponents() {
				if sc, ok := mc.(*component.SourceComponent); ok {
					progress.AddFile(sc.FullName(), sc.Type().Name)
				}
			}
			progress.PrintInitial()

			var finalResult transfer.Result
			tr := transfer.New(transfer.Options{
				Driver:         driver,
				Kind:           transfer.KindRetrieve,
				Set:            set,
				APIVersion:     resolved.APIVersion,
				IncludeDetails: true,
				OnUpdate: func(sr transfer.StatusResult) {
					progress.ApplyStatus(sr)
					progress.PrintUpdate()
				},
				OnFinish: func(r transfer.Result) { finalResult = r },
			})

			startedAt := time.Now()
			startErr := tr.Start(ctx, pollInterval)
			progress.PrintFinalSummary(finalResult)

			recordTransfer(ctx, resolved.Backend, "retrieve", resolved.APIVersion, startedAt, finalResult)

			if startErr != nil {
				return startErr
			}
			if finalResult.Status != transfer.StateSucceeded || finalResult.Retrieve == nil {
				return fmt.Errorf("retrieve did not succeed: %s", finalResult.Status)
			}

			extractDir, err := os.MkdirTemp("", "mdpack-retrieve-*")
			if err != nil {
				return fmt.Errorf("failed to create extraction dir: %w", err)
			}
			defer os.RemoveAll(extractDir)

			if err := extractZip(finalResult.Retrieve.ZipFile, extractDir); err != nil {
				return err
			}

			retrievedTree := tree.OSTree(extractDir)
			retrievedSet, err := r.ResolveSource(ctx, retrievedTree, []string{"."}, nil)
			if err != nil {
				return err
			}

			sw := writer.NewStandardWriter(outPath)
			if err := converter.Convert(ctx, retrievedSet, convert.ToSource, sw); err != nil {
				return err
			}

			fmt.Printf("Retrieved %d component(s) into %s\n", retrievedSet.Len(), outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "source-layout directory to write the retrieved components into")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "interval between status polls (default from config)")

	return cmd
}

// extractZip unpacks a zip archive's contents into destDir, rejecting any
// entry whose name would escape destDir. A retrieve's payload is
// untrusted remote input; pkg/writer's StandardWriter applies the same
// containment check on its own write paths.
func extractZip(data []byte, destDir string) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("failed to read retrieved zip: %w", err)
	}

	for _, f := range zr.File {
		target := filepath.Join(destDir, f.Name)
		if !isWithinDir(destDir, target) {
			return fmt.Errorf("retrieved zip entry %q escapes destination", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			rc.Close()
			return err
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return copyErr
		}
	}

	return nil
}

func isWithinDir(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false
	}
	return rel != ".." && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
