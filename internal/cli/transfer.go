package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/architect-io/mdpack/pkg/transferstore"
	"github.com/architect-io/mdpack/pkg/transferstore/backend"
)

func newTransferCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Inspect past deploy and retrieve operations",
		Long:  `List and show MetadataTransfer history persisted by the configured transfer-store backend.`,
	}

	cmd.AddCommand(newTransferListCmd())
	cmd.AddCommand(newTransferStatusCmd())

	return cmd
}

func newTransferListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List persisted transfer records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved := resolvedConfig(cmd, nil)
			store, err := transferstore.NewFromConfig(backend.Config{Type: resolved.Backend})
			if err != nil {
				return err
			}

			records, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No transfers recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tSTARTED\tAPI VERSION")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Kind, r.Status, r.StartedAt.Format("2006-01-02 15:04:05"), r.APIVersion)
			}
			return tw.Flush()
		},
	}
}

func newTransferStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Show the full persisted record for one transfer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved := resolvedConfig(cmd, nil)
			store, err := transferstore.NewFromConfig(backend.Config{Type: resolved.Backend})
			if err != nil {
				return err
			}

			record, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("ID:          %s\n", record.ID)
			fmt.Printf("Kind:        %s\n", record.Kind)
			fmt.Printf("Status:      %s\n", record.Status)
			fmt.Printf("API Version: %s\n", record.APIVersion)
			fmt.Printf("Started:     %s\n", record.StartedAt.Format("2006-01-02 15:04:05"))
			if record.FinishedAt != nil {
				fmt.Printf("Finished:    %s\n", record.FinishedAt.Format("2006-01-02 15:04:05"))
			}
			if record.Error != "" {
				fmt.Printf("Error:       %s\n", record.Error)
			}
			if record.DeployResult != nil {
				succeeded, failed := 0, 0
				for _, resp := range record.DeployResult.Responses {
					if resp.Success {
						succeeded++
					} else {
						failed++
					}
				}
				fmt.Printf("Deployed:    %d succeeded, %d failed\n", succeeded, failed)
			}
			if record.RetrieveResult != nil {
				fmt.Printf("Retrieved:   %d file(s), %d byte(s)\n", len(record.RetrieveResult.FileProperties), len(record.RetrieveResult.ZipFile))
			}
			return nil
		},
	}
}
