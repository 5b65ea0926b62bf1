package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <collection> [resource]",
		Short: "Show collection or resource status",
		Long: `Show the aggregate status of a collection, or the status of one
resource.

Aggregate counts come from the collection's status index; per-resource
status is read from the authoritative on-disk marker (correcting the
index if they disagree).`,
		Example: `  # Aggregate counts for a collection
  amber -p ./data status genomes

  # Status of one resource
  amber -p ./data status genomes GCF_000005845`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := openProject()
			if err != nil {
				return err
			}
			defer proj.Close()

			if len(args) == 2 {
				status, err := proj.Status(args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Println(status)
				return nil
			}

			agg, err := proj.CollectionStatus(args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				out, err := json.MarshalIndent(agg, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}
			fmt.Printf("total:    %d\n", agg.Total)
			fmt.Printf("pending:  %d\n", agg.Pending)
			fmt.Printf("complete: %d\n", agg.Complete)
			fmt.Printf("error:    %d\n", agg.Error)
			fmt.Printf("unknown:  %d\n", agg.Unknown)
			return nil
		},
	}
	return cmd
}
