package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/piwi3910/amber/pkg/resource"
)

func newFindCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find <collection> <status>",
		Short: "List resource identifiers by status",
		Long: `List the identifiers of all resources in a collection with the given
status (pending, complete, or error), in index key order.`,
		Example: `  # All failed resources
  amber -p ./data find genomes error`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := resource.Status(args[1])
			if err := status.Validate(); err != nil {
				return err
			}

			proj, err := openProject()
			if err != nil {
				return err
			}
			defer proj.Close()

			ids, err := proj.FindByStatus(args[0], status)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
	return cmd
}
