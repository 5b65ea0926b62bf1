package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newErrorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "error <collection> <resource>",
		Short: "Print a resource's captured error trace",
		Long: `Print the error text accumulated across failed computations of a
resource. Prints nothing if the resource never failed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := openProject()
			if err != nil {
				return err
			}
			defer proj.Close()

			text, err := proj.FetchError(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Print(text)
			return nil
		},
	}
	return cmd
}
