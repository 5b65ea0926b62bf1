package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log <collection> <resource>",
		Short: "Print a resource's run log",
		Long: `Print the run log captured during the resource's last computation.
Prints nothing if no log was written.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := openProject()
			if err != nil {
				return err
			}
			defer proj.Close()

			text, err := proj.FetchLog(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Print(text)
			return nil
		},
	}
	return cmd
}
