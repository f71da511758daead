package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the courses in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(ctx context.Context, c *catalog) error {
				folders, err := c.db.ListCourseFolders(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%d courses in %s\n", len(folders), c.db.Path())
				if len(folders) == 0 {
					return nil
				}

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tFOLDER")
				for _, f := range folders {
					fmt.Fprintf(tw, "%s\t%s\n", f.ID, f.FolderName)
				}
				return tw.Flush()
			})
		},
	}
}
