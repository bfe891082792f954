package main

import (
	"context"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func storageCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "storage",
		Short: "local storage and document statistics",
	}
	command.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "show bytes and files held under the storage root",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, e *env, args []string) error {
			stats, err := e.services.Storage.Stats(ctx)
			if err != nil {
				return err
			}
			summary, err := e.services.Documents.Summary(ctx)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Root", "Files", "Size", "Documents", "Recent", "Shared"})
			table.Append([]string{
				stats.Root,
				strconv.Itoa(stats.FileCount),
				stats.TotalHuman,
				strconv.Itoa(summary.TotalDocuments),
				strconv.Itoa(summary.RecentUploads),
				strconv.Itoa(summary.SharedDocuments),
			})
			table.Render()
			return nil
		}),
	})
	return command
}
