package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	docsys "dmsiq/internal/domain/models/docsystem"
)

func folderCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "folder",
		Short: "inspect and create folders",
	}
	command.AddCommand(folderTreeCmd())
	command.AddCommand(folderMkdirCmd())
	command.AddCommand(folderLsCmd())
	return command
}

func folderTreeCmd() *cobra.Command {
	var withCounts bool

	command := &cobra.Command{
		Use:     "tree [path]",
		Short:   "print the folder hierarchy",
		Example: "dmsctl folder tree /Legal/",
		Args:    cobra.MaximumNArgs(1),
		RunE: run(func(ctx context.Context, e *env, args []string) error {
			var start *string
			if len(args) == 1 {
				root, err := e.services.Folders.GetFolderByPath(ctx, e.principal, args[0])
				if err != nil {
					return err
				}
				fmt.Println(label(root, withCounts))
				start = &root.ID
			}
			return printTree(ctx, e, start, 0, withCounts)
		}),
	}
	command.Flags().BoolVarP(&withCounts, "counts", "c", false, "show document counts")
	return command
}

func printTree(ctx context.Context, e *env, parentID *string, depth int, withCounts bool) error {
	children, err := e.services.Folders.ListFolders(ctx, e.principal, parentID, docsys.FolderFilter{})
	if err != nil {
		return err
	}
	for i := range children {
		fmt.Printf("%s%s\n", strings.Repeat("  ", depth+1), label(&children[i], withCounts))
		if err := printTree(ctx, e, &children[i].ID, depth+1, withCounts); err != nil {
			return err
		}
	}
	return nil
}

func label(f *docsys.Folder, withCounts bool) string {
	if withCounts {
		return fmt.Sprintf("%s/ (%d)", f.Name, f.DocumentCount)
	}
	return f.Name + "/"
}

func folderMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "mkdir <path>",
		Short:   "create a folder path, including missing parents",
		Example: "dmsctl folder mkdir /Legal/Contracts/2026/",
		Args:    cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, e *env, args []string) error {
			folder, err := e.services.Folders.GetOrCreateByPath(ctx, e.principal, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", folder.ID, folder.Path)
			return nil
		}),
	}
}

func folderLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ls <path>",
		Short:   "list subfolders and documents of a folder",
		Example: "dmsctl folder ls /Legal/",
		Args:    cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, e *env, args []string) error {
			folder, err := e.services.Folders.GetFolderByPath(ctx, e.principal, args[0])
			if err != nil {
				return err
			}
			contents, err := e.services.Folders.ListChildren(ctx, e.principal, folder.ID)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Kind", "ID", "Name", "Status", "Size"})
			for _, f := range contents.Folders {
				table.Append([]string{"folder", f.ID, f.Name + "/", "", strconv.Itoa(f.DocumentCount) + " docs"})
			}
			for _, d := range contents.Documents {
				table.Append([]string{"document", d.ID, d.Name, string(d.Status), strconv.FormatInt(d.SizeBytes, 10)})
			}
			table.Render()
			return nil
		}),
	}
}
