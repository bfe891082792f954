package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	fcSvc "dmsiq/internal/domain/services/filecache"
)

func cacheCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "cache",
		Short: "manage remote file references",
	}
	command.AddCommand(cacheRegisterCmd())
	command.AddCommand(cacheFileCmd())
	command.AddCommand(cacheBulkCmd())
	command.AddCommand(cacheStatusCmd())
	command.AddCommand(cacheRetryCmd())
	command.AddCommand(cachePendingCmd())
	return command
}

func cacheRegisterCmd() *cobra.Command {
	var req fcSvc.RegisterRequest

	command := &cobra.Command{
		Use:     "register",
		Short:   "record a remote file without downloading it",
		Example: "dmsctl cache register -o T-1001 -n spec.pdf -u https://example.com/spec.pdf",
		Args:    cobra.NoArgs,
		RunE: run(func(ctx context.Context, e *env, args []string) error {
			req.DiscoveredAt = time.Now()
			ref, err := e.services.Files.Register(ctx, &req)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", ref.ID, ref.DMSPath)
			return nil
		}),
	}
	command.Flags().StringVarP(&req.OwnerID, "owner", "o", "", "owning entity id (required)")
	command.Flags().StringVarP(&req.FileName, "name", "n", "", "file name (required)")
	command.Flags().StringVarP(&req.FileURL, "url", "u", "", "source url (required)")
	_ = command.MarkFlagRequired("owner")
	_ = command.MarkFlagRequired("name")
	_ = command.MarkFlagRequired("url")
	return command
}

func cacheFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "file <reference-id>",
		Short: "download one reference into the local store",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, e *env, args []string) error {
			result, err := e.services.Files.CacheFile(ctx, args[0])
			if err != nil {
				return err
			}
			switch {
			case result.Failure != nil:
				return result.Failure
			case result.Downloaded:
				fmt.Printf("cached %s\n", result.Reference.DMSPath)
			default:
				fmt.Printf("already cached %s\n", result.Reference.DMSPath)
			}
			return nil
		}),
	}
}

func cacheBulkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bulk <owner-id>",
		Short: "download every uncached reference of an owner",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, e *env, args []string) error {
			result, err := e.services.Files.BulkCache(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("succeeded: %d, failed: %d\n", result.Succeeded, result.Failed)
			if result.Errors != nil {
				fmt.Fprintln(os.Stderr, result.Errors)
			}
			return nil
		}),
	}
}

func cacheStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <owner-id>",
		Short: "show caching progress of an owner",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, e *env, args []string) error {
			status, err := e.services.Files.GetCacheStatus(ctx, args[0])
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Total", "Cached", "Pending", "Failed", "Cached %"})
			table.Append([]string{
				strconv.Itoa(status.Total),
				strconv.Itoa(status.Cached),
				strconv.Itoa(status.Pending),
				strconv.Itoa(status.Failed),
				strconv.FormatFloat(status.Percentage, 'f', 2, 64),
			})
			table.Render()
			return nil
		}),
	}
}

func cacheRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <reference-id>",
		Short: "return a failed reference to pending",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, e *env, args []string) error {
			ref, err := e.services.Files.Retry(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", ref.ID, ref.State.Status())
			return nil
		}),
	}
}

func cachePendingCmd() *cobra.Command {
	var limit int

	command := &cobra.Command{
		Use:   "pending",
		Short: "list references waiting for the background worker",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, e *env, args []string) error {
			refs, err := e.services.Files.ListUncached(ctx, limit)
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Owner", "File", "Status"})
			for _, ref := range refs {
				table.Append([]string{ref.ID, ref.OwnerID, ref.FileName, string(ref.State.Status())})
			}
			table.Render()
			return nil
		}),
	}
	command.Flags().IntVarP(&limit, "limit", "l", 100, "maximum references to list")
	return command
}
