package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"image-syncer/internal/media"
	"image-syncer/pkg/utils"
)

// NewListCmd prints the gallery contents.
func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List media on the server",
		Args:  needArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, done, err := connect(ctx)
			if err != nil {
				return err
			}
			defer done()

			start := time.Now()
			items, err := client.List(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(items)
			}

			var total int64
			now := time.Now()
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tKIND\tSIZE\tCREATED")
			for _, it := range items {
				total += it.Size
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.Name, it.Kind, utils.HumanizeBytes(it.Size), utils.Ago(it.CreatedAt, now))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Println(rule())
			fmt.Printf("%d items, %s\n", len(items), utils.HumanizeBytes(total))
			log.WithField("duration", time.Since(start).Round(time.Millisecond)).Debug("list done")
			return nil
		},
	}
}

// NewScanCmd triggers indexing of the server's external storage.
func NewScanCmd() *cobra.Command {
	var (
		force    bool
		maxFiles int
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Index new files on the server's external storage",
		Args:  needArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxFiles < 0 {
				return usagef("--max-files must not be negative")
			}
			ctx := cmd.Context()
			client, done, err := connect(ctx)
			if err != nil {
				return err
			}
			defer done()

			res, err := client.Scan(ctx, media.ScanOptions{Force: force, MaxFiles: maxFiles})
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(res)
			}
			fmt.Printf("scan complete: %d new files (%d scanned)\n", res.Added, res.Scanned)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "rescan files that are already indexed")
	cmd.Flags().IntVar(&maxFiles, "max-files", 0, "stop after this many files (0 for no limit)")
	return cmd
}

// NewCleanupCmd removes server entries whose files are gone.
func NewCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Drop server entries whose files no longer exist",
		Args:  needArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, done, err := connect(ctx)
			if err != nil {
				return err
			}
			defer done()

			if dryRun {
				fmt.Println("dry-run: cleanup skipped")
				return nil
			}
			ids, err := client.Cleanup(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(struct {
					Cleaned []string `json:"cleaned"`
				}{ids})
			}
			if len(ids) == 0 {
				fmt.Println("nothing to clean up")
				return nil
			}
			fmt.Printf("removed %d dangling entries\n", len(ids))
			for _, id := range ids {
				fmt.Printf("  %s\n", id)
			}
			return nil
		},
	}
}
