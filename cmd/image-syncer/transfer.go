package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"image-syncer/internal/batch"
	"image-syncer/internal/collect"
	"image-syncer/internal/download"
	"image-syncer/internal/selection"
	"image-syncer/pkg/utils"
)

// NewUploadCmd uploads local files and folders.
func NewUploadCmd() *cobra.Command {
	var (
		maxDepth    int
		excludes    []string
		followLinks bool
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "upload <path>...",
		Short: "Upload local photos and videos",
		Long:  `Upload media files. Directories are searched recursively for images and videos; hidden directories are skipped.`,
		Args:  needArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			roots := make([]string, 0, len(args))
			for _, a := range args {
				abs, err := filepath.Abs(a)
				if err != nil {
					return usagef("failed to resolve path: %v", err)
				}
				if _, err := os.Stat(abs); err != nil {
					return usagef("%v", err)
				}
				roots = append(roots, abs)
			}
			if !cmd.Flags().Changed("max-depth") {
				maxDepth = cfg.Upload.MaxDepth
			}
			if !cmd.Flags().Changed("follow-symlinks") {
				followLinks = cfg.Upload.FollowSymlinks
			}
			opts := collect.Options{
				Concurrency:   concurrency,
				MaxDepth:      maxDepth,
				FollowSymlink: followLinks,
				Excludes:      append(append([]string(nil), cfg.Upload.Excludes...), excludes...),
			}

			ctx := cmd.Context()
			start := time.Now()
			files, total, scanErr := collect.Collect(ctx, roots, opts)
			if scanErr != nil {
				fmt.Fprintf(os.Stderr, "collect completed with errors: %v\n", scanErr)
			}
			var ready []collect.File
			for _, f := range files {
				if f.Err == nil {
					ready = append(ready, f)
				}
			}
			if len(ready) == 0 {
				fmt.Println("no media files found")
				return scanErr
			}

			client, done, err := connect(ctx)
			if err != nil {
				return err
			}
			defer done()

			fmt.Printf("uploading %d files (%s)\n", len(ready), utils.HumanizeBytes(total))
			res, err := client.Upload(ctx, collect.UploadFiles(ready))
			if err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}
			if jsonOut {
				if err := printJSON(struct {
					IDs      []string `json:"ids"`
					Duration string   `json:"duration"`
				}{res.IDs, time.Since(start).String()}); err != nil {
					return err
				}
			} else {
				fmt.Printf("uploaded %d files in %s\n", len(res.IDs), time.Since(start).Round(time.Millisecond))
			}
			return scanErr
		},
	}
	cmd.Flags().IntVarP(&maxDepth, "max-depth", "m", -1, "max depth for directory walk (-1 for unlimited)")
	cmd.Flags().StringArrayVarP(&excludes, "exclude", "x", nil, "glob pattern to exclude (can repeat); matches full path or base name")
	cmd.Flags().BoolVarP(&followLinks, "follow-symlinks", "L", false, "follow symlinked directories")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", runtime.NumCPU(), "workers for reading file metadata")
	return cmd
}

// NewDownloadCmd saves media locally, one file per item or a single zip.
func NewDownloadCmd() *cobra.Command {
	var (
		out    string
		zipOut string
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "download [id]...",
		Short: "Download media into a directory or a zip archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return usagef("give at least one id or --all")
			}
			if out == "" {
				out = cfg.Batch.DownloadDir
			}
			ctx := cmd.Context()
			client, done, err := connect(ctx)
			if err != nil {
				return err
			}
			defer done()

			items, err := client.List(ctx)
			if err != nil {
				return err
			}
			ids := args
			if all {
				ids = make([]string, 0, len(items))
				for _, it := range items {
					ids = append(ids, it.ID)
				}
			}
			if len(ids) == 0 {
				fmt.Println("nothing to download")
				return nil
			}

			progress, wait := reportProgress(ctx, "downloaded", len(ids))
			var sum download.Summary
			if zipOut != "" {
				sum, err = download.Archive(ctx, client, items, ids, zipOut, progress)
			} else {
				sum = download.Files(ctx, client, items, ids, out, cfg.Batch.Concurrency, progress)
			}
			wait()
			if err != nil {
				return err
			}

			for _, f := range sum.Failures {
				fmt.Fprintf(os.Stderr, "%s\t(ERROR: %v)\n", f.ID, f.Err)
			}
			fmt.Println(rule())
			fmt.Printf("downloaded %d of %d items, %s written\n", len(sum.Successes), len(ids), utils.HumanizeBytes(sum.Written))
			if len(sum.Failures) > 0 {
				return fmt.Errorf("%d downloads failed", len(sum.Failures))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "destination directory (default from config)")
	cmd.Flags().StringVar(&zipOut, "zip", "", "write a single zip archive at this path instead")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "download every item in the gallery")
	return cmd
}

// NewDeleteCmd removes items from the server after confirmation.
func NewDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete media from the server",
		Args:  needArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !yes {
				ok := false
				err := huh.NewConfirm().
					Title(fmt.Sprintf("Delete %d items from the server?", len(args))).
					Description("This cannot be undone.").
					Affirmative("Delete").
					Negative("Cancel").
					Value(&ok).
					Run()
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("cancelled")
					return nil
				}
			}

			client, done, err := connect(ctx)
			if err != nil {
				return err
			}
			defer done()

			var d selection.Deleter = client
			if dryRun {
				d = selection.DeleterFunc(func(_ context.Context, id string) error {
					fmt.Printf("dry-run: would delete %s\n", id)
					return nil
				})
			}
			progress, wait := reportProgress(ctx, "deleted", len(args))
			res := selection.RunDelete(ctx, args, cfg.Batch.Concurrency, progress, d)
			wait()

			for _, f := range res.Failures {
				fmt.Fprintf(os.Stderr, "%s\t(ERROR: %v)\n", f.ID, f.Err)
			}
			fmt.Printf("deleted %d items, %d failed\n", res.Succeeded, res.Failed)
			if res.Failed > 0 {
				return fmt.Errorf("%d deletes failed", res.Failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// reportProgress prints one line per settled item. Call wait after the batch
// returns to flush the remaining lines.
func reportProgress(ctx context.Context, verb string, total int) (chan<- batch.Progress, func()) {
	ch := make(chan batch.Progress, total)
	stop := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		show := func(p batch.Progress) {
			if jsonOut {
				return
			}
			status := verb
			if p.Err != nil {
				status = "failed"
			}
			fmt.Fprintf(os.Stderr, "[%d/%d] %s %s\n", p.Completed, p.Total, status, p.ID)
		}
		for {
			select {
			case p := <-ch:
				show(p)
			case <-stop:
				for {
					select {
					case p := <-ch:
						show(p)
					default:
						return
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, func() {
		close(stop)
		<-finished
	}
}
