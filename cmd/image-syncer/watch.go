package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"image-syncer/internal/watch"
)

// NewWatchCmd uploads new media dropped into a folder until interrupted.
func NewWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>",
		Short: "Upload new photos and videos as they appear in a folder",
		Args:  needArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return usagef("failed to resolve path: %v", err)
			}
			ctx := cmd.Context()
			client, done, err := connect(ctx)
			if err != nil {
				return err
			}
			defer done()

			w, err := watch.New(dir, client, watch.WithDebounce(cfg.Debounce()), watch.WithLogger(log))
			if err != nil {
				return usagef("%v", err)
			}

			go func() {
				for b := range w.Results() {
					if b.Err != nil {
						fmt.Fprintf(os.Stderr, "upload of %d files failed: %v\n", len(b.Files), b.Err)
						continue
					}
					for _, f := range b.Files {
						fmt.Printf("uploaded %s\n", f)
					}
				}
			}()

			fmt.Printf("watching %s (ctrl+c to stop)\n", dir)
			return w.Run(ctx)
		},
	}
}
