package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewCacheCmd manages the offline app-shell cache.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the offline cache",
		Long:  `The offline cache keeps the server's app shell so pages still load without a connection. Media is never cached.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Fetch and store the app shell, then activate it",
		Args:  needArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, cache, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := cache.Install(ctx); err != nil {
				return err
			}
			fmt.Printf("installed %s\n", cache.Name())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "activate",
		Short: "Drop old caches and claim the current one",
		Args:  needArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, cache, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := cache.Activate(ctx); err != nil {
				return err
			}
			fmt.Printf("activated %s\n", cache.Name())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show cache contents",
		Args:  needArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, cache, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			st, err := cache.Status(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(st)
			}
			state := "inactive"
			if st.Active {
				state = "active"
			}
			fmt.Printf("cache:   %s (%s)\n", st.Name, state)
			fmt.Printf("entries: %d\n", st.Entries)
			fmt.Printf("stored:  %s\n", strings.Join(st.Caches, ", "))
			fmt.Printf("enabled: %t\n", cfg.Offline.Enabled)
			return nil
		},
	})

	return cmd
}
