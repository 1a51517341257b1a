package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"image-syncer/internal/backend"
	"image-syncer/internal/config"
	"image-syncer/internal/logging"
	"image-syncer/internal/offline"
	"image-syncer/internal/tui"
)

var (
	cfgFile   string
	serverURL string
	debug     bool
	dryRun    bool
	jsonOut   bool

	cfg      *config.Config
	log      *logrus.Entry
	closeLog func() error
)

// NewRootCmd creates the root command. Without a subcommand it opens the
// gallery browser.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "image-syncer",
		Short:         "Browse and sync a self-hosted photo and video gallery",
		Long:          `image-syncer browses a gallery server from the terminal: swipe through media, select and download or delete in bulk, and upload local folders.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          needArgs(cobra.NoArgs),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfgFile != "" {
				cfg, err = config.LoadConfigFile(cfgFile)
			} else {
				cfg, err = config.LoadConfig()
			}
			if err != nil {
				return usagef("%v", err)
			}
			if serverURL != "" {
				cfg.Server.URL = serverURL
				if err := cfg.Validate(); err != nil {
					return usagef("%v", err)
				}
			}

			// the browser owns the terminal, so only it logs to the file
			logOpts := logging.Options{Level: cfg.Log.Level, Debug: debug}
			if cmd.Name() == "image-syncer" && !jsonOut {
				logOpts.File = cfg.Log.File
			}
			log, closeLog, err = logging.Setup(logOpts)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, done, err := connect(ctx)
			if err != nil {
				return err
			}
			defer done()

			if jsonOut {
				items, err := client.List(ctx)
				if err != nil {
					return err
				}
				return printJSON(struct {
					Server string      `json:"server"`
					Count  int         `json:"count"`
					Items  interface{} `json:"items"`
				}{Server: client.BaseURL(), Count: len(items), Items: items})
			}

			return tui.Run(client, tui.Options{
				Thresholds:  cfg.Thresholds(),
				CellWidth:   int(cfg.Gesture.CellWidth),
				CellHeight:  int(cfg.Gesture.CellHeight),
				Crossfade:   cfg.Crossfade(),
				Toast:       cfg.ToastDuration(),
				Concurrency: cfg.Batch.Concurrency,
				DownloadDir: cfg.Batch.DownloadDir,
				DryRun:      dryRun,
				Log:         log,
			})
		},
	}
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/image-syncer/config.yaml)")
	pf.StringVarP(&serverURL, "server", "s", "", "gallery server URL (overrides config)")
	pf.BoolVar(&debug, "debug", false, "enable debug logging")
	pf.BoolVarP(&dryRun, "dry-run", "n", false, "do not delete anything on the server")
	pf.BoolVar(&jsonOut, "json", false, "print JSON instead of text")

	rootCmd.AddCommand(NewListCmd())
	rootCmd.AddCommand(NewScanCmd())
	rootCmd.AddCommand(NewCleanupCmd())
	rootCmd.AddCommand(NewUploadCmd())
	rootCmd.AddCommand(NewDownloadCmd())
	rootCmd.AddCommand(NewDeleteCmd())
	rootCmd.AddCommand(NewWatchCmd())
	rootCmd.AddCommand(NewCacheCmd())

	return rootCmd
}

// connect builds the server client from the loaded config, routing requests
// through the offline cache when it is enabled, and logs in when a username
// is configured. The returned func releases the cache database.
func connect(ctx context.Context) (*backend.Client, func(), error) {
	opts := []backend.Option{
		backend.WithTimeout(cfg.Timeout()),
		backend.WithPageSize(cfg.Server.PageSize),
		backend.WithLogger(log),
	}
	done := func() {}
	if cfg.Offline.Enabled {
		store, cache, err := openCache(ctx)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, backend.WithTransport(cache))
		done = func() { _ = store.Close() }
	}

	client, err := backend.New(cfg.Server.URL, opts...)
	if err != nil {
		done()
		return nil, nil, usagef("%v", err)
	}
	if cfg.Server.Username != "" {
		if err := client.Login(ctx, cfg.Server.Username, cfg.Server.Password); err != nil {
			done()
			return nil, nil, fmt.Errorf("login as %s: %w", cfg.Server.Username, err)
		}
		log.WithField("user", cfg.Server.Username).Debug("logged in")
	}
	return client, done, nil
}

func openCache(ctx context.Context) (*offline.Store, *offline.Cache, error) {
	store, err := offline.OpenStore(cfg.Offline.DBPath)
	if err != nil {
		return nil, nil, err
	}
	cache, err := offline.New(ctx, store, cfg.Server.URL,
		offline.WithName(cfg.Offline.CacheName),
		offline.WithLogger(log),
	)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return store, cache, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write json: %w", err)
	}
	return nil
}

// needArgs wraps a cobra argument check so violations exit with status 2.
func needArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func rule() string { return strings.Repeat("-", 46) }
