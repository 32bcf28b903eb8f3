package commands

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/savesentry/savesentry/internal/bus"
	"github.com/savesentry/savesentry/internal/capture"
	"github.com/savesentry/savesentry/internal/detect"
	"github.com/savesentry/savesentry/internal/logging"
	"github.com/savesentry/savesentry/internal/store"
	"github.com/savesentry/savesentry/internal/watch"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the save directory and snapshot automatically",
	Long: `Watch the save directory and snapshot save files as the game writes
them.

Writes landing within the debounce threshold of each other amend the
most recent snapshot; a write after a quiet period starts a new one.
When a capture command is configured, each new snapshot gets a
screenshot taken at creation time.

Runs in the foreground until interrupted.`,
	Example: `  # Watch with the configured settings
  savesentry watch

  # Watch with debug logging
  savesentry watch -vv`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, _ []string) error {
	return runWatchWithWriter(cmd, os.Stdout)
}

func runWatchWithWriter(cmd *cobra.Command, w io.Writer) error {
	conf := loadedConfig()
	logger := logging.FromContext(cmd.Context())

	events := bus.New(logger)
	s, err := store.New(conf.SnapshotDir, store.WithBus(events))
	if err != nil {
		return asExitError(err)
	}
	watcher := watch.New(conf.SaveDir, s,
		detect.New(conf.DebounceThreshold),
		watch.WithCapture(capture.NewCommand(conf.CaptureCommand)),
		watch.WithBus(events),
		watch.WithLogger(logger),
		watch.WithQueueSize(conf.QueueSize),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Mirror bus events onto stdout so the foreground session reads as
	// an activity feed.
	ch, cancel := events.Subscribe()
	defer cancel()
	go func() {
		for ev := range ch {
			switch ev.Kind {
			case bus.SnapshotCreated:
				fmt.Fprintf(w, "%s✓ Snapshot %s created (profile %d)%s\n",
					colorGreen, ev.SnapshotID, ev.Profile, colorReset)
			case bus.SnapshotAmended:
				fmt.Fprintf(w, "%s~ Snapshot %s amended (profile %d)%s\n",
					colorYellow, ev.SnapshotID, ev.Profile, colorReset)
			case bus.WatchDegraded:
				fmt.Fprintf(w, "%s! Watch degraded, re-arming: %v%s\n",
					colorRed, ev.Err, colorReset)
			}
		}
	}()

	fmt.Fprintf(w, "Watching %s (debounce %s)\n", conf.SaveDir, conf.DebounceThreshold)
	fmt.Fprintln(w, "Press Ctrl+C to stop")

	if err := watcher.Run(ctx); err != nil {
		return asExitError(err)
	}
	fmt.Fprintln(w, "Stopped")
	return nil
}
