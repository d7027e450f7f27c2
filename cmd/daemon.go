package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nopxx/scrobblerd/internal/config"
	"github.com/nopxx/scrobblerd/internal/daemon"
)

var (
	daemonLogFile  string
	daemonLogLevel string
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the tracking daemon",
	Long: `Run the daemon that tracks Apple Music playback and emits events.

The daemon will:
- Subscribe to the player bridge's push feed of player-state events
- Reconcile noisy position reports into a monotonic playback timeline
- Detect track changes and apply any recorded track-name corrections
- POST now-playing, paused and scrobble events to the configured webhook
- Scrobble to Last.fm when a track passes the threshold (50% or 4 minutes)

The daemon runs in the foreground and logs to stderr by default.
Use the --log-file flag to log to a file (useful for launchd).`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().StringVar(&daemonLogFile, "log-file", "", "Log file path (default: stderr)")
	daemonCmd.Flags().StringVar(&daemonLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logger := setupLogger(daemonLogFile, daemonLogLevel)

	configs := config.NewManager(logger)
	if err := configs.Load(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Info().
		Str("version", version).
		Str("feed_url", configs.Get().FeedURL).
		Msg("Starting scrobblerd daemon")

	service := daemon.New(configs, logger)
	if err := service.Run(); err != nil {
		return fmt.Errorf("daemon error: %w", err)
	}

	return nil
}
