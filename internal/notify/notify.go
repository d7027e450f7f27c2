// Package notify posts macOS desktop notifications through osascript.
// Delivery is best-effort: a failure is logged and nothing else happens.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Notifier shows "new track" notifications.
type Notifier struct {
	logger  zerolog.Logger
	timeout time.Duration

	// run is swapped in tests.
	run func(ctx context.Context, script string) error
}

// New creates a Notifier.
func New(logger zerolog.Logger) *Notifier {
	return &Notifier{
		logger:  logger.With().Str("component", "notify").Logger(),
		timeout: 5 * time.Second,
		run:     runOsascript,
	}
}

// Send shows a notification with the given title and subtitle.
func (n *Notifier) Send(title, subtitle string) {
	script := fmt.Sprintf("display notification %q with title %q",
		escape(subtitle), escape(title))

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if err := n.run(ctx, script); err != nil {
		n.logger.Warn().Err(err).Str("title", title).Msg("Failed to show notification")
	}
}

// escape strips characters that would break out of the AppleScript
// string literal.
func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, ``)
	return strings.ReplaceAll(s, `"`, `'`)
}

func runOsascript(ctx context.Context, script string) error {
	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("osascript error: %s", string(exitErr.Stderr))
		}
		return fmt.Errorf("failed to execute osascript: %w", err)
	}
	return nil
}
