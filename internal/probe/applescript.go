// Package probe queries the Music app directly over the osascript
// scripting bridge. It is the slow, authoritative counterpart to the push
// feed: used by the reconciler to disambiguate suspect position reports
// and by the `now` command for a one-shot status check.
package probe

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/nopxx/scrobblerd/internal/reconcile"
)

// stateScript checks that Music is running and reads state, position and
// duration in a single osascript invocation.
const stateScript = `
tell application "System Events"
	if not ((name of processes) contains "Music") then
		return "stopped|||0|||0"
	end if
end tell
tell application "Music"
	if player state is stopped then
		return "stopped|||0|||0"
	else
		set trackDuration to duration of current track
		set playerPos to player position
		set playerState to player state as string
		return playerState & "|||" & playerPos & "|||" & trackDuration
	end if
end tell`

// trackScript additionally reads track identity, for one-shot status use.
const trackScript = `
tell application "System Events"
	if not ((name of processes) contains "Music") then
		return "not_running"
	end if
end tell
tell application "Music"
	if player state is stopped then
		return "stopped"
	else
		set trackName to name of current track
		set trackArtist to artist of current track
		set trackAlbum to album of current track
		set trackDuration to duration of current track
		set playerPos to player position
		set playerState to player state as string
		return trackName & "|||" & trackArtist & "|||" & trackAlbum & "|||" & trackDuration & "|||" & playerPos & "|||" & playerState
	end if
end tell`

// AppleScript implements reconcile.Probe against the local Music app.
type AppleScript struct{}

// NewAppleScript creates an AppleScript probe.
func NewAppleScript() *AppleScript {
	return &AppleScript{}
}

// Query returns the current authoritative player state. The caller is
// expected to bound the call with a context timeout; osascript is killed
// when the context ends.
func (p *AppleScript) Query(ctx context.Context) (reconcile.ProbeResult, error) {
	output, err := runOsascript(ctx, stateScript)
	if err != nil {
		return reconcile.ProbeResult{}, err
	}

	parts := strings.Split(output, "|||")
	if len(parts) != 3 {
		return reconcile.ProbeResult{}, fmt.Errorf("expected 3 parts, got %d: %q", len(parts), output)
	}

	position, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return reconcile.ProbeResult{}, fmt.Errorf("failed to parse position %q: %w", parts[1], err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return reconcile.ProbeResult{}, fmt.Errorf("failed to parse duration %q: %w", parts[2], err)
	}

	return reconcile.ProbeResult{
		State:       strings.TrimSpace(parts[0]),
		PositionSec: position,
		DurationSec: duration,
	}, nil
}

// TrackInfo is a one-shot reading of the current track, used by the `now`
// command.
type TrackInfo struct {
	Track       string
	Artist      string
	Album       string
	DurationSec float64
	PositionSec float64
	State       string
}

// CurrentTrack returns the currently playing or paused track, or nil if
// Music is stopped or not running.
func (p *AppleScript) CurrentTrack(ctx context.Context) (*TrackInfo, error) {
	output, err := runOsascript(ctx, trackScript)
	if err != nil {
		return nil, err
	}

	if output == "not_running" || output == "stopped" {
		return nil, nil
	}

	parts := strings.Split(output, "|||")
	if len(parts) != 6 {
		return nil, fmt.Errorf("expected 6 parts, got %d: %q", len(parts), output)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse duration %q: %w", parts[3], err)
	}
	position, err := strconv.ParseFloat(strings.TrimSpace(parts[4]), 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse position %q: %w", parts[4], err)
	}

	return &TrackInfo{
		Track:       strings.TrimSpace(parts[0]),
		Artist:      strings.TrimSpace(parts[1]),
		Album:       strings.TrimSpace(parts[2]),
		DurationSec: duration,
		PositionSec: position,
		State:       strings.TrimSpace(parts[5]),
	}, nil
}

func runOsascript(ctx context.Context, script string) (string, error) {
	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("osascript error: %s", string(exitErr.Stderr))
		}
		return "", fmt.Errorf("failed to execute osascript: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}
