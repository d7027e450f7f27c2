package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nopxx/scrobblerd/internal/config"
	"github.com/nopxx/scrobblerd/internal/history"
)

var (
	editArtist    string
	editTitle     string
	editNewArtist string
	editNewTitle  string
)

// editCmd represents the edit command
var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Record a track-name correction",
	Long: `Record a correction for a track the player reports with wrong names.

The correction is keyed by the original artist and title as the player
reports them. Whenever the daemon sees that track again it displays and
scrobbles the corrected names, while still recognizing the track by its
original names so corrections never hide a track change.

Example:
  scrobblerd edit --artist "Sigur Ros" --title "Untitled 3" \
      --new-artist "Sigur Rós" --new-title "Samskeyti"`,
	RunE: runEdit,
}

func init() {
	rootCmd.AddCommand(editCmd)

	editCmd.Flags().StringVar(&editArtist, "artist", "", "Original artist name as reported by the player")
	editCmd.Flags().StringVar(&editTitle, "title", "", "Original track title as reported by the player")
	editCmd.Flags().StringVar(&editNewArtist, "new-artist", "", "Corrected artist name")
	editCmd.Flags().StringVar(&editNewTitle, "new-title", "", "Corrected track title")
	_ = editCmd.MarkFlagRequired("artist")
	_ = editCmd.MarkFlagRequired("title")
}

func runEdit(cmd *cobra.Command, args []string) error {
	if editNewArtist == "" && editNewTitle == "" {
		return fmt.Errorf("at least one of --new-artist or --new-title is required")
	}

	// An omitted field keeps the original value.
	newArtist := editNewArtist
	if newArtist == "" {
		newArtist = editArtist
	}
	newTitle := editNewTitle
	if newTitle == "" {
		newTitle = editTitle
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
	resolver := history.NewResolver(
		filepath.Join(config.GetConfigDir(), "edits.json"), logger)

	if err := resolver.RecordEdit(editArtist, editTitle, newArtist, newTitle); err != nil {
		return fmt.Errorf("failed to record edit: %w", err)
	}

	fmt.Printf("Recorded: %s - %s → %s - %s\n", editArtist, editTitle, newArtist, newTitle)
	return nil
}
