package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nopxx/scrobblerd/internal/config"
	"github.com/nopxx/scrobblerd/internal/scrobbler"
	"github.com/nopxx/scrobblerd/pkg/lastfm"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize with Last.fm",
	Long: `Authorize with Last.fm to enable scrobbling.

This command will guide you through the Last.fm authorization process:
1. You'll be prompted to enter your Last.fm API key and secret
2. A browser URL will be provided for you to authorize the application
3. After authorization, a session key will be saved to your config file

You can get API credentials from: https://www.last.fm/api/account/create`,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
	configs := config.NewManager(logger)
	if err := configs.Load(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := configs.Get().LastFM

	fmt.Println("Last.fm Authorization")
	fmt.Println("=====================")
	fmt.Println()
	fmt.Println("You can get API credentials from: https://www.last.fm/api/account/create")
	fmt.Println()

	if cfg.APIKey != "" && cfg.APISecret != "" {
		fmt.Printf("Found existing API credentials.\n")
		fmt.Printf("API Key: %s\n", cfg.APIKey)
		fmt.Print("\nUse existing credentials? [Y/n]: ")
		response, err := reader.ReadString('\n')
		if err != nil {
			response = "y"
		}
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "" && response != "y" && response != "yes" {
			cfg.APIKey = ""
			cfg.APISecret = ""
		}
	}

	if cfg.APIKey == "" {
		fmt.Print("Enter your Last.fm API Key: ")
		apiKey, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read API key: %w", err)
		}
		cfg.APIKey = strings.TrimSpace(apiKey)
	}

	if cfg.APISecret == "" {
		fmt.Print("Enter your Last.fm API Secret: ")
		apiSecret, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read API secret: %w", err)
		}
		cfg.APISecret = strings.TrimSpace(apiSecret)
	}

	if cfg.APIKey == "" || cfg.APISecret == "" {
		return fmt.Errorf("API key and secret are required")
	}
	configs.SetLastFMCredentials(cfg.APIKey, cfg.APISecret)

	service := scrobbler.NewService(func() scrobbler.Settings {
		c := configs.Get().LastFM
		return scrobbler.Settings{Enabled: true, APIKey: c.APIKey, APISecret: c.APISecret}
	}, logger)

	fmt.Println("\nGenerating authorization token...")
	authURL, err := service.BeginAuth(ctx)
	if err != nil {
		return fmt.Errorf("failed to generate auth token: %w", err)
	}

	fmt.Println("\nPlease visit this URL to authorize scrobblerd:")
	fmt.Printf("\n  %s\n\n", authURL)
	fmt.Println("After authorizing, press Enter to continue...")
	_, _ = reader.ReadString('\n')

	fmt.Println("Retrieving session key...")
	maxRetries := 3
	retryDelay := 2 * time.Second

	var session *lastfm.Session
	for i := 0; i < maxRetries; i++ {
		session, err = service.CompleteAuth(ctx)
		if err == nil {
			break
		}

		if i < maxRetries-1 {
			fmt.Printf("Failed to retrieve session (attempt %d/%d). Retrying in %v...\n",
				i+1, maxRetries, retryDelay)
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to get session key after %d attempts: %w", maxRetries, err)
	}

	if err := configs.SetLastFMSession(session.Key, session.Username); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	configPath := config.GetConfigDir()
	fmt.Printf("\n✓ Authorized as %s\n", session.Username)
	fmt.Printf("✓ Session key saved to %s/config.yaml\n", configPath)
	fmt.Println("\nYou can now use 'scrobblerd daemon' to start scrobbling.")

	return nil
}
