package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// webhookLabel identifies this scrobbler in outbound payloads.
const webhookLabel = "Apple Music Scrobbler"

// connectorLabel names the player the events were observed from.
const connectorLabel = "Apple Music"

// WebhookSink POSTs web-scrobbler-shaped JSON documents to a
// user-configured URL. An empty URL means the sink is disabled; delivery
// is skipped silently apart from a debug log.
type WebhookSink struct {
	url    func() string // read per delivery so config hot-reload applies
	client *http.Client
	logger zerolog.Logger
}

// NewWebhookSink creates a webhook sink. url is consulted on every
// delivery.
func NewWebhookSink(url func() string, logger zerolog.Logger) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.With().Str("component", "webhook").Logger(),
	}
}

// Name implements Sink.
func (w *WebhookSink) Name() string { return "webhook" }

// Deliver POSTs the event payload. No retry: a non-2xx response or
// transport error is returned for logging and otherwise forgotten.
func (w *WebhookSink) Deliver(ctx context.Context, ev Event) error {
	url := w.url()
	if url == "" {
		w.logger.Debug().Msg("Webhook URL not set, skipping")
		return nil
	}

	body, err := json.Marshal(buildPayload(ev))
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Payload shapes follow the web-scrobbler extension's event documents so
// existing webhook consumers work unchanged.

type webhookPayload struct {
	EventName string      `json:"eventName"`
	Time      int64       `json:"time"` // epoch milliseconds
	Data      webhookData `json:"data"`
}

type webhookData struct {
	Song webhookSong `json:"song"`
}

type webhookSong struct {
	Processed webhookProcessed `json:"processed"`
	Parsed    webhookParsed    `json:"parsed"`
	Flags     webhookFlags     `json:"flags"`
	Metadata  webhookMetadata  `json:"metadata"`
	Connector webhookConnector `json:"connector"`
}

type webhookProcessed struct {
	Artist   string `json:"artist"`
	Track    string `json:"track"`
	Duration int    `json:"duration"`
}

type webhookParsed struct {
	Artist      string `json:"artist"`
	Track       string `json:"track"`
	Duration    int    `json:"duration"`
	CurrentTime int    `json:"currentTime"`
	IsPlaying   bool   `json:"isPlaying"`
}

type webhookFlags struct {
	IsValid bool `json:"isValid"`
}

type webhookMetadata struct {
	Label       string `json:"label"`
	TrackArtURL string `json:"trackArtUrl"`
}

type webhookConnector struct {
	Label string `json:"label"`
}

func buildPayload(ev Event) webhookPayload {
	return webhookPayload{
		EventName: string(ev.Type),
		Time:      ev.At.UnixMilli(),
		Data: webhookData{
			Song: webhookSong{
				Processed: webhookProcessed{
					Artist:   ev.Artist,
					Track:    ev.Track,
					Duration: int(ev.DurationSec),
				},
				Parsed: webhookParsed{
					Artist:      ev.Artist,
					Track:       ev.Track,
					Duration:    int(ev.DurationSec),
					CurrentTime: int(ev.PositionSec),
					IsPlaying:   ev.Type.IsPlaying(),
				},
				Flags:     webhookFlags{IsValid: true},
				Metadata:  webhookMetadata{Label: webhookLabel, TrackArtURL: ev.ArtURL},
				Connector: webhookConnector{Label: connectorLabel},
			},
		},
	}
}
