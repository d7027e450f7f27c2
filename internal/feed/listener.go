package feed

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Ingester consumes raw player events as they arrive.
type Ingester interface {
	Ingest(Event)
}

// Listener subscribes to a player-bridge websocket and forwards each
// playerInfo frame to the ingester.
//
// The bridge pushes one JSON object per state change, shaped like the
// Apple Music playerInfo notification userInfo dictionary. Delivery is
// best-effort: frames that fail to decode are dropped, and the connection
// is re-dialed with backoff when it breaks.
type Listener struct {
	url      string
	ingester Ingester
	logger   zerolog.Logger
	now      func() time.Time

	dialTimeout time.Duration
	retryDelay  time.Duration
}

// NewListener creates a Listener for the given websocket URL.
func NewListener(url string, ingester Ingester, logger zerolog.Logger) *Listener {
	return &Listener{
		url:         url,
		ingester:    ingester,
		logger:      logger.With().Str("component", "feed").Logger(),
		now:         time.Now,
		dialTimeout: 5 * time.Second,
		retryDelay:  2 * time.Second,
	}
}

// Run connects to the feed and pumps events until the context is
// cancelled. Blocks.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info().Str("url", l.url).Msg("Starting feed listener")

	for {
		if err := ctx.Err(); err != nil {
			l.logger.Info().Msg("Feed listener stopped")
			return err
		}

		conn, err := l.dial(ctx)
		if err != nil {
			l.logger.Warn().Err(err).Msg("Feed dial failed, retrying")
			if !sleep(ctx, l.retryDelay) {
				return ctx.Err()
			}
			continue
		}

		l.pump(ctx, conn)
		_ = conn.Close()
	}
}

func (l *Listener) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: l.dialTimeout}
	conn, _, err := dialer.DialContext(ctx, l.url, nil)
	if err != nil {
		return nil, err
	}
	l.logger.Info().Msg("Feed connected")
	return conn, nil
}

// pump reads frames until the connection breaks or the context ends.
func (l *Listener) pump(ctx context.Context, conn *websocket.Conn) {
	// Unblock the blocking read when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var payload map[string]any
		if err := conn.ReadJSON(&payload); err != nil {
			if ctx.Err() == nil {
				l.logger.Warn().Err(err).Msg("Feed read failed, reconnecting")
			}
			return
		}

		event, ok := ParsePlayerInfo(payload, l.now())
		if !ok {
			continue
		}

		l.ingester.Ingest(event)
		l.logger.Debug().
			Str("track", event.Track).
			Str("artist", event.Artist).
			Str("state", event.State).
			Float64("position", event.PositionSec).
			Msg("Feed event")
	}
}

// sleep waits for the duration or until the context is cancelled.
// Returns false if the context ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
