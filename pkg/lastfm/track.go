package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TrackService provides now playing updates and scrobbling.
type TrackService struct {
	client *Client
}

// correctedText is how Last.fm encodes string fields that it may have
// auto-corrected: {"#text": "...", "corrected": "0"}.
type correctedText struct {
	Text      string `json:"#text"`
	Corrected string `json:"corrected"`
}

// UpdateNowPlaying updates the "now playing" status on Last.fm.
//
// This should be called when a track starts playing. It does not count as
// a scrobble and does not affect play counts.
//
// Requires authentication (session key must be set).
func (s *TrackService) UpdateNowPlaying(ctx context.Context, track Track) (*NowPlayingResponse, error) {
	params := map[string]string{
		"artist": track.Artist,
		"track":  track.Track,
	}
	if track.Album != "" {
		params["album"] = track.Album
	}
	if track.AlbumArtist != "" {
		params["albumArtist"] = track.AlbumArtist
	}
	if track.Duration > 0 {
		params["duration"] = fmt.Sprintf("%d", track.Duration)
	}

	body, err := s.client.call(ctx, http.MethodPost, "track.updateNowPlaying", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		NowPlaying struct {
			Artist correctedText `json:"artist"`
			Track  correctedText `json:"track"`
			Album  correctedText `json:"album"`
		} `json:"nowplaying"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse now playing response: %w", err)
	}

	return &NowPlayingResponse{
		Artist: resp.NowPlaying.Artist.Text,
		Track:  resp.NowPlaying.Track.Text,
		Album:  resp.NowPlaying.Album.Text,
	}, nil
}

// Scrobble submits a single scrobble to Last.fm.
//
// The timestamp is when the track started playing, not when the scrobble
// threshold was reached. Scrobble parameters are array-indexed on the wire
// (artist[0], track[0], timestamp[0], ...) per the batch form of
// track.scrobble.
//
// Requires authentication (session key must be set).
func (s *TrackService) Scrobble(ctx context.Context, track Track, timestamp time.Time) (*ScrobbleResponse, error) {
	params := map[string]string{
		"artist[0]":    track.Artist,
		"track[0]":     track.Track,
		"timestamp[0]": fmt.Sprintf("%d", timestamp.Unix()),
	}
	if track.Album != "" {
		params["album[0]"] = track.Album
	}
	if track.AlbumArtist != "" {
		params["albumArtist[0]"] = track.AlbumArtist
	}
	if track.Duration > 0 {
		params["duration[0]"] = fmt.Sprintf("%d", track.Duration)
	}

	body, err := s.client.call(ctx, http.MethodPost, "track.scrobble", params, true)
	if err != nil {
		return nil, err
	}

	resp, err := unmarshalScrobbles(body)
	if err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse scrobble response: %w", err)
	}

	return resp, nil
}

// scrobbleEntry is one accepted/ignored scrobble in the response. For a
// single submission Last.fm returns it as a bare object, for batches as an
// array, so the caller decodes it from a RawMessage.
type scrobbleEntry struct {
	IgnoredMessage struct {
		Code string `json:"code"`
		Text string `json:"#text"`
	} `json:"ignoredMessage"`
}

func unmarshalScrobbles(data []byte) (*ScrobbleResponse, error) {
	var resp struct {
		Scrobbles struct {
			Attr struct {
				Accepted int `json:"accepted"`
				Ignored  int `json:"ignored"`
			} `json:"@attr"`
			Scrobble json.RawMessage `json:"scrobble"`
		} `json:"scrobbles"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}

	result := &ScrobbleResponse{
		Accepted: resp.Scrobbles.Attr.Accepted,
		Ignored:  resp.Scrobbles.Attr.Ignored,
	}

	if len(resp.Scrobbles.Scrobble) > 0 {
		var entries []scrobbleEntry
		if resp.Scrobbles.Scrobble[0] == '[' {
			_ = json.Unmarshal(resp.Scrobbles.Scrobble, &entries)
		} else {
			var single scrobbleEntry
			if json.Unmarshal(resp.Scrobbles.Scrobble, &single) == nil {
				entries = append(entries, single)
			}
		}
		for _, e := range entries {
			if e.IgnoredMessage.Text != "" {
				result.IgnoredMessage = e.IgnoredMessage.Text
				break
			}
		}
	}

	return result, nil
}
