// Package artwork fetches album artwork URLs from the iTunes Search API.
// Artwork is optional everywhere; any failure yields an empty string.
package artwork

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Lookup fetches artwork URLs and caches results per (artist, album) so
// a track on repeat does not hit the network every time.
type Lookup struct {
	mu       sync.Mutex
	cache    map[string]string
	client   *http.Client
	endpoint string
}

// NewLookup creates a Lookup against the public iTunes Search endpoint.
func NewLookup() *Lookup {
	return &Lookup{
		cache: make(map[string]string),
		client: &http.Client{
			Timeout: 3 * time.Second,
		},
		endpoint: "https://itunes.apple.com/search",
	}
}

type itunesResponse struct {
	Results []itunesResult `json:"results"`
}

type itunesResult struct {
	ArtworkURL100 string `json:"artworkUrl100"`
}

// Lookup returns an artwork URL for the given artist and album, or an
// empty string when none could be found. Failures are cached too so a
// missing album is not re-queried on every track change.
func (a *Lookup) Lookup(ctx context.Context, artist, album string) string {
	key := artist + "|" + album
	a.mu.Lock()
	if url, ok := a.cache[key]; ok {
		a.mu.Unlock()
		return url
	}
	a.mu.Unlock()

	artURL := a.fetch(ctx, artist, album)

	a.mu.Lock()
	a.cache[key] = artURL
	a.mu.Unlock()

	return artURL
}

func (a *Lookup) fetch(ctx context.Context, artist, album string) string {
	query := url.Values{
		"term":   {artist + " " + album},
		"entity": {"album"},
		"limit":  {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?%s", a.endpoint, query.Encode()), nil)
	if err != nil {
		return ""
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var result itunesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ""
	}
	if len(result.Results) == 0 || result.Results[0].ArtworkURL100 == "" {
		return ""
	}

	// Upscale from 100x100 to 600x600 for better quality
	return strings.Replace(result.Results[0].ArtworkURL100, "100x100bb", "600x600bb", 1)
}
