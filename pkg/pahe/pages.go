package pahe

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// minPageLen guards against truncated documents slipping past the
// engine; the upstream's real pages are never this small.
const minPageLen = 1000

// AnimeInfo fetches the rendered info page for one anime session id.
func (c *Client) AnimeInfo(ctx context.Context, animeSession string, opts ...RequestOption) (string, error) {
	if animeSession == "" {
		return "", ErrMissingAnimeID
	}
	html, err := c.document(ctx, "/anime/"+animeSession, opts)
	if err != nil {
		return "", err
	}
	if len(html) < minPageLen {
		return "", fmt.Errorf("anime info for %s: truncated document (%d bytes)", animeSession, len(html))
	}
	return html, nil
}

// AnimeList fetches the catalogue index, optionally filtered by up to
// two tag path segments (e.g. genre and value).
func (c *Client) AnimeList(ctx context.Context, tag1, tag2 string, opts ...RequestOption) (string, error) {
	path := "/anime"
	if tag1 != "" && tag2 != "" {
		path = "/anime/" + tag1 + "/" + tag2
	}
	html, err := c.document(ctx, path, opts)
	if err != nil {
		return "", err
	}
	if len(html) < minPageLen {
		return "", fmt.Errorf("anime list: truncated document (%d bytes)", len(html))
	}
	return html, nil
}

// PlayPage fetches the rendered player page for one episode. The page
// carries the embed iframes the stream extraction starts from.
func (c *Client) PlayPage(ctx context.Context, animeSession, episodeSession string, opts ...RequestOption) (string, error) {
	if animeSession == "" {
		return "", ErrMissingAnimeID
	}
	if episodeSession == "" {
		return "", ErrMissingEpisode
	}
	html, err := c.document(ctx, "/play/"+animeSession+"/"+episodeSession, opts)
	if err != nil {
		return "", err
	}
	if len(html) < 500 {
		return "", fmt.Errorf("play page %s/%s: truncated document (%d bytes)", animeSession, episodeSession, len(html))
	}
	return html, nil
}

// Iframe fetches an embed player document by absolute URL. These live
// on a different host than the main origin, so the URL must be fully
// qualified.
func (c *Client) Iframe(ctx context.Context, rawURL string, opts ...RequestOption) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() {
		return "", errors.New("iframe url must be absolute")
	}

	req := newRequest(rawURL, opts)
	res, ferr := c.fetcher.Fetch(ctx, req)
	if ferr != nil {
		return "", fmt.Errorf("fetching iframe: %w", ferr)
	}
	if len(res.Content) < 100 {
		return "", fmt.Errorf("iframe: truncated document (%d bytes)", len(res.Content))
	}
	return res.Content, nil
}
