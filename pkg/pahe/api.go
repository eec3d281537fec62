package pahe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Airing returns the currently-airing feed, newest first. A page past
// the end comes back as an empty page rather than an error.
func (c *Client) Airing(ctx context.Context, page int, opts ...RequestOption) (*Page[AiringItem], error) {
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	params.Set("m", "airing")
	params.Set("page", strconv.Itoa(page))

	body, err := c.api(ctx, params, opts)
	if err != nil {
		if notFound(err) {
			return emptyPage[AiringItem](page), nil
		}
		return nil, fmt.Errorf("airing page %d: %w", page, err)
	}

	result, err := decodePage[AiringItem](body)
	if err != nil {
		return nil, fmt.Errorf("airing page %d: %w", page, err)
	}
	for i := range result.Data {
		if s := result.Data[i].Session; s != "" {
			result.Data[i].Link = c.AnimeURL(s)
		}
	}
	return result, nil
}

// Search queries the upstream catalogue. The query is required; an
// empty result set is an empty page, not an error.
func (c *Client) Search(ctx context.Context, query string, page int, opts ...RequestOption) (*Page[SearchItem], error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrMissingQuery
	}
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	params.Set("m", "search")
	params.Set("q", query)
	params.Set("page", strconv.Itoa(page))

	body, err := c.api(ctx, params, opts)
	if err != nil {
		if notFound(err) {
			return emptyPage[SearchItem](page), nil
		}
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	result, err := decodePage[SearchItem](body)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	for i := range result.Data {
		if s := result.Data[i].Session; s != "" {
			result.Data[i].Link = c.AnimeURL(s)
		}
	}
	return result, nil
}

// Queue returns the upstream's encoding queue.
func (c *Client) Queue(ctx context.Context, opts ...RequestOption) (*Page[QueueItem], error) {
	params := url.Values{}
	params.Set("m", "queue")

	body, err := c.api(ctx, params, opts)
	if err != nil {
		if notFound(err) {
			return &Page[QueueItem]{Data: []QueueItem{}}, nil
		}
		return nil, fmt.Errorf("queue: %w", err)
	}
	return decodePage[QueueItem](body)
}

// Releases lists the episodes of one anime. sort is "episode_asc" or
// "episode_desc"; the upstream default applies when empty.
func (c *Client) Releases(ctx context.Context, animeSession, sort string, page int, opts ...RequestOption) (*Page[ReleaseItem], error) {
	if animeSession == "" {
		return nil, ErrMissingAnimeID
	}
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	params.Set("m", "release")
	params.Set("id", animeSession)
	if sort != "" {
		params.Set("sort", sort)
	}
	params.Set("page", strconv.Itoa(page))

	body, err := c.api(ctx, params, opts)
	if err != nil {
		if notFound(err) {
			return emptyPage[ReleaseItem](page), nil
		}
		return nil, fmt.Errorf("releases for %s: %w", animeSession, err)
	}

	result, err := decodePage[ReleaseItem](body)
	if err != nil {
		return nil, fmt.Errorf("releases for %s: %w", animeSession, err)
	}
	for i := range result.Data {
		if s := result.Data[i].Session; s != "" {
			result.Data[i].Link = c.PlayURL(animeSession, s)
		}
	}
	return result, nil
}

// decodePage unmarshals the upstream envelope. A payload without a
// data list normalizes to an empty one so callers never see nil.
func decodePage[T any](body string) (*Page[T], error) {
	var p Page[T]
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, fmt.Errorf("decoding api payload: %w", err)
	}
	if p.Data == nil {
		p.Data = []T{}
	}
	return &p, nil
}
