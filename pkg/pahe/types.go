package pahe

// Page is the upstream API's pagination envelope.
type Page[T any] struct {
	Total       int    `json:"total"`
	PerPage     int    `json:"per_page"`
	CurrentPage int    `json:"current_page"`
	LastPage    int    `json:"last_page,omitempty"`
	NextPageURL string `json:"next_page_url,omitempty"`
	PrevPageURL string `json:"prev_page_url,omitempty"`
	From        int    `json:"from,omitempty"`
	To          int    `json:"to,omitempty"`
	Data        []T    `json:"data"`
}

// emptyPage is the fallback for endpoints that answer 404 when a
// result set is empty. The upstream pages listings eight at a time.
func emptyPage[T any](page int) *Page[T] {
	return &Page[T]{
		PerPage:     8,
		CurrentPage: page,
		Data:        []T{},
	}
}

// AiringItem is one currently-airing episode release.
type AiringItem struct {
	ID        int     `json:"id"`
	AnimeID   int     `json:"anime_id"`
	Title     string  `json:"anime_title"`
	Episode   float64 `json:"episode"`
	Episode2  float64 `json:"episode2,omitempty"`
	Edition   string  `json:"edition,omitempty"`
	Fansub    string  `json:"fansub,omitempty"`
	Snapshot  string  `json:"snapshot"`
	Disc      string  `json:"disc,omitempty"`
	Session   string  `json:"session"`
	Filler    int     `json:"filler,omitempty"`
	CreatedAt string  `json:"created_at"`
	Completed int     `json:"completed,omitempty"`

	// Link is the canonical info page URL, derived from Session.
	Link string `json:"link,omitempty"`
}

// SearchItem is one search result.
type SearchItem struct {
	ID       int     `json:"id"`
	Title    string  `json:"title"`
	Status   string  `json:"status"`
	Type     string  `json:"type"`
	Episodes int     `json:"episodes"`
	Score    float64 `json:"score"`
	Year     int     `json:"year"`
	Season   string  `json:"season"`
	Poster   string  `json:"poster"`
	Session  string  `json:"session"`

	Link string `json:"link,omitempty"`
}

// ReleaseItem is one episode in an anime's release listing.
type ReleaseItem struct {
	ID        int     `json:"id"`
	AnimeID   int     `json:"anime_id"`
	Episode   float64 `json:"episode"`
	Episode2  float64 `json:"episode2,omitempty"`
	Edition   string  `json:"edition,omitempty"`
	Title     string  `json:"title,omitempty"`
	Snapshot  string  `json:"snapshot"`
	Disc      string  `json:"disc,omitempty"`
	Audio     string  `json:"audio,omitempty"`
	Duration  string  `json:"duration"`
	Session   string  `json:"session"`
	Filler    int     `json:"filler,omitempty"`
	CreatedAt string  `json:"created_at"`

	// Link is the canonical play page URL, filled in once the anime
	// session id is known.
	Link string `json:"link,omitempty"`
}

// QueueItem is one entry in the upstream's encoding queue.
type QueueItem struct {
	AnimeTitle string  `json:"anime_title"`
	Episode    float64 `json:"episode,omitempty"`
	Marked     int     `json:"marked,omitempty"`
}
