package pahe

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pahegate/pahegate/pkg/fetch"
)

// fakeFetcher serves canned content and records what the client asked
// for.
type fakeFetcher struct {
	content string
	err     error
	reqs    []fetch.Request
}

func (f *fakeFetcher) Fetch(_ context.Context, req fetch.Request) (fetch.Result, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return fetch.Result{}, f.err
	}
	return fetch.Result{Content: f.content, StatusCode: 200, Strategy: "direct"}, nil
}

func (f *fakeFetcher) last(t *testing.T) fetch.Request {
	t.Helper()
	if len(f.reqs) == 0 {
		t.Fatal("no request was issued")
	}
	return f.reqs[len(f.reqs)-1]
}

func notFoundErr(url string) error {
	return &fetch.ExhaustedError{URL: url, Status: 404}
}

func TestAiring(t *testing.T) {
	ff := &fakeFetcher{content: `{
		"total": 2, "per_page": 8, "current_page": 1,
		"data": [
			{"anime_title": "Frieren", "episode": 12, "session": "ep-aaa", "snapshot": "https://i.test/a.jpg"},
			{"anime_title": "Dandadan", "episode": 3.5, "session": "ep-bbb", "snapshot": "https://i.test/b.jpg"}
		]
	}`}
	c := New(ff, "")

	page, err := c.Airing(context.Background(), 1)
	if err != nil {
		t.Fatalf("Airing() error = %v", err)
	}

	req := ff.last(t)
	if !req.Structured {
		t.Error("api request not marked structured")
	}
	if req.URL != DefaultBaseURL+"/api" {
		t.Errorf("url = %q", req.URL)
	}
	if req.Query.Get("m") != "airing" || req.Query.Get("page") != "1" {
		t.Errorf("query = %v", req.Query)
	}

	if len(page.Data) != 2 {
		t.Fatalf("got %d items, want 2", len(page.Data))
	}
	if page.Data[0].Title != "Frieren" || page.Data[0].Episode != 12 {
		t.Errorf("first item = %+v", page.Data[0])
	}
	if page.Data[1].Episode != 3.5 {
		t.Errorf("fractional episode = %v", page.Data[1].Episode)
	}
	if want := DefaultBaseURL + "/anime/ep-aaa"; page.Data[0].Link != want {
		t.Errorf("link = %q, want %q", page.Data[0].Link, want)
	}
}

func TestAiring_PastEndIsEmptyPage(t *testing.T) {
	ff := &fakeFetcher{err: notFoundErr(DefaultBaseURL + "/api")}
	c := New(ff, "")

	page, err := c.Airing(context.Background(), 99)
	if err != nil {
		t.Fatalf("Airing() error = %v, want empty page", err)
	}
	if page.CurrentPage != 99 || page.PerPage != 8 {
		t.Errorf("fallback envelope = %+v", page)
	}
	if page.Data == nil || len(page.Data) != 0 {
		t.Errorf("fallback data = %v, want empty non-nil list", page.Data)
	}
}

func TestSearch_RequiresQuery(t *testing.T) {
	ff := &fakeFetcher{}
	c := New(ff, "")

	for _, q := range []string{"", "   "} {
		if _, err := c.Search(context.Background(), q, 1); !errors.Is(err, ErrMissingQuery) {
			t.Errorf("Search(%q) error = %v, want ErrMissingQuery", q, err)
		}
	}
	if len(ff.reqs) != 0 {
		t.Error("missing query still hit the network")
	}
}

func TestSearch(t *testing.T) {
	ff := &fakeFetcher{content: `{
		"total": 1, "per_page": 8, "current_page": 1,
		"data": [{"title": "Monster", "type": "TV", "episodes": 74, "session": "anm-xyz"}]
	}`}
	c := New(ff, "https://mirror.test")

	page, err := c.Search(context.Background(), "monster", 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	req := ff.last(t)
	if req.Query.Get("m") != "search" || req.Query.Get("q") != "monster" {
		t.Errorf("query = %v", req.Query)
	}
	if want := "https://mirror.test/anime/anm-xyz"; page.Data[0].Link != want {
		t.Errorf("link = %q, want %q", page.Data[0].Link, want)
	}
}

func TestSearch_NoMatchesIsEmptyPage(t *testing.T) {
	ff := &fakeFetcher{err: notFoundErr(DefaultBaseURL + "/api")}
	c := New(ff, "")

	page, err := c.Search(context.Background(), "zzzzz", 1)
	if err != nil {
		t.Fatalf("Search() error = %v, want empty page", err)
	}
	if len(page.Data) != 0 {
		t.Errorf("data = %v", page.Data)
	}
}

func TestReleases(t *testing.T) {
	ff := &fakeFetcher{content: `{
		"total": 2, "per_page": 30, "current_page": 1,
		"data": [
			{"episode": 1, "session": "ep-1", "duration": "00:24:10"},
			{"episode": 2, "session": "ep-2", "duration": "00:23:58"}
		]
	}`}
	c := New(ff, "")

	page, err := c.Releases(context.Background(), "anm-xyz", "episode_asc", 1)
	if err != nil {
		t.Fatalf("Releases() error = %v", err)
	}

	req := ff.last(t)
	if req.Query.Get("m") != "release" || req.Query.Get("id") != "anm-xyz" {
		t.Errorf("query = %v", req.Query)
	}
	if req.Query.Get("sort") != "episode_asc" {
		t.Errorf("sort = %q", req.Query.Get("sort"))
	}

	if want := DefaultBaseURL + "/play/anm-xyz/ep-2"; page.Data[1].Link != want {
		t.Errorf("link = %q, want %q", page.Data[1].Link, want)
	}
}

func TestReleases_RequiresAnimeID(t *testing.T) {
	c := New(&fakeFetcher{}, "")
	if _, err := c.Releases(context.Background(), "", "", 1); !errors.Is(err, ErrMissingAnimeID) {
		t.Fatalf("error = %v, want ErrMissingAnimeID", err)
	}
}

func TestQueue_EmptyOn404(t *testing.T) {
	ff := &fakeFetcher{err: notFoundErr(DefaultBaseURL + "/api")}
	c := New(ff, "")

	page, err := c.Queue(context.Background())
	if err != nil {
		t.Fatalf("Queue() error = %v", err)
	}
	if len(page.Data) != 0 {
		t.Errorf("data = %v", page.Data)
	}
}

func TestDecodePage_MissingDataNormalizes(t *testing.T) {
	page, err := decodePage[QueueItem](`{"total": 0}`)
	if err != nil {
		t.Fatalf("decodePage() error = %v", err)
	}
	if page.Data == nil {
		t.Error("nil data slipped through")
	}
}

func TestAnimeInfo_TruncatedDocument(t *testing.T) {
	ff := &fakeFetcher{content: "<html>stub</html>"}
	c := New(ff, "")

	_, err := c.AnimeInfo(context.Background(), "anm-xyz")
	if err == nil || !strings.Contains(err.Error(), "truncated") {
		t.Fatalf("error = %v, want truncated-document failure", err)
	}
}

func TestAnimeInfo(t *testing.T) {
	ff := &fakeFetcher{content: strings.Repeat("<p>synopsis</p>", 100)}
	c := New(ff, "")

	html, err := c.AnimeInfo(context.Background(), "anm-xyz")
	if err != nil {
		t.Fatalf("AnimeInfo() error = %v", err)
	}
	if html == "" {
		t.Fatal("empty document")
	}

	req := ff.last(t)
	if req.URL != DefaultBaseURL+"/anime/anm-xyz" {
		t.Errorf("url = %q", req.URL)
	}
	if req.Structured {
		t.Error("document request marked structured")
	}
}

func TestAnimeList_TagPath(t *testing.T) {
	ff := &fakeFetcher{content: strings.Repeat("<li>title</li>", 100)}
	c := New(ff, "")

	if _, err := c.AnimeList(context.Background(), "genre", "action"); err != nil {
		t.Fatalf("AnimeList() error = %v", err)
	}
	if got := ff.last(t).URL; got != DefaultBaseURL+"/anime/genre/action" {
		t.Errorf("url = %q", got)
	}

	if _, err := c.AnimeList(context.Background(), "", ""); err != nil {
		t.Fatalf("AnimeList() error = %v", err)
	}
	if got := ff.last(t).URL; got != DefaultBaseURL+"/anime" {
		t.Errorf("url = %q", got)
	}
}

func TestPlayPage_RequiresBothIDs(t *testing.T) {
	c := New(&fakeFetcher{}, "")

	if _, err := c.PlayPage(context.Background(), "", "ep-1"); !errors.Is(err, ErrMissingAnimeID) {
		t.Errorf("error = %v, want ErrMissingAnimeID", err)
	}
	if _, err := c.PlayPage(context.Background(), "anm-xyz", ""); !errors.Is(err, ErrMissingEpisode) {
		t.Errorf("error = %v, want ErrMissingEpisode", err)
	}
}

func TestIframe_RequiresAbsoluteURL(t *testing.T) {
	c := New(&fakeFetcher{}, "")

	if _, err := c.Iframe(context.Background(), "/e/abc123"); err == nil {
		t.Fatal("relative iframe url accepted")
	}
}

func TestIframe(t *testing.T) {
	ff := &fakeFetcher{content: strings.Repeat("<script>player</script>", 10)}
	c := New(ff, "")

	html, err := c.Iframe(context.Background(), "https://kwik.test/e/abc123")
	if err != nil {
		t.Fatalf("Iframe() error = %v", err)
	}
	if html == "" {
		t.Fatal("empty document")
	}
	if got := ff.last(t).URL; got != "https://kwik.test/e/abc123" {
		t.Errorf("url = %q", got)
	}
}

func TestWithCookies(t *testing.T) {
	ff := &fakeFetcher{content: `{"data":[]}`}
	c := New(ff, "")

	if _, err := c.Airing(context.Background(), 1, WithCookies("sid=manual")); err != nil {
		t.Fatalf("Airing() error = %v", err)
	}
	if got := ff.last(t).CookieOverride; got != "sid=manual" {
		t.Errorf("CookieOverride = %q, want sid=manual", got)
	}
}
