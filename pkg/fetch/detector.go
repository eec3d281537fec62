package fetch

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Verdict is the block detector's classification of a response.
type Verdict int

const (
	// Genuine means real upstream content.
	Genuine Verdict = iota
	// Blocked means a challenge or soft-block page.
	Blocked
)

func (v Verdict) String() string {
	if v == Genuine {
		return "genuine"
	}
	return "blocked"
}

// Default length thresholds under which unrecognized content is
// presumed to be a disguised challenge page.
const (
	minDocumentLen   = 1000
	minStructuredLen = 100
)

// blockMarkers are case-insensitive substrings of known anti-bot
// interstitials (DDoS-Guard and similar vendors).
var blockMarkers = []string{
	"ddos-guard",
	"checking your browser",
	"just a moment",
	"attention required",
	"verifying you are human",
	"access denied",
}

// genuineMarkers are fragments of the upstream's normal pages. They
// rescue short legitimate responses (empty listings, sparse pages)
// from the length heuristic.
var genuineMarkers = []string{
	"episode-wrap",
	"episode-list",
	"resolutionmenu",
	"pickdownload",
	"anime-list",
	"tab-content",
}

// Detector classifies raw responses as genuine content or soft-block
// challenge pages. It is the single source of truth for the marker
// lists; every transport strategy and the orchestrator consult the same
// instance.
type Detector struct {
	blockMarkers   []string
	genuineMarkers []string
	docMinLen      int
	structMinLen   int
}

// NewDetector returns a detector with the default rule set.
func NewDetector() *Detector {
	return &Detector{
		blockMarkers:   blockMarkers,
		genuineMarkers: genuineMarkers,
		docMinLen:      minDocumentLen,
		structMinLen:   minStructuredLen,
	}
}

// Classify applies the detection rules in order, first match wins:
//
//  1. 401/403 status is always a block.
//  2. A structured request whose body parses as a JSON list, or as an
//     object carrying a "data" field, is genuine regardless of length —
//     short empty result sets must not be discarded.
//  3. Any known challenge marker in the body, or a challenge-flavored
//     document title, is a block.
//  4. A body shorter than the shape-specific threshold that carries no
//     known genuine-page marker is presumed a disguised block.
//  5. Everything else is genuine.
func (d *Detector) Classify(body string, status int, structured bool) Verdict {
	if status == 401 || status == 403 {
		return Blocked
	}

	lower := strings.ToLower(body)
	if structured {
		if isStructuredPayload(body) {
			return Genuine
		}
		for _, m := range d.blockMarkers {
			if strings.Contains(lower, m) {
				return Blocked
			}
		}
	} else if d.LooksLikeChallenge(body) {
		return Blocked
	}

	minLen := d.docMinLen
	if structured {
		minLen = d.structMinLen
	}
	if len(body) < minLen && !d.hasGenuineMarker(lower) {
		return Blocked
	}

	return Genuine
}

// LooksLikeChallenge inspects an HTML document for challenge
// fingerprints: the interstitial's characteristic title and the block
// marker list. Classify applies it to every document response; the
// browser strategy also uses it mid-flight to decide whether to wait
// for a client-side challenge to resolve itself.
func (d *Detector) LooksLikeChallenge(html string) bool {
	t := strings.ToLower(PageTitle(html))
	if strings.Contains(t, "ddos") || strings.Contains(t, "guard") {
		return true
	}
	lower := strings.ToLower(html)
	for _, m := range d.blockMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// PageTitle extracts the <title> of an HTML document, empty when the
// document has none or does not parse.
func PageTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func (d *Detector) hasGenuineMarker(lower string) bool {
	for _, m := range d.genuineMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// isStructuredPayload reports whether the body is well-formed JSON
// matching the upstream API's minimal contract: either a list, or an
// object with a "data" field.
func isStructuredPayload(body string) bool {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return false
	}
	switch trimmed[0] {
	case '[':
		var list []json.RawMessage
		return json.Unmarshal([]byte(trimmed), &list) == nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
			return false
		}
		_, ok := obj["data"]
		return ok
	}
	return false
}
