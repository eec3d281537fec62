// Package unpack reverses the Dean Edwards p.a.c.k.e.r obfuscation the
// target's embed players wrap their sources in. The original payload is
// recovered by pure string substitution; no JavaScript is ever
// executed.
package unpack

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Sentinel errors for the extraction pipeline.
var (
	ErrNoPackedScript = errors.New("no packed script found")
	ErrNoStreamURL    = errors.New("no stream url in unpacked source")
)

// packedPayloadRe captures the packer's argument tuple:
//
//	}('payload',radix,count,'word|word|…'.split('|'),…)
var packedPayloadRe = regexp.MustCompile(
	`(?s)\}\s*\(\s*'((?:[^'\\]|\\.)*)'\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*'((?:[^'\\]|\\.)*)'\s*\.split\('\|'\)`)

// packedScriptRe locates the eval-wrapped packer blob inside a
// document.
var packedScriptRe = regexp.MustCompile(
	`(?s)eval\(function\(p,a,c,k,e,[dr]\).*?\.split\('\|'\)[^)]*\)\)`)

var tokenRe = regexp.MustCompile(`\b\w+\b`)

var streamURLRe = regexp.MustCompile(`https?://[^'"\s\\]+?\.m3u8[^'"\s\\]*`)

// Unpack decodes one packed script. The input may be the bare packer
// expression or a larger script containing it; the first packed payload
// found is decoded.
func Unpack(script string) (string, error) {
	m := packedPayloadRe.FindStringSubmatch(script)
	if m == nil {
		return "", ErrNoPackedScript
	}

	payload := unescape(m[1])
	radix := atoi(m[2])
	count := atoi(m[3])
	words := strings.Split(unescape(m[4]), "|")

	if radix < 2 {
		radix = 36
	}
	// The packer's alphabet tops out at 62; anything larger is a
	// malformed or hostile blob, not a decodable one.
	if radix > len(base62Alphabet) {
		return "", fmt.Errorf("packed radix %d out of range", radix)
	}
	if count != len(words) {
		// Off-by-a-few word tables still decode; only a grossly
		// truncated table is hopeless.
		if len(words) == 0 {
			return "", fmt.Errorf("packed word table empty (declared %d)", count)
		}
	}

	decoded := tokenRe.ReplaceAllStringFunc(payload, func(token string) string {
		idx, ok := unbase(token, radix)
		if !ok || idx < 0 || idx >= len(words) {
			return token
		}
		if words[idx] == "" {
			return token
		}
		return words[idx]
	})

	return decoded, nil
}

// ExtractPacked finds the packed script blob inside an HTML document.
func ExtractPacked(html string) (string, bool) {
	m := packedScriptRe.FindString(html)
	return m, m != ""
}

// ExtractStreamURL runs the full pipeline on an embed page: locate the
// packed player script, unpack it, and pull out the HLS playlist URL.
func ExtractStreamURL(html string) (string, error) {
	packed, ok := ExtractPacked(html)
	if !ok {
		// Some variants ship the playlist in the clear.
		if u := streamURLRe.FindString(html); u != "" {
			return u, nil
		}
		return "", ErrNoPackedScript
	}

	source, err := Unpack(packed)
	if err != nil {
		return "", err
	}

	u := streamURLRe.FindString(source)
	if u == "" {
		return "", ErrNoStreamURL
	}
	return u, nil
}

const base62Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// unbase decodes a packer token. Radixes up to 36 use the usual
// case-insensitive digits; the packer's 62-ary mode is case-sensitive
// with uppercase above 'z'.
func unbase(token string, radix int) (int, bool) {
	alphabet := base62Alphabet[:radix]
	caseFold := radix <= 36

	n := 0
	for _, r := range token {
		c := byte(r)
		if caseFold && c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		idx := strings.IndexByte(alphabet, c)
		if idx < 0 {
			return 0, false
		}
		n = n*radix + idx
	}
	return n, true
}

func unescape(s string) string {
	s = strings.ReplaceAll(s, `\'`, `'`)
	s = strings.ReplaceAll(s, `\\`, `\`)
	return s
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
