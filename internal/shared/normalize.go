package shared

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	bracketedRe  = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]|\{[^}]*\}`)
	dashSuffixRe = regexp.MustCompile(`\s+-\s+.*\b(remaster(ed)?|live|version|edit|mix|mono|stereo|demo|acoustic)\b.*$`)
	featuringRe  = regexp.MustCompile(`(^|\s)(feat\.?|ft\.?|featuring|with)(\s|$)`)
	partMarkerRe = regexp.MustCompile(`(^|\s)(pt\.?|part|mvt\.?|movement)\s*(\d+|[ivx]+)\.?(\s|$)`)
	apostropheRe = regexp.MustCompile(`['’‘` + "`" + `.]`)
	nonWordRe    = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

// stripDiacritics decomposes s and drops combining marks ("Beyoncé" -> "Beyonce").
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeText reduces a track title or artist name to a comparable form.
//
// Steps, in order: lower-case, strip diacritics, drop bracketed qualifiers ("(Remastered)", "[Live]")
// and " - Remastered 2011" style suffixes, drop part/movement markers, drop feat./ft./featuring/with,
// turn "&" into "and", drop apostrophes and abbreviation periods, turn remaining punctuation into
// spaces, collapse whitespace and strip a leading "the".
func NormalizeText(s string) string {
	s = strings.ToLower(s)
	s = stripDiacritics(s)
	s = bracketedRe.ReplaceAllString(s, " ")
	s = dashSuffixRe.ReplaceAllString(s, "")
	s = partMarkerRe.ReplaceAllString(s, " ")
	s = featuringRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&", " and ")
	s = apostropheRe.ReplaceAllString(s, "")
	s = nonWordRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	s = strings.TrimPrefix(s, "the ")
	return s
}

// NormalizeTrackKey builds a "title|artist" key from normalized parts for map lookups.
func NormalizeTrackKey(title, artist string) string {
	return NormalizeText(title) + "|" + NormalizeText(artist)
}

// Tokens splits normalized text into words.
func Tokens(normalized string) []string {
	return strings.Fields(normalized)
}

// ParseArtistTitle splits free text of the form "Artist - Title".
func ParseArtistTitle(s string) (artist, title string, err error) {
	artist, title, ok := strings.Cut(s, " - ")
	artist, title = strings.TrimSpace(artist), strings.TrimSpace(title)
	if !ok || artist == "" || title == "" {
		return "", "", fmt.Errorf("%w: expected \"artist - title\", got %q", ErrInvalidInput, s)
	}
	return artist, title, nil
}
