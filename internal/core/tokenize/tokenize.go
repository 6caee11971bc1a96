// Package tokenize splits a line of text into word tokens.
//
// Lines are NFC-normalized and segmented with Unicode word boundaries
// (UAX #29). Only letter, number and ideographic segments become tokens;
// whitespace and punctuation are dropped. Case is preserved because lookups
// are exact-token matches.
package tokenize

import (
	"strings"
	"unicode/utf8"

	"github.com/blevesearch/segment"
	"golang.org/x/text/unicode/norm"
)

// Token is one word of a line. Position is the rune column where the
// token starts within the normalized line.
type Token struct {
	Content  string
	Position int
}

func Tokenize(content string) []Token {
	if content == "" {
		return nil
	}
	line := []byte(Normalize(content))

	var out []Token
	col := 0
	seg := segment.NewWordSegmenterDirect(line)
	for seg.Segment() {
		b := seg.Bytes()
		if seg.Type() != segment.None {
			out = append(out, Token{Content: string(b), Position: col})
		}
		col += utf8.RuneCount(b)
	}
	return out
}

// Normalize returns s in NFC form with invalid UTF-8 replaced by U+FFFD.
// Queries go through it so they compare equal to indexed tokens.
func Normalize(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	if norm.NFC.IsNormalString(s) {
		return s
	}
	return norm.NFC.String(s)
}

// Collect adds the token contents of line to set.
func Collect(set map[string]struct{}, line string) {
	for _, t := range Tokenize(line) {
		set[t.Content] = struct{}{}
	}
}
