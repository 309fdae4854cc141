// Package keywords derives short search keys from a free-text chat message.
// Extraction is pure and deterministic; mixed Latin and CJK input is supported.
package keywords

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxKeywords bounds the number of keys returned by Extract
	MaxKeywords = 5

	// WholeMessageMaxRunes is the length at or below which the message itself is a key
	WholeMessageMaxRunes = 50

	minSegmentRunes = 2
	maxSegmentRunes = 10
)

var (
	// Tickers and acronyms, bounded by non-word characters
	upperTokenPattern = regexp.MustCompile(`\b[A-Z]{2,5}\b`)
	latinWordPattern  = regexp.MustCompile(`[A-Za-z]{3,}`)
)

// segmentDelimiters split CJK text: full- and half-width punctuation, brackets and whitespace
const segmentDelimiters = ",，.。、;；:：!！?？()（）[]【】{}「」『』《》<>\"“”'‘’/|~～-—…·"

// Extract returns at most MaxKeywords distinct keys in first-seen order.
// The result is empty only when the message is empty or made entirely of
// stop words and punctuation.
func Extract(message string) []string {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return []string{}
	}

	var candidates []string

	candidates = append(candidates, upperTokenPattern.FindAllString(trimmed, -1)...)

	for _, word := range latinWordPattern.FindAllString(trimmed, -1) {
		if !IsStopWord(word) {
			candidates = append(candidates, word)
		}
	}

	for _, segment := range cjkSegments(trimmed) {
		n := utf8.RuneCountInString(segment)
		if n < minSegmentRunes || n > maxSegmentRunes || IsStopWord(segment) {
			continue
		}
		candidates = append(candidates, segment)
	}

	if utf8.RuneCountInString(trimmed) <= WholeMessageMaxRunes && !onlyStopWords(trimmed) {
		candidates = append(candidates, trimmed)
	}

	return dedupe(candidates, MaxKeywords)
}

// cjkSegments drops Latin letters, digits and non-delimiter ASCII punctuation,
// then splits what remains on segment delimiters.
func cjkSegments(message string) []string {
	stripped := strings.Map(func(r rune) rune {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			return -1
		case r < unicode.MaxASCII && unicode.IsPunct(r) && !strings.ContainsRune(segmentDelimiters, r):
			return -1
		case r < unicode.MaxASCII && unicode.IsSymbol(r) && !strings.ContainsRune(segmentDelimiters, r):
			return -1
		}
		return r
	}, message)

	return strings.FieldsFunc(stripped, isDelimiter)
}

func isDelimiter(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(segmentDelimiters, r)
}

// onlyStopWords reports whether every token of message is a stop word or punctuation
func onlyStopWords(message string) bool {
	for _, token := range strings.FieldsFunc(message, isDelimiter) {
		if IsStopWord(token) || isPunctuation(token) {
			continue
		}
		return false
	}
	return true
}

func isPunctuation(token string) bool {
	for _, r := range token {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return false
		}
	}
	return true
}

func dedupe(candidates []string, limit int) []string {
	seen := make(map[string]struct{}, len(candidates))
	result := make([]string, 0, limit)
	for _, c := range candidates {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		result = append(result, c)
		if len(result) == limit {
			break
		}
	}
	return result
}
