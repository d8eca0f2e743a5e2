// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package skills

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"gonum.org/v1/gonum/floats"

	"github.com/Stellven/KBSkills/pkg/types"
)

// domainListThreshold is the cosine above which a domain label is reported
// in MatchScore.MatchedDomains.
const domainListThreshold = 0.4

// keywordScore returns the fraction of keywords that occur in topic as
// whole tokens, ignoring case, and the keywords found.
func keywordScore(topic string, keywords []string) (float64, []string) {
	lower := strings.ToLower(topic)
	total := 0
	var found []string
	for _, kw := range keywords {
		needle := strings.ToLower(strings.TrimSpace(kw))
		if needle == "" {
			continue
		}
		total++
		if containsToken(lower, needle) {
			found = append(found, kw)
		}
	}
	if total == 0 {
		return 0, nil
	}
	return float64(len(found)) / float64(total), found
}

// containsToken reports whether needle occurs in s delimited by token
// boundaries. Han script has no word delimiters, so a Han rune on either
// side of the boundary satisfies it.
func containsToken(s, needle string) bool {
	first, _ := utf8.DecodeRuneInString(needle)
	last, _ := utf8.DecodeLastRuneInString(needle)

	for offset := 0; offset <= len(s)-len(needle); {
		i := strings.Index(s[offset:], needle)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(needle)

		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if (start == 0 || isBoundary(before, first)) && (end == len(s) || isBoundary(after, last)) {
			return true
		}

		_, size := utf8.DecodeRuneInString(s[start:])
		offset = start + size
	}
	return false
}

func isBoundary(outside, inside rune) bool {
	if !isWordRune(outside) || !isWordRune(inside) {
		return true
	}
	return unicode.Is(unicode.Han, outside) || unicode.Is(unicode.Han, inside)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// intentScore is 1 when any pattern matches topic, else 0.
func intentScore(topic string, patterns []*regexp.Regexp) float64 {
	for _, re := range patterns {
		if re.MatchString(topic) {
			return 1
		}
	}
	return 0
}

// cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or the dimensions differ.
func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

// domainSimilarity returns the maximum clamped cosine between topic and
// the label vectors, and the labels above domainListThreshold.
func domainSimilarity(topic []float64, labels []string, vectors map[string][]float64) (float64, []string) {
	best := 0.0
	var matched []string
	for _, label := range labels {
		v, ok := vectors[label]
		if !ok {
			continue
		}
		sim := cosine(topic, v)
		if sim > domainListThreshold {
			matched = append(matched, label)
		}
		if c := clamp01(sim); c > best {
			best = c
		}
	}
	return best, matched
}

// composite blends the three signals with w.
func composite(w types.Weights, domain, keyword, intent float64) float64 {
	return clamp01(w.Domain*domain + w.Keyword*keyword + w.Intent*intent)
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
