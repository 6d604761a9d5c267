package reconcile

import (
	"regexp"
	"strings"
)

var (
	punctRe      = regexp.MustCompile(`[^\w\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// NormalizeTitle lowercases, trims, strips punctuation and collapses
// whitespace so that cosmetic differences never defeat a match.
func NormalizeTitle(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = punctRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Similarity scores two raw titles in [0,1] as (L - dist) / L where L is the
// length of the longer normalized title. Both empty yields 1.
func Similarity(a, b string) float64 {
	na := NormalizeTitle(a)
	nb := NormalizeTitle(b)
	longer := len([]rune(na))
	if l := len([]rune(nb)); l > longer {
		longer = l
	}
	if longer == 0 {
		return 1.0
	}
	return float64(longer-editDistance(na, nb)) / float64(longer)
}

// editDistance is the classic Levenshtein insertion/deletion/substitution
// minimum, computed over runes with a rolling row.
func editDistance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
