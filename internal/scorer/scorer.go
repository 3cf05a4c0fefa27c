// Package scorer ranks document text against a query with explainable
// phrase/keyword heuristics. The properties that matter are monotonicity
// and boundedness, not statistical relevance.
package scorer

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// ruleExtractScore is the fixed score for an exact rule-section match.
	ruleExtractScore = 95
	// fallbackScore is assigned to the document-head excerpt when no
	// paragraph scores above zero.
	fallbackScore = 20
	// minPositiveScore floors any paragraph that matched at all.
	minPositiveScore = 15
	// maxScore caps all scores.
	maxScore = 100

	// maxParagraphsPerKeyword bounds candidate collection.
	maxParagraphsPerKeyword = 5
	// ruleSectionCap bounds exact-rule extraction length.
	ruleSectionCap = 3000
	// fallbackExcerptLen is the document-head excerpt size.
	fallbackExcerptLen = 2000
)

// ruleRefRe matches an explicit rule reference in a query: the word "Rule"
// followed by a number and optional letter suffix.
var ruleRefRe = regexp.MustCompile(`(?i)\brule\s+(\d+[a-z]?)\b`)

// stopWords are dropped during keyword extraction.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "her": true,
	"was": true, "one": true, "our": true, "out": true, "his": true,
	"has": true, "have": true, "this": true, "that": true, "with": true,
	"from": true, "they": true, "been": true, "will": true, "what": true,
	"when": true, "where": true, "which": true, "there": true, "their": true,
	"about": true, "would": true, "could": true, "should": true, "does": true,
	"under": true, "how": true, "who": true, "whom": true, "into": true,
}

// signalTerms are always kept as keywords when literally present in the
// query, regardless of other filtering.
var signalTerms = []string{"appeal", "criminal", "conviction"}

// Match is one scored fragment of a document.
type Match struct {
	Text       string
	Score      int
	RuleNumber string
}

// RuleReference extracts an explicit rule number from the query, if any.
func RuleReference(query string) (string, bool) {
	m := ruleRefRe.FindStringSubmatch(query)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Score evaluates document text against the query.
//
// When the query carries an explicit rule reference and the document
// contains that rule's heading, the rule section is returned as the sole
// match at a fixed high score. Otherwise the best-scoring paragraph is
// returned, falling back to a low-confidence document-head excerpt so every
// consulted document contributes at least one result.
func Score(text, query string) Match {
	if ruleNum, ok := RuleReference(query); ok {
		if section, found := extractRuleSection(text, ruleNum); found {
			return Match{Text: section, Score: ruleExtractScore, RuleNumber: ruleNum}
		}
	}

	best := bestParagraph(text, query)
	if best.Score > 0 {
		return best
	}

	excerpt := text
	if len(excerpt) > fallbackExcerptLen {
		cut := fallbackExcerptLen
		// Back off to a rune boundary so the excerpt stays valid UTF-8.
		for cut > 0 && !utf8.RuneStart(excerpt[cut]) {
			cut--
		}
		excerpt = excerpt[:cut]
	}
	return Match{Text: strings.TrimSpace(excerpt), Score: fallbackScore}
}

// extractRuleSection locates the heading for ruleNum and captures text up
// to the next rule heading or a fixed length cap.
func extractRuleSection(text, ruleNum string) (string, bool) {
	headingRe := regexp.MustCompile(`(?im)^\s*rule\s+` + regexp.QuoteMeta(ruleNum) + `\b[.:]?`)
	loc := headingRe.FindStringIndex(text)
	if loc == nil {
		return "", false
	}

	section := text[loc[0]:]
	// End at the next rule heading after this one.
	nextRe := regexp.MustCompile(`(?im)^\s*rule\s+\d+[a-z]?\b`)
	if next := nextRe.FindStringIndex(section[loc[1]-loc[0]:]); next != nil {
		section = section[:loc[1]-loc[0]+next[0]]
	}
	if len(section) > ruleSectionCap {
		section = section[:ruleSectionCap]
	}

	return strings.TrimSpace(section), true
}

// Keywords extracts scoring keywords from the query: stop words removed,
// tokens of length <= 2 discarded, hard-coded signal terms kept when
// literally present.
func Keywords(query string) []string {
	lower := strings.ToLower(query)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})

	var out []string
	seen := make(map[string]bool)
	for _, f := range fields {
		if len(f) <= 2 || stopWords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}

	for _, term := range signalTerms {
		if strings.Contains(lower, term) && !seen[term] {
			seen[term] = true
			out = append(out, term)
		}
	}

	return out
}

// bestParagraph splits the document on blank lines, collects up to five
// candidate paragraphs per keyword, and keeps the single highest scorer.
func bestParagraph(text, query string) Match {
	keywords := Keywords(query)
	if len(keywords) == 0 {
		return Match{}
	}

	paragraphs := splitParagraphs(text)

	candidates := make(map[int]bool)
	for _, kw := range keywords {
		found := 0
		for i, p := range paragraphs {
			if found >= maxParagraphsPerKeyword {
				break
			}
			if containsFold(p, kw) {
				candidates[i] = true
				found++
			}
		}
	}

	var best Match
	for i := range paragraphs {
		if !candidates[i] {
			continue
		}
		score := scoreParagraph(paragraphs[i], query, keywords)
		if score > best.Score {
			best = Match{Text: strings.TrimSpace(paragraphs[i]), Score: score}
		}
	}
	return best
}

// scoreParagraph applies the scoring heuristic: verbatim query match is
// worth 50, keyword coverage up to 40, a shared literal "rules" 10.
// Positive scores are floored at 15 and capped at 100.
func scoreParagraph(paragraph, query string, keywords []string) int {
	score := 0

	if containsFold(paragraph, query) {
		score += 50
	}

	matched := 0
	for _, kw := range keywords {
		if containsFold(paragraph, kw) {
			matched++
		}
	}
	score += int(40 * float64(matched) / float64(len(keywords)))

	if containsWordFold(paragraph, "rules") && containsWordFold(query, "rules") {
		score += 10
	}

	if score > 0 && score < minPositiveScore {
		score = minPositiveScore
	}
	if score > maxScore {
		score = maxScore
	}
	return score
}

var blankLineRe = regexp.MustCompile(`\n\s*\n`)

func splitParagraphs(text string) []string {
	parts := blankLineRe.Split(text, -1)
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

func containsWordFold(s, word string) bool {
	for _, w := range wordRe.FindAllString(strings.ToLower(s), -1) {
		if w == word {
			return true
		}
	}
	return false
}
