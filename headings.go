package paperslicer

import (
	"regexp"
	"sort"
	"strings"
)

// HeadingClass is the outcome of classifying one raw heading.
type HeadingClass int

const (
	// HeadingUnmapped means no rule matched; the heading is recorded for
	// diagnostics but excluded from canonical output.
	HeadingUnmapped HeadingClass = iota
	// HeadingMapped means the heading maps to a canonical section key.
	HeadingMapped
	// HeadingNonContent means the heading names boilerplate (funding,
	// acknowledgements, references, ...) that is excluded from the body.
	HeadingNonContent
)

// RegexRule maps headings matching a pattern to a canonical key. Rules are
// evaluated highest priority first; the first match wins.
type RegexRule struct {
	Pattern  string `yaml:"pattern"`
	Key      string `yaml:"key"`
	Priority int    `yaml:"priority"`

	re *regexp.Regexp
}

// KeywordRule scores a heading against a canonical key's keyword set. The
// key with the highest hit count wins when it reaches the configured minimum
// score; ties break by priority, then canonical-key declaration order.
type KeywordRule struct {
	Key      string   `yaml:"key"`
	Keywords []string `yaml:"keywords"`
	Priority int      `yaml:"priority"`
}

// Rules is the ordered mapping-rule table driving heading canonicalization.
// It is immutable during a run; build a new table to change behavior.
type Rules struct {
	Exact           map[string]string `yaml:"exact"`
	Regex           []RegexRule       `yaml:"regex"`
	Keywords        []KeywordRule     `yaml:"keywords"`
	MinKeywordScore int               `yaml:"min_keyword_score"`
	NonContent      map[string]bool   `yaml:"-"`
	NonContentKeys  []string          `yaml:"non_content"`
}

var (
	leadingBulletRe = regexp.MustCompile(`^[|>•*\-\x{2013}\x{2014}\s]+`)
	numberingRe     = regexp.MustCompile(`(?i)^(?:[ivxlcdm]+\.|\d+(?:\.\d+)*\.?)[\s\-:]*`)
	trailingAnnotRe = regexp.MustCompile(`\s*[(\[][^)\]]*[)\]]\s*$`)
	edgePunctRe     = regexp.MustCompile(`^[\s.:;,\-]+|[\s.:;,\-]+$`)
	spacesRe        = regexp.MustCompile(`\s+`)
)

// NormalizeHeading lowercases a heading, strips leading bullets and ordinal
// markers ("1.", "3.2", "II."), trailing bracketed annotations and edge
// punctuation, and collapses internal whitespace.
func NormalizeHeading(heading string) string {
	s := strings.ToLower(strings.TrimSpace(heading))
	s = leadingBulletRe.ReplaceAllString(s, "")
	s = numberingRe.ReplaceAllString(s, "")
	s = trailingAnnotRe.ReplaceAllString(s, "")
	s = edgePunctRe.ReplaceAllString(s, "")
	s = spacesRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// compile prepares regex rules and sorts rule groups by descending priority.
// Called once at load time; Map and Classify never mutate the table.
func (r *Rules) compile() error {
	// Dictionary keys are normalized the same way incoming headings are, so
	// exact lookup stays consistent with NormalizeHeading.
	exact := make(map[string]string, len(r.Exact))
	for k, v := range r.Exact {
		exact[NormalizeHeading(k)] = v
	}
	r.Exact = exact

	for i := range r.Regex {
		re, err := regexp.Compile(r.Regex[i].Pattern)
		if err != nil {
			return err
		}
		r.Regex[i].re = re
	}
	sort.SliceStable(r.Regex, func(i, j int) bool {
		return r.Regex[i].Priority > r.Regex[j].Priority
	})
	sort.SliceStable(r.Keywords, func(i, j int) bool {
		return r.Keywords[i].Priority > r.Keywords[j].Priority
	})
	if r.NonContent == nil {
		r.NonContent = make(map[string]bool, len(r.NonContentKeys))
	}
	for _, k := range r.NonContentKeys {
		r.NonContent[NormalizeHeading(k)] = true
	}
	return nil
}

// Map returns the canonical key for a raw heading. ok is false when no rule
// matched, or when the heading names non-content boilerplate.
func (r *Rules) Map(heading string) (key string, ok bool) {
	key, class := r.Classify(heading)
	return key, class == HeadingMapped
}

// Classify resolves a raw heading through the ordered rule stages:
// exact-match lookup, regex rules, then keyword scoring. The engine is pure;
// it performs no I/O and never mutates the rule table.
func (r *Rules) Classify(heading string) (string, HeadingClass) {
	n := NormalizeHeading(heading)
	if n == "" {
		return "", HeadingUnmapped
	}
	if r.NonContent[n] {
		return n, HeadingNonContent
	}

	// Stage 1: curated dictionary of known heading variants.
	if key, ok := r.Exact[n]; ok {
		if r.NonContent[key] {
			return key, HeadingNonContent
		}
		return key, HeadingMapped
	}

	// Stage 2: regex rules for lexically varied headings.
	for _, rule := range r.Regex {
		if rule.re.MatchString(n) {
			return rule.Key, HeadingMapped
		}
	}

	// Stage 3: keyword scoring fallback.
	if key, ok := r.keywordMatch(n); ok {
		return key, HeadingMapped
	}
	return "", HeadingUnmapped
}

func (r *Rules) keywordMatch(normalized string) (string, bool) {
	minScore := r.MinKeywordScore
	if minScore < 1 {
		minScore = 1
	}

	bestKey := ""
	bestScore := 0
	bestPriority := 0
	for _, kr := range r.Keywords {
		score := 0
		for _, kw := range kr.Keywords {
			if strings.Contains(normalized, kw) {
				score++
			}
		}
		if score < minScore {
			continue
		}
		switch {
		case score > bestScore:
		case score == bestScore && kr.Priority > bestPriority:
		case score == bestScore && kr.Priority == bestPriority && keyOrder(kr.Key) < keyOrder(bestKey):
		default:
			continue
		}
		bestKey, bestScore, bestPriority = kr.Key, score, kr.Priority
	}
	return bestKey, bestKey != ""
}

// keyOrder returns the declaration index of a canonical key, so score ties
// resolve deterministically rather than by map iteration order.
func keyOrder(key string) int {
	for i, k := range CanonicalKeys {
		if k == key {
			return i
		}
	}
	return len(CanonicalKeys)
}
