package paperslicer

import (
	"regexp"
	"strings"
)

// reviewTitleWords flag review/consensus articles by title alone.
var reviewTitleWords = []string{"review", "systematic", "meta-analysis", "consensus"}

// reviewHeadingWords flag review articles by the method-style sections they
// contain even when the title is silent about the study type.
var reviewHeadingWords = []string{
	"search strategy", "study selection", "data extraction",
	"risk of bias", "quality assessment",
}

// boilerplateRes exclude disclaimers from aggregated augmentation text.
var boilerplateRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\borcid\b`),
	regexp.MustCompile(`\b\d{4}-\d{4}-\d{4}-\d{3}[\dXx]\b`), // bare ORCID iD
	regexp.MustCompile(`(?i)\bdata availability\b`),
	regexp.MustCompile(`(?i)\bconflicts? of interest\b`),
	regexp.MustCompile(`(?i)\bcompeting interests?\b`),
	regexp.MustCompile(`(?i)\bauthor contributions?\b`),
	regexp.MustCompile(`(?i)this (work|study|research) was (supported|funded) by`),
	regexp.MustCompile(`(?i)\bfunding\b.{0,40}\b(received|none|sources?)\b`),
	regexp.MustCompile(`(?i)\binformed consent\b`),
	regexp.MustCompile(`(?i)\bpublisher'?s note\b`),
	regexp.MustCompile(`(?i)\btrial registration\b`),
}

var (
	// Bracketed numeric reference markers: [12], [1-3], [2, 5-7].
	bracketCiteRe = regexp.MustCompile(`\[\s*\d+(?:\s*[-\x{2013}]\s*\d+)?(?:\s*,\s*\d+(?:\s*[-\x{2013}]\s*\d+)?)*\s*\]`)
	// Superscript numeric reference markers.
	superscriptCiteRe = regexp.MustCompile(`[\x{00B9}\x{00B2}\x{00B3}\x{2070}\x{2074}-\x{2079}][\x{00B9}\x{00B2}\x{00B3}\x{2070}\x{2074}-\x{2079}\x{207B},\x{2013}]*`)
	doubleSpaceRe     = regexp.MustCompile(`[ \t]{2,}`)
)

// StripCitations removes bracketed and superscript numeric reference markers
// from aggregated text.
func StripCitations(text string) string {
	text = bracketCiteRe.ReplaceAllString(text, "")
	text = superscriptCiteRe.ReplaceAllString(text, "")
	text = doubleSpaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// IsReview reports whether the article should receive review/consensus
// augmentation: the explicit run flag, a review-indicating title word, a
// configured review-heavy venue, or review-style method headings.
func IsReview(meta Meta, sections []RawSection, cfg *Config) bool {
	if cfg.ReviewMode {
		return true
	}
	title := strings.ToLower(meta.Title)
	for _, w := range reviewTitleWords {
		if strings.Contains(title, w) {
			return true
		}
	}
	journal := strings.ToLower(meta.Journal)
	for _, j := range cfg.ReviewJournals {
		if j != "" && strings.Contains(journal, strings.ToLower(j)) {
			return true
		}
	}
	for _, sec := range sections {
		h := strings.ToLower(sec.Heading)
		for _, w := range reviewHeadingWords {
			if strings.Contains(h, w) {
				return true
			}
		}
	}
	return false
}

// ReviewStrategy augments weak canonical sections of a review-style article.
// Strategies form a registry selected by venue; adding a venue's heuristics
// is an additive change, not a new type hierarchy.
type ReviewStrategy interface {
	Name() string
	// Matches reports whether this strategy handles the article's venue.
	Matches(meta Meta) bool
	// Augment fills gaps in rec.Sections from the raw sections. It is
	// additive: it never removes or overwrites an adequate section. It
	// returns the canonical keys it changed.
	Augment(rec *Record, sections []RawSection, rules *Rules, cfg *Config) []string
}

// defaultStrategies returns the registry in selection order: venue-specific
// strategies first, the generic fallback last.
func defaultStrategies(cfg *Config) []ReviewStrategy {
	return []ReviewStrategy{
		&venueReviewStrategy{venues: cfg.ReviewJournals},
		&genericReviewStrategy{},
	}
}

// isBoilerplate reports whether an aggregation candidate paragraph matches a
// configured exclusion pattern.
func isBoilerplate(paragraph string) bool {
	for _, re := range boilerplateRes {
		if re.MatchString(paragraph) {
			return true
		}
	}
	return false
}

// collectParagraphs gathers qualifying body paragraphs from raw sections for
// augmentation. Sections mapping to non-content keys are skipped entirely;
// individual boilerplate paragraphs are skipped; citation markers are
// stripped. keep filters sections by their classification.
func collectParagraphs(sections []RawSection, rules *Rules, keep func(key string, class HeadingClass) bool) []string {
	var out []string
	for _, sec := range sections {
		key, class := rules.Classify(sec.Heading)
		if class == HeadingNonContent {
			continue
		}
		if keep != nil && !keep(key, class) {
			continue
		}
		for _, para := range strings.Split(sec.Body, "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" || isBoilerplate(para) {
				continue
			}
			if cleaned := StripCitations(para); cleaned != "" {
				out = append(out, cleaned)
			}
		}
	}
	return out
}

// genericReviewStrategy aggregates qualifying paragraphs from the whole
// document into any configured augmentable key that is absent or too short.
type genericReviewStrategy struct{}

func (s *genericReviewStrategy) Name() string { return "generic-review" }

func (s *genericReviewStrategy) Matches(Meta) bool { return true }

func (s *genericReviewStrategy) Augment(rec *Record, sections []RawSection, rules *Rules, cfg *Config) []string {
	var changed []string
	for _, key := range cfg.AugmentKeys {
		if len(rec.Sections[key]) >= cfg.MinSectionChars {
			continue
		}
		paras := collectParagraphs(sections, rules, func(k string, class HeadingClass) bool {
			// Paragraphs already merged under the target key would only be
			// duplicated; anything else in the body qualifies.
			return !(class == HeadingMapped && k == key)
		})
		if len(paras) == 0 {
			continue
		}
		payload := strings.Join(paras, "\n\n")
		if existing := rec.Sections[key]; existing != "" {
			rec.Sections[key] = existing + "\n\n" + payload
		} else {
			rec.Sections[key] = payload
		}
		changed = append(changed, key)
	}
	return changed
}

// venueReviewStrategy handles review-heavy venues whose body is a run of
// topical sections without Results/Discussion heads. It aggregates only the
// unmapped topical sections between the introduction and the back matter,
// preferring discussion over results.
type venueReviewStrategy struct {
	venues []string
}

func (s *venueReviewStrategy) Name() string { return "review-venue" }

func (s *venueReviewStrategy) Matches(meta Meta) bool {
	journal := strings.ToLower(meta.Journal)
	for _, v := range s.venues {
		if v != "" && strings.Contains(journal, strings.ToLower(v)) {
			return true
		}
	}
	return false
}

func (s *venueReviewStrategy) Augment(rec *Record, sections []RawSection, rules *Rules, cfg *Config) []string {
	if len(rec.Sections[KeyDiscussion]) >= cfg.MinSectionChars {
		return nil
	}

	// Body window: after the introduction, before conclusions/back matter.
	start, stop := 0, len(sections)
	for i, sec := range sections {
		key, class := rules.Classify(sec.Heading)
		if class == HeadingMapped && key == KeyIntroduction && start == 0 {
			start = i + 1
		}
		if (class == HeadingNonContent || key == KeyConclusions) && i > start && stop == len(sections) {
			stop = i
		}
	}

	paras := collectParagraphs(sections[start:stop], rules, func(_ string, class HeadingClass) bool {
		return class == HeadingUnmapped
	})
	if len(paras) == 0 {
		return nil
	}
	payload := strings.Join(paras, "\n\n")
	if existing := rec.Sections[KeyDiscussion]; existing != "" {
		rec.Sections[KeyDiscussion] = existing + "\n\n" + payload
	} else {
		rec.Sections[KeyDiscussion] = payload
	}
	return []string{KeyDiscussion}
}
