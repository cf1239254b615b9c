package paperslicer

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	// Inline references: "Table 3", "Tab. IV", "tab 2".
	tableRefRe = regexp.MustCompile(`(?i)\b(?:table|tab\.?)\s+(\d+|[ivxlc]+)\b`)
	// Caption-style sentences: "Table 2. Distribution of implant sites."
	// A short descriptive sentence after the reference token, ending in
	// sentence-final punctuation.
	tableCaptionRe = regexp.MustCompile(`(?im)^\s*(?:table|tab\.?)\s+(\d+|[ivxlc]+)\s*[:.\x{2013}\-]\s+(\S[^\n]{2,280}?[.!?])(?:\s|$)`)
)

// DetectTables scans paragraph text for table references and caption-like
// sentences, synthesizing one table evidence per distinct table number. It
// only runs when the ingestor produced no structured table evidence (the
// caller enforces that). References using Arabic and Roman numerals for the
// same table are collapsed into one record.
func DetectTables(sections []RawSection) []MediaEvidence {
	type hit struct {
		caption  string
		pageHint int
	}
	found := make(map[int]*hit)

	record := func(num int, page int) *hit {
		h, ok := found[num]
		if !ok {
			h = &hit{}
			found[num] = h
		}
		if h.pageHint == 0 && page > 0 {
			h.pageHint = page
		}
		return h
	}

	for _, sec := range sections {
		for _, m := range tableCaptionRe.FindAllStringSubmatch(sec.Body, -1) {
			num, ok := parseTableNumber(m[1])
			if !ok {
				continue
			}
			h := record(num, sec.PageStart)
			if h.caption == "" {
				h.caption = strings.TrimSpace(m[2])
			}
		}
		for _, m := range tableRefRe.FindAllStringSubmatch(sec.Body, -1) {
			if num, ok := parseTableNumber(m[1]); ok {
				record(num, sec.PageStart)
			}
		}
	}

	nums := make([]int, 0, len(found))
	for n := range found {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	evidences := make([]MediaEvidence, 0, len(nums))
	for _, n := range nums {
		h := found[n]
		evidences = append(evidences, MediaEvidence{
			Kind:         MediaTable,
			Label:        fmt.Sprintf("Table %d", n),
			Caption:      h.caption,
			TextInferred: true,
			PageHint:     h.pageHint,
		})
	}
	return evidences
}

// parseTableNumber normalizes an Arabic or Roman table numeral so "Table 2"
// and "Tab. II" dedupe to the same value.
func parseTableNumber(token string) (int, bool) {
	token = strings.TrimSpace(token)
	if n, err := strconv.Atoi(token); err == nil {
		return n, n > 0
	}
	return parseRoman(token)
}

var romanValues = map[rune]int{'i': 1, 'v': 5, 'x': 10, 'l': 50, 'c': 100}

func parseRoman(s string) (int, bool) {
	s = strings.ToLower(s)
	if s == "" {
		return 0, false
	}
	total, prev := 0, 0
	for i := len(s) - 1; i >= 0; i-- {
		v, ok := romanValues[rune(s[i])]
		if !ok {
			return 0, false
		}
		if v < prev {
			total -= v
		} else {
			total += v
			prev = v
		}
	}
	if total <= 0 {
		return 0, false
	}
	return total, true
}
