package paperslicer

import "strings"

// MergeResult carries the merged canonical sections together with the
// classification bookkeeping the quality evaluator needs.
type MergeResult struct {
	Sections   map[string]string
	Unmapped   []string // headings in document order
	Mapped     int
	NonContent int
	Total      int
}

// MergeSections classifies every raw section heading and groups the mapped
// ones by canonical key, preserving the document order of first occurrence.
// Bodies sharing a key are concatenated with a single blank line. A key with
// no contributing sections is absent from the map, never present with empty
// text; callers treat absence and emptiness identically.
func MergeSections(sections []RawSection, rules *Rules) MergeResult {
	res := MergeResult{
		Sections: make(map[string]string),
		Total:    len(sections),
	}
	for _, sec := range sections {
		key, class := rules.Classify(sec.Heading)
		switch class {
		case HeadingNonContent:
			res.NonContent++
			continue
		case HeadingUnmapped:
			if h := strings.TrimSpace(sec.Heading); h != "" {
				res.Unmapped = append(res.Unmapped, h)
			}
			continue
		}
		res.Mapped++
		body := strings.TrimSpace(sec.Body)
		if body == "" {
			continue
		}
		if existing, ok := res.Sections[key]; ok {
			res.Sections[key] = existing + "\n\n" + body
		} else {
			res.Sections[key] = body
		}
	}
	return res
}
