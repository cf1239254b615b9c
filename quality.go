package paperslicer

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DocMetrics are the per-document quality measurements.
type DocMetrics struct {
	Source  string `json:"source"`
	Title   string `json:"title"`
	DOI     string `json:"doi"`
	Journal string `json:"journal"`

	TitlePresent    bool `json:"title_present"`
	DOIPresent      bool `json:"doi_present"`
	JournalPresent  bool `json:"journal_present"`
	AbstractPresent bool `json:"abstract_present"`

	// SectionCoverage counts populated canonical keys.
	SectionCoverage int `json:"section_coverage"`
	// MappingRate is mapped/total raw sections; nil (reported as null) when
	// the document had zero raw sections.
	MappingRate *float64 `json:"mapping_rate"`
	RawSections int      `json:"raw_sections"`
	Mapped      int      `json:"mapped"`
	NonContent  int      `json:"non_content"`
	Unmapped    []string `json:"unmapped,omitempty"`

	// NoiseRatio estimates the fraction of output text that is not plain
	// ASCII prose, a proxy for extraction garbage.
	NoiseRatio float64 `json:"noise_ratio"`

	FiguresTotal    int `json:"figures_total"`
	FiguresResolved int `json:"figures_resolved"`
	TablesTotal     int `json:"tables_total"`
	TablesResolved  int `json:"tables_resolved"`
}

// DuplicatePair flags two documents as duplicate candidates.
type DuplicatePair struct {
	A      string `json:"a"` // source identifiers
	B      string `json:"b"`
	Reason string `json:"reason"` // "doi" or "title"
}

// GateConfig holds the corpus acceptance thresholds.
type GateConfig struct {
	MinTitleRate       float64 `yaml:"min_title_rate"`
	MinDOIOrJournal    float64 `yaml:"min_doi_or_journal_rate"`
	MinAbstractRate    float64 `yaml:"min_abstract_rate"`
	MinSectionsGE3Rate float64 `yaml:"min_sections_ge3_rate"`
	MinMappingRate     float64 `yaml:"min_mapping_rate"`
	MaxNoiseAvg        float64 `yaml:"max_noise_avg"`
	MaxDuplicateRate   float64 `yaml:"max_duplicate_rate"`
}

func (g *GateConfig) defaults() {
	if g.MinTitleRate == 0 {
		g.MinTitleRate = 0.99
	}
	if g.MinDOIOrJournal == 0 {
		g.MinDOIOrJournal = 0.95
	}
	if g.MinAbstractRate == 0 {
		g.MinAbstractRate = 0.9
	}
	if g.MinSectionsGE3Rate == 0 {
		g.MinSectionsGE3Rate = 0.85
	}
	if g.MinMappingRate == 0 {
		g.MinMappingRate = 0.8
	}
	if g.MaxNoiseAvg == 0 {
		g.MaxNoiseAvg = 0.02
	}
	if g.MaxDuplicateRate == 0 {
		g.MaxDuplicateRate = 0.01
	}
}

// GateResult is one evaluated threshold.
type GateResult struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Pass      bool    `json:"pass"`
}

// QualityReport aggregates per-document metrics, corpus duplicate findings,
// and gate outcomes. Read-only after construction.
type QualityReport struct {
	Docs       []DocMetrics    `json:"docs"`
	Duplicates []DuplicatePair `json:"duplicates"`
	Gates      []GateResult    `json:"gates"`
	Pass       bool            `json:"pass"`
	Failed     int             `json:"failed_docs"`
}

// noiseAllowed are the punctuation characters counted as clean alongside
// ASCII alphanumerics and whitespace.
const noiseAllowed = " .,;:'\"!?()[]{}-_/\\%+*=<>"

// NoiseRatio estimates the fraction of characters outside plain ASCII prose.
func NoiseRatio(text string) float64 {
	if text == "" {
		return 0
	}
	total, ok := 0, 0
	for _, r := range text {
		total++
		if r > 127 {
			continue
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			ok++
		case r == ' ' || r == '\n' || r == '\r' || r == '\t':
			ok++
		case strings.ContainsRune(noiseAllowed, r):
			ok++
		}
	}
	return float64(total-ok) / float64(total)
}

// EvaluateDocument computes per-document metrics from a canonical record and
// the merge bookkeeping.
func EvaluateDocument(rec *Record, merge MergeResult) DocMetrics {
	m := DocMetrics{
		Source:          rec.Meta.SourcePath,
		Title:           rec.Meta.Title,
		DOI:             rec.Meta.DOI,
		Journal:         rec.Meta.Journal,
		TitlePresent:    strings.TrimSpace(rec.Meta.Title) != "",
		DOIPresent:      strings.TrimSpace(rec.Meta.DOI) != "",
		JournalPresent:  strings.TrimSpace(rec.Meta.Journal) != "",
		AbstractPresent: len(strings.TrimSpace(rec.Meta.Abstract)) >= 30 || rec.HasSection(KeyAbstract),
		RawSections:     merge.Total,
		Mapped:          merge.Mapped,
		NonContent:      merge.NonContent,
		Unmapped:        merge.Unmapped,
	}

	for _, key := range CanonicalKeys {
		if rec.HasSection(key) {
			m.SectionCoverage++
		}
	}
	if merge.Total > 0 {
		rate := float64(merge.Mapped) / float64(merge.Total)
		m.MappingRate = &rate
	}

	var b strings.Builder
	for _, key := range CanonicalKeys {
		b.WriteString(rec.Sections[key])
		b.WriteByte('\n')
	}
	m.NoiseRatio = NoiseRatio(b.String())

	m.FiguresTotal = len(rec.Figures)
	for _, f := range rec.Figures {
		if f.Resolved() {
			m.FiguresResolved++
		}
	}
	m.TablesTotal = len(rec.Tables)
	for _, t := range rec.Tables {
		if t.Resolved() {
			m.TablesResolved++
		}
	}
	return m
}

var titlePunctRe = regexp.MustCompile(`[^\pL\pN ]+`)

// normalizeTitle prepares a title for duplicate matching: lowercase,
// punctuation stripped, whitespace collapsed.
func normalizeTitle(title string) string {
	t := strings.ToLower(title)
	t = titlePunctRe.ReplaceAllString(t, " ")
	return strings.Join(strings.Fields(t), " ")
}

// FindDuplicates groups documents by exact DOI and by normalized title; a
// pair flagged by either criterion is a duplicate candidate. The index is
// built single-threaded after the parallel map phase.
func FindDuplicates(docs []DocMetrics) []DuplicatePair {
	var pairs []DuplicatePair
	emit := func(group []int, reason string) {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				pairs = append(pairs, DuplicatePair{
					A:      docs[group[i]].Source,
					B:      docs[group[j]].Source,
					Reason: reason,
				})
			}
		}
	}

	byDOI := map[string][]int{}
	for i, d := range docs {
		if doi := strings.TrimSpace(strings.ToLower(d.DOI)); doi != "" {
			byDOI[doi] = append(byDOI[doi], i)
		}
	}
	for _, key := range sortedKeys(byDOI) {
		if group := byDOI[key]; len(group) > 1 {
			emit(group, "doi")
		}
	}

	byTitle := map[string][]int{}
	for i, d := range docs {
		if t := normalizeTitle(d.Title); t != "" {
			byTitle[t] = append(byTitle[t], i)
		}
	}
	seen := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		seen[p.A+"\x00"+p.B] = true
	}
	for _, key := range sortedKeys(byTitle) {
		group := byTitle[key]
		if len(group) < 2 {
			continue
		}
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := docs[group[i]].Source, docs[group[j]].Source
				if seen[a+"\x00"+b] {
					continue
				}
				pairs = append(pairs, DuplicatePair{A: a, B: b, Reason: "title"})
			}
		}
	}
	return pairs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EvaluateCorpus builds the corpus quality report, comparing aggregate rates
// against the configured gates. Duplicates are informational findings; only
// the duplicate-rate gate can fail the batch for them.
func EvaluateCorpus(docs []DocMetrics, failedDocs int, gates GateConfig) *QualityReport {
	gates.defaults()
	report := &QualityReport{
		Docs:       docs,
		Duplicates: FindDuplicates(docs),
		Failed:     failedDocs,
	}

	total := len(docs)
	rate := func(count int) float64 {
		if total == 0 {
			return 1
		}
		return float64(count) / float64(total)
	}

	var titleN, doiJournalN, abstractN, ge3N int
	var mappedSum, rawSum int
	var noiseSum float64
	for _, d := range docs {
		if d.TitlePresent {
			titleN++
		}
		if d.DOIPresent || d.JournalPresent {
			doiJournalN++
		}
		if d.AbstractPresent {
			abstractN++
		}
		if d.SectionCoverage >= 3 {
			ge3N++
		}
		mappedSum += d.Mapped
		rawSum += d.RawSections
		noiseSum += d.NoiseRatio
	}
	mappingRate := 1.0
	if rawSum > 0 {
		mappingRate = float64(mappedSum) / float64(rawSum)
	}
	noiseAvg := 0.0
	if total > 0 {
		noiseAvg = noiseSum / float64(total)
	}
	dupDocs := map[string]bool{}
	for _, p := range report.Duplicates {
		dupDocs[p.A] = true
		dupDocs[p.B] = true
	}

	report.Gates = []GateResult{
		gateMin("title_rate", rate(titleN), gates.MinTitleRate),
		gateMin("doi_or_journal_rate", rate(doiJournalN), gates.MinDOIOrJournal),
		gateMin("abstract_rate", rate(abstractN), gates.MinAbstractRate),
		gateMin("sections_ge3_rate", rate(ge3N), gates.MinSectionsGE3Rate),
		gateMin("mapping_rate", mappingRate, gates.MinMappingRate),
		gateMax("noise_avg", noiseAvg, gates.MaxNoiseAvg),
		gateMax("duplicate_rate", rate(len(dupDocs)), gates.MaxDuplicateRate),
	}
	report.Pass = true
	for _, g := range report.Gates {
		if !g.Pass {
			report.Pass = false
		}
	}
	return report
}

func gateMin(name string, value, threshold float64) GateResult {
	return GateResult{Name: name, Value: value, Threshold: threshold, Pass: value >= threshold}
}

func gateMax(name string, value, threshold float64) GateResult {
	return GateResult{Name: name, Value: value, Threshold: threshold, Pass: value <= threshold}
}

// FailingGates lists the names of gates below threshold.
func (r *QualityReport) FailingGates() []string {
	var out []string
	for _, g := range r.Gates {
		if !g.Pass {
			out = append(out, g.Name)
		}
	}
	return out
}

// WriteJSON writes the full report as indented JSON.
func (r *QualityReport) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteCSV writes one row per document with the headline metrics.
func (r *QualityReport) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{
		"source", "title", "doi", "journal", "sections", "mapping_rate",
		"noise_ratio", "figures_resolved", "tables_resolved", "unmapped",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, d := range r.Docs {
		mapping := ""
		if d.MappingRate != nil {
			mapping = strconv.FormatFloat(*d.MappingRate, 'f', 4, 64)
		}
		row := []string{
			d.Source, d.Title, d.DOI, d.Journal,
			strconv.Itoa(d.SectionCoverage), mapping,
			strconv.FormatFloat(d.NoiseRatio, 'f', 4, 64),
			fmt.Sprintf("%d/%d", d.FiguresResolved, d.FiguresTotal),
			fmt.Sprintf("%d/%d", d.TablesResolved, d.TablesTotal),
			strconv.Itoa(len(d.Unmapped)),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteUnmappedHeadings writes the corpus-wide unmapped-heading frequency
// list, most frequent first, for rule-table growth.
func (r *QualityReport) WriteUnmappedHeadings(w io.Writer) error {
	counts := map[string]int{}
	for _, d := range r.Docs {
		for _, h := range d.Unmapped {
			counts[h]++
		}
	}
	type entry struct {
		head  string
		count int
	}
	entries := make([]entry, 0, len(counts))
	for h, c := range counts {
		entries = append(entries, entry{h, c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].head < entries[j].head
	})
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%d\t%s\n", e.count, e.head); err != nil {
			return err
		}
	}
	return nil
}
