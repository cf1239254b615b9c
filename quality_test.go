package paperslicer_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanvanderbyl/paperslicer"
)

func TestEvaluateDocument_Metrics(t *testing.T) {
	rec := &paperslicer.Record{
		Meta: paperslicer.Meta{
			SourcePath: "testdata/smith2021.pdf",
			Title:      "Implant Survival in the Posterior Maxilla",
			DOI:        "10.1111/clr.12345",
			Abstract:   strings.Repeat("Implant survival was assessed. ", 3),
		},
		Sections: map[string]string{
			paperslicer.KeyIntroduction: "Intro text.",
			paperslicer.KeyMethods:      "Methods text.",
			paperslicer.KeyResults:      "Results text.",
		},
		Figures: []paperslicer.ResolvedMedia{
			{Label: "Figure 1", Path: "media/fig_01.png", Source: paperslicer.SourceCrop},
			{Label: "Figure 2"},
		},
	}
	merge := paperslicer.MergeResult{Total: 6, Mapped: 4, NonContent: 1, Unmapped: []string{"Odd heading"}}

	m := paperslicer.EvaluateDocument(rec, merge)

	assert.True(t, m.TitlePresent)
	assert.True(t, m.DOIPresent)
	assert.False(t, m.JournalPresent)
	assert.True(t, m.AbstractPresent)
	assert.Equal(t, 3, m.SectionCoverage)
	require.NotNil(t, m.MappingRate)
	assert.InDelta(t, 4.0/6.0, *m.MappingRate, 1e-9)
	assert.Equal(t, 2, m.FiguresTotal)
	assert.Equal(t, 1, m.FiguresResolved)
	assert.Equal(t, []string{"Odd heading"}, m.Unmapped)
}

func TestEvaluateDocument_NilMappingRate(t *testing.T) {
	rec := &paperslicer.Record{Sections: map[string]string{}}
	m := paperslicer.EvaluateDocument(rec, paperslicer.MergeResult{Total: 0})

	// Zero raw sections means the rate is undefined, not zero.
	assert.Nil(t, m.MappingRate)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"mapping_rate":null`)
}

func TestNoiseRatio(t *testing.T) {
	assert.Zero(t, paperslicer.NoiseRatio(""))
	assert.Zero(t, paperslicer.NoiseRatio("Clean ASCII prose, with punctuation (and numbers: 42)."))
	assert.Greater(t, paperslicer.NoiseRatio("\x00\x01\x02 garbage \x03\x04"), 0.1)
}

func TestFindDuplicates(t *testing.T) {
	docs := []paperslicer.DocMetrics{
		{Source: "a.pdf", DOI: "10.1/x", Title: "Marginal Bone Loss"},
		{Source: "b.pdf", DOI: "10.1/x", Title: "Marginal bone loss (reprint)"},
		{Source: "c.pdf", Title: "The Role of Keratinized Mucosa!"},
		{Source: "d.pdf", Title: "the role of keratinized mucosa"},
		{Source: "e.pdf", DOI: "10.1/y", Title: "Something Else"},
	}

	pairs := paperslicer.FindDuplicates(docs)
	require.Len(t, pairs, 2)

	// Same DOI flags a pair even when the titles differ.
	assert.Equal(t, "a.pdf", pairs[0].A)
	assert.Equal(t, "b.pdf", pairs[0].B)
	assert.Equal(t, "doi", pairs[0].Reason)

	// Title matching is case- and punctuation-insensitive.
	assert.Equal(t, "c.pdf", pairs[1].A)
	assert.Equal(t, "d.pdf", pairs[1].B)
	assert.Equal(t, "title", pairs[1].Reason)
}

func TestFindDuplicates_NoDoubleCount(t *testing.T) {
	docs := []paperslicer.DocMetrics{
		{Source: "a.pdf", DOI: "10.1/x", Title: "Same Title"},
		{Source: "b.pdf", DOI: "10.1/x", Title: "Same Title"},
	}
	pairs := paperslicer.FindDuplicates(docs)
	require.Len(t, pairs, 1)
	assert.Equal(t, "doi", pairs[0].Reason)
}

func goodDoc(source, doi, title string) paperslicer.DocMetrics {
	rate := 1.0
	return paperslicer.DocMetrics{
		Source:          source,
		Title:           title,
		DOI:             doi,
		TitlePresent:    true,
		DOIPresent:      true,
		AbstractPresent: true,
		SectionCoverage: 4,
		RawSections:     5,
		Mapped:          5,
		MappingRate:     &rate,
	}
}

func TestEvaluateCorpus_Pass(t *testing.T) {
	docs := []paperslicer.DocMetrics{
		goodDoc("a.pdf", "10.1/a", "Alpha"),
		goodDoc("b.pdf", "10.1/b", "Beta"),
	}

	report := paperslicer.EvaluateCorpus(docs, 0, paperslicer.GateConfig{})

	assert.True(t, report.Pass)
	assert.Empty(t, report.FailingGates())
	assert.Empty(t, report.Duplicates)
}

func TestEvaluateCorpus_FailingGates(t *testing.T) {
	noTitle := goodDoc("a.pdf", "10.1/a", "")
	noTitle.TitlePresent = false
	noTitle.SectionCoverage = 1

	report := paperslicer.EvaluateCorpus([]paperslicer.DocMetrics{noTitle}, 0, paperslicer.GateConfig{})

	assert.False(t, report.Pass)
	failing := report.FailingGates()
	assert.Contains(t, failing, "title_rate")
	assert.Contains(t, failing, "sections_ge3_rate")
}

func TestEvaluateCorpus_DuplicateGate(t *testing.T) {
	docs := []paperslicer.DocMetrics{
		goodDoc("a.pdf", "10.1/x", "Alpha"),
		goodDoc("b.pdf", "10.1/x", "Beta"),
	}

	report := paperslicer.EvaluateCorpus(docs, 0, paperslicer.GateConfig{})

	require.Len(t, report.Duplicates, 1)
	assert.Contains(t, report.FailingGates(), "duplicate_rate")
}

func TestQualityReport_Writers(t *testing.T) {
	report := paperslicer.EvaluateCorpus([]paperslicer.DocMetrics{
		goodDoc("a.pdf", "10.1/a", "Alpha"),
	}, 0, paperslicer.GateConfig{})
	report.Docs[0].Unmapped = []string{"Odd heading", "Odd heading"}

	var buf bytes.Buffer
	require.NoError(t, report.WriteJSON(&buf))
	assert.Contains(t, buf.String(), `"gates"`)

	buf.Reset()
	require.NoError(t, report.WriteCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "mapping_rate")

	buf.Reset()
	require.NoError(t, report.WriteUnmappedHeadings(&buf))
	assert.Equal(t, "2\tOdd heading", strings.TrimSpace(buf.String()))
}
