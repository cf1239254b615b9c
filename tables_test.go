package paperslicer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanvanderbyl/paperslicer"
)

func TestDetectTables_CaptionAndReference(t *testing.T) {
	sections := []paperslicer.RawSection{
		{
			Heading:   "Results",
			PageStart: 4,
			Body: "Baseline characteristics are shown in Table 1.\n\n" +
				"Table 1. Demographic and clinical characteristics of the included patients.\n\n" +
				"Survival rates are summarized in Table 2.",
		},
	}

	evidences := paperslicer.DetectTables(sections)
	require.Len(t, evidences, 2)

	assert.Equal(t, "Table 1", evidences[0].Label)
	assert.Equal(t, "Demographic and clinical characteristics of the included patients.",
		evidences[0].Caption)
	assert.True(t, evidences[0].TextInferred)
	assert.Equal(t, 4, evidences[0].PageHint)

	assert.Equal(t, "Table 2", evidences[1].Label)
	assert.Empty(t, evidences[1].Caption)
}

func TestDetectTables_RomanNumeralsDedupe(t *testing.T) {
	sections := []paperslicer.RawSection{
		{Heading: "Results", Body: "As reported in Table II, failures clustered early. " +
			"Table 2 also lists the implant sites."},
		{Heading: "Discussion", Body: "Tab. IV shows the pooled estimates."},
	}

	evidences := paperslicer.DetectTables(sections)
	require.Len(t, evidences, 2)
	// Arabic and Roman references to the same table collapse into one record.
	assert.Equal(t, "Table 2", evidences[0].Label)
	assert.Equal(t, "Table 4", evidences[1].Label)
}

func TestDetectTables_SortedByNumber(t *testing.T) {
	sections := []paperslicer.RawSection{
		{Body: "See Table 3 for details. Table 1 lists the groups."},
	}

	evidences := paperslicer.DetectTables(sections)
	require.Len(t, evidences, 2)
	assert.Equal(t, "Table 1", evidences[0].Label)
	assert.Equal(t, "Table 3", evidences[1].Label)
}

func TestDetectTables_NoReferences(t *testing.T) {
	sections := []paperslicer.RawSection{
		{Heading: "Discussion", Body: "The findings are tabulated elsewhere."},
	}
	assert.Empty(t, paperslicer.DetectTables(sections))
}
