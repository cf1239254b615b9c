package paperslicer_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanvanderbyl/paperslicer"
)

func sampleRecord() *paperslicer.Record {
	return &paperslicer.Record{
		Meta: paperslicer.Meta{
			SourcePath: "testdata/smith2021.pdf",
			Title:      "Implant Survival in the Posterior Maxilla",
			DOI:        "10.1111/clr.12345",
			Journal:    "Clinical Oral Implants Research",
		},
		Sections: map[string]string{
			paperslicer.KeyAbstract:     "Survival was assessed over five years.",
			paperslicer.KeyIntroduction: "Implants are widely used.",
		},
		Figures: []paperslicer.ResolvedMedia{{
			Kind:    paperslicer.MediaFigure,
			Label:   "Figure 1",
			Caption: "Panoramic radiograph.",
			Path:    "media/fig_01.png",
			Source:  paperslicer.SourceCrop,
		}},
		Tables: []paperslicer.ResolvedMedia{{
			Kind:   paperslicer.MediaTable,
			Label:  "Table 1",
			Source: paperslicer.SourceTextInferred,
		}},
	}
}

func TestWriteRecord_Shape(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, paperslicer.WriteRecord(&buf, sampleRecord()))

	var out struct {
		Title    string            `json:"title"`
		DOI      string            `json:"doi"`
		Sections map[string]string `json:"sections"`
		Figures  []struct {
			Label  string `json:"label"`
			Path   string `json:"path"`
			Source string `json:"source"`
		} `json:"figures"`
		Tables []struct {
			Source string `json:"source"`
		} `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	assert.Equal(t, "Implant Survival in the Posterior Maxilla", out.Title)
	assert.Equal(t, "10.1111/clr.12345", out.DOI)
	assert.Len(t, out.Sections, 2)
	assert.NotContains(t, out.Sections, paperslicer.KeyResults)

	require.Len(t, out.Figures, 1)
	assert.Equal(t, "media/fig_01.png", out.Figures[0].Path)
	assert.Equal(t, "grobid+crop", out.Figures[0].Source)

	require.Len(t, out.Tables, 1)
	assert.Equal(t, "text-inferred", out.Tables[0].Source)
}

func TestWriteRecord_EmptyMetadataKeysPresent(t *testing.T) {
	rec := &paperslicer.Record{
		Meta:     paperslicer.Meta{Title: "Untracked Case Report"},
		Sections: map[string]string{},
	}

	var buf bytes.Buffer
	require.NoError(t, paperslicer.WriteRecord(&buf, rec))

	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	// doi and journal are stable schema members even when empty.
	assert.Contains(t, out, "doi")
	assert.Contains(t, out, "journal")
	assert.Contains(t, out, "sections")
}

func TestRecordFileName(t *testing.T) {
	assert.Equal(t, "smith2021.json", paperslicer.RecordFileName("papers/smith2021.pdf"))
	assert.Equal(t, "record.json", paperslicer.RecordFileName(""))
}

func TestCorpusWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "corpus.jsonl")

	w, err := paperslicer.NewCorpusWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(sampleRecord()))
	require.NoError(t, w.Append(sampleRecord()))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "Implant Survival in the Posterior Maxilla", rec["title"])
}
