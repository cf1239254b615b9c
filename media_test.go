package paperslicer_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanvanderbyl/paperslicer"
)

// fakeRenderer produces deterministic artifacts without a PDF runtime.
type fakeRenderer struct {
	pages    int
	openErr  error
	regions  int
	rendered int
}

func (f *fakeRenderer) Open(src string) (paperslicer.RenderedDoc, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &fakeDoc{r: f}, nil
}

type fakeDoc struct {
	r *fakeRenderer
}

func (d *fakeDoc) PageCount() int { return d.r.pages }

func (d *fakeDoc) RenderRegion(page int, box paperslicer.Rect, outPath string) error {
	d.r.regions++
	return os.WriteFile(outPath, []byte("region"), 0o644)
}

func (d *fakeDoc) RenderPage(page int, outPath string) error {
	d.r.rendered++
	return os.WriteFile(outPath, []byte("page"), 0o644)
}

func (d *fakeDoc) Close() error { return nil }

func testConfig(t *testing.T) paperslicer.Config {
	t.Helper()
	return paperslicer.Config{
		ImagesMode:   paperslicer.ImagesAuto,
		PageImageCap: 2,
		MediaDir:     t.TempDir(),
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func testMeta() paperslicer.Meta {
	return paperslicer.Meta{SourcePath: "testdata/sample.pdf", Title: "Sample Article"}
}

func TestLocator_CropStage(t *testing.T) {
	cfg := testConfig(t)
	renderer := &fakeRenderer{pages: 10}
	locator := paperslicer.NewLocator(renderer, &cfg)

	evidences := []paperslicer.MediaEvidence{{
		Kind:    paperslicer.MediaFigure,
		Label:   "Figure 1",
		Caption: "Panoramic radiograph at baseline.",
		Coords:  &paperslicer.Coords{Page: 3, Box: paperslicer.Rect{X0: 10, Y0: 20, X1: 200, Y1: 180}},
		Payload: []byte("raster"),
	}}

	resolved := locator.Resolve(context.Background(), testMeta(), evidences)
	require.Len(t, resolved, 1)

	assert.True(t, resolved[0].Resolved())
	// With both coordinates and a payload, the earlier stage always wins.
	assert.Equal(t, paperslicer.SourceCrop, resolved[0].Source)
	assert.FileExists(t, resolved[0].Path)
	assert.Len(t, resolved[0].Checksum, 8)
	assert.Equal(t, 1, renderer.regions)
}

func TestLocator_EmbeddedStage(t *testing.T) {
	cfg := testConfig(t)
	locator := paperslicer.NewLocator(nil, &cfg)

	evidences := []paperslicer.MediaEvidence{{
		Kind:    paperslicer.MediaFigure,
		Label:   "Figure 2",
		Payload: []byte{0x89, 'P', 'N', 'G'},
	}}

	resolved := locator.Resolve(context.Background(), testMeta(), evidences)
	require.Len(t, resolved, 1)
	assert.Equal(t, paperslicer.SourceEmbedded, resolved[0].Source)
	assert.FileExists(t, resolved[0].Path)
}

func TestLocator_PageImageCap(t *testing.T) {
	cfg := testConfig(t)
	renderer := &fakeRenderer{pages: 20}
	locator := paperslicer.NewLocator(renderer, &cfg)

	var evidences []paperslicer.MediaEvidence
	for i := 1; i <= 5; i++ {
		evidences = append(evidences, paperslicer.MediaEvidence{
			Kind:     paperslicer.MediaFigure,
			Label:    "Figure",
			PageHint: i,
		})
	}

	resolved := locator.Resolve(context.Background(), testMeta(), evidences)
	require.Len(t, resolved, 5)

	var pageImages, unresolved int
	for _, m := range resolved {
		switch {
		case m.Source == paperslicer.SourcePageImage && m.Resolved():
			pageImages++
		case !m.Resolved():
			unresolved++
		}
	}
	// The cap bounds page-image fallbacks; the rest stay unresolved.
	assert.Equal(t, 2, pageImages)
	assert.Equal(t, 3, unresolved)
}

func TestLocator_CoordsOnlyMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.ImagesMode = paperslicer.ImagesCoordsOnly
	renderer := &fakeRenderer{pages: 10}
	locator := paperslicer.NewLocator(renderer, &cfg)

	evidences := []paperslicer.MediaEvidence{{
		Kind:     paperslicer.MediaFigure,
		Label:    "Figure 1",
		Payload:  []byte("raster"),
		PageHint: 2,
	}}

	resolved := locator.Resolve(context.Background(), testMeta(), evidences)
	require.Len(t, resolved, 1)
	// Without a valid region, later stages never run in coords-only mode.
	assert.False(t, resolved[0].Resolved())
}

func TestLocator_PagesLargeMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.ImagesMode = paperslicer.ImagesPagesLarge
	renderer := &fakeRenderer{pages: 10}
	locator := paperslicer.NewLocator(renderer, &cfg)

	evidences := []paperslicer.MediaEvidence{
		{
			Kind:     paperslicer.MediaTable,
			Label:    "Table 1",
			Caption:  "Comparison of implant survival across loading protocols and bone types.",
			PageHint: 3,
		},
		{
			Kind:     paperslicer.MediaFigure,
			Label:    "Figure 1",
			Caption:  "A tooth.",
			PageHint: 4,
		},
	}

	resolved := locator.Resolve(context.Background(), testMeta(), evidences)
	require.Len(t, resolved, 2)

	// Only evidence suggesting a large or complex item earns a page render.
	assert.Equal(t, paperslicer.SourcePageImage, resolved[0].Source)
	assert.True(t, resolved[0].Resolved())
	assert.False(t, resolved[1].Resolved())
	assert.Equal(t, 1, renderer.rendered)
}

func TestLocator_LongCaptionCountsAsLarge(t *testing.T) {
	cfg := testConfig(t)
	cfg.ImagesMode = paperslicer.ImagesPagesLarge
	renderer := &fakeRenderer{pages: 10}
	locator := paperslicer.NewLocator(renderer, &cfg)

	caption := "Radiographic measurements taken at baseline, six months, and twelve months" +
		" for every implant site in both study arms of the trial."
	evidences := []paperslicer.MediaEvidence{{
		Kind:     paperslicer.MediaFigure,
		Label:    "Figure 2",
		Caption:  caption,
		PageHint: 2,
	}}

	resolved := locator.Resolve(context.Background(), testMeta(), evidences)
	require.Len(t, resolved, 1)
	assert.Equal(t, paperslicer.SourcePageImage, resolved[0].Source)
}

func TestLocator_NegativeCoordsPageUsesHint(t *testing.T) {
	cfg := testConfig(t)
	renderer := &fakeRenderer{pages: 10}
	locator := paperslicer.NewLocator(renderer, &cfg)

	evidences := []paperslicer.MediaEvidence{{
		Kind:     paperslicer.MediaFigure,
		Label:    "Figure 1",
		Coords:   &paperslicer.Coords{Page: -1, Box: paperslicer.Rect{X0: 0, Y0: 0, X1: 50, Y1: 40}},
		PageHint: 5,
	}}

	resolved := locator.Resolve(context.Background(), testMeta(), evidences)
	require.Len(t, resolved, 1)

	// The malformed coordinate page behaves as absent: the hint drives the
	// page-image stage instead.
	assert.Equal(t, paperslicer.SourcePageImage, resolved[0].Source)
	assert.True(t, resolved[0].Resolved())
}

func TestLocator_MalformedCoordsFallThrough(t *testing.T) {
	cfg := testConfig(t)
	renderer := &fakeRenderer{pages: 10}
	locator := paperslicer.NewLocator(renderer, &cfg)

	evidences := []paperslicer.MediaEvidence{{
		Kind:      paperslicer.MediaTable,
		Label:     "Table 1",
		CoordsRaw: "1,50,60", // incomplete group
		Payload:   []byte("raster"),
	}}

	resolved := locator.Resolve(context.Background(), testMeta(), evidences)
	require.Len(t, resolved, 1)
	// Malformed coordinates behave as absent: the chain continues.
	assert.Equal(t, paperslicer.SourceEmbedded, resolved[0].Source)
	assert.Zero(t, renderer.regions)
}

func TestLocator_TextInferredUnresolved(t *testing.T) {
	cfg := testConfig(t)
	locator := paperslicer.NewLocator(nil, &cfg)

	evidences := []paperslicer.MediaEvidence{{
		Kind:         paperslicer.MediaTable,
		Label:        "Table 3",
		TextInferred: true,
	}}

	resolved := locator.Resolve(context.Background(), testMeta(), evidences)
	require.Len(t, resolved, 1)
	assert.False(t, resolved[0].Resolved())
	assert.Equal(t, paperslicer.SourceTextInferred, resolved[0].Source)
}

func TestParseCoords(t *testing.T) {
	coords, ok := paperslicer.ParseCoords("3,100.5,200,50,40")
	require.True(t, ok)
	require.Len(t, coords, 1)
	assert.Equal(t, 3, coords[0].Page)
	assert.InDelta(t, 100.5, coords[0].Box.X0, 1e-9)
	assert.InDelta(t, 150.5, coords[0].Box.X1, 1e-9)

	coords, ok = paperslicer.ParseCoords("1,0,0,10,10;2,5,5,20,20")
	require.True(t, ok)
	assert.Len(t, coords, 2)

	for _, malformed := range []string{"", "1,2,3", "a,b,c,d,e", "1,2,3,4,5,6"} {
		_, ok := paperslicer.ParseCoords(malformed)
		assert.False(t, ok, "input %q", malformed)
	}
}
