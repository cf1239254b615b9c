package paperslicer

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Renderer opens a source document for rasterization. Implementations wrap
// the PDF runtime; tests substitute a fake.
type Renderer interface {
	Open(src string) (RenderedDoc, error)
}

// RenderedDoc renders pages or page regions of one open document to PNG
// artifacts.
type RenderedDoc interface {
	PageCount() int
	// RenderRegion crops the given region of a 1-based page.
	RenderRegion(page int, box Rect, outPath string) error
	// RenderPage rasterizes a whole 1-based page.
	RenderPage(page int, outPath string) error
	Close() error
}

// Locator resolves media evidence to concrete image artifacts through the
// ordered fallback chain: grobid+crop, embedded-image, page-image. A failed
// stage is a signal to try the next one, never an error; evidence that
// exhausts the chain stays unresolved.
type Locator struct {
	renderer Renderer
	cfg      *Config
	logger   *slog.Logger
}

// NewLocator builds a Locator. renderer may be nil, in which case only the
// embedded-image stage can produce artifacts.
func NewLocator(renderer Renderer, cfg *Config) *Locator {
	return &Locator{renderer: renderer, cfg: cfg, logger: cfg.Logger}
}

// Resolve maps each evidence to a ResolvedMedia, strictly honoring stage
// order: the recorded source is always the first stage that produced an
// artifact. At most cfg.PageImageCap page-image fallbacks are produced per
// document; evidence beyond the cap is recorded unresolved.
func (l *Locator) Resolve(ctx context.Context, meta Meta, evidences []MediaEvidence) []ResolvedMedia {
	if len(evidences) == 0 {
		return nil
	}

	outDir := mediaBucket(l.cfg.MediaDir, meta)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		l.logger.Warn("creating media directory", "dir", outDir, "error", err)
	}
	state := &resolveState{
		src:           meta.SourcePath,
		outDir:        outDir,
		pageBudget:    l.cfg.PageImageCap,
		renderedPages: make(map[int]string),
	}

	out := make([]ResolvedMedia, 0, len(evidences))
	for _, ev := range evidences {
		rm := ResolvedMedia{Kind: ev.Kind, Label: ev.Label, Caption: ev.Caption}
		if ev.TextInferred {
			rm.Source = SourceTextInferred
		}
		if ctx.Err() == nil {
			l.resolveOne(ev, state, &rm)
		}
		out = append(out, rm)
	}
	if state.doc != nil {
		if err := state.doc.Close(); err != nil {
			l.logger.Warn("closing render document", "source", meta.SourcePath, "error", err)
		}
	}
	return out
}

type resolveState struct {
	src        string
	outDir     string
	pageBudget int
	figN       int
	tabN       int

	doc           RenderedDoc
	docFailed     bool
	renderedPages map[int]string // page -> artifact path, reused across evidences
}

func (l *Locator) resolveOne(ev MediaEvidence, st *resolveState, rm *ResolvedMedia) {
	// Stage 1: exact crop from reported coordinates.
	if l.tryCrop(ev, st, rm) {
		return
	}
	if l.cfg.ImagesMode == ImagesCoordsOnly {
		return
	}

	// Stage 2: embedded raster payload.
	if l.tryEmbedded(ev, st, rm) {
		return
	}

	// Stage 3: whole-page proxy render, rate-limited per document.
	if l.cfg.ImagesMode == ImagesPagesLarge && !looksLarge(ev) {
		return
	}
	l.tryPageImage(ev, st, rm)
}

// openDoc opens the render document once per Resolve call. A failed open is
// remembered so every later stage fails fast instead of retrying.
func (l *Locator) openDoc(st *resolveState) RenderedDoc {
	if st.doc != nil || st.docFailed {
		return st.doc
	}
	if l.renderer == nil || st.src == "" {
		st.docFailed = true
		return nil
	}
	doc, err := l.renderer.Open(st.src)
	if err != nil {
		l.logger.Warn("opening document for rendering", "source", st.src, "error", err)
		st.docFailed = true
		return nil
	}
	st.doc = doc
	return doc
}

func (l *Locator) tryCrop(ev MediaEvidence, st *resolveState, rm *ResolvedMedia) bool {
	coords := ev.Coords
	if coords == nil && ev.CoordsRaw != "" {
		if parsed, ok := ParseCoords(ev.CoordsRaw); ok {
			coords = &parsed[0]
		}
	}
	if coords == nil {
		return false
	}
	doc := l.openDoc(st)
	if doc == nil {
		return false
	}
	if !validCoords(coords, doc.PageCount()) {
		l.logger.Debug("malformed coordinates treated as absent",
			"label", ev.Label, "page", coords.Page)
		return false
	}
	path := filepath.Join(st.outDir, st.nextName(ev.Kind))
	if err := doc.RenderRegion(coords.Page, coords.Box, path); err != nil {
		l.logger.Debug("region render failed", "label", ev.Label, "error", err)
		return false
	}
	rm.Path, rm.Source = path, SourceCrop
	rm.Checksum = fileChecksum(path)
	return true
}

func (l *Locator) tryEmbedded(ev MediaEvidence, st *resolveState, rm *ResolvedMedia) bool {
	if len(ev.Payload) == 0 {
		return false
	}
	path := filepath.Join(st.outDir, st.nextName(ev.Kind))
	if err := os.WriteFile(path, ev.Payload, 0o644); err != nil {
		l.logger.Debug("writing embedded payload", "label", ev.Label, "error", err)
		return false
	}
	rm.Path, rm.Source = path, SourceEmbedded
	rm.Checksum = fileChecksum(path)
	return true
}

func (l *Locator) tryPageImage(ev MediaEvidence, st *resolveState, rm *ResolvedMedia) bool {
	page := 0
	if ev.Coords != nil {
		page = ev.Coords.Page
	}
	// A malformed (non-positive) coordinate page falls back to the hint.
	if page <= 0 {
		page = ev.PageHint
	}
	if page <= 0 {
		return false
	}
	if st.pageBudget <= 0 {
		l.logger.Debug("page-image cap reached", "label", ev.Label, "page", page)
		return false
	}

	// A page rendered for an earlier evidence is reused, but each use still
	// consumes budget: the cap bounds page-image fallbacks, not files.
	path, ok := st.renderedPages[page]
	if !ok {
		doc := l.openDoc(st)
		if doc == nil {
			return false
		}
		if page > doc.PageCount() {
			return false
		}
		path = filepath.Join(st.outDir, fmt.Sprintf("page%03d.png", page))
		if err := doc.RenderPage(page, path); err != nil {
			l.logger.Debug("page render failed", "page", page, "error", err)
			return false
		}
		st.renderedPages[page] = path
	}
	st.pageBudget--
	rm.Path, rm.Source = path, SourcePageImage
	rm.Checksum = fileChecksum(path)
	return true
}

func (st *resolveState) nextName(kind MediaKind) string {
	if kind == MediaTable {
		st.tabN++
		return fmt.Sprintf("table_%02d.png", st.tabN)
	}
	st.figN++
	return fmt.Sprintf("fig_%02d.png", st.figN)
}

// looksLarge reports whether a caption or label suggests a large or complex
// item worth a full-page proxy render in pages-large mode.
var largeHintRe = regexp.MustCompile(`(?i)\b(comparison|summary|characteristics|distribution|overview|parameters)\b`)

func looksLarge(ev MediaEvidence) bool {
	if len(ev.Caption) >= 120 {
		return true
	}
	return largeHintRe.MatchString(ev.Caption) || largeHintRe.MatchString(ev.Label)
}

// validCoords rejects out-of-range pages and degenerate or non-finite boxes.
func validCoords(c *Coords, pageCount int) bool {
	if c.Page < 1 || (pageCount > 0 && c.Page > pageCount) {
		return false
	}
	for _, v := range []float64{c.Box.X0, c.Box.Y0, c.Box.X1, c.Box.Y1} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return c.Box.Width() > 0 && c.Box.Height() > 0
}

var coordsSplitRe = regexp.MustCompile(`[;,\s]+`)

// ParseCoords parses coordinate strings of the form "page,x,y,w,h", possibly
// with several groups separated by semicolons or whitespace. Inconsistent
// separators that do not yield complete groups of five numbers make the
// whole string malformed, which callers treat as absent coordinates.
func ParseCoords(s string) ([]Coords, bool) {
	parts := coordsSplitRe.Split(strings.TrimSpace(s), -1)
	nums := make([]float64, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, false
		}
		nums = append(nums, v)
	}
	if len(nums) == 0 || len(nums)%5 != 0 {
		return nil, false
	}
	out := make([]Coords, 0, len(nums)/5)
	for i := 0; i+4 < len(nums); i += 5 {
		page := int(nums[i])
		x, y, w, h := nums[i+1], nums[i+2], nums[i+3], nums[i+4]
		out = append(out, Coords{
			Page: page,
			Box:  Rect{X0: x, Y0: y, X1: x + math.Max(0, w), Y1: y + math.Max(0, h)},
		})
	}
	return out, true
}

// mediaBucket builds the per-article artifact directory:
// <root>/<slug>_<hash8>/. The hash keeps same-named articles apart.
func mediaBucket(root string, meta Meta) string {
	stem := meta.SourcePath
	if stem != "" {
		stem = strings.TrimSuffix(filepath.Base(stem), filepath.Ext(stem))
	} else {
		stem = meta.Title
	}
	name := slugify(stem)
	sum := sha1.Sum([]byte(meta.SourcePath + "\x00" + meta.Title))
	return filepath.Join(root, name+"_"+hex.EncodeToString(sum[:])[:8])
}

var deaccent = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// slugify lowercases, strips diacritics via NFKD decomposition, and folds
// every non-alphanumeric run into a single dash.
func slugify(s string) string {
	if folded, _, err := transform.String(deaccent, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)
	var b strings.Builder
	dash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "unknown"
	}
	if len(out) > 80 {
		out = strings.Trim(out[:80], "-")
	}
	return out
}

// fileChecksum returns the first 8 hex chars of the artifact's sha1, or ""
// when the file cannot be read.
func fileChecksum(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))[:8]
}
