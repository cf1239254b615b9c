// Package paperslicer normalizes heterogeneous scientific-article structure
// into a stable canonical schema for downstream indexing.
//
// The package consumes a parsed document model (raw sections, figure/table
// evidence, metadata) produced by an upstream structuring service, maps every
// section heading onto a closed set of canonical keys, augments review-style
// articles whose structure deviates from IMRaD, resolves figures and tables
// to concrete image artifacts through an ordered fallback chain, and scores
// the result against corpus-level quality gates.
package paperslicer

// Canonical section keys. All journal-specific heading variants are mapped
// onto this closed set; CanonicalKeys fixes the declaration order used for
// deterministic tie-breaking.
const (
	KeyAbstract             = "abstract"
	KeyIntroduction         = "introduction"
	KeyMethods              = "materials_and_methods"
	KeyResults              = "results"
	KeyDiscussion           = "discussion"
	KeyConclusions          = "conclusions"
	KeyResultsAndDiscussion = "results_and_discussion"
)

// CanonicalKeys lists every canonical section key in declaration order.
var CanonicalKeys = []string{
	KeyAbstract,
	KeyIntroduction,
	KeyMethods,
	KeyResults,
	KeyDiscussion,
	KeyConclusions,
	KeyResultsAndDiscussion,
}

// Rect is a bounding box in page points, origin at the top-left corner.
type Rect struct {
	X0 float64 // Left
	Y0 float64 // Top
	X1 float64 // Right
	Y1 float64 // Bottom
}

// Width returns the width of the rectangle.
func (r Rect) Width() float64 {
	return r.X1 - r.X0
}

// Height returns the height of the rectangle.
func (r Rect) Height() float64 {
	return r.Y1 - r.Y0
}

// Coords locate a region on a page of the source document. Page is 1-based.
type Coords struct {
	Page int
	Box  Rect
}

// MediaKind distinguishes figure evidence from table evidence.
type MediaKind string

const (
	MediaFigure MediaKind = "figure"
	MediaTable  MediaKind = "table"
)

// MediaSource records which fallback stage produced a resolved artifact.
type MediaSource string

const (
	// SourceCrop means the artifact was cropped from the exact region the
	// structuring service reported for the figure or table.
	SourceCrop MediaSource = "grobid+crop"
	// SourceEmbedded means an image embedded in the source document was used
	// directly.
	SourceEmbedded MediaSource = "embedded-image"
	// SourcePageImage means the whole page containing the caption was
	// rendered as a proxy for the item.
	SourcePageImage MediaSource = "page-image"
	// SourceTextInferred marks evidence synthesized from textual table
	// references that could not be resolved to any artifact.
	SourceTextInferred MediaSource = "text-inferred"
)

// Meta is the top-level article metadata reported by the ingestor.
type Meta struct {
	SourcePath string `json:"source_path"`
	Title      string `json:"title"`
	DOI        string `json:"doi"`
	Journal    string `json:"journal"`
	Abstract   string `json:"abstract"`
}

// RawSection is one ordered structural unit of the parsed document: a heading
// with its paragraph text and, when known, the page range it spans.
// Produced once by the ingestor and never mutated by the pipeline.
type RawSection struct {
	Heading     string
	Body        string
	PageStart   int // 1-based, 0 when unknown
	PageEnd     int
	Subsections []string
}

// MediaEvidence is a candidate figure/table record before resolution.
type MediaEvidence struct {
	Kind    MediaKind
	Label   string
	Caption string
	Coords  *Coords // nil when the ingestor reported no region
	// CoordsRaw is the unparsed coordinate string some ingestors report
	// ("page,x,y,w,h" groups). Parsed lazily by the locator when Coords is
	// nil; malformed strings are treated as absent coordinates.
	CoordsRaw string
	Payload   []byte // embedded raster bytes, nil when absent

	// TextInferred marks evidence synthesized by the table fallback
	// detector; such evidence carries neither coordinates nor payload.
	TextInferred bool
	// PageHint is a 1-based page inferred from surrounding text, 0 when no
	// page could be inferred. Used by the page-image stage for text-inferred
	// evidence.
	PageHint int
}

// ResolvedMedia pairs evidence with a concrete image artifact and the
// provenance of the fallback stage that produced it. An empty Path means the
// evidence stayed unresolved; that is a quality signal, not an error.
type ResolvedMedia struct {
	Kind     MediaKind   `json:"-"`
	Label    string      `json:"label"`
	Caption  string      `json:"caption"`
	Path     string      `json:"path"`
	Source   MediaSource `json:"source"`
	Checksum string      `json:"-"` // first 8 hex chars of the artifact sha1
}

// Resolved reports whether an artifact was produced for this evidence.
func (m ResolvedMedia) Resolved() bool {
	return m.Path != ""
}

// Parsed is the input contract from the ingestor: ordered raw sections,
// figure/table evidence, and metadata. The pipeline treats this shape
// identically whether it came from the structuring service or from the
// plain-text fallback path.
type Parsed struct {
	Meta     Meta
	Sections []RawSection
	Media    []MediaEvidence
}

// Record is the canonical per-article output of the pipeline.
type Record struct {
	Meta     Meta
	Sections map[string]string
	Figures  []ResolvedMedia
	Tables   []ResolvedMedia

	// UnmappedHeadings lists headings no rule could map, in document order.
	// Kept for diagnostics and for informing rule-table growth.
	UnmappedHeadings []string
}

// HasSection reports whether a canonical key is populated. Absent and empty
// are treated identically.
func (r *Record) HasSection(key string) bool {
	return len(r.Sections[key]) > 0
}
