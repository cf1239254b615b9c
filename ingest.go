package paperslicer

import (
	"regexp"
	"strings"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/pkg/errors"
)

// Ingestor is the plain-text fallback path: when no structured document is
// available from the upstream structuring service, it extracts raw sections
// directly from a PDF's text layer. The output shape is identical to the
// structured path, so the pipeline never branches on origin.
type Ingestor struct {
	instance pdfium.Pdfium
	rules    *Rules
}

// NewIngestor builds the fallback ingestor. The rule table is only consulted
// to recognize section headings; the ingestor never mutates it.
func NewIngestor(instance pdfium.Pdfium, rules *Rules) *Ingestor {
	return &Ingestor{instance: instance, rules: rules}
}

var captionLineRe = regexp.MustCompile(`(?i)^(figure|fig\.?|table|tab\.?)\s+(\d+|[ivxlc]+)\b`)

// ParseFile extracts a Parsed document from a PDF file.
func (in *Ingestor) ParseFile(path string) (*Parsed, error) {
	doc, err := in.instance.OpenDocument(&requests.OpenDocument{
		FilePath: &path,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open PDF document")
	}
	defer in.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: doc.Document,
	})

	pageCount, err := in.instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: doc.Document,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get page count")
	}

	parsed := &Parsed{Meta: Meta{SourcePath: path}}

	var (
		current   *RawSection
		body      strings.Builder
		seenMedia = map[string]bool{}
	)
	flush := func() {
		if current == nil {
			return
		}
		current.Body = strings.TrimSpace(body.String())
		parsed.Sections = append(parsed.Sections, *current)
		current = nil
		body.Reset()
	}

	for i := 0; i < pageCount.PageCount; i++ {
		text, err := in.instance.GetPageText(&requests.GetPageText{
			Page: requests.Page{
				ByIndex: &requests.PageByIndex{
					Document: doc.Document,
					Index:    i,
				},
			},
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to extract text from page %d", i+1)
		}
		page := i + 1

		for _, line := range strings.Split(text.Text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				if current != nil {
					body.WriteString("\n\n")
				}
				continue
			}
			if parsed.Meta.Title == "" {
				parsed.Meta.Title = line
				continue
			}

			if m := captionLineRe.FindStringSubmatch(line); m != nil {
				key := strings.ToLower(m[1][:3]) + ":" + strings.ToLower(m[2])
				if !seenMedia[key] {
					seenMedia[key] = true
					parsed.Media = append(parsed.Media, captionEvidence(m[1], m[2], line, page))
				}
				continue
			}

			if in.looksLikeHeading(line) {
				flush()
				current = &RawSection{Heading: line, PageStart: page, PageEnd: page}
				continue
			}
			if current != nil {
				if body.Len() > 0 {
					body.WriteByte(' ')
				}
				body.WriteString(line)
				current.PageEnd = page
			}
		}
	}
	flush()

	// Lift an extracted abstract into metadata so presence checks see it.
	for _, sec := range parsed.Sections {
		if key, ok := in.rules.Map(sec.Heading); ok && key == KeyAbstract {
			parsed.Meta.Abstract = sec.Body
			break
		}
	}
	return parsed, nil
}

// looksLikeHeading decides whether a text line starts a new section: either
// the rule table recognizes it, or it reads like a short standalone title.
func (in *Ingestor) looksLikeHeading(line string) bool {
	if len(line) > 80 {
		return false
	}
	if strings.HasSuffix(line, ".") || strings.HasSuffix(line, ",") {
		return false
	}
	if _, class := in.rules.Classify(line); class != HeadingUnmapped {
		return true
	}
	return isMostlyUpper(line) && len(strings.Fields(line)) <= 8
}

func isMostlyUpper(s string) bool {
	letters, upper := 0, 0
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			letters++
			upper++
		case r >= 'a' && r <= 'z':
			letters++
		}
	}
	return letters >= 3 && float64(upper) >= 0.8*float64(letters)
}

func captionEvidence(token, num, line string, page int) MediaEvidence {
	kind := MediaFigure
	if strings.HasPrefix(strings.ToLower(token), "tab") {
		kind = MediaTable
	}
	label := "Figure " + num
	if kind == MediaTable {
		label = "Table " + num
	}
	return MediaEvidence{
		Kind:     kind,
		Label:    label,
		Caption:  line,
		PageHint: page,
	}
}
