package paperslicer

import (
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/pkg/errors"
)

// PdfiumRenderer renders page regions and whole pages from PDF sources
// through a pdfium instance. It satisfies the Renderer capability the media
// locator depends on.
type PdfiumRenderer struct {
	instance pdfium.Pdfium
	dpi      int
}

// NewPdfiumRenderer wraps a pdfium instance. dpi <= 0 falls back to 200.
func NewPdfiumRenderer(instance pdfium.Pdfium, dpi int) *PdfiumRenderer {
	if dpi <= 0 {
		dpi = 200
	}
	return &PdfiumRenderer{instance: instance, dpi: dpi}
}

// Open loads the PDF and reads its page count.
func (r *PdfiumRenderer) Open(src string) (RenderedDoc, error) {
	doc, err := r.instance.OpenDocument(&requests.OpenDocument{
		FilePath: &src,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open PDF document")
	}

	pageCount, err := r.instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: doc.Document,
	})
	if err != nil {
		r.close(doc.Document)
		return nil, errors.Wrap(err, "failed to get page count")
	}

	return &pdfiumDoc{
		instance: r.instance,
		ref:      doc.Document,
		pages:    pageCount.PageCount,
		dpi:      r.dpi,
	}, nil
}

func (r *PdfiumRenderer) close(ref references.FPDF_DOCUMENT) {
	_, _ = r.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: ref,
	})
}

type pdfiumDoc struct {
	instance pdfium.Pdfium
	ref      references.FPDF_DOCUMENT
	pages    int
	dpi      int
}

func (d *pdfiumDoc) PageCount() int { return d.pages }

// RenderPage rasterizes the whole 1-based page to a PNG artifact.
func (d *pdfiumDoc) RenderPage(page int, outPath string) error {
	img, _, err := d.renderPage(page)
	if err != nil {
		return err
	}
	return writePNG(outPath, img)
}

// RenderRegion rasterizes the page and crops the given box. Evidence boxes
// use top-left-origin page points, matching the rendered image orientation,
// so the crop is a straight scale by the point-to-pixel ratio.
func (d *pdfiumDoc) RenderRegion(page int, box Rect, outPath string) error {
	img, ratio, err := d.renderPage(page)
	if err != nil {
		return err
	}

	bounds := img.Bounds()
	crop := image.Rect(
		int(box.X0*ratio), int(box.Y0*ratio),
		int(box.X1*ratio), int(box.Y1*ratio),
	).Intersect(bounds)
	if crop.Empty() {
		return errors.Errorf("region outside page %d bounds", page)
	}

	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}
	si, ok := img.(subImager)
	if !ok {
		return errors.New("rendered image does not support cropping")
	}
	return writePNG(outPath, si.SubImage(crop))
}

func (d *pdfiumDoc) renderPage(page int) (image.Image, float64, error) {
	if page < 1 || page > d.pages {
		return nil, 0, errors.Errorf("page %d out of range 1..%d", page, d.pages)
	}
	index := page - 1
	render, err := d.instance.RenderPageInDPI(&requests.RenderPageInDPI{
		DPI: d.dpi,
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: d.ref,
				Index:    index,
			},
		},
	})
	if err != nil {
		return nil, 0, errors.Wrapf(err, "failed to render page %d", page)
	}
	return render.Result.Image, render.Result.PointToPixelRatio, nil
}

func (d *pdfiumDoc) Close() error {
	_, err := d.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: d.ref,
	})
	if err != nil {
		return errors.Wrap(err, "failed to close PDF document")
	}
	return nil
}

func writePNG(outPath string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", filepath.Dir(outPath))
	}
	f, err := os.Create(outPath)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", outPath)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return errors.Wrapf(err, "failed to encode %s", outPath)
	}
	return nil
}
