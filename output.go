package paperslicer

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// mediaJSON is the serialized form of one resolved media item.
type mediaJSON struct {
	Label    string `json:"label"`
	Caption  string `json:"caption,omitempty"`
	Path     string `json:"path,omitempty"`
	Source   string `json:"source"`
	Checksum string `json:"checksum,omitempty"`
}

// recordJSON is the canonical serialized record. Sections holds only
// populated canonical keys; absent sections are omitted, never emitted empty.
type recordJSON struct {
	Title    string            `json:"title"`
	DOI      string            `json:"doi"`
	Journal  string            `json:"journal"`
	Sections map[string]string `json:"sections"`
	Figures  []mediaJSON       `json:"figures,omitempty"`
	Tables   []mediaJSON       `json:"tables,omitempty"`
	Unmapped []string          `json:"unmapped_headings,omitempty"`
}

func toRecordJSON(rec *Record) recordJSON {
	out := recordJSON{
		Title:    rec.Meta.Title,
		DOI:      rec.Meta.DOI,
		Journal:  rec.Meta.Journal,
		Sections: map[string]string{},
		Unmapped: rec.UnmappedHeadings,
	}
	for _, key := range CanonicalKeys {
		if rec.HasSection(key) {
			out.Sections[key] = rec.Sections[key]
		}
	}
	for _, f := range rec.Figures {
		out.Figures = append(out.Figures, toMediaJSON(f))
	}
	for _, t := range rec.Tables {
		out.Tables = append(out.Tables, toMediaJSON(t))
	}
	return out
}

func toMediaJSON(m ResolvedMedia) mediaJSON {
	return mediaJSON{
		Label:    m.Label,
		Caption:  m.Caption,
		Path:     m.Path,
		Source:   string(m.Source),
		Checksum: m.Checksum,
	}
}

// WriteRecord writes a single record as indented JSON.
func WriteRecord(w io.Writer, rec *Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(toRecordJSON(rec)), "encoding record")
}

// RecordFileName derives the per-document output file name from the source
// path, e.g. papers/smith2021.pdf -> smith2021.json.
func RecordFileName(sourcePath string) string {
	base := filepath.Base(sourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		base = "record"
	}
	return base + ".json"
}

// CorpusWriter appends records to a JSON-lines corpus file. Safe for
// concurrent Append calls.
type CorpusWriter struct {
	mu  sync.Mutex
	f   *os.File
	buf *bufio.Writer
	enc *json.Encoder
}

// NewCorpusWriter creates or truncates the corpus file.
func NewCorpusWriter(path string) (*CorpusWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating corpus directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "creating corpus file")
	}
	buf := bufio.NewWriter(f)
	return &CorpusWriter{f: f, buf: buf, enc: json.NewEncoder(buf)}, nil
}

// Append writes one record as a single JSON line.
func (w *CorpusWriter) Append(rec *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return errors.Wrap(w.enc.Encode(toRecordJSON(rec)), "appending record")
}

// Close flushes and closes the corpus file.
func (w *CorpusWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		w.f.Close()
		return errors.Wrap(err, "flushing corpus file")
	}
	return errors.Wrap(w.f.Close(), "closing corpus file")
}
