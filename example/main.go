package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klippa-app/go-pdfium/webassembly"
	"github.com/urfave/cli/v3"

	"github.com/ivanvanderbyl/paperslicer"
)

func main() {
	cmd := &cli.Command{
		Name:  "paperslicer",
		Usage: "Normalize scientific article PDFs into canonical section records",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Input PDF file or directory",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory for records and reports",
				Value:   "out",
			},
			&cli.StringFlag{
				Name:  "rules",
				Usage: "YAML rule file overlaid on the built-in heading table",
			},
			&cli.StringFlag{
				Name:  "images",
				Usage: "Image resolution mode: auto, coords-only, pages-large",
				Value: string(paperslicer.ImagesAuto),
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent documents in a batch",
				Value: 4,
			},
			&cli.BoolFlag{
				Name:  "review-mode",
				Usage: "Force review/consensus augmentation for every document",
			},
			&cli.BoolFlag{
				Name:  "no-table-fallback",
				Usage: "Disable text-based table detection",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log per-stage decisions",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	inputPath := cmd.String("input")
	outDir := cmd.String("output")

	level := slog.LevelInfo
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Initialise pdfium
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to initialise pdfium: %w", err)
	}
	defer pool.Close()

	instance, err := pool.GetInstance(time.Second * 30)
	if err != nil {
		return fmt.Errorf("failed to get pdfium instance: %w", err)
	}

	cfg := paperslicer.Config{
		ReviewMode:           cmd.Bool("review-mode"),
		ImagesMode:           paperslicer.ImagesMode(cmd.String("images")),
		DisableTableFallback: cmd.Bool("no-table-fallback"),
		RulesPath:            cmd.String("rules"),
		MediaDir:             filepath.Join(outDir, "media"),
		Workers:              int(cmd.Int("workers")),
		Logger:               logger,
	}

	renderer := paperslicer.NewPdfiumRenderer(instance, cfg.RenderDPI)
	pipeline, err := paperslicer.New(cfg, renderer)
	if err != nil {
		return err
	}

	sources, err := collectPDFs(inputPath)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no PDF files under %s", inputPath)
	}
	fmt.Fprintf(os.Stderr, "Processing %d documents...\n", len(sources))

	ingestor := paperslicer.NewIngestor(instance, pipeline.Rules())
	var docs []*paperslicer.Parsed
	for _, src := range sources {
		parsed, err := ingestor.ParseFile(src)
		if err != nil {
			logger.Warn("ingest failed", "source", src, "error", err)
			continue
		}
		docs = append(docs, parsed)
	}

	outcomes, report := pipeline.ProcessBatch(ctx, docs)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	corpus, err := paperslicer.NewCorpusWriter(filepath.Join(outDir, "corpus.jsonl"))
	if err != nil {
		return err
	}
	for _, o := range outcomes {
		if o.Err != nil || o.Record == nil {
			continue
		}
		if err := corpus.Append(o.Record); err != nil {
			corpus.Close()
			return err
		}
		if err := writeRecordFile(outDir, o); err != nil {
			corpus.Close()
			return err
		}
	}
	if err := corpus.Close(); err != nil {
		return err
	}

	if err := writeReports(outDir, report); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Records written to %s\n", outDir)
	if !report.Pass {
		return fmt.Errorf("quality gates failed: %s", strings.Join(report.FailingGates(), ", "))
	}
	return nil
}

func collectPDFs(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	var out []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".pdf") {
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

func writeRecordFile(outDir string, o paperslicer.Outcome) error {
	name := paperslicer.RecordFileName(o.Source)
	f, err := os.Create(filepath.Join(outDir, name))
	if err != nil {
		return err
	}
	if err := paperslicer.WriteRecord(f, o.Record); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeReports(outDir string, report *paperslicer.QualityReport) error {
	writers := []struct {
		name  string
		write func(w io.Writer) error
	}{
		{"quality.json", report.WriteJSON},
		{"quality.csv", report.WriteCSV},
		{"unmapped_headings.txt", report.WriteUnmappedHeadings},
	}
	for _, w := range writers {
		f, err := os.Create(filepath.Join(outDir, w.name))
		if err != nil {
			return err
		}
		if err := w.write(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
