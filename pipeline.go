package paperslicer

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Pipeline turns parsed documents into canonical records. It is safe for
// concurrent use; per-document state lives on the stack of Process.
type Pipeline struct {
	cfg        Config
	rules      *Rules
	locator    *Locator
	strategies []ReviewStrategy
	logger     *slog.Logger
}

// New builds a pipeline from the configuration. renderer may be nil when no
// media rendering is wanted; evidence then resolves only through embedded
// payloads.
func New(cfg Config, renderer Renderer) (*Pipeline, error) {
	cfg.defaults()

	rules := DefaultRules()
	if cfg.RulesPath != "" {
		loaded, err := LoadRules(cfg.RulesPath)
		if err != nil {
			return nil, errors.Wrapf(err, "loading rules from %s", cfg.RulesPath)
		}
		rules = loaded
	}

	p := &Pipeline{
		cfg:    cfg,
		rules:  rules,
		logger: cfg.Logger,
	}
	p.locator = NewLocator(renderer, &p.cfg)
	p.strategies = defaultStrategies(&p.cfg)
	return p, nil
}

// Rules exposes the compiled rule table, e.g. for ad-hoc classification.
func (p *Pipeline) Rules() *Rules { return p.rules }

// Process runs the full per-document sequence: merge, abstract promotion,
// review augmentation, table fallback, media resolution.
func (p *Pipeline) Process(ctx context.Context, parsed *Parsed) (*Record, DocMetrics, error) {
	if parsed == nil {
		return nil, DocMetrics{}, errors.New("nil parsed document")
	}
	if err := ctx.Err(); err != nil {
		return nil, DocMetrics{}, err
	}

	merge := MergeSections(parsed.Sections, p.rules)
	rec := &Record{
		Meta:             parsed.Meta,
		Sections:         merge.Sections,
		UnmappedHeadings: merge.Unmapped,
	}

	// A document abstract outranks a heading-derived one.
	if abs := strings.TrimSpace(parsed.Meta.Abstract); abs != "" {
		rec.Sections[KeyAbstract] = abs
	} else if rec.HasSection(KeyAbstract) {
		rec.Meta.Abstract = rec.Sections[KeyAbstract]
	}

	if IsReview(parsed.Meta, parsed.Sections, &p.cfg) {
		for _, s := range p.strategies {
			if !s.Matches(parsed.Meta) {
				continue
			}
			if filled := s.Augment(rec, parsed.Sections, p.rules, &p.cfg); len(filled) > 0 {
				p.logger.Debug("review augmentation",
					"strategy", s.Name(), "source", parsed.Meta.SourcePath, "keys", filled)
			}
			break
		}
	}

	evidence := parsed.Media
	if !p.cfg.DisableTableFallback && !hasTableEvidence(evidence) {
		inferred := DetectTables(parsed.Sections)
		if len(inferred) > 0 {
			p.logger.Debug("table fallback",
				"source", parsed.Meta.SourcePath, "tables", len(inferred))
			evidence = append(evidence, inferred...)
		}
	}

	resolved := p.locator.Resolve(ctx, parsed.Meta, evidence)
	for _, m := range resolved {
		switch m.Kind {
		case MediaTable:
			rec.Tables = append(rec.Tables, m)
		default:
			rec.Figures = append(rec.Figures, m)
		}
	}

	return rec, EvaluateDocument(rec, merge), ctx.Err()
}

func hasTableEvidence(evidence []MediaEvidence) bool {
	for _, e := range evidence {
		if e.Kind == MediaTable {
			return true
		}
	}
	return false
}

// Outcome is one ProcessBatch result, in input order.
type Outcome struct {
	Source  string
	Record  *Record
	Metrics DocMetrics
	Err     error
}

// ProcessBatch runs Process over many documents with at most cfg.Workers in
// flight and evaluates the corpus gates over the successes. Cancelling the
// context stops dispatching new documents; in-flight ones finish or abort at
// their next checkpoint.
func (p *Pipeline) ProcessBatch(ctx context.Context, docs []*Parsed) ([]Outcome, *QualityReport) {
	outcomes := make([]Outcome, len(docs))

	sem := make(chan struct{}, p.cfg.Workers)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i, parsed := range docs {
		if ctx.Err() != nil {
			mu.Lock()
			outcomes[i] = Outcome{Source: sourceOf(parsed), Err: ctx.Err()}
			mu.Unlock()
			continue
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, parsed *Parsed) {
			defer wg.Done()
			defer func() { <-sem }()

			rec, metrics, err := p.Process(ctx, parsed)
			mu.Lock()
			outcomes[i] = Outcome{Source: sourceOf(parsed), Record: rec, Metrics: metrics, Err: err}
			mu.Unlock()
			if err != nil {
				p.logger.Warn("document failed", "source", sourceOf(parsed), "error", err)
			}
		}(i, parsed)
	}
	wg.Wait()

	// Duplicate detection and gating run single-threaded over the results.
	var metrics []DocMetrics
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			continue
		}
		metrics = append(metrics, o.Metrics)
	}
	return outcomes, EvaluateCorpus(metrics, failed, p.cfg.Gates)
}

func sourceOf(parsed *Parsed) string {
	if parsed == nil {
		return ""
	}
	return parsed.Meta.SourcePath
}
