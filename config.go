package paperslicer

import "log/slog"

// ImagesMode constrains which stages of the media fallback chain run.
type ImagesMode string

const (
	// ImagesAuto runs the full fallback chain.
	ImagesAuto ImagesMode = "auto"
	// ImagesCoordsOnly resolves only from reported coordinates; evidence
	// without a valid region stays unresolved.
	ImagesCoordsOnly ImagesMode = "coords-only"
	// ImagesPagesLarge restricts page renders to evidence whose caption
	// suggests a large or complex item.
	ImagesPagesLarge ImagesMode = "pages-large"
)

// Config is the explicit per-run configuration for the pipeline. It is
// threaded through every stage; nothing reads ambient process state, so
// concurrent batch runs with different settings cannot interfere.
type Config struct {
	// ReviewMode forces review/consensus augmentation for every document.
	ReviewMode bool `yaml:"review_mode"`
	// ReviewJournals lists venue identifiers (substring match on the journal
	// name) that trigger augmentation and select the venue strategy.
	ReviewJournals []string `yaml:"review_journals"`
	// AugmentKeys are the canonical keys the augmenter may fill.
	AugmentKeys []string `yaml:"augment_keys"`
	// MinSectionChars is the length below which an augmentable section
	// counts as weak.
	MinSectionChars int `yaml:"min_section_chars"`

	// ImagesMode selects the media fallback behavior.
	ImagesMode ImagesMode `yaml:"images_mode"`
	// PageImageCap bounds full-page renders per document so low-value proxy
	// images cannot flood the output.
	PageImageCap int `yaml:"page_image_cap"`
	// DisableTableFallback turns off text-based table detection even when no
	// structured table evidence exists.
	DisableTableFallback bool `yaml:"disable_table_fallback"`

	// RulesPath optionally overlays a YAML rule file on the built-in table.
	RulesPath string `yaml:"rules_path"`
	// MediaDir is the root directory for image artifacts.
	MediaDir string `yaml:"media_dir"`
	// RenderDPI is the resolution for crops and page renders.
	RenderDPI int `yaml:"render_dpi"`

	// Workers bounds concurrent per-document pipelines in a batch.
	Workers int `yaml:"workers"`

	// Gates are the corpus quality thresholds.
	Gates GateConfig `yaml:"gates"`

	// Logger for stage decisions and malformed-input warnings.
	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if len(c.AugmentKeys) == 0 {
		c.AugmentKeys = []string{KeyDiscussion}
	}
	if c.MinSectionChars <= 0 {
		c.MinSectionChars = 300
	}
	if c.ImagesMode == "" {
		c.ImagesMode = ImagesAuto
	}
	if c.PageImageCap <= 0 {
		c.PageImageCap = 2
	}
	if c.MediaDir == "" {
		c.MediaDir = "media"
	}
	if c.RenderDPI <= 0 {
		c.RenderDPI = 200
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	c.Gates.defaults()
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
