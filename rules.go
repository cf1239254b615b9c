package paperslicer

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// nonContentKeys names boilerplate sections excluded from canonical output.
var nonContentKeys = []string{
	"acknowledgements",
	"acknowledgments",
	"funding",
	"conflict_of_interest",
	"conflicts_of_interest",
	"competing_interests",
	"author_contributions",
	"authors_contributions",
	"contributorship",
	"availability_of_data_and_materials",
	"data_availability",
	"ethical_statement",
	"ethics_statement",
	"human_and_animal_rights",
	"patient_consent",
	"consent_for_publication",
	"list_of_abbreviations",
	"abbreviations",
	"orcid",
	"references",
	"bibliography",
}

// DefaultRules returns the built-in mapping-rule table: a curated dictionary
// of known heading variants, regex rules for structurally similar headings,
// and per-key keyword sets for the scoring fallback.
func DefaultRules() *Rules {
	r := &Rules{
		Exact: map[string]string{
			// Core IMRaD variants.
			"abstract":     KeyAbstract,
			"introduction": KeyIntroduction,
			"background":   KeyIntroduction,
			"methods":      KeyMethods,
			"materials":    KeyMethods,
			"materials and methods": KeyMethods,
			"materials & methods":   KeyMethods,
			"methods and materials": KeyMethods,
			"patients and methods":  KeyMethods,
			"subjects and methods":  KeyMethods,
			"methodology":           KeyMethods,
			"study design":          KeyMethods,
			"experimental procedures": KeyMethods,
			"results":                 KeyResults,
			"discussion":              KeyDiscussion,
			"conclusion":              KeyConclusions,
			"conclusions":             KeyConclusions,
			"clinical significance":   KeyConclusions,
			"results and discussion":  KeyResultsAndDiscussion,
			"results & discussion":    KeyResultsAndDiscussion,

			// Canonical keys map to themselves, so re-canonicalizing
			// already-canonical input is a no-op.
			"materials_and_methods":  KeyMethods,
			"results_and_discussion": KeyResultsAndDiscussion,

			// Methods family.
			"data analysis":                    KeyMethods,
			"statistical analysis":             KeyMethods,
			"statistical methods":              KeyMethods,
			"statistics":                       KeyMethods,
			"sample size calculation":          KeyMethods,
			"power analysis":                   KeyMethods,
			"sample size determination":        KeyMethods,
			"eligibility criteria":             KeyMethods,
			"inclusion criteria":               KeyMethods,
			"exclusion criteria":               KeyMethods,
			"inclusion and exclusion criteria": KeyMethods,
			"participants":                     KeyMethods,
			"study population":                 KeyMethods,
			"sample preparation":               KeyMethods,
			"specimen preparation":             KeyMethods,
			"radiographic analysis":            KeyMethods,
			"radiographic analyses":            KeyMethods,
			"clinical examination":             KeyMethods,
			"clinical examinations":            KeyMethods,
			"outcome measure":                  KeyMethods,
			"outcome measures":                 KeyMethods,
			"randomization and blinding":       KeyMethods,
			"design":                           KeyMethods,
			"sample and setting":               KeyMethods,
			"protocol and registration":        KeyMethods,
			"protocol registration":            KeyMethods,
			"data charting and synthesis":      KeyMethods,
			"in vivo studies":                  KeyMethods,
			"medical preparations":             KeyMethods,
			"patient preparation":              KeyMethods,
			"surgical area preparation":        KeyMethods,
			"surgical procedures":              KeyMethods,
			"surgical procedure":               KeyMethods,
			"search strategy":                  KeyMethods,
			"study selection":                  KeyMethods,
			"selection of studies":             KeyMethods,
			"screening of articles":            KeyMethods,
			"data extraction":                  KeyMethods,
			"quality assessment":               KeyMethods,
			"methodological quality":           KeyMethods,
			"risk of bias":                     KeyMethods,
			"risk of bias assessment":          KeyMethods,
			"rob assessment":                   KeyMethods,
			"assessment of heterogeneity":      KeyMethods,
			"indications":                      KeyMethods,
			"contraindications":                KeyMethods,
			"systemic conditions":              KeyMethods,
			"local conditions":                 KeyMethods,
			"preoperative examination":         KeyMethods,
			"history and preoperative examination": KeyMethods,
			"examiner calibration":                 KeyMethods,
			"clinical measurements":                KeyMethods,
			"information sources":                  KeyMethods,
			"primary outcome":                      KeyMethods,
			"secondary outcomes":                   KeyMethods,
			"included studies":                     KeyMethods,
			"medical records":                      KeyMethods,
			"animals":                              KeyMethods,
			"analysis":                             KeyMethods,
			"experimental setup":                   KeyMethods,
			"patient selection":                    KeyMethods,
			"measures":                             KeyMethods,

			// Introduction-like.
			"research question":        KeyIntroduction,
			"review question":          KeyIntroduction,
			"current medical therapy":  KeyIntroduction,
			"legislative context":      KeyIntroduction,

			// Results-like.
			"outcomes":          KeyResults,
			"clinical outcomes": KeyResults,
			"success rates":     KeyResults,
			"survival rates":    KeyResults,
			"complication rates": KeyResults,
			"other complications": KeyResults,
			"main outcome of the study": KeyResults,
			"case report":               KeyResults,
			"follow-up":                 KeyResults,

			// Discussion-like.
			"limitations":                KeyDiscussion,
			"strengths and limitations":  KeyDiscussion,
			"interpretation of key findings": KeyDiscussion,
			"agreements and disagreements with other studies or reviews": KeyDiscussion,
			"clinical management":                KeyDiscussion,
			"grading the certainty of evidence":  KeyDiscussion,
			"certainty of evidence":              KeyDiscussion,
			"grade approach":                     KeyDiscussion,
			"comparison with previous research":  KeyDiscussion,

			// Conclusions-like.
			"summary of key findings":  KeyConclusions,
			"summary of main findings": KeyConclusions,
			"possible applications of research and future research directions": KeyConclusions,
			"clinical considerations and practical recommendations":            KeyConclusions,

			// Boilerplate variants normalize to their non-content key.
			"acknowledgements":       "acknowledgements",
			"acknowledgments":        "acknowledgments",
			"funding":                "funding",
			"conflict of interest":   "conflict_of_interest",
			"conflicts of interest":  "conflicts_of_interest",
			"competing interests":    "competing_interests",
			"authors' contributions": "author_contributions",
			"author contributions":   "author_contributions",
			"availability of data and materials": "availability_of_data_and_materials",
			"data availability":                  "data_availability",
			"ethical statement":                  "ethical_statement",
			"ethics statement":                   "ethics_statement",
			"human and animal rights":            "human_and_animal_rights",
			"consent for publication":            "consent_for_publication",
			"list of abbreviations":              "list_of_abbreviations",
			"abbreviations":                      "abbreviations",
			"references":                         "references",
			"bibliography":                       "bibliography",
		},
		Regex: []RegexRule{
			// Headings carrying both tokens merge into the combined key
			// before either single-key rule can claim them.
			{Pattern: `\bresults?\b.*\bdiscussion\b`, Key: KeyResultsAndDiscussion, Priority: 100},
		},
		Keywords: []KeywordRule{
			{Key: KeyMethods, Priority: 40, Keywords: []string{
				"method", "statistic", "power analysis", "sample size",
				"eligibility", "inclusion", "exclusion", "preparation",
				"participants", "population", "search strategy", "study selection",
				"data extraction", "quality assessment", "risk of bias",
				"heterogeneity", "preoperative", "indication", "contraindication",
				"outcome measure", "randomization", "blinding", "charting",
				"synthesis", "calibration", "protocol",
			}},
			{Key: KeyIntroduction, Priority: 30, Keywords: []string{
				"introduc", "aim", "objective", "purpose", "background",
			}},
			{Key: KeyConclusions, Priority: 20, Keywords: []string{
				"conclusion", "clinical significance",
			}},
			{Key: KeyResults, Priority: 10, Keywords: []string{
				"result", "findings", "outcome",
			}},
			{Key: KeyDiscussion, Priority: 5, Keywords: []string{
				"discussion", "limitation",
			}},
		},
		MinKeywordScore: 1,
		NonContentKeys:  nonContentKeys,
	}
	if err := r.compile(); err != nil {
		// Built-in patterns are constants; a compile failure is a programming
		// error, not a runtime condition.
		panic(err)
	}
	return r
}

// ruleFile is the on-disk YAML shape for overlaying the built-in table.
type ruleFile struct {
	Exact           map[string]string `yaml:"exact"`
	Regex           []RegexRule       `yaml:"regex"`
	Keywords        []KeywordRule     `yaml:"keywords"`
	MinKeywordScore int               `yaml:"min_keyword_score"`
	NonContent      []string          `yaml:"non_content"`
	Replace         bool              `yaml:"replace"` // drop built-ins instead of overlaying
}

// LoadRules reads a YAML rule file and overlays it on the built-in table.
// Exact entries are merged (file wins), regex and keyword rules are appended
// and re-sorted by priority. With replace: true the file stands alone.
// Rules can be reloaded between runs; a table is never mutated mid-run.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read rules %s", path)
	}
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "parse rules %s", path)
	}

	var base *Rules
	if file.Replace {
		base = &Rules{Exact: map[string]string{}, MinKeywordScore: 1}
	} else {
		base = DefaultRules()
	}
	for k, v := range file.Exact {
		base.Exact[NormalizeHeading(k)] = v
	}
	base.Regex = append(base.Regex, file.Regex...)
	base.Keywords = append(base.Keywords, file.Keywords...)
	if file.MinKeywordScore > 0 {
		base.MinKeywordScore = file.MinKeywordScore
	}
	base.NonContentKeys = append(base.NonContentKeys, file.NonContent...)
	if err := base.compile(); err != nil {
		return nil, errors.Wrapf(err, "compile rules %s", path)
	}
	return base, nil
}
