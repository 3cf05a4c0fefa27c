package router

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/veritas-legal/research-cli/internal/model"
)

// KeywordEntry maps one keyword to the source IDs it selects. Entries are a
// slice, not a map, so match order is stable across runs.
type KeywordEntry struct {
	Keyword string   `yaml:"keyword"`
	Sources []string `yaml:"sources"`
}

// Table is the static routing configuration: the source catalog, the
// keyword mapping, and the default sources used when nothing matches.
type Table struct {
	Sources  []model.DocumentSource `yaml:"sources"`
	Keywords []KeywordEntry         `yaml:"keywords"`
	Defaults []string               `yaml:"defaults"`
}

// LoadTable reads a routing table from a YAML file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "router: read table %s", path)
	}

	var wrapper struct {
		Routing Table `yaml:"routing"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "router: parse table")
	}

	t := &wrapper.Routing
	if len(t.Sources) == 0 {
		return nil, eris.New("router: table has no sources")
	}
	if len(t.Defaults) == 0 {
		return nil, eris.New("router: table has no default sources")
	}

	return t, nil
}

// DefaultTable returns the built-in routing table for federal sources.
func DefaultTable() *Table {
	return &Table{
		Sources: []model.DocumentSource{
			{
				ID:     "frcrmp",
				Name:   "Federal Rules of Criminal Procedure",
				URL:    "https://www.uscourts.gov/sites/default/files/federal_rules_of_criminal_procedure.pdf",
				Domain: model.DomainCriminal,
			},
			{
				ID:     "frap",
				Name:   "Federal Rules of Appellate Procedure",
				URL:    "https://www.uscourts.gov/sites/default/files/federal_rules_of_appellate_procedure.pdf",
				Domain: model.DomainAppellate,
			},
			{
				ID:     "ussg",
				Name:   "U.S. Sentencing Guidelines Manual",
				URL:    "https://www.ussc.gov/sites/default/files/pdf/guidelines-manual/GLMFull.pdf",
				Domain: model.DomainSentencing,
			},
			{
				ID:     "frcp",
				Name:   "Federal Rules of Civil Procedure",
				URL:    "https://www.uscourts.gov/sites/default/files/federal_rules_of_civil_procedure.pdf",
				Domain: model.DomainCivil,
			},
			{
				ID:     "fre",
				Name:   "Federal Rules of Evidence",
				URL:    "https://www.uscourts.gov/sites/default/files/federal_rules_of_evidence.pdf",
				Domain: model.DomainEvidence,
			},
			{
				ID:     "mrpc",
				Name:   "Model Rules of Professional Conduct",
				URL:    "https://www.americanbar.org/content/dam/aba/publications/model_rules_of_professional_conduct.pdf",
				Domain: model.DomainConduct,
			},
			{
				ID:     "frbp",
				Name:   "Federal Rules of Bankruptcy Procedure",
				URL:    "https://www.uscourts.gov/sites/default/files/federal_rules_of_bankruptcy_procedure.pdf",
				Domain: model.DomainProbate,
			},
			{
				ID:     "ucc2",
				Name:   "Uniform Commercial Code Article 2",
				URL:    "https://www.uniformlaws.org/viewdocument/final-act-ucc-article-2-sales.pdf",
				Domain: model.DomainContract,
			},
		},
		Keywords: []KeywordEntry{
			{Keyword: "criminal", Sources: []string{"frcrmp", "ussg"}},
			{Keyword: "appeal", Sources: []string{"frap", "frcrmp"}},
			{Keyword: "conviction", Sources: []string{"frcrmp", "frap"}},
			{Keyword: "sentenc", Sources: []string{"ussg", "frcrmp"}},
			{Keyword: "civil", Sources: []string{"frcp"}},
			{Keyword: "discovery", Sources: []string{"frcp", "fre"}},
			{Keyword: "deposition", Sources: []string{"frcp"}},
			{Keyword: "custody", Sources: []string{"frcp"}},
			{Keyword: "divorce", Sources: []string{"frcp"}},
			{Keyword: "evidence", Sources: []string{"fre"}},
			{Keyword: "hearsay", Sources: []string{"fre"}},
			{Keyword: "witness", Sources: []string{"fre"}},
			{Keyword: "ethics", Sources: []string{"mrpc"}},
			{Keyword: "conduct", Sources: []string{"mrpc"}},
			{Keyword: "malpractice", Sources: []string{"mrpc"}},
			{Keyword: "probate", Sources: []string{"frbp"}},
			{Keyword: "estate", Sources: []string{"frbp"}},
			{Keyword: "bankruptcy", Sources: []string{"frbp"}},
			{Keyword: "contract", Sources: []string{"ucc2"}},
			{Keyword: "breach", Sources: []string{"ucc2"}},
			{Keyword: "warranty", Sources: []string{"ucc2"}},
		},
		Defaults: []string{"frcrmp", "frcp"},
	}
}
