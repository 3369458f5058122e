package conference

import (
	"fmt"
	"regexp"
	"strings"
)

// Definition describes one venue and the textual variants it is known by.
type Definition struct {
	Name          string
	Aliases       []string
	Abbreviations []string
	Keywords      []string
	Patterns      []*regexp.Regexp

	abbrevExprs []*regexp.Regexp
}

// NewDefinition compiles the abbreviation and pattern tables for a venue.
func NewDefinition(name string, aliases, abbreviations, keywords, patterns []string) (Definition, error) {
	def := Definition{
		Name:          name,
		Aliases:       append([]string(nil), aliases...),
		Abbreviations: append([]string(nil), abbreviations...),
	}
	for _, kw := range keywords {
		def.Keywords = append(def.Keywords, strings.ToLower(kw))
	}
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return Definition{}, fmt.Errorf("conference %s: pattern %q: %w", name, p, err)
		}
		def.Patterns = append(def.Patterns, re)
	}
	for _, abbr := range def.Abbreviations {
		// whole word, optionally glued to a year: ICLR, ICLR 2025, CVPR25, NeurIPS'25
		expr := `(?i)\b` + regexp.QuoteMeta(abbr) + `(?:\s*'?\d{2,4})?\b`
		re, err := regexp.Compile(expr)
		if err != nil {
			return Definition{}, fmt.Errorf("conference %s: abbreviation %q: %w", name, abbr, err)
		}
		def.abbrevExprs = append(def.abbrevExprs, re)
	}
	return def, nil
}

// MatchesAbbreviation reports whether any abbreviation occurs as a whole word in text.
func (d Definition) MatchesAbbreviation(text string) bool {
	for _, re := range d.abbrevExprs {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// MatchesPattern reports whether any curated pattern matches text.
func (d Definition) MatchesPattern(text string) bool {
	for _, re := range d.Patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// KeywordFraction is the share of keywords found as substrings of the normalized text.
func (d Definition) KeywordFraction(text string) float64 {
	if len(d.Keywords) == 0 {
		return 0
	}
	found := 0
	for _, kw := range d.Keywords {
		if strings.Contains(text, strings.ToUpper(kw)) {
			found++
		}
	}
	return float64(found) / float64(len(d.Keywords))
}

// Registry is a read-only, ordered lookup table of venues.
type Registry struct {
	defs  []Definition
	index map[string]int
}

// NewRegistry keeps definitions in the given order; names must be unique.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{
		defs:  make([]Definition, 0, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("conference definition without name")
		}
		if _, dup := r.index[def.Name]; dup {
			return nil, fmt.Errorf("conference %s registered twice", def.Name)
		}
		r.index[def.Name] = len(r.defs)
		r.defs = append(r.defs, def)
	}
	return r, nil
}

// Lookup returns the definition registered under the canonical name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	i, ok := r.index[name]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}

// All returns the definitions in registry order.
func (r *Registry) All() []Definition {
	return append([]Definition(nil), r.defs...)
}

// Names returns canonical names in registry order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.defs))
	for i, def := range r.defs {
		names[i] = def.Name
	}
	return names
}

func (r *Registry) Len() int {
	return len(r.defs)
}

type entry struct {
	name          string
	aliases       []string
	abbreviations []string
	keywords      []string
	patterns      []string
}

// Order matters: the matcher keeps the earlier entry on equal scores.
var defaultEntries = []entry{
	{
		name:          "NeurIPS",
		aliases:       []string{"NeurIPS", "NIPS", "Neural Information Processing Systems"},
		abbreviations: []string{"NIPS", "NeurIPS"},
		keywords:      []string{"neural", "information", "processing"},
		patterns:      []string{`neur.*ips`, `nips`},
	},
	{
		name:          "ICML",
		aliases:       []string{"ICML", "International Conference on Machine Learning"},
		abbreviations: []string{"ICML"},
		keywords:      []string{"machine", "learning", "icml"},
		patterns:      []string{`icml`},
	},
	{
		name:          "ICLR",
		aliases:       []string{"ICLR", "International Conference on Learning Representations"},
		abbreviations: []string{"ICLR"},
		keywords:      []string{"learning", "representations", "iclr"},
		patterns:      []string{`iclr`},
	},
	{
		name:          "AAAI",
		aliases:       []string{"AAAI", "Association for the Advancement of Artificial Intelligence"},
		abbreviations: []string{"AAAI"},
		keywords:      []string{"aaai", "artificial", "intelligence"},
		patterns:      []string{`aaai`},
	},
	{
		name:          "CVPR",
		aliases:       []string{"CVPR", "Computer Vision and Pattern Recognition", "IEEE CVPR"},
		abbreviations: []string{"CVPR"},
		keywords:      []string{"cvpr", "computer", "vision", "pattern"},
		patterns:      []string{`cvpr`},
	},
	{
		name:          "ICCV",
		aliases:       []string{"ICCV", "International Conference on Computer Vision", "IEEE ICCV"},
		abbreviations: []string{"ICCV"},
		keywords:      []string{"iccv", "computer", "vision"},
		patterns:      []string{`iccv`},
	},
	{
		name:          "ECCV",
		aliases:       []string{"ECCV", "European Conference on Computer Vision"},
		abbreviations: []string{"ECCV"},
		keywords:      []string{"eccv", "european", "computer", "vision"},
		patterns:      []string{`eccv`},
	},
	{
		name:          "NAACL",
		aliases:       []string{"NAACL", "North American Chapter of ACL", "North American ACL"},
		abbreviations: []string{"NAACL"},
		keywords:      []string{"naacl"},
		patterns:      []string{`naacl`},
	},
	{
		name:          "ACL",
		aliases:       []string{"ACL", "Association for Computational Linguistics", "Annual Meeting of ACL"},
		abbreviations: []string{"ACL"},
		keywords:      []string{"acl", "computational", "linguistics"},
		// "acl" not preceded by "na" and not followed by "-"
		patterns: []string{`(?:^|[^a]|^a|[^n]a)acl(?:[^-]|$)`},
	},
	{
		name:          "EMNLP",
		aliases:       []string{"EMNLP", "Empirical Methods in Natural Language Processing"},
		abbreviations: []string{"EMNLP"},
		keywords:      []string{"emnlp", "empirical", "nlp"},
		patterns:      []string{`emnlp`},
	},
	{
		name: "IEEE S&P",
		aliases: []string{
			"IEEE S&P", "IEEE SP", "S&P", "Oakland", "IEEE Security and Privacy",
			"IEEE Symposium on Security and Privacy",
		},
		abbreviations: []string{"S&P", "SP", "Oakland"},
		keywords:      []string{"ieee", "s&p", "oakland", "security", "privacy"},
		patterns:      []string{`s\s*&?\s*p`, `oakland`, `ieee.*security`},
	},
	{
		name:          "USENIX Security",
		aliases:       []string{"USENIX Security", "USENIX SEC", "USENIX", "Security Symposium"},
		abbreviations: []string{"USENIX", "SEC"},
		keywords:      []string{"usenix", "security"},
		patterns:      []string{`usenix.*sec`, `security.*symp`},
	},
	{
		name: "CCS",
		aliases: []string{
			"CCS", "ACM CCS", "Computer and Communications Security",
			"Conference on Computer and Communications Security",
		},
		abbreviations: []string{"CCS"},
		keywords:      []string{"ccs", "computer", "communications", "security"},
		// "ccs" must end a word
		patterns: []string{`(?:acm\s*)?ccs(?:\W|$)`},
	},
	{
		name:          "NDSS",
		aliases:       []string{"NDSS", "Network and Distributed System Security", "NDSS Symposium"},
		abbreviations: []string{"NDSS"},
		keywords:      []string{"ndss", "network", "distributed", "security"},
		patterns:      []string{`ndss`},
	},
}

// DefaultRegistry builds the built-in table of top-tier AI, vision, NLP and security venues.
func DefaultRegistry() *Registry {
	defs := make([]Definition, 0, len(defaultEntries))
	for _, e := range defaultEntries {
		def, err := NewDefinition(e.name, e.aliases, e.abbreviations, e.keywords, e.patterns)
		if err != nil {
			panic(err)
		}
		defs = append(defs, def)
	}
	reg, err := NewRegistry(defs...)
	if err != nil {
		panic(err)
	}
	return reg
}
