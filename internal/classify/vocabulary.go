package classify

import (
	_ "embed"
	"os"
	"slices"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed banks.yaml
var defaultBanksYAML []byte

type vocabularyFile struct {
	Banks []string `yaml:"banks"`
}

// Vocabulary is the suggested list of bank names. It is a hint for the
// classifier and the grouping key for the summary, never a closed set.
type Vocabulary struct {
	names     []string
	byFold    map[string]string
	threshold float64
}

// LoadVocabulary reads a YAML bank list from path, or the embedded list when
// path is empty. threshold enables Jaro-Winkler matching in Canonical when
// above zero.
func LoadVocabulary(path string, threshold float64) (*Vocabulary, error) {
	if path == "" {
		return ParseVocabulary(defaultBanksYAML, threshold)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "classify: read vocabulary %s", path)
	}
	return ParseVocabulary(data, threshold)
}

// ParseVocabulary decodes a `banks: [...]` YAML document.
func ParseVocabulary(data []byte, threshold float64) (*Vocabulary, error) {
	var f vocabularyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "classify: parse vocabulary")
	}
	return NewVocabulary(f.Banks, threshold), nil
}

// NewVocabulary builds a vocabulary from names. Blank names and case-folded
// duplicates are dropped; the first spelling wins.
func NewVocabulary(names []string, threshold float64) *Vocabulary {
	v := &Vocabulary{
		byFold:    make(map[string]string, len(names)),
		threshold: threshold,
	}
	for _, n := range names {
		n = collapseSpace(n)
		if n == "" {
			continue
		}
		key := fold(n)
		if _, dup := v.byFold[key]; dup {
			continue
		}
		v.byFold[key] = n
		v.names = append(v.names, n)
	}
	return v
}

// Names returns the vocabulary in file order.
func (v *Vocabulary) Names() []string {
	return slices.Clone(v.names)
}

// Len returns the number of names.
func (v *Vocabulary) Len() int {
	return len(v.names)
}

// Canonical maps a classifier-returned name onto the vocabulary spelling.
// Names that match no entry are returned trimmed but otherwise verbatim.
func (v *Vocabulary) Canonical(name string) string {
	name = collapseSpace(name)
	if name == "" {
		return name
	}
	key := fold(name)
	if c, ok := v.byFold[key]; ok {
		return c
	}
	if v.threshold <= 0 {
		return name
	}

	var (
		best      string
		bestScore float64
	)
	for k, c := range v.byFold {
		score := matchr.JaroWinkler(key, k, false)
		if score > bestScore || (score == bestScore && c < best) {
			best, bestScore = c, score
		}
	}
	if bestScore >= v.threshold {
		return best
	}
	return name
}

func fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
