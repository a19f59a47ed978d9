// Package normalizer reduces free-form ingredient phrases such as
// "1 cup diced ripe tomatoes" to compact catalog query terms. The vocabulary
// (units, preparation words, purpose clauses, stop words and aliases) lives
// in rules.yaml; the code only applies it.
package normalizer

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// maxPasses bounds the fixed-point loop. Every rule either shortens the
// phrase or rewrites an alias into a non-alias, so real input settles in
// two or three passes.
const maxPasses = 8

// vulgarFractions are the single-rune fractions recipe generators emit.
const vulgarFractions = "¼½¾⅓⅔⅛⅜⅝⅞"

// Alias rewrites one word sequence into another.
type Alias struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Rules is the data that drives normalization.
type Rules struct {
	Units          []string `yaml:"units"`
	Preparation    []string `yaml:"preparation"`
	PurposeClauses []string `yaml:"purposeClauses"`
	Stopwords      []string `yaml:"stopwords"`
	Aliases        []Alias  `yaml:"aliases"`
}

// ParseRules decodes a YAML rule set.
func ParseRules(data []byte) (Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("parsing normalizer rules: %w", err)
	}
	return r, nil
}

// Normalizer applies a compiled rule set. It holds no mutable state and is
// safe for concurrent use.
type Normalizer struct {
	quantityUnit *regexp.Regexp
	bareCount    *regexp.Regexp
	preparation  *regexp.Regexp
	parenthetic  *regexp.Regexp
	purpose      *regexp.Regexp
	bullet       *regexp.Regexp
	leadingDigit *regexp.Regexp
	aliases      []Alias
	stopwords    map[string]struct{}
}

// New compiles rules into a Normalizer.
func New(rules Rules) (*Normalizer, error) {
	if len(rules.Units) == 0 {
		return nil, fmt.Errorf("normalizer rules: unit vocabulary is empty")
	}
	for _, a := range rules.Aliases {
		from, to := strings.ToLower(strings.TrimSpace(a.From)), strings.ToLower(strings.TrimSpace(a.To))
		if from == "" || to == "" {
			return nil, fmt.Errorf("normalizer rules: alias %q -> %q has an empty side", a.From, a.To)
		}
		if strings.Contains(" "+to+" ", " "+from+" ") {
			return nil, fmt.Errorf("normalizer rules: alias %q -> %q never settles", a.From, a.To)
		}
	}

	num := `(?:\d+(?:\.\d+)?(?:/\d+)?(?:\s*[` + vulgarFractions + `]|\s+\d+/\d+)?|[` + vulgarFractions + `])`
	amount := num + `(?:\s*(?:-|–|to)\s*` + num + `)?`

	n := &Normalizer{
		quantityUnit: regexp.MustCompile(`^(?:` + amount + `|an?)\s*(?:\([^)]*\)\s*)?(?:` + alternation(rules.Units) + `)\b\.?\s*(?:of\s+)?`),
		bareCount:    regexp.MustCompile(`^` + amount + `\s+`),
		preparation:  regexp.MustCompile(`\b(?:` + alternation(rules.Preparation) + `)\b`),
		parenthetic:  regexp.MustCompile(`\([^)]*\)?`),
		purpose:      regexp.MustCompile(`\b(?:` + alternation(rules.PurposeClauses) + `)\b`),
		bullet:       regexp.MustCompile(`^[-*•·]+\s*`),
		leadingDigit: regexp.MustCompile(`^[\d\s/.` + vulgarFractions + `-]+`),
		stopwords:    make(map[string]struct{}, len(rules.Stopwords)),
	}
	for _, a := range rules.Aliases {
		n.aliases = append(n.aliases, Alias{
			From: strings.ToLower(strings.TrimSpace(a.From)),
			To:   strings.ToLower(strings.TrimSpace(a.To)),
		})
	}
	for _, w := range rules.Stopwords {
		n.stopwords[strings.ToLower(w)] = struct{}{}
	}
	return n, nil
}

var defaultNormalizer = sync.OnceValue(func() *Normalizer {
	rules, err := ParseRules(defaultRules)
	if err != nil {
		panic(err)
	}
	n, err := New(rules)
	if err != nil {
		panic(err)
	}
	return n
})

// Default returns the Normalizer built from the embedded rules.yaml.
func Default() *Normalizer {
	return defaultNormalizer()
}

// Normalize returns the query term for phrase. It never returns an empty
// string for non-blank input and Normalize(Normalize(x)) == Normalize(x).
func (n *Normalizer) Normalize(phrase string) string {
	if term := n.settle(phrase); n.valid(term) {
		return term
	}
	stripped := n.leadingDigit.ReplaceAllString(strings.TrimSpace(phrase), "")
	if term := n.settle(stripped); n.valid(term) {
		return term
	}
	if len(stripped) >= 3 {
		return stripped
	}
	return phrase
}

func (n *Normalizer) settle(s string) string {
	for i := 0; i < maxPasses; i++ {
		next := n.pass(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func (n *Normalizer) pass(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = n.bullet.ReplaceAllString(s, "")

	if loc := n.quantityUnit.FindStringIndex(s); loc != nil {
		s = s[loc[1]:]
	} else if loc := n.bareCount.FindStringIndex(s); loc != nil {
		s = s[loc[1]:]
	}

	s = collapse(n.preparation.ReplaceAllString(s, " "))
	s = collapse(n.parenthetic.ReplaceAllString(s, " "))
	// Anything after the first comma is a preparation note.
	if i := strings.Index(s, ","); i > 0 {
		s = collapse(s[:i])
	}

	s = n.applyAliases(s)
	s = n.purpose.ReplaceAllString(s, " ")
	return collapse(s)
}

func (n *Normalizer) applyAliases(s string) string {
	padded := " " + s + " "
	for _, a := range n.aliases {
		padded = strings.ReplaceAll(padded, " "+a.From+" ", " "+a.To+" ")
	}
	return strings.TrimSpace(padded)
}

func (n *Normalizer) valid(term string) bool {
	if len(term) < 2 {
		return false
	}
	if term[0] >= '0' && term[0] <= '9' {
		return false
	}
	_, stop := n.stopwords[term]
	return !stop
}

// collapse squeezes runs of whitespace and trims leftover punctuation at
// either end.
func collapse(s string) string {
	return strings.Trim(strings.Join(strings.Fields(s), " "), " ,;:.-*")
}

// alternation builds a regexp alternation, longest entry first so "cups"
// wins over "cup".
func alternation(words []string) string {
	sorted := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			sorted = append(sorted, regexp.QuoteMeta(strings.ToLower(w)))
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	return strings.Join(sorted, "|")
}
