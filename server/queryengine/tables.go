package queryengine

import (
	_ "embed"
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"go.yaml.in/yaml/v3"

	"github.com/relivre/popcorn/store"
)

//go:embed keywords.yaml
var embeddedKeywordTables []byte

// matcher is one include pattern: either a literal substring or a
// compiled regular expression (entries prefixed "re:").
type matcher struct {
	literal string
	re      *regexp.Regexp
}

func (m matcher) matches(text string) bool {
	if m.re != nil {
		return m.re.MatchString(text)
	}
	return strings.Contains(text, m.literal)
}

func compileMatchers(patterns []string) ([]matcher, error) {
	out := make([]matcher, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if expr, ok := strings.CutPrefix(p, "re:"); ok {
			re, err := regexp.Compile("(?i)" + expr)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid pattern %q", p)
			}
			out = append(out, matcher{re: re})
			continue
		}
		out = append(out, matcher{literal: strings.ToLower(p)})
	}
	return out, nil
}

func matchesAny(text string, ms []matcher) bool {
	for _, m := range ms {
		if m.matches(text) {
			return true
		}
	}
	return false
}

// GenreRule maps query patterns onto a canonical genre key and the
// catalog tokens used for lexical boosting.
type GenreRule struct {
	Key     string   `yaml:"key"`
	Include []string `yaml:"include"`
	Tokens  []string `yaml:"tokens"`

	include []matcher
}

// LanguageRule maps query patterns onto a target spoken-language code.
type LanguageRule struct {
	Code     string   `yaml:"code"`
	Keywords []string `yaml:"keywords"`
	Lexical  []string `yaml:"lexical"`

	keywords []matcher
}

// HeuristicRule maps broader sentiment phrases onto mood tag sets.
type HeuristicRule struct {
	Phrases []string `yaml:"phrases"`
	Want    []string `yaml:"want"`
	Avoid   []string `yaml:"avoid"`

	phrases []matcher
}

// Tables holds the multilingual keyword configuration driving hint
// extraction. Tables are data, not code: they ship embedded but can be
// overridden by file for independent versioning.
type Tables struct {
	Genres          []GenreRule         `yaml:"genres"`
	Languages       []LanguageRule      `yaml:"languages"`
	Animation       []string            `yaml:"animation"`
	LightWant       []string            `yaml:"light_want"`
	LightExcludes   []string            `yaml:"light_excludes"`
	Negations       map[string][]string `yaml:"negations"`
	NegationMarkers []string            `yaml:"negation_markers"`
	MoodSynonyms    map[string][]string `yaml:"mood_synonyms"`
	MoodHeuristics  []HeuristicRule     `yaml:"mood_heuristics"`
	MoodGate        []string            `yaml:"mood_gate"`
	Expansions      map[string][]string `yaml:"expansions"`

	animation []matcher
	lightWant []matcher
	negations map[string][]matcher
	moodGate  []matcher
}

// LoadTables parses and compiles the keyword tables. An empty path loads
// the embedded default configuration.
func LoadTables(path string) (*Tables, error) {
	raw := embeddedKeywordTables
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read keyword tables: %s", path)
		}
	}

	var tables Tables
	if err := yaml.Unmarshal(raw, &tables); err != nil {
		return nil, errors.Wrap(err, "failed to parse keyword tables")
	}
	if err := tables.compile(); err != nil {
		return nil, err
	}
	return &tables, nil
}

// compile pre-compiles all pattern lists and validates that mood tables
// only reference vocabulary tags. Bad configuration fails startup rather
// than silently corrupting hints.
func (t *Tables) compile() error {
	var err error

	for i := range t.Genres {
		if t.Genres[i].Key == "" {
			return errors.New("genre rule without key")
		}
		if t.Genres[i].include, err = compileMatchers(t.Genres[i].Include); err != nil {
			return errors.Wrapf(err, "genre %q", t.Genres[i].Key)
		}
	}
	for i := range t.Languages {
		if t.Languages[i].keywords, err = compileMatchers(t.Languages[i].Keywords); err != nil {
			return errors.Wrapf(err, "language %q", t.Languages[i].Code)
		}
	}
	if t.animation, err = compileMatchers(t.Animation); err != nil {
		return errors.Wrap(err, "animation")
	}
	if t.lightWant, err = compileMatchers(t.LightWant); err != nil {
		return errors.Wrap(err, "light_want")
	}
	if t.moodGate, err = compileMatchers(t.MoodGate); err != nil {
		return errors.Wrap(err, "mood_gate")
	}

	t.negations = make(map[string][]matcher, len(t.Negations))
	for genre, phrases := range t.Negations {
		if t.negations[genre], err = compileMatchers(phrases); err != nil {
			return errors.Wrapf(err, "negations for %q", genre)
		}
	}

	for tag := range t.MoodSynonyms {
		if !store.IsMoodTag(tag) {
			return errors.Errorf("mood synonym key %q is not in the vocabulary", tag)
		}
	}
	for i := range t.MoodHeuristics {
		rule := &t.MoodHeuristics[i]
		if rule.phrases, err = compileMatchers(rule.Phrases); err != nil {
			return errors.Wrapf(err, "mood heuristic %d", i)
		}
		for _, tag := range append(append([]string{}, rule.Want...), rule.Avoid...) {
			if !store.IsMoodTag(tag) {
				return errors.Errorf("mood heuristic %d references unknown tag %q", i, tag)
			}
		}
	}

	return nil
}
