package queryengine

import (
	"sort"
	"strings"
)

// Hints are the structured signals derived from query text. Language and
// animation are hard constraints; genres split into required and
// excluded sets; mood preferences and lexical terms only adjust ranking.
type Hints struct {
	// WantLang is the target spoken-language code, empty when no
	// language intent was detected.
	WantLang string

	WantsJapanese  bool
	WantsKorean    bool
	WantsEnglish   bool
	WantsAnimation bool

	RequiredGenres []string
	ExcludedGenres []string

	MoodWant  []string
	MoodAvoid []string

	// LexicalTerms are boost tokens matched against a candidate's
	// searchable text.
	LexicalTerms []string

	// ExpandedQuery is the text sent to embedding: the effective query
	// plus English keyword expansions for detected intents. Lexical
	// boosting keeps using LexicalTerms, not this.
	ExpandedQuery string
}

// QueryContext is everything the engine derived from one raw query.
// Created fresh per request, never persisted.
type QueryContext struct {
	// Original is the normalized raw query.
	Original string
	// English is the effective (translated) text; equals Original for
	// English input.
	English string
	// DetectedLanguage is the source language reported by translation,
	// empty when translation was skipped.
	DetectedLanguage string

	Hints Hints
}

// genreIntents is the outcome of genre table matching.
type genreIntents struct {
	required     []string
	excluded     []string
	lexicalTerms []string
}

// detectGenreIntents matches the genre tables against the query text and
// derives inclusion, exclusion, and lexical boost tokens.
func (t *Tables) detectGenreIntents(text string) genreIntents {
	q := normalizeFreeText(text)
	if q == "" {
		return genreIntents{}
	}

	required := make(map[string]bool)
	for _, g := range t.Genres {
		if matchesAny(q, g.include) {
			required[g.Key] = true
		}
	}

	excluded := make(map[string]bool)
	for genre, phrases := range t.negations {
		if matchesAny(q, phrases) {
			excluded[genre] = true
		}
	}
	if matchesAny(q, t.lightWant) {
		// Explicit positive intent wins over the general "light" signal:
		// a genre the user asked for is never excluded by it. Explicit
		// negations above are different, they always win.
		for _, genre := range t.LightExcludes {
			if !required[genre] {
				excluded[genre] = true
			}
		}
	}

	// A negation phrase also satisfies the genre's inclusion patterns
	// ("不要恐怖" contains "恐怖"); exclusion wins there.
	for genre := range excluded {
		delete(required, genre)
	}

	terms := make(map[string]bool)
	for _, g := range t.Genres {
		if !required[g.Key] {
			continue
		}
		for _, tok := range g.Tokens {
			terms[strings.ToLower(tok)] = true
		}
	}

	return genreIntents{
		required:     sortedKeys(required),
		excluded:     sortedKeys(excluded),
		lexicalTerms: sortedKeys(terms),
	}
}

// buildHints derives all deterministic hints from the (original,
// translated) text pair. Mood inference is layered on separately because
// its final stage may call out remotely.
func (t *Tables) buildHints(original, english string) Hints {
	// Match against both texts: CJK patterns fire on the original,
	// English patterns on the translation.
	combined := normalizeFreeText(original + " " + english)

	var hints Hints

	for _, lang := range t.Languages {
		if matchesAny(combined, lang.keywords) {
			hints.WantLang = lang.Code
			break
		}
	}
	hints.WantsJapanese = hints.WantLang == "ja"
	hints.WantsKorean = hints.WantLang == "ko"
	hints.WantsEnglish = hints.WantLang == "en"

	hints.WantsAnimation = matchesAny(combined, t.animation)

	intents := t.detectGenreIntents(combined)
	hints.RequiredGenres = intents.required
	hints.ExcludedGenres = intents.excluded

	terms := make(map[string]bool)
	for _, term := range intents.lexicalTerms {
		terms[term] = true
	}
	if hints.WantLang != "" {
		for _, lang := range t.Languages {
			if lang.Code != hints.WantLang {
				continue
			}
			for _, term := range lang.Lexical {
				terms[strings.ToLower(term)] = true
			}
		}
	}
	if hints.WantsAnimation {
		terms["animation"] = true
		terms["anime"] = true
	}
	hints.LexicalTerms = sortedKeys(terms)

	hints.ExpandedQuery = t.expandQuery(english, original, &hints)

	return hints
}

// expandQuery appends English expansion tokens for detected intents to
// the effective text. Short CJK queries embed poorly on their own; a few
// English anchors markedly improve recall.
func (t *Tables) expandQuery(english, original string, hints *Hints) string {
	base := NormalizeQueryText(english)
	if base == "" {
		base = NormalizeQueryText(original)
	}

	have := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(base)) {
		have[tok] = true
	}

	var extra []string
	appendExpansion := func(key string) {
		for _, tok := range t.Expansions[key] {
			if tok != "" && !have[strings.ToLower(tok)] {
				extra = append(extra, tok)
			}
		}
	}

	if hints.WantLang != "" {
		appendExpansion("lang:" + hints.WantLang)
	}
	if hints.WantsAnimation {
		appendExpansion("animation")
	}
	for _, genre := range hints.RequiredGenres {
		appendExpansion("genre:" + genre)
	}

	if len(extra) == 0 {
		return base
	}
	return base + " " + strings.Join(dedupe(extra), " ")
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
