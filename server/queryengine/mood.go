package queryengine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/relivre/popcorn/plugin/ai"
	"github.com/relivre/popcorn/store"
)

// MoodSignal is a soft preference over mood vocabulary tags. Want boosts,
// Avoid never filters; both only shift ranking.
type MoodSignal struct {
	Want  []string
	Avoid []string
}

func (s MoodSignal) empty() bool {
	return len(s.Want) == 0 && len(s.Avoid) == 0
}

// negationWindow is how many runes before a matched mood surface form a
// negation marker still flips the match into an avoid. Wide enough for
// "不要" plus a particle, narrow enough that an unrelated earlier clause
// does not leak in.
const negationWindow = 6

// InferMood resolves mood preferences through a three-stage cascade:
// direct vocabulary/synonym matching, then the heuristic phrase table,
// then a remote classification. Each stage runs only when the previous
// one produced nothing, so the remote call is the rare path. The
// returned error only ever comes from the remote stage and the signal is
// always usable.
func (t *Tables) InferMood(ctx context.Context, svc ai.TextService, text string) (MoodSignal, error) {
	q := normalizeFreeText(text)
	if q == "" {
		return MoodSignal{}, nil
	}

	if signal := t.directMoodMatch(q); !signal.empty() {
		return signal, nil
	}
	if signal := t.heuristicMood(q); !signal.empty() {
		return signal, nil
	}
	if svc == nil || !matchesAny(q, t.moodGate) {
		return MoodSignal{}, nil
	}
	return t.classifyMoodRemote(ctx, svc, text)
}

// directMoodMatch scans for vocabulary tags and their synonym surface
// forms. A negation marker shortly before the match flips it to avoid.
func (t *Tables) directMoodMatch(q string) MoodSignal {
	want := make(map[string]bool)
	avoid := make(map[string]bool)

	for _, tag := range store.MoodVocabulary {
		forms := append([]string{tag}, t.MoodSynonyms[tag]...)
		for _, form := range forms {
			idx := strings.Index(q, strings.ToLower(form))
			if idx < 0 {
				continue
			}
			if t.negatedBefore(q, idx) {
				avoid[tag] = true
			} else {
				want[tag] = true
			}
			break
		}
	}
	// A tag both wanted and avoided would be contradictory; honor the
	// negation.
	for tag := range avoid {
		delete(want, tag)
	}

	return MoodSignal{Want: sortedKeys(want), Avoid: sortedKeys(avoid)}
}

// negatedBefore reports whether a negation marker appears in the few
// runes immediately preceding position idx.
func (t *Tables) negatedBefore(q string, idx int) bool {
	window := []rune(q[:idx])
	if len(window) > negationWindow {
		window = window[len(window)-negationWindow:]
	}
	prefix := string(window)
	for _, marker := range t.NegationMarkers {
		if strings.Contains(prefix, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

func (t *Tables) heuristicMood(q string) MoodSignal {
	want := make(map[string]bool)
	avoid := make(map[string]bool)
	for i := range t.MoodHeuristics {
		rule := &t.MoodHeuristics[i]
		if !matchesAny(q, rule.phrases) {
			continue
		}
		for _, tag := range rule.Want {
			want[tag] = true
		}
		for _, tag := range rule.Avoid {
			avoid[tag] = true
		}
	}
	for tag := range avoid {
		delete(want, tag)
	}
	return MoodSignal{Want: sortedKeys(want), Avoid: sortedKeys(avoid)}
}

const moodClassifyPromptTemplate = `You label movie-search queries with mood tags.

Allowed tags: %s

Return ONLY a JSON object of the form {"want": [...], "avoid": [...]}.
Use only allowed tags, at most 5 per array. Use empty arrays when the
query carries no mood.

Query: %s`

// classifyMoodRemote asks the language model for a mood labeling. The
// reply is treated as untrusted: anything that does not parse into
// vocabulary tags degrades to an empty signal rather than an error.
func (t *Tables) classifyMoodRemote(ctx context.Context, svc ai.TextService, text string) (MoodSignal, error) {
	prompt := fmt.Sprintf(moodClassifyPromptTemplate, strings.Join(store.MoodVocabulary, ", "), text)
	reply, err := svc.Complete(ctx, prompt)
	if err != nil {
		return MoodSignal{}, errors.Wrap(err, "mood classification failed")
	}
	return parseMoodReply(reply), nil
}

func parseMoodReply(reply string) MoodSignal {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return MoodSignal{}
	}

	var parsed struct {
		Want  []string `json:"want"`
		Avoid []string `json:"avoid"`
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &parsed); err != nil {
		return MoodSignal{}
	}

	keep := func(tags []string) []string {
		var out []string
		for _, tag := range tags {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if store.IsMoodTag(tag) {
				out = append(out, tag)
			}
		}
		out = dedupe(out)
		// A verbose model is not allowed to widen the signal beyond the
		// per-record tag budget.
		if len(out) > store.MoodTagCount {
			out = out[:store.MoodTagCount]
		}
		return out
	}
	return MoodSignal{Want: keep(parsed.Want), Avoid: keep(parsed.Avoid)}
}
