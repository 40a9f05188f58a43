package pipeline

import (
	"strings"

	goahocorasick "github.com/anknown/ahocorasick"
)

// contentFilter lower-cases content and masks banned words.
//
// Words are replaced literally in list order, each on the output of the
// previous replacement. The automaton finds the words present before the first
// replacement; later words are rechecked since a mask can complete one.
type contentFilter struct {
	words   []string
	mask    string
	matcher *goahocorasick.Machine
}

func newContentFilter(words []string, mask string) (*contentFilter, error) {
	f := &contentFilter{mask: mask}
	patterns := make([][]rune, 0, len(words))
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		w = strings.ToLower(w)
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		f.words = append(f.words, w)
		patterns = append(patterns, []rune(w))
	}
	if len(patterns) == 0 {
		return f, nil
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	f.matcher = m
	return f, nil
}

// Apply returns the filtered form of content.
func (f *contentFilter) Apply(content string) string {
	lowered := strings.ToLower(content)
	if f.matcher == nil || lowered == "" {
		return lowered
	}

	hits := f.matcher.MultiPatternSearch([]rune(lowered), false)
	if len(hits) == 0 {
		return lowered
	}
	found := make(map[string]bool, len(hits))
	for _, h := range hits {
		found[string(h.Word)] = true
	}

	changed := false
	for _, w := range f.words {
		if found[w] || (changed && strings.Contains(lowered, w)) {
			next := strings.ReplaceAll(lowered, w, f.mask)
			changed = changed || next != lowered
			lowered = next
		}
	}
	return lowered
}
