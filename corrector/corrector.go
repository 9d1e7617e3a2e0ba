// Package corrector implements a Norvig-style spelling corrector over a
// word-frequency model. SpellCheck is pure and deterministic; persistence
// and hot reload live in the model loader and watcher.
package corrector

import (
	"sort"
	"sync"
)

// Stats is a word-frequency collection plus the alphabet derived from it.
type Stats struct {
	words   map[string]int
	letters []rune
	total   int
}

func NewStats(words map[string]int) *Stats {
	seen := map[rune]bool{}
	var letters []rune
	total := 0
	for word, freq := range words {
		total += freq
		for _, r := range word {
			if !seen[r] {
				seen[r] = true
				letters = append(letters, r)
			}
		}
	}
	sort.Slice(letters, func(i, j int) bool { return letters[i] < letters[j] })
	return &Stats{words: words, letters: letters, total: total}
}

// Freq returns the absolute frequency of word, zero when unknown.
func (s *Stats) Freq(word string) int { return s.words[word] }

// Known reports whether word appears in the model.
func (s *Stats) Known(word string) bool {
	_, ok := s.words[word]
	return ok
}

// Len is the number of distinct words.
func (s *Stats) Len() int { return len(s.words) }

// Total is the size of the corpus the model was built from, not the number
// of distinct words.
func (s *Stats) Total() int { return s.total }

func (s *Stats) add(word string) {
	s.words[word]++
	s.total++
	for _, r := range word {
		if !containsRune(s.letters, r) {
			s.letters = append(s.letters, r)
		}
	}
}

// Words returns a copy of the frequency map, for persisting.
func (s *Stats) Words() map[string]int {
	out := make(map[string]int, len(s.words))
	for w, f := range s.words {
		out[w] = f
	}
	return out
}

func containsRune(rs []rune, r rune) bool {
	for _, x := range rs {
		if x == r {
			return true
		}
	}
	return false
}

// Saver persists the model after a word is added.
type Saver interface {
	Save(*Stats) error
}

// Norvig ranks correction candidates by model frequency, preferring known
// words, then edit distance 1, then 2.
type Norvig struct {
	mu    sync.RWMutex
	stats *Stats
	saver Saver
}

func NewNorvig(stats *Stats, saver Saver) *Norvig {
	return &Norvig{stats: stats, saver: saver}
}

// SpellCheck returns correction candidates for word, best first. A known
// word is its own (only) candidate. When nothing within edit distance 2 is
// known, the word itself comes back unchanged.
func (n *Norvig) SpellCheck(word string) []string {
	n.mu.RLock()
	stats := n.stats
	n.mu.RUnlock()

	candidates := n.candidates(stats, word)
	sort.SliceStable(candidates, func(i, j int) bool {
		return stats.Freq(candidates[i]) > stats.Freq(candidates[j])
	})
	return candidates
}

// AddWord registers word in the model and persists the change.
func (n *Norvig) AddWord(word string) error {
	n.mu.Lock()
	n.stats.add(word)
	stats := n.stats
	n.mu.Unlock()

	if n.saver == nil {
		return nil
	}
	return n.saver.Save(stats)
}

// ReplaceStats swaps in a freshly loaded model. Used by the file watcher
// when the model changes on disk.
func (n *Norvig) ReplaceStats(stats *Stats) {
	n.mu.Lock()
	n.stats = stats
	n.mu.Unlock()
}

func (n *Norvig) candidates(stats *Stats, word string) []string {
	if stats.Known(word) {
		return []string{word}
	}
	if known := knownOf(stats, edits1(word, stats.letters)); len(known) > 0 {
		return known
	}

	var twoAway []string
	seen := map[string]bool{}
	for _, e1 := range edits1(word, stats.letters) {
		for _, e2 := range edits1(e1, stats.letters) {
			if stats.Known(e2) && !seen[e2] {
				seen[e2] = true
				twoAway = append(twoAway, e2)
			}
		}
	}
	if len(twoAway) > 0 {
		return twoAway
	}
	return []string{word}
}

func knownOf(stats *Stats, words []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, w := range words {
		if stats.Known(w) && !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

// edits1 generates every string one edit away from word: deletes,
// adjacent transposes, replaces, and inserts over the model alphabet.
func edits1(word string, letters []rune) []string {
	runes := []rune(word)
	out := make([]string, 0, len(runes)*(2*len(letters)+2)+len(letters))

	for i := 0; i <= len(runes); i++ {
		left, right := runes[:i], runes[i:]

		if len(right) > 0 {
			out = append(out, string(left)+string(right[1:]))
		}
		if len(right) > 1 {
			out = append(out, string(left)+string(right[1])+string(right[0])+string(right[2:]))
		}
		for _, c := range letters {
			if len(right) > 0 {
				out = append(out, string(left)+string(c)+string(right[1:]))
			}
			out = append(out, string(left)+string(c)+string(right))
		}
	}
	return out
}
