package corrector

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// TSVModel loads and saves the frequency model from a tab-separated file:
// a header row, then one "word<TAB>frequency" row per word.
type TSVModel struct {
	Path string
}

var wordPattern = regexp.MustCompile(`\w+`)

// usableWord filters out rows whose first column is punctuation or a bare
// number; corpora exported from word counts tend to contain both.
func usableWord(w string) bool {
	if !wordPattern.MatchString(w) {
		return false
	}
	if _, err := strconv.Atoi(w); err == nil {
		return false
	}
	return true
}

// Load reads the model file into Stats.
func (m *TSVModel) Load() (*Stats, error) {
	file, err := os.Open(m.Path)
	if err != nil {
		return nil, fmt.Errorf("corrector: open model: %w", err)
	}
	defer file.Close()

	words := make(map[string]int)
	scanner := bufio.NewScanner(file)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false // header row
			continue
		}
		word, freqText, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		word = strings.TrimSpace(word)
		if !usableWord(word) {
			continue
		}
		freq, err := strconv.Atoi(strings.TrimSpace(freqText))
		if err != nil {
			continue
		}
		words[word] = freq
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("corrector: read model: %w", err)
	}
	return NewStats(words), nil
}

// Save writes stats back to the model file, header included.
func (m *TSVModel) Save(stats *Stats) error {
	file, err := os.Create(m.Path)
	if err != nil {
		return fmt.Errorf("corrector: save model: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	fmt.Fprintln(w, "word\tfrequency")
	for word, freq := range stats.Words() {
		fmt.Fprintf(w, "%s\t%d\n", word, freq)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("corrector: save model: %w", err)
	}
	return nil
}
