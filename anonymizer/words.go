package anonymizer

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
)

// fallbackWordCount is how many words are generated when a list is missing.
const fallbackWordCount = 64

// Words holds the candidate tokens for github-style names.
type Words struct {
	Adjectives []string
	Nouns      []string

	// Generated names the list files that were missing or empty and were
	// replaced by generated words.
	Generated []string
}

// LoadWords reads the adjective and noun lists, one word per line. A list
// that is missing or empty is replaced with words from faker so synthesis
// never runs on an empty list.
func LoadWords(adjectivesFile, nounsFile string, faker *gofakeit.Faker) (Words, error) {
	var words Words

	adjectives, err := readWordList(adjectivesFile)
	if err != nil {
		return words, err
	}
	if len(adjectives) == 0 {
		adjectives = generateWords(faker.Adjective)
		words.Generated = append(words.Generated, adjectivesFile)
	}

	nouns, err := readWordList(nounsFile)
	if err != nil {
		return words, err
	}
	if len(nouns) == 0 {
		nouns = generateWords(faker.Noun)
		words.Generated = append(words.Generated, nounsFile)
	}

	words.Adjectives = adjectives
	words.Nouns = nouns
	return words, nil
}

// readWordList returns the non-blank lines of path; a missing file is an
// empty list, not an error.
func readWordList(path string) ([]string, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open word list: %w", err)
	}
	defer file.Close()

	var words []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" {
			continue
		}
		words = append(words, word)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading word list %s: %w", path, err)
	}
	return words, nil
}

func generateWords(gen func() string) []string {
	seen := make(map[string]bool, fallbackWordCount)
	words := make([]string, 0, fallbackWordCount)
	for attempts := 0; len(words) < fallbackWordCount && attempts < fallbackWordCount*10; attempts++ {
		// generated words never contain the name separator
		w := strings.ToLower(strings.ReplaceAll(gen(), " ", "_"))
		w = strings.ReplaceAll(w, "-", "_")
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	return words
}
