package anonymizer

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/zeebo/xxh3"
)

// StyleGithub names look like GitHub's suggested repository names: an
// adjective and a noun joined by a hyphen, e.g. "happy-fox".
const StyleGithub = "github"

// Namer produces synthetic tokens for scrubbed fields.
type Namer interface {
	Name(style string) (string, error)
}

// ConfigError reports a malformed rule, such as an unsupported style.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Msg
}

// ValidateStyle checks that style is one the synthesizer supports
func ValidateStyle(style string) error {
	if style != StyleGithub {
		return &ConfigError{Msg: fmt.Sprintf("unsupported name style: %q", style)}
	}
	return nil
}

// WordNamer picks words uniformly, with replacement, from fixed lists.
// It is not safe for concurrent use; each table task gets its own.
type WordNamer struct {
	words Words
	faker *gofakeit.Faker
}

// NewWordNamer returns a namer drawing from words. A zero seed yields a
// randomly seeded generator.
func NewWordNamer(words Words, seed uint64) *WordNamer {
	return &WordNamer{words: words, faker: gofakeit.New(seed)}
}

// TableSeed derives the generator seed for one table so that output does not
// depend on the order in which tables are scheduled. Zero stays zero.
func TableSeed(seed uint64, table string) uint64 {
	if seed == 0 {
		return 0
	}
	derived := seed ^ xxh3.HashString(table)
	if derived == 0 {
		derived = seed
	}
	return derived
}

// Name returns a new token in the given style
func (n *WordNamer) Name(style string) (string, error) {
	switch style {
	case StyleGithub:
		if len(n.words.Adjectives) == 0 {
			return "", fmt.Errorf("no adjectives available")
		}
		if len(n.words.Nouns) == 0 {
			return "", fmt.Errorf("no nouns available")
		}
		adj := n.faker.RandomString(n.words.Adjectives)
		noun := n.faker.RandomString(n.words.Nouns)
		return adj + "-" + noun, nil
	default:
		return "", ValidateStyle(style)
	}
}
