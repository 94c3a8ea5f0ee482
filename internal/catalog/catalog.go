// Package catalog holds the static bilingual word lists and answers random
// sampling queries for new rounds.
package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"alias/internal/domain"
)

// ErrCatalogCorrupt is returned when the word source cannot be parsed
var ErrCatalogCorrupt = errors.New("word catalog is corrupt")

//go:embed words.json
var embeddedWords []byte

// Source is the nested word structure: language -> difficulty -> category -> words
type Source map[string]map[string]map[string][]string

// Catalog is immutable once initialized and safe for concurrent use
type Catalog struct {
	raw []byte
	src Source

	once  sync.Once
	err   error
	words []domain.Word

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures a Catalog
type Option func(*Catalog)

// WithRand sets the random source used for shuffling
func WithRand(r *rand.Rand) Option {
	return func(c *Catalog) {
		c.rng = r
	}
}

// New returns a catalog backed by the embedded word lists
func New(opts ...Option) *Catalog {
	return newCatalog(embeddedWords, nil, opts)
}

// NewFromJSON returns a catalog backed by a JSON encoded Source
func NewFromJSON(raw []byte, opts ...Option) *Catalog {
	return newCatalog(raw, nil, opts)
}

// NewFromSource returns a catalog backed by an in-memory Source
func NewFromSource(src Source, opts ...Option) *Catalog {
	return newCatalog(nil, src, opts)
}

func newCatalog(raw []byte, src Source, opts []Option) *Catalog {
	c := &Catalog{raw: raw, src: src}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return c
}

// Initialize flattens the source into Word records with generated ids. It is
// idempotent; only the first call does any work.
func (c *Catalog) Initialize() error {
	c.once.Do(func() {
		c.words, c.err = c.load()
	})
	return c.err
}

func (c *Catalog) load() ([]domain.Word, error) {
	src := c.src
	if src == nil {
		if err := json.Unmarshal(c.raw, &src); err != nil {
			return nil, fmt.Errorf("%w: decode source: %v", ErrCatalogCorrupt, err)
		}
	}
	if len(src) == 0 {
		return nil, fmt.Errorf("%w: no languages", ErrCatalogCorrupt)
	}

	var words []domain.Word
	for _, lang := range sortedKeys(src) {
		tag, err := normalizeLanguage(lang)
		if err != nil {
			return nil, fmt.Errorf("%w: language %q: %v", ErrCatalogCorrupt, lang, err)
		}

		for _, tier := range sortedKeys(src[lang]) {
			difficulty := domain.Difficulty(tier)
			if !difficulty.IsTier() {
				return nil, fmt.Errorf("%w: language %q: unknown difficulty %q", ErrCatalogCorrupt, lang, tier)
			}

			for _, category := range sortedKeys(src[lang][tier]) {
				for i, text := range src[lang][tier][category] {
					text = strings.TrimSpace(text)
					if text == "" {
						return nil, fmt.Errorf("%w: %s/%s/%s: word %d is empty", ErrCatalogCorrupt, lang, tier, category, i)
					}
					words = append(words, domain.Word{
						ID:         uuid.NewString(),
						Text:       text,
						Language:   tag,
						Difficulty: difficulty,
						Category:   category,
					})
				}
			}
		}
	}

	return words, nil
}

// SampleRandom returns up to count distinct words matching filter, in random
// order. Fewer words are returned when the filtered pool is smaller, and none
// when nothing matches.
func (c *Catalog) SampleRandom(count int, filter domain.WordFilter) ([]domain.Word, error) {
	if count <= 0 {
		return nil, &domain.ValidationError{Field: "count", Reason: "must be a positive number"}
	}

	if err := c.Initialize(); err != nil {
		return nil, err
	}

	pool, err := c.filter(filter)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return []domain.Word{}, nil
	}

	c.shuffle(pool)

	if len(pool) > count {
		pool = pool[:count]
	}
	return pool, nil
}

// filter returns a fresh slice of the matching words
func (c *Catalog) filter(f domain.WordFilter) ([]domain.Word, error) {
	lang := ""
	if f.Language != "" {
		tag, err := normalizeLanguage(f.Language)
		if err != nil {
			return nil, &domain.ValidationError{Field: "language", Reason: err.Error()}
		}
		lang = tag
	}

	pool := make([]domain.Word, 0, len(c.words))
	for _, w := range c.words {
		if f.Difficulty != "" && f.Difficulty != domain.DifficultyMixed && w.Difficulty != f.Difficulty {
			continue
		}
		if f.Category != "" && w.Category != f.Category {
			continue
		}
		if lang != "" && w.Language != lang {
			continue
		}
		pool = append(pool, w)
	}
	return pool, nil
}

// shuffle is a Fisher-Yates shuffle in place
func (c *Catalog) shuffle(words []domain.Word) {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	for i := len(words) - 1; i > 0; i-- {
		j := c.rng.IntN(i + 1)
		words[i], words[j] = words[j], words[i]
	}
}

// Len returns the number of words in the catalog
func (c *Catalog) Len() int {
	if c.Initialize() != nil {
		return 0
	}
	return len(c.words)
}

// Languages returns the distinct language tags in the catalog
func (c *Catalog) Languages() []string {
	if c.Initialize() != nil {
		return nil
	}
	return distinct(c.words, func(w domain.Word) string { return w.Language })
}

// Categories returns the distinct categories among words matching filter.
// The filter's category field is ignored.
func (c *Catalog) Categories(f domain.WordFilter) ([]string, error) {
	if err := c.Initialize(); err != nil {
		return nil, err
	}
	f.Category = ""
	pool, err := c.filter(f)
	if err != nil {
		return nil, err
	}
	return distinct(pool, func(w domain.Word) string { return w.Category }), nil
}

// normalizeLanguage reduces a BCP 47 tag to its base language, so "en-US"
// and "en" compare equal.
func normalizeLanguage(s string) (string, error) {
	tag, err := language.Parse(s)
	if err != nil {
		return "", err
	}
	base, _ := tag.Base()
	return base.String(), nil
}

func distinct(words []domain.Word, key func(domain.Word) string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, w := range words {
		k := key(w)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
