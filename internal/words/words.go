// Package words manages the vocabulary that login challenges are drawn from.
package words

import (
	"bufio"
	crand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	// ErrSampleSize is returned when fewer than two words are requested.
	ErrSampleSize = errors.New("number of sampled words must be greater than 1")

	// ErrTooMany is returned when more words are requested than the vocabulary holds.
	ErrTooMany = errors.New("not enough words in the vocabulary")

	// ErrEmpty is returned when the words file holds no usable line.
	ErrEmpty = errors.New("vocabulary is empty")
)

// Option configures a Manager.
type Option func(*Manager)

// WithSource replaces the random source, mainly for deterministic tests.
func WithSource(src rand.Source) Option {
	return func(m *Manager) {
		m.rng = rand.New(src)
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(log *logrus.Entry) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// Manager samples distinct random words from a fixed vocabulary.
// It is safe for concurrent use.
type Manager struct {
	words []string
	log   *logrus.Entry

	mu  sync.Mutex
	rng *rand.Rand
}

// Load reads a words file holding one word per line.
func Load(path string, opts ...Option) (*Manager, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s must be a regular file", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Parse(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.log.Debugf("Read words file %s: %d words in the dictionary", path, len(m.words))
	return m, nil
}

// Parse reads a vocabulary from r. Blank lines are skipped and duplicates
// are kept once, in the order they first appear.
func Parse(r io.Reader, opts ...Option) (*Manager, error) {
	seen := make(map[string]struct{})
	var list []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		list = append(list, word)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return New(list, opts...)
}

// New creates a Manager over an in-memory word list. The list must already be
// free of duplicates.
func New(list []string, opts ...Option) (*Manager, error) {
	if len(list) == 0 {
		return nil, ErrEmpty
	}

	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("seed word sampler: %w", err)
	}

	m := &Manager{
		words: append([]string(nil), list...),
		log:   logrus.NewEntry(logrus.StandardLogger()),
		rng:   rand.New(rand.NewChaCha8(seed)),
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Sample returns n distinct words chosen uniformly at random.
func (m *Manager) Sample(n int) ([]string, error) {
	if n <= 1 {
		return nil, ErrSampleSize
	}
	if n > len(m.words) {
		return nil, fmt.Errorf("%w: requested %d, have %d", ErrTooMany, n, len(m.words))
	}

	// Partial Fisher-Yates over a copy.
	pool := append([]string(nil), m.words...)

	m.mu.Lock()
	for i := 0; i < n; i++ {
		j := i + m.rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	m.mu.Unlock()

	sampled := pool[:n:n]
	m.log.Debugf("Sampled words: %s", strings.Join(sampled, ", "))
	return sampled, nil
}

// Len returns the vocabulary size.
func (m *Manager) Len() int {
	return len(m.words)
}

// Words returns a copy of the vocabulary.
func (m *Manager) Words() []string {
	return append([]string(nil), m.words...)
}
