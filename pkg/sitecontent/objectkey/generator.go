package objectkey

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Generator defines the interface for asset key generation strategies
type Generator interface {
	// GenerateKey creates a storage key for an uploaded file name
	GenerateKey(fileName string) string
}

// TimestampGenerator builds keys of the form {unixMillis}_{fileName}.
// Timestamps are strictly increasing within one generator, so two uploads of
// the same file never share a key even inside the same millisecond.
type TimestampGenerator struct {
	// Clock returns the current time (default: time.Now)
	Clock func() time.Time
	// Sanitize is applied to the file name (default: SanitizeKeyName)
	Sanitize func(string) string

	mu   sync.Mutex
	last int64
}

func NewTimestampGenerator() *TimestampGenerator {
	return &TimestampGenerator{}
}

// NewStrictGenerator returns a generator that also applies SanitizeFileName,
// for keys that become repository paths.
func NewStrictGenerator() *TimestampGenerator {
	return &TimestampGenerator{Sanitize: SanitizeFileName}
}

func (g *TimestampGenerator) GenerateKey(fileName string) string {
	clock := g.Clock
	if clock == nil {
		clock = time.Now
	}
	sanitize := g.Sanitize
	if sanitize == nil {
		sanitize = SanitizeKeyName
	}

	g.mu.Lock()
	ts := clock().UnixMilli()
	if ts <= g.last {
		ts = g.last + 1
	}
	g.last = ts
	g.mu.Unlock()

	return fmt.Sprintf("%d_%s", ts, sanitize(fileName))
}

// PrefixedGenerator places keys of the base generator under a fixed prefix
type PrefixedGenerator struct {
	Base   Generator
	Prefix string
}

func NewPrefixedGenerator(base Generator, prefix string) *PrefixedGenerator {
	return &PrefixedGenerator{Base: base, Prefix: strings.Trim(prefix, "/")}
}

func (g *PrefixedGenerator) GenerateKey(fileName string) string {
	key := g.Base.GenerateKey(fileName)
	if g.Prefix == "" {
		return key
	}
	return path.Join(g.Prefix, key)
}

// CustomFuncGenerator allows users to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(fileName string) string
}

func NewCustomFuncGenerator(fn func(fileName string) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{
		GenerateFunc: fn,
	}
}

func (g *CustomFuncGenerator) GenerateKey(fileName string) string {
	return g.GenerateFunc(fileName)
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// SanitizeFileName replaces every character outside [A-Za-z0-9.-] with '_'
func SanitizeFileName(name string) string {
	return unsafeFileChars.ReplaceAllString(name, "_")
}

// SanitizeKeyName only replaces characters that break object keys or paths
func SanitizeKeyName(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		"#", "_",
	)
	return replacer.Replace(name)
}

// NewRecommendedGenerator returns the generator used for blob uploads
func NewRecommendedGenerator() Generator {
	return NewTimestampGenerator()
}
