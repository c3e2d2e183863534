package objectkey

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTimestampGenerator(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	gen := &TimestampGenerator{Clock: fixedClock(now)}

	tests := []struct {
		name     string
		fileName string
		expected string
	}{
		{
			name:     "plain name",
			fileName: "photo.jpg",
			expected: "1700000000123_photo.jpg",
		},
		{
			name:     "keeps spaces",
			fileName: "my photo.jpg",
			expected: "1700000000124_my photo.jpg",
		},
		{
			name:     "replaces separators",
			fileName: "a/b\\c.png",
			expected: "1700000000125_a_b_c.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, gen.GenerateKey(tt.fileName))
		})
	}
}

func TestTimestampGenerator_SameFileTwice(t *testing.T) {
	gen := &TimestampGenerator{Clock: fixedClock(time.UnixMilli(42))}

	first := gen.GenerateKey("photo.jpg")
	second := gen.GenerateKey("photo.jpg")

	assert.NotEqual(t, first, second)
	assert.Equal(t, "42_photo.jpg", first)
	assert.Equal(t, "43_photo.jpg", second)
}

func TestStrictGenerator(t *testing.T) {
	gen := NewStrictGenerator()
	gen.Clock = fixedClock(time.UnixMilli(1000))

	assert.Equal(t, "1000_caff__latte_2024_.jpg", gen.GenerateKey("caffè latte(2024).jpg"))
}

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"photo.jpg":        "photo.jpg",
		"My Photo.JPG":     "My_Photo.JPG",
		"../etc/passwd":    ".._etc_passwd",
		"a-b.c-d.png":      "a-b.c-d.png",
		"ciao@mondo!.webp": "ciao_mondo_.webp",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFileName(in), in)
	}
}

func TestPrefixedGenerator(t *testing.T) {
	base := NewCustomFuncGenerator(func(name string) string { return "k_" + name })

	gen := NewPrefixedGenerator(base, "/uploads/")
	assert.Equal(t, "uploads/k_a.png", gen.GenerateKey("a.png"))

	bare := NewPrefixedGenerator(base, "")
	assert.Equal(t, "k_a.png", bare.GenerateKey("a.png"))
}

func TestRecommendedGenerator(t *testing.T) {
	key := NewRecommendedGenerator().GenerateKey("x.jpg")
	parts := strings.SplitN(key, "_", 2)
	assert.Len(t, parts, 2)
	assert.Equal(t, "x.jpg", parts[1])
	assert.NotEmpty(t, parts[0])
}
