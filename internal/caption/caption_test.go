package caption

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGenerator() *Generator {
	return NewGenerator(Config{
		HashtagPool: []string{"#motivation", "#grind", "#success", "#mindset", "#hustle"},
		BrandTags:   []string{"#viralbot"},
		MinHashtags: 2,
		MaxHashtags: 4,
	})
}

func TestGenerate_DeterministicForSeed(t *testing.T) {
	g := testGenerator()

	c1, t1, h1 := g.Generate(rand.New(rand.NewSource(42)))
	c2, t2, h2 := g.Generate(rand.New(rand.NewSource(42)))

	assert.Equal(t, c1, c2)
	assert.Equal(t, t1, t2)
	assert.Equal(t, h1, h2)
}

func TestGenerate_SeedsDiverge(t *testing.T) {
	g := testGenerator()

	seen := make(map[string]bool)
	for seed := int64(0); seed < 20; seed++ {
		c, _, _ := g.Generate(rand.New(rand.NewSource(seed)))
		seen[c] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestGenerate_KnownCaptionType(t *testing.T) {
	g := testGenerator()

	for seed := int64(0); seed < 50; seed++ {
		_, captionType, _ := g.Generate(rand.New(rand.NewSource(seed)))
		assert.Contains(t, templateTypes, captionType)
	}
}

func TestGenerate_HashtagCountBounds(t *testing.T) {
	g := testGenerator()

	for seed := int64(0); seed < 50; seed++ {
		_, _, hashtags := g.Generate(rand.New(rand.NewSource(seed)))
		tags := strings.Fields(hashtags)

		// Up to one brand tag on top of the configured range.
		assert.GreaterOrEqual(t, len(tags), 2)
		assert.LessOrEqual(t, len(tags), 5)
		for _, tag := range tags {
			assert.True(t, strings.HasPrefix(tag, "#"), "tag %q", tag)
		}
	}
}

func TestGenerate_HashtagsNoDuplicatesFromPool(t *testing.T) {
	g := testGenerator()

	for seed := int64(0); seed < 50; seed++ {
		_, _, hashtags := g.Generate(rand.New(rand.NewSource(seed)))
		tags := strings.Fields(hashtags)

		seen := make(map[string]bool)
		for _, tag := range tags {
			assert.False(t, seen[tag], "duplicate tag %q", tag)
			seen[tag] = true
		}
	}
}

func TestGenerate_CaptionEndsWithHashtags(t *testing.T) {
	g := testGenerator()

	caption, _, hashtags := g.Generate(rand.New(rand.NewSource(7)))

	require.NotEmpty(t, hashtags)
	assert.True(t, strings.HasSuffix(caption, "\n\n"+hashtags))
}
