// Package caption synthesizes captions and hashtag sets for posts.
//
// All randomness flows through an injected *rand.Rand so a fixed seed
// produces a fixed caption, which the attempt tests rely on.
package caption

import (
	"math/rand"
	"strings"
)

var templates = map[string][]string{
	"cta": {
		"Double tap if you agree 💯",
		"Tag someone who needs this 👇",
		"RT if this resonates 🔄",
		"Send this to your bestie 💌",
		"Share if you relate 🤝",
	},
	"question": {
		"Thoughts? 🤔",
		"Facts or facts? 💭",
		"Who else? 🙋",
		"Am I right? 🎯",
		"Agree or nah? 🤷",
	},
	"statement": {
		"This hits different ✨",
		"Your daily reminder 📌",
		"Needed to see this today 🎯",
		"Big mood 😌",
		"The energy we need 🔥",
	},
	"save": {
		"Save this for later 💾",
		"Screenshot this 📸",
		"Keep this one 🔖",
		"Don't scroll past this 🛑",
		"You'll need this 💡",
	},
	"funny": {
		"No cap 😂",
		"This is too real 💀",
		"Why is this so accurate 🤣",
		"I felt that 😭",
		"Not me doing this 🙈",
	},
}

// templateTypes in fixed order so template choice is stable per seed.
var templateTypes = []string{"cta", "question", "statement", "save", "funny"}

var extraEmojis = []string{"🔥", "💪", "⚡", "🚀", "💡", "🎨", "🌟", "✨", "👀", "💯"}

const (
	extraEmojiChance = 0.3
	brandTagChance   = 0.4
)

type Generator struct {
	hashtagPool []string
	brandTags   []string
	minHashtags int
	maxHashtags int
}

type Config struct {
	HashtagPool []string
	BrandTags   []string
	MinHashtags int
	MaxHashtags int
}

func NewGenerator(cfg Config) *Generator {
	return &Generator{
		hashtagPool: cfg.HashtagPool,
		brandTags:   cfg.BrandTags,
		minHashtags: cfg.MinHashtags,
		maxHashtags: cfg.MaxHashtags,
	}
}

// Generate returns the full caption text (template, optional emoji, blank
// line, hashtags), the template family it was drawn from, and the hashtag
// line on its own.
func (g *Generator) Generate(rng *rand.Rand) (caption, captionType, hashtags string) {
	captionType = templateTypes[rng.Intn(len(templateTypes))]
	pool := templates[captionType]
	caption = pool[rng.Intn(len(pool))]

	if rng.Float64() < extraEmojiChance {
		caption += " " + extraEmojis[rng.Intn(len(extraEmojis))]
	}

	tags := g.pickHashtags(rng)
	hashtags = strings.Join(tags, " ")
	caption += "\n\n" + hashtags

	return caption, captionType, hashtags
}

func (g *Generator) pickHashtags(rng *rand.Rand) []string {
	n := g.minHashtags
	if g.maxHashtags > g.minHashtags {
		n += rng.Intn(g.maxHashtags - g.minHashtags + 1)
	}
	if n > len(g.hashtagPool) {
		n = len(g.hashtagPool)
	}

	tags := sample(rng, g.hashtagPool, n)

	if len(g.brandTags) > 0 && rng.Float64() < brandTagChance {
		tags = append(tags, g.brandTags[rng.Intn(len(g.brandTags))])
	}

	return tags
}

// sample draws n distinct elements without mutating the source slice.
func sample(rng *rand.Rand, pool []string, n int) []string {
	idx := rng.Perm(len(pool))[:n]
	out := make([]string, 0, n)
	for _, i := range idx {
		out = append(out, pool[i])
	}
	return out
}
