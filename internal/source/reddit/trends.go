package reddit

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"time"
)

const trendingURL = "https://www.reddit.com/r/all/hot.json"

var evergreenTrends = []string{
	"motivation", "success", "mindset", "entrepreneur",
	"AI", "tech", "innovation", "productivity", "growth",
	"funny", "meme", "viral", "trending",
}

// TrendDetector builds a trending-hashtag set from r/all hot titles mixed
// with an evergreen list.
type TrendDetector struct {
	httpClient *http.Client
	baseURL    string
	rng        *rand.Rand
	logger     *slog.Logger

	trending []string
}

func NewTrendDetector(timeout time.Duration, rng *rand.Rand, logger *slog.Logger) *TrendDetector {
	return &TrendDetector{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    trendingURL,
		rng:        rng,
		logger:     logger.With("source", "trends"),
	}
}

// TrendingHashtags fetches fresh trending hashtags. Scrape failures still
// yield the evergreen set, never an empty one.
func (t *TrendDetector) TrendingHashtags(ctx context.Context) []string {
	words := t.scrapeTitleWords(ctx)
	words = append(words, evergreenTrends...)

	counts := make(map[string]int)
	order := make([]string, 0, len(words))
	for _, w := range words {
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > 15 {
		order = order[:15]
	}

	tags := make([]string, 0, len(order))
	for _, w := range order {
		tags = append(tags, "#"+w)
	}
	t.trending = tags
	return tags
}

// SmartHashtags mixes up to 3 base hashtags with up to 2 trending ones.
func (t *TrendDetector) SmartHashtags(ctx context.Context, base []string) []string {
	if len(t.trending) == 0 {
		t.TrendingHashtags(ctx)
	}

	selected := pick(t.rng, base, 3)
	selected = append(selected, pick(t.rng, t.trending, 2)...)
	if len(selected) > 5 {
		selected = selected[:5]
	}
	return selected
}

func (t *TrendDetector) scrapeTitleWords(ctx context.Context) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.logger.Warn("trending fetch failed", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var l listing
	if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
		t.logger.Warn("trending decode failed", "error", err)
		return nil
	}

	var words []string
	children := l.Data.Children
	if len(children) > 20 {
		children = children[:20]
	}
	for _, child := range children {
		title := strings.ToLower(child.Data.Title)
		picked := 0
		for _, w := range strings.Fields(title) {
			if len(w) > 4 {
				words = append(words, w)
				picked++
			}
			if picked == 3 {
				break
			}
		}
	}
	return words
}

func pick(rng *rand.Rand, pool []string, n int) []string {
	if n > len(pool) {
		n = len(pool)
	}
	idx := rng.Perm(len(pool))[:n]
	out := make([]string, 0, n)
	for _, i := range idx {
		out = append(out, pool[i])
	}
	return out
}
