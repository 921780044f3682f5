// Package reddit scrapes post candidates from Reddit listing endpoints and
// public quote APIs. It always produces something: when every upstream
// source fails it falls back to a stock image URL or a built-in quote.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"viralbot/internal/domain"
)

const userAgent = "Mozilla/5.0 (compatible; viralbot/1.0)"

// sourceDelay spaces requests to consecutive listing endpoints.
const sourceDelay = 2 * time.Second

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif"}

var fallbackQuotes = []string{
	"Success is not final, failure is not fatal. - Winston Churchill",
	"The only way to do great work is to love what you do. - Steve Jobs",
	"Innovation distinguishes between a leader and a follower. - Steve Jobs",
	"The future belongs to those who believe in their dreams. - Eleanor Roosevelt",
	"Don't watch the clock; do what it does. Keep going. - Sam Levenson",
}

// Candidate type split: 60% meme, 20% video, 20% quote.
const (
	memeShare  = 0.6
	videoShare = 0.2
)

type Config struct {
	MemeSources      []string
	VideoSources     []string
	QuoteSources     []string
	WhitelistDomains []string
	Timeout          time.Duration
}

type Scraper struct {
	httpClient *http.Client
	cfg        Config
	rng        *rand.Rand
	logger     *slog.Logger
}

func New(cfg Config, rng *rand.Rand, logger *slog.Logger) *Scraper {
	return &Scraper{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		rng:        rng,
		logger:     logger.With("source", "reddit"),
	}
}

// GetRandomContent returns one candidate, choosing the content type by the
// configured split. Listing failures degrade to the stock-image fallback
// rather than erroring, so a tick is never lost to one flaky subreddit.
func (s *Scraper) GetRandomContent(ctx context.Context) (domain.Candidate, error) {
	roll := s.rng.Float64()

	switch {
	case roll < memeShare:
		return s.memeCandidate(ctx), nil
	case roll < memeShare+videoShare:
		if c, ok := s.videoCandidate(ctx); ok {
			return c, nil
		}
		// No usable video; a meme is better than nothing.
		return s.memeCandidate(ctx), nil
	default:
		return s.quoteCandidate(ctx), nil
	}
}

// Download fetches the candidate's binary payload.
func (s *Scraper) Download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download content: unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func (s *Scraper) memeCandidate(ctx context.Context) domain.Candidate {
	memes := s.scrapeListings(ctx, s.cfg.MemeSources, s.imagePost)
	if len(memes) > 0 {
		return domain.Candidate{URL: memes[0].URL, Type: domain.ContentMeme, Title: memes[0].Title}
	}
	return domain.Candidate{URL: s.fallbackImageURL(), Type: domain.ContentMeme}
}

func (s *Scraper) videoCandidate(ctx context.Context) (domain.Candidate, bool) {
	videos := s.scrapeListings(ctx, s.cfg.VideoSources, videoPost)
	if len(videos) == 0 {
		return domain.Candidate{}, false
	}
	return domain.Candidate{URL: videos[0].URL, Type: domain.ContentVideo, Title: videos[0].Title}, true
}

func (s *Scraper) quoteCandidate(ctx context.Context) domain.Candidate {
	return domain.Candidate{Type: domain.ContentQuote, Text: s.randomQuote(ctx)}
}

// scraped is one accepted listing entry, URL already resolved.
type scraped struct {
	URL   string
	Title string
	Score int
}

// extract inspects a listing post and returns the usable URL, if any.
type extract func(p listingPost) (string, bool)

func (s *Scraper) scrapeListings(ctx context.Context, sources []string, fn extract) []scraped {
	var out []scraped

	for i, src := range sources {
		if i > 0 {
			select {
			case <-ctx.Done():
				return out
			case <-time.After(sourceDelay):
			}
		}

		l, err := s.fetchListing(ctx, src)
		if err != nil {
			s.logger.Warn("listing fetch failed", "url", src, "error", err)
			continue
		}

		for _, child := range l.Data.Children {
			p := child.Data
			if p.Over18 {
				continue
			}
			if u, ok := fn(p); ok {
				out = append(out, scraped{URL: u, Title: p.Title, Score: p.Score})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (s *Scraper) fetchListing(ctx context.Context, rawURL string) (*listing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var l listing
	if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	return &l, nil
}

// imagePost accepts direct image links from whitelisted domains.
func (s *Scraper) imagePost(p listingPost) (string, bool) {
	lower := strings.ToLower(p.URL)
	hasExt := false
	for _, ext := range imageExtensions {
		if strings.Contains(lower, ext) {
			hasExt = true
			break
		}
	}
	if !hasExt || !s.domainAllowed(p.URL) {
		return "", false
	}
	return p.URL, true
}

func videoPost(p listingPost) (string, bool) {
	if !p.IsVideo || p.Media == nil || p.Media.RedditVideo == nil {
		return "", false
	}
	if p.Media.RedditVideo.FallbackURL == "" {
		return "", false
	}
	return p.Media.RedditVideo.FallbackURL, true
}

func (s *Scraper) domainAllowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Host)
	for _, d := range s.cfg.WhitelistDomains {
		if strings.Contains(host, d) {
			return true
		}
	}
	return false
}

func (s *Scraper) fallbackImageURL() string {
	return fmt.Sprintf("https://picsum.photos/1920/1080?random=%d", s.rng.Intn(999999)+1)
}

func (s *Scraper) randomQuote(ctx context.Context) string {
	if len(s.cfg.QuoteSources) > 0 {
		src := s.cfg.QuoteSources[s.rng.Intn(len(s.cfg.QuoteSources))]
		if quote, err := s.fetchQuote(ctx, src); err == nil {
			return quote
		} else {
			s.logger.Warn("quote fetch failed, using fallback", "url", src, "error", err)
		}
	}
	return fallbackQuotes[s.rng.Intn(len(fallbackQuotes))]
}

func (s *Scraper) fetchQuote(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if strings.Contains(rawURL, "zenquotes") {
		var quotes []zenQuote
		if err := json.Unmarshal(body, &quotes); err != nil {
			return "", fmt.Errorf("decode zenquotes response: %w", err)
		}
		if len(quotes) == 0 {
			return "", fmt.Errorf("empty zenquotes response")
		}
		return quotes[0].Quote + " - " + quotes[0].Author, nil
	}

	var q quotableQuote
	if err := json.Unmarshal(body, &q); err != nil {
		return "", fmt.Errorf("decode quote response: %w", err)
	}
	if q.Content == "" {
		return "", fmt.Errorf("empty quote response")
	}
	return q.Content + " - " + q.Author, nil
}
