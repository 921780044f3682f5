// Package x is a thin client for the X API: media upload and tweet
// creation over the OAuth1-signed user context, public metrics over the
// app bearer token.
package x

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dghubble/oauth1"

	"viralbot/internal/domain"
)

const (
	defaultAPIBaseURL    = "https://api.twitter.com"
	defaultUploadBaseURL = "https://upload.twitter.com"
)

type Config struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
	BearerToken  string
	Timeout      time.Duration

	// Base URLs are overridable for tests.
	APIBaseURL    string
	UploadBaseURL string
}

type Client struct {
	userClient   *http.Client
	bearerClient *http.Client
	bearerToken  string
	apiBase      string
	uploadBase   string
	logger       *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	oauthConfig := oauth1.NewConfig(cfg.APIKey, cfg.APISecret)
	token := oauth1.NewToken(cfg.AccessToken, cfg.AccessSecret)

	userClient := oauthConfig.Client(oauth1.NoContext, token)
	userClient.Timeout = cfg.Timeout

	apiBase := cfg.APIBaseURL
	if apiBase == "" {
		apiBase = defaultAPIBaseURL
	}
	uploadBase := cfg.UploadBaseURL
	if uploadBase == "" {
		uploadBase = defaultUploadBaseURL
	}

	return &Client{
		userClient:   userClient,
		bearerClient: &http.Client{Timeout: cfg.Timeout},
		bearerToken:  cfg.BearerToken,
		apiBase:      apiBase,
		uploadBase:   uploadBase,
		logger:       logger.With("platform", "x"),
	}
}

// Publish uploads the media file (when given) and creates the tweet,
// returning the platform-assigned tweet id.
func (c *Client) Publish(ctx context.Context, caption string, mediaPath string) (string, error) {
	var media *tweetMedia
	if mediaPath != "" {
		mediaID, err := c.uploadMedia(ctx, mediaPath)
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrPublish, err)
		}
		media = &tweetMedia{MediaIDs: []string{mediaID}}
	}

	body, err := json.Marshal(createTweetRequest{Text: caption, Media: media})
	if err != nil {
		return "", fmt.Errorf("marshal tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBase+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.userClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrPublish, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrPublish, resp.StatusCode, msg)
	}

	var created createTweetResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode tweet response: %w", err)
	}
	if created.Data.ID == "" {
		return "", fmt.Errorf("%w: response missing tweet id", domain.ErrPublish)
	}

	c.logger.Debug("published tweet", "tweet_id", created.Data.ID)
	return created.Data.ID, nil
}

// GetMetrics fetches the public counters for one tweet.
func (c *Client) GetMetrics(ctx context.Context, postID string) (domain.Metrics, error) {
	u := fmt.Sprintf("%s/2/tweets/%s?tweet.fields=public_metrics", c.apiBase, postID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Metrics{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)

	resp, err := c.bearerClient.Do(req)
	if err != nil {
		return domain.Metrics{}, fmt.Errorf("%w: %v", domain.ErrMetricsFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Metrics{}, fmt.Errorf("%w: status %d", domain.ErrMetricsFetch, resp.StatusCode)
	}

	var lookup tweetLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&lookup); err != nil {
		return domain.Metrics{}, fmt.Errorf("decode metrics response: %w", err)
	}

	pm := lookup.Data.PublicMetrics
	return domain.Metrics{
		Impressions: pm.ImpressionCount,
		Likes:       pm.LikeCount,
		Retweets:    pm.RetweetCount,
		Replies:     pm.ReplyCount,
	}, nil
}

func (c *Client) uploadMedia(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open media file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("media", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("copy media: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.uploadBase+"/1.1/media/upload.json", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.userClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("upload media: status %d: %s", resp.StatusCode, msg)
	}

	var uploaded mediaUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	return uploaded.MediaIDString, nil
}
