package x

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"viralbot/internal/domain"
)

func newTestClient(apiBase, uploadBase string) *Client {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(Config{
		APIKey:        "key",
		APISecret:     "secret",
		AccessToken:   "token",
		AccessSecret:  "token-secret",
		BearerToken:   "bearer-token",
		Timeout:       5 * time.Second,
		APIBaseURL:    apiBase,
		UploadBaseURL: uploadBase,
	}, logger)
}

func TestPublish_TextOnly(t *testing.T) {
	var gotBody createTweetRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/2/tweets", r.URL.Path)
		require.Contains(t, r.Header.Get("Authorization"), "OAuth")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data": {"id": "1234567890"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)

	id, err := c.Publish(context.Background(), "Stay hungry. - Steve Jobs\n\nTag someone 👀", "")

	require.NoError(t, err)
	require.Equal(t, "1234567890", id)
	require.Equal(t, "Stay hungry. - Steve Jobs\n\nTag someone 👀", gotBody.Text)
	require.Nil(t, gotBody.Media)
}

func TestPublish_WithMedia(t *testing.T) {
	mediaPath := filepath.Join(t.TempDir(), "meme.jpg")
	require.NoError(t, os.WriteFile(mediaPath, []byte("jpeg bytes"), 0o644))

	var gotBody createTweetRequest
	uploaded := false

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1.1/media/upload.json":
			uploaded = true
			require.NoError(t, r.ParseMultipartForm(1<<20))
			f, _, err := r.FormFile("media")
			require.NoError(t, err)
			f.Close()
			w.Write([]byte(`{"media_id_string": "media-42"}`))
		case "/2/tweets":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"data": {"id": "1234567890"}}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)

	id, err := c.Publish(context.Background(), "caption", mediaPath)

	require.NoError(t, err)
	require.Equal(t, "1234567890", id)
	require.True(t, uploaded, "media is uploaded before the tweet is created")
	require.NotNil(t, gotBody.Media)
	require.Equal(t, []string{"media-42"}, gotBody.Media.MediaIDs)
}

func TestPublish_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"detail": "duplicate content"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)

	_, err := c.Publish(context.Background(), "caption", "")

	require.ErrorIs(t, err, domain.ErrPublish)
}

func TestPublish_UploadError(t *testing.T) {
	mediaPath := filepath.Join(t.TempDir(), "meme.jpg")
	require.NoError(t, os.WriteFile(mediaPath, []byte("jpeg bytes"), 0o644))

	tweetCreated := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/2/tweets" {
			tweetCreated = true
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)

	_, err := c.Publish(context.Background(), "caption", mediaPath)

	require.ErrorIs(t, err, domain.ErrPublish)
	require.False(t, tweetCreated, "a failed upload never reaches tweet creation")
}

func TestPublish_MissingTweetID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data": {}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)

	_, err := c.Publish(context.Background(), "caption", "")

	require.ErrorIs(t, err, domain.ErrPublish)
}

func TestGetMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2/tweets/1234567890", r.URL.Path)
		require.Equal(t, "public_metrics", r.URL.Query().Get("tweet.fields"))
		require.Equal(t, "Bearer bearer-token", r.Header.Get("Authorization"))

		w.Write([]byte(`{"data": {"public_metrics": {
			"impression_count": 1000, "like_count": 40, "retweet_count": 5, "reply_count": 5
		}}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)

	m, err := c.GetMetrics(context.Background(), "1234567890")

	require.NoError(t, err)
	require.Equal(t, domain.Metrics{Impressions: 1000, Likes: 40, Retweets: 5, Replies: 5}, m)
	require.InDelta(t, 5.0, m.EngagementRate(), 1e-9)
}

func TestGetMetrics_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)

	_, err := c.GetMetrics(context.Background(), "1234567890")

	require.ErrorIs(t, err, domain.ErrMetricsFetch)
}
