package reddit

// listing is the slice of Reddit's listing JSON the scraper reads.
type listing struct {
	Data struct {
		Children []struct {
			Data listingPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type listingPost struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Score   int    `json:"score"`
	Over18  bool   `json:"over_18"`
	IsVideo bool   `json:"is_video"`
	Media   *struct {
		RedditVideo *struct {
			FallbackURL string `json:"fallback_url"`
		} `json:"reddit_video"`
	} `json:"media"`
}

// zenQuote is one element of the zenquotes.io response array.
type zenQuote struct {
	Quote  string `json:"q"`
	Author string `json:"a"`
}

// quotableQuote is the quotable.io response shape.
type quotableQuote struct {
	Content string `json:"content"`
	Author  string `json:"author"`
}
