package x

type mediaUploadResponse struct {
	MediaIDString string `json:"media_id_string"`
}

type createTweetRequest struct {
	Text  string      `json:"text"`
	Media *tweetMedia `json:"media,omitempty"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type createTweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type tweetLookupResponse struct {
	Data struct {
		PublicMetrics struct {
			ImpressionCount int64 `json:"impression_count"`
			LikeCount       int64 `json:"like_count"`
			RetweetCount    int64 `json:"retweet_count"`
			ReplyCount      int64 `json:"reply_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}
