package domain

import "time"

// Report is the aggregate engagement view over a trailing window.
// It is a pure read over the posts table.
type Report struct {
	WindowDays int

	TotalPosts    int64
	TotalViews    int64
	TotalLikes    int64
	TotalRetweets int64
	AvgEngagement float64

	TopPosts     []Post
	BestHours    []HourStat
	ContentTypes []ContentTypeStat
	CaptionTypes []CaptionTypeStat
	DailyTrend   []DayStat
}

// HourStat is the mean engagement for posts made in one hour of day,
// restricted to posts whose metrics have been fetched.
type HourStat struct {
	Hour           int     `db:"posted_hour"`
	AvgEngagement  float64 `db:"avg_engagement"`
	AvgImpressions float64 `db:"avg_impressions"`
	Posts          int64   `db:"posts"`
}

type ContentTypeStat struct {
	ContentType    ContentType `db:"content_type"`
	AvgEngagement  float64     `db:"avg_engagement"`
	AvgImpressions float64     `db:"avg_impressions"`
	Posts          int64       `db:"posts"`
}

type CaptionTypeStat struct {
	CaptionType   string  `db:"caption_type"`
	AvgEngagement float64 `db:"avg_engagement"`
	Posts         int64   `db:"posts"`
}

// DayStat is one day of the daily trend.
type DayStat struct {
	Day           time.Time
	Posts         int64
	Views         int64
	Likes         int64
	AvgEngagement float64
}
