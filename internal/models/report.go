package models

import (
	"sort"
	"time"
)

// Report is everything the renderer needs for one channel.
type Report struct {
	Channel     Channel       `json:"channel"`
	Videos      []Video       `json:"videos"`
	Ranking     []RankedVideo `json:"ranking"`
	Trend       TrendSeries   `json:"trend"`
	Totals      Totals        `json:"totals"`
	GeneratedAt time.Time     `json:"generatedAt"`
}

// RankedVideo is a video with its 1-based position in the view ranking.
type RankedVideo struct {
	Rank int `json:"rank"`
	Video
}

// TrendSeries holds per-video chart data in chronological order.
// All slices have the same length.
type TrendSeries struct {
	Labels []string `json:"labels"`
	Views  []int64  `json:"views"`
	Likes  []int64  `json:"likes"`
	Titles []string `json:"titles"`
}

// Totals are sums and averages over the analysed videos.
type Totals struct {
	Views        int64   `json:"views"`
	Likes        int64   `json:"likes"`
	Comments     int64   `json:"comments"`
	AverageViews float64 `json:"averageViews"`
	LikeRate     float64 `json:"likeRate"`
}

// BuildReport aggregates fetched records into a Report. videos is copied
// and never modified.
func BuildReport(channel Channel, videos []Video, now time.Time) *Report {
	chrono := make([]Video, len(videos))
	copy(chrono, videos)
	SortChronological(chrono)

	return &Report{
		Channel:     channel,
		Videos:      chrono,
		Ranking:     RankByViews(chrono),
		Trend:       buildTrend(chrono),
		Totals:      sumTotals(chrono),
		GeneratedAt: now,
	}
}

// RankByViews returns the videos ordered by view count, highest first.
// Ties go to the newer video, then to the lower ID, so the order is stable
// across runs.
func RankByViews(videos []Video) []RankedVideo {
	sorted := make([]Video, len(videos))
	copy(sorted, videos)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Views != b.Views {
			return a.Views > b.Views
		}
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.ID < b.ID
	})

	ranked := make([]RankedVideo, len(sorted))
	for i, v := range sorted {
		ranked[i] = RankedVideo{Rank: i + 1, Video: v}
	}
	return ranked
}

func buildTrend(videos []Video) TrendSeries {
	t := TrendSeries{
		Labels: make([]string, 0, len(videos)),
		Views:  make([]int64, 0, len(videos)),
		Likes:  make([]int64, 0, len(videos)),
		Titles: make([]string, 0, len(videos)),
	}
	for _, v := range videos {
		t.Labels = append(t.Labels, v.PublishedAt.UTC().Format("2006-01-02"))
		t.Views = append(t.Views, v.Views)
		t.Likes = append(t.Likes, v.Likes)
		t.Titles = append(t.Titles, v.Title)
	}
	return t
}

func sumTotals(videos []Video) Totals {
	var t Totals
	for _, v := range videos {
		t.Views += v.Views
		t.Likes += v.Likes
		t.Comments += v.Comments
	}
	if len(videos) > 0 {
		t.AverageViews = float64(t.Views) / float64(len(videos))
	}
	if t.Views > 0 {
		t.LikeRate = float64(t.Likes) / float64(t.Views)
	}
	return t
}
